package user

import "time"

// User is an identity on the external messaging platform.
type User struct {
	ID        int64
	Handle    int64 // platform integer handle, unique
	Name      string
	Username  string
	CreatedAt time.Time
}
