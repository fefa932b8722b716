package reminder

import "time"

// MaxDescriptionLen caps the event description length.
const MaxDescriptionLen = 500

// Reminder is a dated outbound message scheduled for a user. IsSent is true
// exactly when SentAt is set.
type Reminder struct {
	ID          int64
	UserID      int64
	EventDate   time.Time
	Description string
	IsSent      bool
	SentAt      *time.Time
	CreatedAt   time.Time
}

// Due reports whether the reminder should be dispatched at now.
func (r Reminder) Due(now time.Time) bool {
	if r.IsSent {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return !r.EventDate.After(today.Add(24*time.Hour - time.Nanosecond))
}
