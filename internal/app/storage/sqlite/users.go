package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/user"
)

type userRow struct {
	ID        int64     `db:"id"`
	Handle    int64     `db:"handle"`
	Name      string    `db:"name"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{ID: r.ID, Handle: r.Handle, Name: r.Name, Username: r.Username, CreatedAt: r.CreatedAt}
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO users (handle, name, username, created_at)
		VALUES (?, ?, ?, ?)
	`, u.Handle, u.Name, u.Username, u.CreatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("insert user: %w", wrapErr(err))
	}
	u.ID, _ = res.LastInsertId()
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE users SET name = ?, username = ? WHERE id = ?
	`, u.Name, u.Username, u.ID)
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return user.User{}, fault.NotFound("user", u.ID)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, handle, name, username, created_at FROM users WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, fault.NotFound("user", id)
		}
		return user.User{}, fmt.Errorf("get user: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByHandle(ctx context.Context, handle int64) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, handle, name, username, created_at FROM users WHERE handle = ?
	`, handle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, fault.NotFound("user", handle)
		}
		return user.User{}, fmt.Errorf("get user by handle: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("user", id)
	}
	return nil
}
