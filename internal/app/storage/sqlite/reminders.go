package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/reminder"
)

type reminderRow struct {
	ID          int64        `db:"id"`
	UserID      int64        `db:"user_id"`
	EventDate   time.Time    `db:"event_date"`
	Description string       `db:"description"`
	IsSent      bool         `db:"is_sent"`
	SentAt      sql.NullTime `db:"sent_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r reminderRow) toDomain() reminder.Reminder {
	rem := reminder.Reminder{
		ID: r.ID, UserID: r.UserID, EventDate: r.EventDate,
		Description: r.Description, IsSent: r.IsSent, CreatedAt: r.CreatedAt,
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time
		rem.SentAt = &t
	}
	return rem
}

func (s *Store) CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	if len(r.Description) > reminder.MaxDescriptionLen {
		return reminder.Reminder{}, fmt.Errorf("description exceeds %d chars: %w", reminder.MaxDescriptionLen, fault.ErrConstraint)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO reminders (user_id, event_date, description, is_sent, sent_at, created_at)
		VALUES (?, ?, ?, ?, NULL, ?)
	`, r.UserID, r.EventDate, r.Description, r.IsSent, r.CreatedAt)
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("insert reminder: %w", wrapErr(err))
	}
	r.ID, _ = res.LastInsertId()
	return r, nil
}

func (s *Store) GetReminder(ctx context.Context, id int64) (reminder.Reminder, error) {
	var row reminderRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, user_id, event_date, description, is_sent, sent_at, created_at
		FROM reminders WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminder.Reminder{}, fault.NotFound("reminder", id)
		}
		return reminder.Reminder{}, fmt.Errorf("get reminder: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

// ListDueReminders returns unsent reminders whose event date falls on or
// before the day of now, oldest first, capped at limit.
func (s *Store) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]reminder.Reminder, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), now.Location())

	var rows []reminderRow
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, user_id, event_date, description, is_sent, sent_at, created_at
		FROM reminders WHERE is_sent = 0 AND event_date <= ?
		ORDER BY event_date, id LIMIT ?
	`, endOfDay, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", wrapErr(err))
	}
	result := make([]reminder.Reminder, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) ListUserReminders(ctx context.Context, userID int64) ([]reminder.Reminder, error) {
	var rows []reminderRow
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, user_id, event_date, description, is_sent, sent_at, created_at
		FROM reminders WHERE user_id = ? ORDER BY event_date, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user reminders: %w", wrapErr(err))
	}
	result := make([]reminder.Reminder, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE reminders SET is_sent = 1, sent_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("reminder", id)
	}
	return nil
}
