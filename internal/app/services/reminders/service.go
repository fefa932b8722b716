// Package reminders implements the event reminder queue and its dispatch
// loop.
package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/reminder"
	"github.com/shoplink/marketplace/internal/app/metrics"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// DefaultBatchSize bounds how many due reminders one dispatch pass handles.
const DefaultBatchSize = 50

// Sender delivers a reminder to the user over the messaging platform.
type Sender interface {
	Send(ctx context.Context, r reminder.Reminder) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, r reminder.Reminder) error

func (f SenderFunc) Send(ctx context.Context, r reminder.Reminder) error { return f(ctx, r) }

// Service manages reminders and dispatches the due ones.
type Service struct {
	store  storage.Store
	sender Sender
	log    *logger.Logger
	batch  int
	now    func() time.Time
}

// New constructs a reminders service.
func New(store storage.Store, sender Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reminders")
	}
	return &Service{
		store:  store,
		sender: sender,
		log:    log,
		batch:  DefaultBatchSize,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithBatchSize overrides the dispatch batch size.
func (s *Service) WithBatchSize(n int) {
	if n > 0 {
		s.batch = n
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

// Create schedules a reminder for the user.
func (s *Service) Create(ctx context.Context, userID int64, eventDate time.Time, description string) (reminder.Reminder, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return reminder.Reminder{}, fmt.Errorf("description is required: %w", fault.ErrConstraint)
	}
	if len([]rune(description)) > reminder.MaxDescriptionLen {
		return reminder.Reminder{}, fmt.Errorf("description exceeds %d characters: %w", reminder.MaxDescriptionLen, fault.ErrConstraint)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return reminder.Reminder{}, err
	}
	return s.store.CreateReminder(ctx, reminder.Reminder{
		UserID:      userID,
		EventDate:   eventDate,
		Description: description,
		CreatedAt:   s.now(),
	})
}

// ListForUser returns the user's reminders, sent and pending.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]reminder.Reminder, error) {
	return s.store.ListUserReminders(ctx, userID)
}

// DispatchDue sends one batch of due reminders. Each reminder is marked sent
// only after the sender accepted it, so a failed send stays queued for the
// next pass. Returns how many were delivered.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListDueReminders(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		if err := s.sender.Send(ctx, r); err != nil {
			s.log.WithError(err).
				WithField("reminder_id", r.ID).
				Warn("reminder send failed, will retry")
			continue
		}
		if err := s.store.MarkReminderSent(ctx, r.ID, now); err != nil {
			s.log.WithError(err).
				WithField("reminder_id", r.ID).
				Error("reminder sent but not marked, duplicate possible")
			continue
		}
		sent++
	}
	if sent > 0 {
		metrics.RecordRemindersSent(sent)
		s.log.Infof("%d reminders dispatched", sent)
	}
	return sent, nil
}
