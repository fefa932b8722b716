package reminders

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/reminder"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
)

type captureSender struct {
	sent []int64
	fail map[int64]bool
}

func (c *captureSender) Send(ctx context.Context, r reminder.Reminder) error {
	if c.fail[r.ID] {
		return fmt.Errorf("platform unavailable")
	}
	c.sent = append(c.sent, r.ID)
	return nil
}

func seedUser(t *testing.T, store storage.Store) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Handle: 1, Name: "u", Username: "u"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestCreateValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, &captureSender{}, nil)
	ctx := context.Background()
	u := seedUser(t, store)
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Create(ctx, u.ID, date, ""); !fault.IsConstraint(err) {
		t.Fatalf("empty description: expected constraint, got %v", err)
	}
	if _, err := svc.Create(ctx, u.ID, date, strings.Repeat("x", reminder.MaxDescriptionLen+1)); !fault.IsConstraint(err) {
		t.Fatalf("oversize description: expected constraint, got %v", err)
	}
	if _, err := svc.Create(ctx, 999, date, "mum's birthday"); !fault.IsNotFound(err) {
		t.Fatalf("unknown user: expected not found, got %v", err)
	}
	if _, err := svc.Create(ctx, u.ID, date, "mum's birthday"); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestDispatchDueSendsOnce(t *testing.T) {
	store := memory.New()
	sender := &captureSender{}
	svc := New(store, sender, nil)
	ctx := context.Background()
	u := seedUser(t, store)

	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	due, err := svc.Create(ctx, u.ID, now, "today")
	if err != nil {
		t.Fatalf("create due: %v", err)
	}
	if _, err := svc.Create(ctx, u.ID, now.AddDate(0, 0, 5), "future"); err != nil {
		t.Fatalf("create future: %v", err)
	}

	sent, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}
	if len(sender.sent) != 1 || sender.sent[0] != due.ID {
		t.Fatalf("wrong reminders sent: %v", sender.sent)
	}

	got, err := store.GetReminder(ctx, due.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsSent || got.SentAt == nil {
		t.Fatalf("reminder not marked sent: %+v", got)
	}

	// A second pass must not resend.
	sent, err = svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected nothing on second pass, got %d", sent)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("reminder resent: %v", sender.sent)
	}
}

func TestDispatchKeepsFailedForRetry(t *testing.T) {
	store := memory.New()
	sender := &captureSender{fail: map[int64]bool{}}
	svc := New(store, sender, nil)
	ctx := context.Background()
	u := seedUser(t, store)

	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	flaky, err := svc.Create(ctx, u.ID, now, "flaky")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sender.fail[flaky.ID] = true

	if _, err := svc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got, err := store.GetReminder(ctx, flaky.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsSent {
		t.Fatalf("failed send must stay queued")
	}

	// The platform recovers; the next pass delivers it.
	sender.fail[flaky.ID] = false
	sent, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("retry dispatch: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected retry delivery, got %d", sent)
	}
}

func TestDispatchHonoursBatchSize(t *testing.T) {
	store := memory.New()
	sender := &captureSender{}
	svc := New(store, sender, nil)
	ctx := context.Background()
	u := seedUser(t, store)

	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })
	svc.WithBatchSize(2)

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, u.ID, now, fmt.Sprintf("r%d", i)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	sent, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected batch of 2, got %d", sent)
	}
}
