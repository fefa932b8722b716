package shops

import (
	"context"
	"testing"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
)

func seedUser(t *testing.T, store storage.Store, handle int64) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Handle: handle, Name: "user", Username: "user"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestCreateOnePerOwner(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	owner := seedUser(t, store, 1)

	created, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Flowers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsActive {
		t.Fatalf("new shop must start active")
	}

	if _, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Second"}); !fault.IsConstraint(err) {
		t.Fatalf("expected constraint for second shop, got %v", err)
	}
}

func TestUpdateRequiresOwner(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	owner := seedUser(t, store, 1)
	other := seedUser(t, store, 2)

	sh, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Flowers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sh.Name = "Stolen"
	if _, err := svc.Update(ctx, other.ID, sh); !fault.IsNotFound(err) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestReviewAggregates(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	owner := seedUser(t, store, 1)
	alice := seedUser(t, store, 2)
	bob := seedUser(t, store, 3)

	sh, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Flowers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.UpsertReview(ctx, alice.ID, sh.ID, 5, "great"); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.UpsertReview(ctx, bob.ID, sh.ID, 4, "good"); err != nil {
		t.Fatalf("review: %v", err)
	}

	got, err := svc.Get(ctx, sh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReviewsCount != 2 {
		t.Fatalf("expected 2 reviews, got %d", got.ReviewsCount)
	}
	if got.AverageRating.String() != "4.5" {
		t.Fatalf("expected average 4.5, got %s", got.AverageRating)
	}

	// A second review by the same user replaces, never duplicates.
	if _, err := svc.UpsertReview(ctx, bob.ID, sh.ID, 2, "changed my mind"); err != nil {
		t.Fatalf("re-review: %v", err)
	}
	got, err = svc.Get(ctx, sh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReviewsCount != 2 {
		t.Fatalf("re-review must not add a row, got %d", got.ReviewsCount)
	}
	if got.AverageRating.String() != "3.5" {
		t.Fatalf("expected average 3.5, got %s", got.AverageRating)
	}
}

func TestReviewRatingBounds(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	owner := seedUser(t, store, 1)
	sh, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Flowers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.UpsertReview(ctx, owner.ID, sh.ID, rating, ""); !fault.IsConstraint(err) {
			t.Fatalf("rating %d: expected constraint, got %v", rating, err)
		}
	}
}

func TestRecordView(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	owner := seedUser(t, store, 1)
	sh, err := svc.Create(ctx, owner.ID, shop.Shop{Name: "Flowers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.RecordView(ctx, sh.ID); err != nil {
			t.Fatalf("record view: %v", err)
		}
	}
	got, err := svc.Get(ctx, sh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ViewsCount != 3 {
		t.Fatalf("expected 3 views, got %d", got.ViewsCount)
	}
}
