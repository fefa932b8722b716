package accounts

import (
	"context"
	"testing"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
)

func TestUpsertByHandle(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	created, err := svc.UpsertByHandle(ctx, 42, "Alice", "alice")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	same, err := svc.UpsertByHandle(ctx, 42, "Alice", "alice")
	if err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}
	if same.ID != created.ID {
		t.Fatalf("expected same user, got %d and %d", created.ID, same.ID)
	}

	renamed, err := svc.UpsertByHandle(ctx, 42, "Alice B", "aliceb")
	if err != nil {
		t.Fatalf("rename upsert: %v", err)
	}
	if renamed.ID != created.ID {
		t.Fatalf("rename must not create a new user")
	}
	if renamed.Name != "Alice B" || renamed.Username != "aliceb" {
		t.Fatalf("display fields not refreshed: %+v", renamed)
	}
}

func TestGetByHandleMissing(t *testing.T) {
	svc := New(memory.New(), nil)

	_, err := svc.GetByHandle(context.Background(), 999)
	if !fault.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	u, err := svc.UpsertByHandle(ctx, 7, "Bob", "bob")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID); !fault.IsNotFound(err) {
		t.Fatalf("expected user gone, got %v", err)
	}
}
