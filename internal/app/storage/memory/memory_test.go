package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
)

func TestInTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if _, err := store.GetUserByHandle(ctx, 1); !fault.IsNotFound(err) {
		t.Fatalf("write must have rolled back, got %v", err)
	}
}

func TestInTxCommits(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.InTx(ctx, func(tx storage.Store) error {
		_, err := tx.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"})
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := store.GetUserByHandle(ctx, 1); err != nil {
		t.Fatalf("committed write missing: %v", err)
	}
}

func TestNestedInTxJoins(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.InTx(ctx, func(tx storage.Store) error {
		return tx.InTx(ctx, func(inner storage.Store) error {
			_, err := inner.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	if _, err := store.GetUserByHandle(ctx, 1); err != nil {
		t.Fatalf("nested write missing: %v", err)
	}
}

func TestUniqueHandle(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "b", Username: "b"}); !fault.IsConstraint(err) {
		t.Fatalf("duplicate handle: expected constraint, got %v", err)
	}
}

func TestForeignKeys(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateShop(ctx, shop.Shop{OwnerID: 99, Name: "ghost"}); !fault.IsConstraint(err) {
		t.Fatalf("shop without owner: expected constraint, got %v", err)
	}
}

func TestAddPromoUsesBounds(t *testing.T) {
	store := New()
	ctx := context.Background()
	two := 2
	now := time.Now().UTC()

	p, err := store.CreatePromo(ctx, promo.Promo{
		Code:       "CAP",
		Type:       promo.TypePercent,
		Value:      decimal.NewFromInt(10),
		MaxUses:    &two,
		ValidFrom:  now,
		ValidUntil: now.AddDate(0, 1, 0),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.AddPromoUses(ctx, p.ID, 1); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := store.AddPromoUses(ctx, p.ID, 1); err != nil {
		t.Fatalf("second use: %v", err)
	}
	if err := store.AddPromoUses(ctx, p.ID, 1); !fault.IsConstraint(err) {
		t.Fatalf("cap breach: expected constraint, got %v", err)
	}

	// Decrements clamp at zero.
	if err := store.AddPromoUses(ctx, p.ID, -5); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	got, err := store.GetPromo(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsesCount != 0 {
		t.Fatalf("uses must clamp at zero, got %d", got.UsesCount)
	}
}

func TestClearAllAndCounts(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateShop(ctx, shop.Shop{OwnerID: u.ID, Name: "s", IsActive: true}); err != nil {
		t.Fatalf("create shop: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["users"] != 1 || counts["shops"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	counts, err = store.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	for table, n := range counts {
		if n != 0 {
			t.Fatalf("%s not cleared: %d", table, n)
		}
	}

	// Identities restart from 1 after a wipe.
	again, err := store.CreateUser(ctx, user.User{Handle: 2, Name: "b", Username: "b"})
	if err != nil {
		t.Fatalf("create after clear: %v", err)
	}
	if again.ID != 1 {
		t.Fatalf("identity not reset, got id %d", again.ID)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "a", Username: "a"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sh, err := store.CreateShop(ctx, shop.Shop{OwnerID: u.ID, Name: "s", IsActive: true})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	if err := store.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetShop(ctx, sh.ID); !fault.IsNotFound(err) {
		t.Fatalf("shop must cascade, got %v", err)
	}
}
