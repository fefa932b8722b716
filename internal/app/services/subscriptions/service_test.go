package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
)

func seedShop(t *testing.T, store storage.Store) shop.Shop {
	t.Helper()
	ctx := context.Background()
	owner, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "owner", Username: "owner"})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	sh, err := store.CreateShop(ctx, shop.Shop{OwnerID: owner.ID, Name: "Flowers", IsActive: true})
	if err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	return sh
}

func seedPlan(t *testing.T, store storage.Store, name string, price int64, days, maxProducts int) subscription.Plan {
	t.Helper()
	p, err := store.CreatePlan(context.Background(), subscription.Plan{
		Name:         name,
		Price:        decimal.NewFromInt(price),
		DurationDays: days,
		MaxProducts:  maxProducts,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed plan %s: %v", name, err)
	}
	return p
}

func TestSubscribeKeepsOneActive(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	sh := seedShop(t, store)
	basic := seedPlan(t, store, "Basic", 299, 30, 30)
	standard := seedPlan(t, store, "Standard", 599, 30, 100)
	now := time.Now().UTC()

	first, err := svc.Subscribe(ctx, sh.ID, basic.ID, now)
	if err != nil {
		t.Fatalf("subscribe basic: %v", err)
	}
	if !first.IsActive {
		t.Fatalf("new subscription must be active")
	}
	if want := now.AddDate(0, 0, 30); !first.EndDate.Equal(want) {
		t.Fatalf("end date: want %v, got %v", want, first.EndDate)
	}

	second, err := svc.Subscribe(ctx, sh.ID, standard.ID, now)
	if err != nil {
		t.Fatalf("subscribe standard: %v", err)
	}

	active, err := svc.ActiveSubscription(ctx, sh.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected the new subscription active, got %d", active.ID)
	}

	all, err := store.ListSubscriptions(ctx, sh.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	activeCount := 0
	for _, s := range all {
		if s.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active subscription, got %d", activeCount)
	}

	quota, err := svc.EffectiveQuota(ctx, sh.ID)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if quota != 100 {
		t.Fatalf("expected quota 100 after switch, got %d", quota)
	}
}

func TestQuotaWithoutSubscription(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	sh := seedShop(t, store)

	quota, err := svc.EffectiveQuota(context.Background(), sh.ID)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if quota != 0 {
		t.Fatalf("expected zero quota without subscription, got %d", quota)
	}
}

func TestSubscribeRejectsInactivePlan(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	sh := seedShop(t, store)

	p, err := store.CreatePlan(ctx, subscription.Plan{
		Name:         "Legacy",
		Price:        decimal.NewFromInt(100),
		DurationDays: 30,
		MaxProducts:  10,
		IsActive:     false,
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if _, err := svc.Subscribe(ctx, sh.ID, p.ID, time.Now().UTC()); !fault.IsConstraint(err) {
		t.Fatalf("expected constraint for inactive plan, got %v", err)
	}
}

func TestSubscribeRejectsSubFloorPrice(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	sh := seedShop(t, store)

	p, err := store.CreatePlan(ctx, subscription.Plan{
		Name:         "Cheap",
		Price:        decimal.NewFromInt(30),
		DurationDays: 30,
		MaxProducts:  10,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if _, err := svc.Subscribe(ctx, sh.ID, p.ID, time.Now().UTC()); !fault.IsConstraint(err) {
		t.Fatalf("expected constraint for sub-floor price, got %v", err)
	}

	// Free plans stay valid.
	free := seedPlan(t, store, "Trial", 0, 7, 10)
	if _, err := svc.Subscribe(ctx, sh.ID, free.ID, time.Now().UTC()); err != nil {
		t.Fatalf("free plan: %v", err)
	}
}

func TestLapseExpired(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	sh := seedShop(t, store)
	trial := seedPlan(t, store, "Trial", 0, 7, 10)

	start := time.Now().UTC().AddDate(0, 0, -8)
	if _, err := svc.Subscribe(ctx, sh.ID, trial.ID, start); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n, err := svc.LapseExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("lapse: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 lapsed, got %d", n)
	}
	if _, err := svc.ActiveSubscription(ctx, sh.ID); !fault.IsNotFound(err) {
		t.Fatalf("expected no active subscription, got %v", err)
	}
	quota, err := svc.EffectiveQuota(ctx, sh.ID)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if quota != 0 {
		t.Fatalf("expected zero quota after lapse, got %d", quota)
	}
}

func TestPlanChangedHook(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	sh := seedShop(t, store)
	basic := seedPlan(t, store, "Basic", 299, 30, 30)

	var gotShop int64
	var gotPlan string
	svc.WithPlanChanged(func(shopID int64, plan subscription.Plan) {
		gotShop = shopID
		gotPlan = plan.Name
	})

	if _, err := svc.Subscribe(ctx, sh.ID, basic.ID, time.Now().UTC()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if gotShop != sh.ID || gotPlan != "Basic" {
		t.Fatalf("hook not fired: shop=%d plan=%q", gotShop, gotPlan)
	}
}
