package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
)

type fixture struct {
	store storage.Store
	owner user.User
	shop  shop.Shop
	cat   catalog.Category
	plan  subscription.Plan
	svc   *Service
	ctx   context.Context
}

// newFixture seeds an owner with a shop, a category and an active Basic-style
// subscription allowing maxProducts active products.
func newFixture(t *testing.T, maxProducts int) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, user.User{Handle: 1, Name: "owner", Username: "owner"})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	sh, err := store.CreateShop(ctx, shop.Shop{OwnerID: owner.ID, Name: "Flowers", IsActive: true})
	if err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	cat, err := store.CreateCategory(ctx, catalog.Category{Name: "Bouquets", Slug: "bouquets"})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	plan, err := store.CreatePlan(ctx, subscription.Plan{
		Name:         "Basic",
		Price:        decimal.NewFromInt(299),
		DurationDays: 30,
		MaxProducts:  maxProducts,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	now := time.Now().UTC()
	_, err = store.CreateSubscription(ctx, subscription.ShopSubscription{
		ShopID:    sh.ID,
		PlanID:    plan.ID,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, plan.DurationDays),
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	return &fixture{
		store: store,
		owner: owner,
		shop:  sh,
		cat:   cat,
		plan:  plan,
		svc:   New(store, nil),
		ctx:   ctx,
	}
}

func (f *fixture) product(title string, active bool) catalog.Product {
	return catalog.Product{
		ShopID:     f.shop.ID,
		CategoryID: f.cat.ID,
		Title:      title,
		Price:      decimal.NewFromInt(100),
		IsActive:   active,
	}
}

func TestQuotaGatesActivation(t *testing.T) {
	f := newFixture(t, 30)

	for i := 0; i < 30; i++ {
		if _, err := f.svc.CreateProduct(f.ctx, f.owner.ID, f.product(fmt.Sprintf("p%d", i), true)); err != nil {
			t.Fatalf("product %d: %v", i, err)
		}
	}

	_, err := f.svc.CreateProduct(f.ctx, f.owner.ID, f.product("p31", true))
	if !errors.Is(err, fault.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded on 31st product, got %v", err)
	}

	// Inactive products never count against the quota.
	if _, err := f.svc.CreateProduct(f.ctx, f.owner.ID, f.product("draft", false)); err != nil {
		t.Fatalf("inactive product: %v", err)
	}
}

func TestQuotaRecheckedOnActivation(t *testing.T) {
	f := newFixture(t, 1)

	if _, err := f.svc.CreateProduct(f.ctx, f.owner.ID, f.product("first", true)); err != nil {
		t.Fatalf("first product: %v", err)
	}
	draft, err := f.svc.CreateProduct(f.ctx, f.owner.ID, f.product("second", false))
	if err != nil {
		t.Fatalf("draft product: %v", err)
	}

	draft.IsActive = true
	if _, err := f.svc.UpdateProduct(f.ctx, f.owner.ID, draft); !errors.Is(err, fault.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded on activation, got %v", err)
	}
}

func TestNoSubscriptionMeansZeroQuota(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	owner, _ := store.CreateUser(ctx, user.User{Handle: 1, Name: "o", Username: "o"})
	sh, _ := store.CreateShop(ctx, shop.Shop{OwnerID: owner.ID, Name: "Bare", IsActive: true})
	cat, _ := store.CreateCategory(ctx, catalog.Category{Name: "Misc", Slug: "misc"})
	svc := New(store, nil)

	_, err := svc.CreateProduct(ctx, owner.ID, catalog.Product{
		ShopID:     sh.ID,
		CategoryID: cat.ID,
		Title:      "nope",
		Price:      decimal.NewFromInt(10),
		IsActive:   true,
	})
	if !errors.Is(err, fault.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded without subscription, got %v", err)
	}
}

func TestCategoryNesting(t *testing.T) {
	f := newFixture(t, 10)

	child, err := f.svc.CreateCategory(f.ctx, catalog.Category{Name: "Roses", Slug: "roses", ParentID: &f.cat.ID})
	if err != nil {
		t.Fatalf("child category: %v", err)
	}

	// A child may not become a parent.
	_, err = f.svc.CreateCategory(f.ctx, catalog.Category{Name: "Red roses", Slug: "red-roses", ParentID: &child.ID})
	if !fault.IsConstraint(err) {
		t.Fatalf("expected constraint for third level, got %v", err)
	}

	// Slugs are unique.
	_, err = f.svc.CreateCategory(f.ctx, catalog.Category{Name: "Other roses", Slug: "roses"})
	if !fault.IsConstraint(err) {
		t.Fatalf("expected constraint for duplicate slug, got %v", err)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	f := newFixture(t, 10)

	child, err := f.svc.CreateCategory(f.ctx, catalog.Category{Name: "Roses", Slug: "roses", ParentID: &f.cat.ID})
	if err != nil {
		t.Fatalf("child category: %v", err)
	}
	p, err := f.svc.CreateProduct(f.ctx, f.owner.ID, catalog.Product{
		ShopID:     f.shop.ID,
		CategoryID: child.ID,
		Title:      "Red bouquet",
		Price:      decimal.NewFromInt(50),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("product: %v", err)
	}

	if err := f.svc.DeleteCategory(f.ctx, f.cat.ID); err != nil {
		t.Fatalf("delete root: %v", err)
	}
	if _, err := f.svc.GetProduct(f.ctx, p.ID); !fault.IsNotFound(err) {
		t.Fatalf("expected cascaded product delete, got %v", err)
	}
}

func TestUpdateIcons(t *testing.T) {
	f := newFixture(t, 10)

	changed, err := f.svc.UpdateIcons(f.ctx, map[string]string{
		"bouquets": "💐",
		"missing":  "❓",
	})
	if err != nil {
		t.Fatalf("update icons: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}

	got, err := f.svc.GetCategoryBySlug(f.ctx, "bouquets")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Icon != "💐" {
		t.Fatalf("icon not applied: %q", got.Icon)
	}
}
