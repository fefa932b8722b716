// Package subscriptions implements the subscription and product-quota engine.
package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
	"github.com/shoplink/marketplace/internal/app/metrics"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// PlanChangedFunc is notified after a shop moves onto a new plan.
type PlanChangedFunc func(shopID int64, plan subscription.Plan)

// Service manages plans, shop subscriptions and the derived product quota.
type Service struct {
	store         storage.Store
	log           *logger.Logger
	onPlanChanged PlanChangedFunc
}

// New constructs a subscriptions service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subscriptions")
	}
	return &Service{store: store, log: log}
}

// WithPlanChanged registers the plan-changed notification hook.
func (s *Service) WithPlanChanged(fn PlanChangedFunc) {
	s.onPlanChanged = fn
}

// Quota computes the effective product quota of a shop against the given
// store. Callers holding a transaction pass their tx-scoped store so the
// quota read serialises with the mutation it guards.
func Quota(ctx context.Context, st storage.Store, shopID int64) (int, error) {
	sub, err := st.GetActiveSubscription(ctx, shopID)
	if err != nil {
		if fault.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	plan, err := st.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return 0, err
	}
	return plan.MaxProducts, nil
}

// EffectiveQuota reports the product ceiling the shop is currently entitled
// to: the max_products of its active plan, or 0 without one.
func (s *Service) EffectiveQuota(ctx context.Context, shopID int64) (int, error) {
	return Quota(ctx, s.store, shopID)
}

// OverQuota reports whether the shop's active product count exceeds its
// effective quota, as happens after a subscription lapses.
func (s *Service) OverQuota(ctx context.Context, shopID int64) (bool, error) {
	quota, err := s.EffectiveQuota(ctx, shopID)
	if err != nil {
		return false, err
	}
	count, err := s.store.CountActiveProducts(ctx, shopID)
	if err != nil {
		return false, err
	}
	return count > quota, nil
}

// Subscribe moves the shop onto the plan. Any currently-active subscription
// is deactivated in the same transaction, keeping at most one active row per
// shop.
func (s *Service) Subscribe(ctx context.Context, shopID, planID int64, now time.Time) (subscription.ShopSubscription, error) {
	var created subscription.ShopSubscription
	var plan subscription.Plan
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		plan, err = tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if !plan.IsActive {
			return fmt.Errorf("plan %d is inactive: %w", planID, fault.ErrConstraint)
		}
		if !plan.PriceValid() {
			return fmt.Errorf("plan %d price below payment floor: %w", planID, fault.ErrConstraint)
		}
		if _, err := tx.GetShop(ctx, shopID); err != nil {
			return err
		}

		if current, err := tx.GetActiveSubscription(ctx, shopID); err == nil {
			current.IsActive = false
			if _, err := tx.UpdateSubscription(ctx, current); err != nil {
				return err
			}
		} else if !fault.IsNotFound(err) {
			return err
		}

		created, err = tx.CreateSubscription(ctx, subscription.ShopSubscription{
			ShopID:    shopID,
			PlanID:    planID,
			StartDate: now,
			EndDate:   now.AddDate(0, 0, plan.DurationDays),
			IsActive:  true,
		})
		return err
	})
	if err != nil {
		return subscription.ShopSubscription{}, err
	}

	s.log.WithField("shop_id", shopID).
		WithField("plan", plan.Name).
		Info("shop subscribed")
	if s.onPlanChanged != nil {
		s.onPlanChanged(shopID, plan)
	}
	return created, nil
}

// LapseExpired deactivates every subscription whose end date has passed.
// Products are never deleted on lapse; further activations are simply
// refused until the shop subscribes again.
func (s *Service) LapseExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RecordSubscriptionsLapsed(n)
		s.log.Infof("%d subscriptions lapsed", n)
	}
	return n, nil
}

// ListPlans returns subscription plans, optionally active-only.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]subscription.Plan, error) {
	return s.store.ListPlans(ctx, activeOnly)
}

// GetPlan returns one plan.
func (s *Service) GetPlan(ctx context.Context, id int64) (subscription.Plan, error) {
	return s.store.GetPlan(ctx, id)
}

// ActiveSubscription returns the shop's active subscription, if any.
func (s *Service) ActiveSubscription(ctx context.Context, shopID int64) (subscription.ShopSubscription, error) {
	return s.store.GetActiveSubscription(ctx, shopID)
}
