// Package promos manages discount codes for shop owners and operators.
package promos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// Service manages promo codes.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs a promos service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("promos")
	}
	return &Service{store: store, log: log}
}

// Create registers a promo code. An empty Code gets a generated one. Shop
// owners may only create codes scoped to their own shop; platform-wide codes
// (nil ShopID) skip the ownership check.
func (s *Service) Create(ctx context.Context, ownerID int64, p promo.Promo) (promo.Promo, error) {
	if !p.Type.Valid() {
		return promo.Promo{}, fmt.Errorf("unknown promo type %q: %w", p.Type, fault.ErrConstraint)
	}
	if p.Value.IsNegative() {
		return promo.Promo{}, fmt.Errorf("promo value must be non-negative: %w", fault.ErrConstraint)
	}
	if !p.ValidUntil.After(p.ValidFrom) {
		return promo.Promo{}, fmt.Errorf("promo window must end after it starts: %w", fault.ErrConstraint)
	}
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if p.Code == "" {
		p.Code = strings.ToUpper(uuid.NewString()[:8])
	}
	p.UsesCount = 0

	var created promo.Promo
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if p.ShopID != nil {
			sh, err := tx.GetShop(ctx, *p.ShopID)
			if err != nil {
				return err
			}
			if sh.OwnerID != ownerID {
				return fault.NotFound("shop", *p.ShopID)
			}
		}
		var err error
		created, err = tx.CreatePromo(ctx, p)
		return err
	})
	if err != nil {
		return promo.Promo{}, err
	}
	s.log.WithField("promo_id", created.ID).
		WithField("code", created.Code).
		Info("promo created")
	return created, nil
}

// Deactivate turns a promo off without touching its usage history.
func (s *Service) Deactivate(ctx context.Context, ownerID, promoID int64) error {
	return s.store.InTx(ctx, func(tx storage.Store) error {
		p, err := tx.GetPromo(ctx, promoID)
		if err != nil {
			return err
		}
		if p.ShopID != nil {
			sh, err := tx.GetShop(ctx, *p.ShopID)
			if err != nil {
				return err
			}
			if sh.OwnerID != ownerID {
				return fault.NotFound("promo", promoID)
			}
		}
		p.IsActive = false
		_, err = tx.UpdatePromo(ctx, p)
		return err
	})
}

// Get returns one promo.
func (s *Service) Get(ctx context.Context, id int64) (promo.Promo, error) {
	return s.store.GetPromo(ctx, id)
}

// List returns a shop's promos, or platform-wide promos when shopID is 0.
func (s *Service) List(ctx context.Context, shopID int64) ([]promo.Promo, error) {
	return s.store.ListPromos(ctx, shopID)
}
