// Package shops manages storefronts, their reviews and denormalised
// aggregates.
package shops

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// Service manages shop records.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs a shops service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("shops")
	}
	return &Service{store: store, log: log}
}

// Create opens a storefront for the owner. Each user holds at most one shop.
func (s *Service) Create(ctx context.Context, ownerID int64, sh shop.Shop) (shop.Shop, error) {
	sh.Name = strings.TrimSpace(sh.Name)
	if sh.Name == "" {
		return shop.Shop{}, fmt.Errorf("shop name is required: %w", fault.ErrConstraint)
	}

	var created shop.Shop
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetUser(ctx, ownerID); err != nil {
			return err
		}
		if _, err := tx.GetShopByOwner(ctx, ownerID); err == nil {
			return fmt.Errorf("owner %d already has a shop: %w", ownerID, fault.ErrConstraint)
		} else if !fault.IsNotFound(err) {
			return err
		}
		sh.OwnerID = ownerID
		sh.IsActive = true
		sh.AverageRating = decimal.Zero
		sh.ReviewsCount = 0
		sh.ViewsCount = 0

		var err error
		created, err = tx.CreateShop(ctx, sh)
		return err
	})
	if err != nil {
		return shop.Shop{}, err
	}
	s.log.WithField("shop_id", created.ID).
		WithField("owner_id", ownerID).
		Info("shop created")
	return created, nil
}

// Update applies owner-editable fields. The caller must be the shop owner.
func (s *Service) Update(ctx context.Context, ownerID int64, sh shop.Shop) (shop.Shop, error) {
	var updated shop.Shop
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetShop(ctx, sh.ID)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return fault.NotFound("shop", sh.ID)
		}
		existing.Name = sh.Name
		existing.Description = sh.Description
		existing.Email = sh.Email
		existing.Telegram = sh.Telegram
		existing.Instagram = sh.Instagram
		existing.Latitude = sh.Latitude
		existing.Longitude = sh.Longitude

		updated, err = tx.UpdateShop(ctx, existing)
		return err
	})
	if err != nil {
		return shop.Shop{}, err
	}
	return updated, nil
}

// Deactivate hides the shop from the catalog without deleting its data.
func (s *Service) Deactivate(ctx context.Context, ownerID, shopID int64) error {
	return s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetShop(ctx, shopID)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return fault.NotFound("shop", shopID)
		}
		existing.IsActive = false
		_, err = tx.UpdateShop(ctx, existing)
		return err
	})
}

// RecordView atomically increments the shop's view counter.
func (s *Service) RecordView(ctx context.Context, shopID int64) error {
	return s.store.IncrementShopViews(ctx, shopID)
}

// Get returns one shop.
func (s *Service) Get(ctx context.Context, id int64) (shop.Shop, error) {
	return s.store.GetShop(ctx, id)
}

// GetByOwner returns the owner's shop.
func (s *Service) GetByOwner(ctx context.Context, ownerID int64) (shop.Shop, error) {
	return s.store.GetShopByOwner(ctx, ownerID)
}

// List returns shops matching the filter.
func (s *Service) List(ctx context.Context, f storage.ShopFilter, p storage.Page) ([]shop.Shop, error) {
	return s.store.ListShops(ctx, f, p)
}

// UpsertReview records or replaces the user's review of a shop and, in the
// same transaction, recomputes the shop's rating aggregates so they always
// match the review rows.
func (s *Service) UpsertReview(ctx context.Context, userID, shopID int64, rating int, text string) (shop.Review, error) {
	if rating < 1 || rating > 5 {
		return shop.Review{}, fmt.Errorf("rating must be 1..5: %w", fault.ErrConstraint)
	}

	var result shop.Review
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		target, err := tx.GetShop(ctx, shopID)
		if err != nil {
			return err
		}

		existing, err := tx.GetReviewByUserShop(ctx, userID, shopID)
		switch {
		case err == nil:
			existing.Rating = rating
			existing.Text = text
			result, err = tx.UpdateReview(ctx, existing)
			if err != nil {
				return err
			}
		case fault.IsNotFound(err):
			result, err = tx.CreateReview(ctx, shop.Review{ShopID: shopID, UserID: userID, Rating: rating, Text: text})
			if err != nil {
				return err
			}
		default:
			return err
		}

		reviews, err := tx.ListShopReviews(ctx, shopID)
		if err != nil {
			return err
		}
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		target.ReviewsCount = len(reviews)
		if len(reviews) == 0 {
			target.AverageRating = decimal.Zero
		} else {
			target.AverageRating = decimal.NewFromInt(int64(sum)).
				Div(decimal.NewFromInt(int64(len(reviews)))).Round(2)
		}
		_, err = tx.UpdateShop(ctx, target)
		return err
	})
	if err != nil {
		return shop.Review{}, err
	}
	s.log.WithField("shop_id", shopID).
		WithField("user_id", userID).
		WithField("rating", rating).
		Info("review recorded")
	return result, nil
}

// Reviews lists a shop's reviews.
func (s *Service) Reviews(ctx context.Context, shopID int64) ([]shop.Review, error) {
	return s.store.ListShopReviews(ctx, shopID)
}
