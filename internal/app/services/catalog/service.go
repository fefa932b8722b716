// Package catalog manages the category tree and shop products. Product
// activation is gated by the shop's subscription quota inside the same
// transaction as the write.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/metrics"
	"github.com/shoplink/marketplace/internal/app/services/subscriptions"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// Service manages categories and products.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs a catalog service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, log: log}
}

// --- categories -------------------------------------------------------------

// CreateCategory adds a catalog node. The tree allows one level of nesting:
// a child may not become a parent.
func (s *Service) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	c.Slug = strings.TrimSpace(strings.ToLower(c.Slug))
	if c.Slug == "" {
		return catalog.Category{}, fmt.Errorf("slug is required: %w", fault.ErrConstraint)
	}

	var created catalog.Category
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if c.ParentID != nil {
			parent, err := tx.GetCategory(ctx, *c.ParentID)
			if err != nil {
				return err
			}
			if parent.ParentID != nil {
				return fmt.Errorf("category nesting is limited to two levels: %w", fault.ErrConstraint)
			}
		}
		var err error
		created, err = tx.CreateCategory(ctx, c)
		return err
	})
	if err != nil {
		return catalog.Category{}, err
	}
	return created, nil
}

// UpdateCategory renames or re-parents a category under the same two-level
// constraint.
func (s *Service) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	var updated catalog.Category
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetCategory(ctx, c.ID); err != nil {
			return err
		}
		if c.ParentID != nil {
			if *c.ParentID == c.ID {
				return fmt.Errorf("category cannot parent itself: %w", fault.ErrConstraint)
			}
			parent, err := tx.GetCategory(ctx, *c.ParentID)
			if err != nil {
				return err
			}
			if parent.ParentID != nil {
				return fmt.Errorf("category nesting is limited to two levels: %w", fault.ErrConstraint)
			}
		}
		var err error
		updated, err = tx.UpdateCategory(ctx, c)
		return err
	})
	if err != nil {
		return catalog.Category{}, err
	}
	return updated, nil
}

// DeleteCategory removes a category; children and their products cascade.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.DeleteCategory(ctx, id)
}

// ListCategories returns all categories ordered by id.
func (s *Service) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return s.store.ListCategories(ctx)
}

// GetCategoryBySlug resolves a category by its URL slug.
func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (catalog.Category, error) {
	return s.store.GetCategoryBySlug(ctx, slug)
}

// UpdateIcons maps category slugs to icon glyphs, returning how many rows
// changed. Unknown slugs are skipped.
func (s *Service) UpdateIcons(ctx context.Context, icons map[string]string) (int, error) {
	changed := 0
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		for slug, icon := range icons {
			c, err := tx.GetCategoryBySlug(ctx, slug)
			if err != nil {
				if fault.IsNotFound(err) {
					continue
				}
				return err
			}
			if c.Icon == icon {
				continue
			}
			c.Icon = icon
			if _, err := tx.UpdateCategory(ctx, c); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// --- products ---------------------------------------------------------------

// CreateProduct inserts a product for the owner's shop. An active product
// only fits when the shop's post-insert active count stays within its
// effective quota; the check runs inside the insert transaction.
func (s *Service) CreateProduct(ctx context.Context, ownerID int64, p catalog.Product) (catalog.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return catalog.Product{}, fmt.Errorf("title is required: %w", fault.ErrConstraint)
	}
	if p.Price.IsNegative() {
		return catalog.Product{}, fmt.Errorf("price must be non-negative: %w", fault.ErrConstraint)
	}

	var created catalog.Product
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		sh, err := tx.GetShop(ctx, p.ShopID)
		if err != nil {
			return err
		}
		if sh.OwnerID != ownerID {
			return fault.NotFound("shop", p.ShopID)
		}
		if _, err := tx.GetCategory(ctx, p.CategoryID); err != nil {
			return err
		}
		if p.IsActive {
			if err := checkQuota(ctx, tx, p.ShopID); err != nil {
				return err
			}
		}
		created, err = tx.CreateProduct(ctx, p)
		return err
	})
	if err != nil {
		return catalog.Product{}, err
	}
	s.log.WithField("product_id", created.ID).
		WithField("shop_id", created.ShopID).
		Info("product created")
	return created, nil
}

// UpdateProduct applies owner edits. A transition that raises the active
// count re-checks the quota.
func (s *Service) UpdateProduct(ctx context.Context, ownerID int64, p catalog.Product) (catalog.Product, error) {
	if p.Price.IsNegative() {
		return catalog.Product{}, fmt.Errorf("price must be non-negative: %w", fault.ErrConstraint)
	}

	var updated catalog.Product
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		sh, err := tx.GetShop(ctx, existing.ShopID)
		if err != nil {
			return err
		}
		if sh.OwnerID != ownerID {
			return fault.NotFound("product", p.ID)
		}
		if !existing.IsActive && p.IsActive {
			if err := checkQuota(ctx, tx, existing.ShopID); err != nil {
				return err
			}
		}
		p.ShopID = existing.ShopID
		updated, err = tx.UpdateProduct(ctx, p)
		return err
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return updated, nil
}

// DeactivateProduct hides a product. Deactivation never needs a quota check.
func (s *Service) DeactivateProduct(ctx context.Context, ownerID, productID int64) error {
	return s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		sh, err := tx.GetShop(ctx, existing.ShopID)
		if err != nil {
			return err
		}
		if sh.OwnerID != ownerID {
			return fault.NotFound("product", productID)
		}
		existing.IsActive = false
		_, err = tx.UpdateProduct(ctx, existing)
		return err
	})
}

// DeleteProduct removes a product permanently.
func (s *Service) DeleteProduct(ctx context.Context, ownerID, productID int64) error {
	return s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		sh, err := tx.GetShop(ctx, existing.ShopID)
		if err != nil {
			return err
		}
		if sh.OwnerID != ownerID {
			return fault.NotFound("product", productID)
		}
		return tx.DeleteProduct(ctx, productID)
	})
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns products matching the filter.
func (s *Service) ListProducts(ctx context.Context, f storage.ProductFilter, p storage.Page) ([]catalog.Product, error) {
	return s.store.ListProducts(ctx, f, p)
}

// checkQuota fails with ErrQuotaExceeded when one more active product would
// push the shop past its effective quota.
func checkQuota(ctx context.Context, tx storage.Store, shopID int64) error {
	quota, err := subscriptions.Quota(ctx, tx, shopID)
	if err != nil {
		return err
	}
	count, err := tx.CountActiveProducts(ctx, shopID)
	if err != nil {
		return err
	}
	if count+1 > quota {
		metrics.RecordQuotaRefusal()
		return fmt.Errorf("shop %d has %d of %d active products: %w", shopID, count, quota, fault.ErrQuotaExceeded)
	}
	return nil
}
