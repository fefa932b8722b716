package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage"
)

// coreTables lists every table the clear/stat tooling touches, children first
// so deletes never trip foreign keys.
var coreTables = []string{
	"order_items",
	"orders",
	"shop_reviews",
	"promos",
	"shop_subscriptions",
	"products",
	"categories",
	"reminders",
	"shops",
	"subscription_plans",
	"users",
}

// ClearAll wipes every row and resets auto-increment identities by clearing
// sqlite_sequence.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.InTx(ctx, func(tx storage.Store) error {
		ts := tx.(*Store)
		for _, table := range coreTables {
			if _, err := ts.ext.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, wrapErr(err))
			}
		}
		// sqlite_sequence only exists once an AUTOINCREMENT table has rows.
		if _, err := ts.ext.ExecContext(ctx, `DELETE FROM sqlite_sequence`); err != nil {
			return fmt.Errorf("reset sqlite_sequence: %w", wrapErr(err))
		}
		return nil
	})
}

// Counts returns the row count of every core table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(coreTables))
	for _, table := range coreTables {
		var n int
		if err := sqlx.GetContext(ctx, s.ext, &n, `SELECT COUNT(*) FROM `+table); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, wrapErr(err))
		}
		counts[table] = n
	}
	return counts, nil
}

// DeleteAllCategories removes every category; products cascade.
func (s *Store) DeleteAllCategories(ctx context.Context) error {
	if _, err := s.ext.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("delete categories: %w", wrapErr(err))
	}
	return nil
}

// DeleteAllPlans removes subscription plans, refusing while any shop still
// holds an active subscription.
func (s *Store) DeleteAllPlans(ctx context.Context) error {
	active, err := s.HasActiveSubscriptions(ctx)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("active shop subscriptions exist: %w", fault.ErrConstraint)
	}
	if _, err := s.ext.ExecContext(ctx, `DELETE FROM subscription_plans`); err != nil {
		return fmt.Errorf("delete plans: %w", wrapErr(err))
	}
	return nil
}
