// Package migrations brings any recognised prior schema state forward to the
// current target. Steps are ordered, self-describing and idempotent: each
// checks its precondition and no-ops when already satisfied. A failing step
// rolls back its own transaction and aborts startup; steps already committed
// stay applied.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/pkg/logger"
)

type step struct {
	name string
	run  func(ctx context.Context, tx *sql.Tx) error
}

var steps = []step{
	{name: "base-schema", run: baseSchema},
	{name: "shops-columns", run: shopColumns},
	{name: "orders-delivery-time-slot", run: orderDeliverySlot},
	{name: "promos-promo-type", run: promoType},
	{name: "plan-price-floor", run: planPriceFloor},
	{name: "seed-subscription-plans", run: seedPlans},
}

// Apply runs every migration step in order, each in its own transaction.
func Apply(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	if log == nil {
		log = logger.NewDefault("migrations")
	}
	for _, st := range steps {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %v: %w", st.name, err, fault.ErrFatalMigration)
		}
		if err := st.run(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.WithError(rbErr).Warnf("rollback of %s failed", st.name)
			}
			return fmt.Errorf("migration %s: %v: %w", st.name, err, fault.ErrFatalMigration)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %v: %w", st.name, err, fault.ErrFatalMigration)
		}
		log.Debugf("migration %s applied", st.name)
	}
	return nil
}

// --- introspection helpers ---------------------------------------------------

func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func columnNames(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info('`+table+`')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// --- steps -------------------------------------------------------------------

// baseSchema creates every target table when absent. Existing deployments
// keep their tables untouched; later steps reconcile columns.
func baseSchema(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			handle INTEGER NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS shops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			telegram TEXT NOT NULL DEFAULT '',
			instagram TEXT NOT NULL DEFAULT '',
			latitude REAL,
			longitude REAL,
			average_rating TEXT NOT NULL DEFAULT '0',
			total_reviews INTEGER NOT NULL DEFAULT 0,
			reviews_count INTEGER NOT NULL DEFAULT 0,
			views_count INTEGER NOT NULL DEFAULT 0,
			redemption_rate TEXT NOT NULL DEFAULT '0',
			is_verified INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			icon TEXT NOT NULL DEFAULT '',
			parent_id INTEGER REFERENCES categories(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shop_id INTEGER NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '0' CHECK (CAST(price AS REAL) >= 0),
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS subscription_plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '0',
			duration_days INTEGER NOT NULL,
			max_products INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS shop_subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shop_id INTEGER NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			plan_id INTEGER NOT NULL REFERENCES subscription_plans(id),
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			CHECK (end_date > start_date)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			shop_id INTEGER NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			reference TEXT NOT NULL DEFAULT '',
			delivery_address TEXT NOT NULL DEFAULT '',
			delivery_time_slot TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			subtotal TEXT NOT NULL DEFAULT '0',
			discount TEXT NOT NULL DEFAULT '0',
			total TEXT NOT NULL DEFAULT '0',
			promo_id INTEGER REFERENCES promos(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS promos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shop_id INTEGER REFERENCES shops(id) ON DELETE CASCADE,
			code TEXT NOT NULL UNIQUE,
			promo_type TEXT NOT NULL DEFAULT 'percent'
				CHECK (promo_type IN ('percent', 'fixed', 'free_delivery')),
			value TEXT NOT NULL DEFAULT '0',
			min_order_amount TEXT,
			max_uses INTEGER,
			uses_count INTEGER NOT NULL DEFAULT 0
				CHECK (max_uses IS NULL OR uses_count <= max_uses),
			valid_from TIMESTAMP NOT NULL,
			valid_until TIMESTAMP NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			first_order_only INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS shop_reviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shop_id INTEGER NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, shop_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			event_date TIMESTAMP NOT NULL,
			description TEXT NOT NULL DEFAULT '' CHECK (LENGTH(description) <= 500),
			is_sent INTEGER NOT NULL DEFAULT 0,
			sent_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// shopColumns introduces shop columns added after the first release. Each is
// added only when missing so re-runs leave the table untouched.
func shopColumns(ctx context.Context, tx *sql.Tx) error {
	cols, err := columnNames(ctx, tx, "shops")
	if err != nil {
		return err
	}
	additions := []struct {
		name string
		ddl  string
	}{
		{"email", `ALTER TABLE shops ADD COLUMN email TEXT NOT NULL DEFAULT ''`},
		{"telegram", `ALTER TABLE shops ADD COLUMN telegram TEXT NOT NULL DEFAULT ''`},
		{"instagram", `ALTER TABLE shops ADD COLUMN instagram TEXT NOT NULL DEFAULT ''`},
		{"latitude", `ALTER TABLE shops ADD COLUMN latitude REAL`},
		{"longitude", `ALTER TABLE shops ADD COLUMN longitude REAL`},
		{"average_rating", `ALTER TABLE shops ADD COLUMN average_rating TEXT NOT NULL DEFAULT '0'`},
		{"total_reviews", `ALTER TABLE shops ADD COLUMN total_reviews INTEGER NOT NULL DEFAULT 0`},
		{"reviews_count", `ALTER TABLE shops ADD COLUMN reviews_count INTEGER NOT NULL DEFAULT 0`},
		{"views_count", `ALTER TABLE shops ADD COLUMN views_count INTEGER NOT NULL DEFAULT 0`},
		{"redemption_rate", `ALTER TABLE shops ADD COLUMN redemption_rate TEXT NOT NULL DEFAULT '0'`},
		{"is_verified", `ALTER TABLE shops ADD COLUMN is_verified INTEGER NOT NULL DEFAULT 0`},
		{"updated_at", `ALTER TABLE shops ADD COLUMN updated_at TIMESTAMP`},
	}
	for _, add := range additions {
		if cols[add.name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, add.ddl); err != nil {
			return err
		}
	}
	// Older rows carried the review total only in total_reviews.
	if !cols["reviews_count"] && cols["total_reviews"] {
		if _, err := tx.ExecContext(ctx, `UPDATE shops SET reviews_count = total_reviews`); err != nil {
			return err
		}
	}
	return nil
}

// orderDeliverySlot introduces the canonical delivery_time_slot column,
// copying data from the legacy delivery_time column when present. The legacy
// column stays but is never read again.
func orderDeliverySlot(ctx context.Context, tx *sql.Tx) error {
	cols, err := columnNames(ctx, tx, "orders")
	if err != nil {
		return err
	}
	if cols["delivery_time_slot"] {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE orders ADD COLUMN delivery_time_slot TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	if cols["delivery_time"] {
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET delivery_time_slot = delivery_time WHERE delivery_time IS NOT NULL`); err != nil {
			return err
		}
	}
	return nil
}

// promoType introduces the canonical promo_type column, backfilling from the
// legacy discount_type column or defaulting to percent.
func promoType(ctx context.Context, tx *sql.Tx) error {
	exists, err := tableExists(ctx, tx, "promos")
	if err != nil {
		return err
	}
	if !exists {
		// base-schema creates the table with promo_type in place.
		return nil
	}
	cols, err := columnNames(ctx, tx, "promos")
	if err != nil {
		return err
	}
	if cols["promo_type"] {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE promos ADD COLUMN promo_type TEXT NOT NULL DEFAULT 'percent'`); err != nil {
		return err
	}
	if cols["discount_type"] {
		if _, err := tx.ExecContext(ctx, `
			UPDATE promos SET promo_type = discount_type
			WHERE discount_type IN ('percent', 'fixed', 'free_delivery')
		`); err != nil {
			return err
		}
	}
	return nil
}

// planPriceFloor raises paid plan prices below the platform payment floor of
// 60 up to it. Free plans stay free.
func planPriceFloor(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE subscription_plans SET price = '60'
		WHERE CAST(price AS REAL) > 0 AND CAST(price AS REAL) < 60
	`)
	return err
}

// seedPlans inserts the default tiers when the plan table is empty.
func seedPlans(ctx context.Context, tx *sql.Tx) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscription_plans`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	seeds := []struct {
		name, description, price string
		days, maxProducts        int
	}{
		{"Trial", "7-day trial tier", "0", 7, 10},
		{"Basic", "Entry tier for small shops", "299", 30, 30},
		{"Standard", "Mid tier for growing shops", "599", 30, 100},
		{"Premium", "High-volume tier", "999", 30, 500},
		{"Business", "Annual tier for large sellers", "4999", 365, 9999},
	}
	for _, p := range seeds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_plans (name, description, price, duration_days, max_products, is_active)
			VALUES (?, ?, ?, ?, ?, 1)
		`, p.name, p.description, p.price, p.days, p.maxProducts); err != nil {
			return err
		}
	}
	return nil
}
