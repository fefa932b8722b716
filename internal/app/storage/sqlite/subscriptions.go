package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
)

type planRow struct {
	ID           int64           `db:"id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Price        decimal.Decimal `db:"price"`
	DurationDays int             `db:"duration_days"`
	MaxProducts  int             `db:"max_products"`
	IsActive     bool            `db:"is_active"`
}

func (r planRow) toDomain() subscription.Plan {
	return subscription.Plan{
		ID: r.ID, Name: r.Name, Description: r.Description, Price: r.Price,
		DurationDays: r.DurationDays, MaxProducts: r.MaxProducts, IsActive: r.IsActive,
	}
}

func (s *Store) CreatePlan(ctx context.Context, p subscription.Plan) (subscription.Plan, error) {
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO subscription_plans (name, description, price, duration_days, max_products, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, p.Price, p.DurationDays, p.MaxProducts, p.IsActive)
	if err != nil {
		return subscription.Plan{}, fmt.Errorf("insert plan: %w", wrapErr(err))
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p subscription.Plan) (subscription.Plan, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE subscription_plans SET name = ?, description = ?, price = ?,
			duration_days = ?, max_products = ?, is_active = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Price, p.DurationDays, p.MaxProducts, p.IsActive, p.ID)
	if err != nil {
		return subscription.Plan{}, fmt.Errorf("update plan: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return subscription.Plan{}, fault.NotFound("plan", p.ID)
	}
	return p, nil
}

func (s *Store) GetPlan(ctx context.Context, id int64) (subscription.Plan, error) {
	var row planRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, name, description, price, duration_days, max_products, is_active
		FROM subscription_plans WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return subscription.Plan{}, fault.NotFound("plan", id)
		}
		return subscription.Plan{}, fmt.Errorf("get plan: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]subscription.Plan, error) {
	query := `SELECT id, name, description, price, duration_days, max_products, is_active
		FROM subscription_plans`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	var rows []planRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query); err != nil {
		return nil, fmt.Errorf("list plans: %w", wrapErr(err))
	}
	result := make([]subscription.Plan, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

// --- shop subscriptions -----------------------------------------------------

type subscriptionRow struct {
	ID        int64     `db:"id"`
	ShopID    int64     `db:"shop_id"`
	PlanID    int64     `db:"plan_id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
}

func (r subscriptionRow) toDomain() subscription.ShopSubscription {
	return subscription.ShopSubscription{
		ID: r.ID, ShopID: r.ShopID, PlanID: r.PlanID,
		StartDate: r.StartDate, EndDate: r.EndDate, IsActive: r.IsActive,
	}
}

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.ShopSubscription) (subscription.ShopSubscription, error) {
	if !sub.EndDate.After(sub.StartDate) {
		return subscription.ShopSubscription{}, fmt.Errorf("end date must follow start date: %w", fault.ErrConstraint)
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO shop_subscriptions (shop_id, plan_id, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?, ?)
	`, sub.ShopID, sub.PlanID, sub.StartDate, sub.EndDate, sub.IsActive)
	if err != nil {
		return subscription.ShopSubscription{}, fmt.Errorf("insert subscription: %w", wrapErr(err))
	}
	sub.ID, _ = res.LastInsertId()
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub subscription.ShopSubscription) (subscription.ShopSubscription, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE shop_subscriptions SET plan_id = ?, start_date = ?, end_date = ?, is_active = ?
		WHERE id = ?
	`, sub.PlanID, sub.StartDate, sub.EndDate, sub.IsActive, sub.ID)
	if err != nil {
		return subscription.ShopSubscription{}, fmt.Errorf("update subscription: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return subscription.ShopSubscription{}, fault.NotFound("subscription", sub.ID)
	}
	return sub, nil
}

func (s *Store) GetActiveSubscription(ctx context.Context, shopID int64) (subscription.ShopSubscription, error) {
	var row subscriptionRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, shop_id, plan_id, start_date, end_date, is_active
		FROM shop_subscriptions WHERE shop_id = ? AND is_active = 1
		ORDER BY id DESC LIMIT 1
	`, shopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return subscription.ShopSubscription{}, fault.NotFound("active subscription for shop", shopID)
		}
		return subscription.ShopSubscription{}, fmt.Errorf("get active subscription: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListSubscriptions(ctx context.Context, shopID int64) ([]subscription.ShopSubscription, error) {
	var rows []subscriptionRow
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, shop_id, plan_id, start_date, end_date, is_active
		FROM shop_subscriptions WHERE shop_id = ? ORDER BY id
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", wrapErr(err))
	}
	result := make([]subscription.ShopSubscription, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE shop_subscriptions SET is_active = 0 WHERE is_active = 1 AND end_date <= ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired subscriptions: %w", wrapErr(err))
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}

func (s *Store) HasActiveSubscriptions(ctx context.Context) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext, &count, `
		SELECT COUNT(*) FROM shop_subscriptions WHERE is_active = 1
	`)
	if err != nil {
		return false, fmt.Errorf("count active subscriptions: %w", wrapErr(err))
	}
	return count > 0, nil
}
