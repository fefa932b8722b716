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
	"github.com/shoplink/marketplace/internal/app/domain/promo"
)

type promoRow struct {
	ID             int64               `db:"id"`
	ShopID         sql.NullInt64       `db:"shop_id"`
	Code           string              `db:"code"`
	PromoType      string              `db:"promo_type"`
	Value          decimal.Decimal     `db:"value"`
	MinOrderAmount decimal.NullDecimal `db:"min_order_amount"`
	MaxUses        sql.NullInt64       `db:"max_uses"`
	UsesCount      int                 `db:"uses_count"`
	ValidFrom      time.Time           `db:"valid_from"`
	ValidUntil     time.Time           `db:"valid_until"`
	IsActive       bool                `db:"is_active"`
	FirstOrderOnly bool                `db:"first_order_only"`
	CreatedAt      time.Time           `db:"created_at"`
}

const promoColumns = `id, shop_id, code, promo_type, value, min_order_amount,
	max_uses, uses_count, valid_from, valid_until, is_active, first_order_only, created_at`

func (r promoRow) toDomain() promo.Promo {
	p := promo.Promo{
		ID: r.ID, Code: r.Code, Type: promo.Type(r.PromoType), Value: r.Value,
		UsesCount: r.UsesCount, ValidFrom: r.ValidFrom, ValidUntil: r.ValidUntil,
		IsActive: r.IsActive, FirstOrderOnly: r.FirstOrderOnly, CreatedAt: r.CreatedAt,
	}
	if r.ShopID.Valid {
		p.ShopID = &r.ShopID.Int64
	}
	if r.MinOrderAmount.Valid {
		v := r.MinOrderAmount.Decimal
		p.MinOrderAmount = &v
	}
	if r.MaxUses.Valid {
		v := int(r.MaxUses.Int64)
		p.MaxUses = &v
	}
	return p
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func nullIntFromInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (s *Store) CreatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO promos (shop_id, code, promo_type, value, min_order_amount,
			max_uses, uses_count, valid_from, valid_until, is_active, first_order_only, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullInt(p.ShopID), p.Code, string(p.Type), p.Value, nullDecimal(p.MinOrderAmount),
		nullIntFromInt(p.MaxUses), p.UsesCount, p.ValidFrom, p.ValidUntil,
		p.IsActive, p.FirstOrderOnly, p.CreatedAt)
	if err != nil {
		return promo.Promo{}, fmt.Errorf("insert promo: %w", wrapErr(err))
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

func (s *Store) UpdatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE promos SET promo_type = ?, value = ?, min_order_amount = ?, max_uses = ?,
			uses_count = ?, valid_from = ?, valid_until = ?, is_active = ?, first_order_only = ?
		WHERE id = ?
	`, string(p.Type), p.Value, nullDecimal(p.MinOrderAmount), nullIntFromInt(p.MaxUses),
		p.UsesCount, p.ValidFrom, p.ValidUntil, p.IsActive, p.FirstOrderOnly, p.ID)
	if err != nil {
		return promo.Promo{}, fmt.Errorf("update promo: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return promo.Promo{}, fault.NotFound("promo", p.ID)
	}
	return p, nil
}

func (s *Store) GetPromo(ctx context.Context, id int64) (promo.Promo, error) {
	var row promoRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+promoColumns+` FROM promos WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return promo.Promo{}, fault.NotFound("promo", id)
		}
		return promo.Promo{}, fmt.Errorf("get promo: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetPromoByCode(ctx context.Context, code string) (promo.Promo, error) {
	var row promoRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+promoColumns+` FROM promos WHERE code = ?`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return promo.Promo{}, fault.ErrNotFound
		}
		return promo.Promo{}, fmt.Errorf("get promo by code: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListPromos(ctx context.Context, shopID int64) ([]promo.Promo, error) {
	query := `SELECT ` + promoColumns + ` FROM promos`
	args := []any{}
	if shopID != 0 {
		query += ` WHERE shop_id = ?`
		args = append(args, shopID)
	}
	query += ` ORDER BY id`

	var rows []promoRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list promos: %w", wrapErr(err))
	}
	result := make([]promo.Promo, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

// AddPromoUses adjusts uses_count in a single guarded statement so the cap
// cannot be breached between read and write.
func (s *Store) AddPromoUses(ctx context.Context, id int64, delta int) error {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE promos SET uses_count = MAX(0, uses_count + ?)
		WHERE id = ?
		  AND (? <= 0 OR max_uses IS NULL OR uses_count + ? <= max_uses)
	`, delta, id, delta, delta)
	if err != nil {
		return fmt.Errorf("adjust promo uses: %w", wrapErr(err))
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		if _, err := s.GetPromo(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("promo %d usage cap reached: %w", id, fault.ErrConstraint)
	}
	return nil
}
