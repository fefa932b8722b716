package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/storage"
)

type shopRow struct {
	ID             int64           `db:"id"`
	OwnerID        int64           `db:"owner_id"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	Email          string          `db:"email"`
	Telegram       string          `db:"telegram"`
	Instagram      string          `db:"instagram"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	AverageRating  decimal.Decimal `db:"average_rating"`
	ReviewsCount   int             `db:"reviews_count"`
	ViewsCount     int             `db:"views_count"`
	RedemptionRate decimal.Decimal `db:"redemption_rate"`
	IsVerified     bool            `db:"is_verified"`
	IsActive       bool            `db:"is_active"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const shopColumns = `id, owner_id, name, description, email, telegram, instagram,
	latitude, longitude, average_rating, reviews_count, views_count,
	redemption_rate, is_verified, is_active, created_at, updated_at`

func (r shopRow) toDomain() shop.Shop {
	s := shop.Shop{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Name:           r.Name,
		Description:    r.Description,
		Email:          r.Email,
		Telegram:       r.Telegram,
		Instagram:      r.Instagram,
		AverageRating:  r.AverageRating,
		ReviewsCount:   r.ReviewsCount,
		ViewsCount:     r.ViewsCount,
		RedemptionRate: r.RedemptionRate,
		IsVerified:     r.IsVerified,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Latitude.Valid {
		s.Latitude = &r.Latitude.Float64
	}
	if r.Longitude.Valid {
		s.Longitude = &r.Longitude.Float64
	}
	return s
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *Store) CreateShop(ctx context.Context, sh shop.Shop) (shop.Shop, error) {
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO shops (owner_id, name, description, email, telegram, instagram,
			latitude, longitude, average_rating, reviews_count, views_count,
			redemption_rate, is_verified, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sh.OwnerID, sh.Name, sh.Description, sh.Email, sh.Telegram, sh.Instagram,
		nullFloat(sh.Latitude), nullFloat(sh.Longitude), sh.AverageRating, sh.ReviewsCount,
		sh.ViewsCount, sh.RedemptionRate, sh.IsVerified, sh.IsActive, sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		return shop.Shop{}, fmt.Errorf("insert shop: %w", wrapErr(err))
	}
	sh.ID, _ = res.LastInsertId()
	return sh, nil
}

func (s *Store) UpdateShop(ctx context.Context, sh shop.Shop) (shop.Shop, error) {
	sh.UpdatedAt = time.Now().UTC()
	res, err := s.ext.ExecContext(ctx, `
		UPDATE shops SET name = ?, description = ?, email = ?, telegram = ?,
			instagram = ?, latitude = ?, longitude = ?, average_rating = ?,
			reviews_count = ?, views_count = ?, redemption_rate = ?,
			is_verified = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, sh.Name, sh.Description, sh.Email, sh.Telegram, sh.Instagram,
		nullFloat(sh.Latitude), nullFloat(sh.Longitude), sh.AverageRating,
		sh.ReviewsCount, sh.ViewsCount, sh.RedemptionRate,
		sh.IsVerified, sh.IsActive, sh.UpdatedAt, sh.ID)
	if err != nil {
		return shop.Shop{}, fmt.Errorf("update shop: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return shop.Shop{}, fault.NotFound("shop", sh.ID)
	}
	return sh, nil
}

func (s *Store) GetShop(ctx context.Context, id int64) (shop.Shop, error) {
	var row shopRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+shopColumns+` FROM shops WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shop.Shop{}, fault.NotFound("shop", id)
		}
		return shop.Shop{}, fmt.Errorf("get shop: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetShopByOwner(ctx context.Context, ownerID int64) (shop.Shop, error) {
	var row shopRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT `+shopColumns+` FROM shops WHERE owner_id = ? ORDER BY id LIMIT 1
	`, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shop.Shop{}, fault.NotFound("shop for owner", ownerID)
		}
		return shop.Shop{}, fmt.Errorf("get shop by owner: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListShops(ctx context.Context, f storage.ShopFilter, p storage.Page) ([]shop.Shop, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	args = append(args, limitOf(p), p.Offset)

	var rows []shopRow
	query := `SELECT ` + shopColumns + ` FROM shops WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY id LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list shops: %w", wrapErr(err))
	}
	result := make([]shop.Shop, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) DeleteShop(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM shops WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shop: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("shop", id)
	}
	return nil
}

func (s *Store) IncrementShopViews(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE shops SET views_count = views_count + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("increment shop views: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("shop", id)
	}
	return nil
}

// --- reviews ----------------------------------------------------------------

type reviewRow struct {
	ID        int64     `db:"id"`
	ShopID    int64     `db:"shop_id"`
	UserID    int64     `db:"user_id"`
	Rating    int       `db:"rating"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

func (r reviewRow) toDomain() shop.Review {
	return shop.Review{ID: r.ID, ShopID: r.ShopID, UserID: r.UserID, Rating: r.Rating, Text: r.Text, CreatedAt: r.CreatedAt}
}

func (s *Store) CreateReview(ctx context.Context, r shop.Review) (shop.Review, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO shop_reviews (shop_id, user_id, rating, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ShopID, r.UserID, r.Rating, r.Text, r.CreatedAt)
	if err != nil {
		return shop.Review{}, fmt.Errorf("insert review: %w", wrapErr(err))
	}
	r.ID, _ = res.LastInsertId()
	return r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r shop.Review) (shop.Review, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE shop_reviews SET rating = ?, text = ? WHERE id = ?
	`, r.Rating, r.Text, r.ID)
	if err != nil {
		return shop.Review{}, fmt.Errorf("update review: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return shop.Review{}, fault.NotFound("review", r.ID)
	}
	return r, nil
}

func (s *Store) GetReviewByUserShop(ctx context.Context, userID, shopID int64) (shop.Review, error) {
	var row reviewRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, shop_id, user_id, rating, text, created_at
		FROM shop_reviews WHERE user_id = ? AND shop_id = ?
	`, userID, shopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shop.Review{}, fault.NotFound("review for user", userID)
		}
		return shop.Review{}, fmt.Errorf("get review: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListShopReviews(ctx context.Context, shopID int64) ([]shop.Review, error) {
	var rows []reviewRow
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, shop_id, user_id, rating, text, created_at
		FROM shop_reviews WHERE shop_id = ? ORDER BY id
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", wrapErr(err))
	}
	result := make([]shop.Review, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}
