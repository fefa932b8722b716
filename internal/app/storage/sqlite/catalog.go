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

	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage"
)

type categoryRow struct {
	ID       int64         `db:"id"`
	Name     string        `db:"name"`
	Slug     string        `db:"slug"`
	Icon     string        `db:"icon"`
	ParentID sql.NullInt64 `db:"parent_id"`
}

func (r categoryRow) toDomain() catalog.Category {
	c := catalog.Category{ID: r.ID, Name: r.Name, Slug: r.Slug, Icon: r.Icon}
	if r.ParentID.Valid {
		c.ParentID = &r.ParentID.Int64
	}
	return c
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO categories (name, slug, icon, parent_id) VALUES (?, ?, ?, ?)
	`, c.Name, c.Slug, c.Icon, nullInt(c.ParentID))
	if err != nil {
		return catalog.Category{}, fmt.Errorf("insert category: %w", wrapErr(err))
	}
	c.ID, _ = res.LastInsertId()
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE categories SET name = ?, slug = ?, icon = ?, parent_id = ? WHERE id = ?
	`, c.Name, c.Slug, c.Icon, nullInt(c.ParentID), c.ID)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("update category: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return catalog.Category{}, fault.NotFound("category", c.ID)
	}
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (catalog.Category, error) {
	var row categoryRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, name, slug, icon, parent_id FROM categories WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Category{}, fault.NotFound("category", id)
		}
		return catalog.Category{}, fmt.Errorf("get category: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (catalog.Category, error) {
	var row categoryRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, name, slug, icon, parent_id FROM categories WHERE slug = ?
	`, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Category{}, fault.ErrNotFound
		}
		return catalog.Category{}, fmt.Errorf("get category by slug: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var rows []categoryRow
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, name, slug, icon, parent_id FROM categories ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", wrapErr(err))
	}
	result := make([]catalog.Category, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("category", id)
	}
	return nil
}

// --- products ---------------------------------------------------------------

type productRow struct {
	ID          int64           `db:"id"`
	ShopID      int64           `db:"shop_id"`
	CategoryID  int64           `db:"category_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	IsActive    bool            `db:"is_active"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r productRow) toDomain() catalog.Product {
	return catalog.Product{
		ID: r.ID, ShopID: r.ShopID, CategoryID: r.CategoryID,
		Title: r.Title, Description: r.Description, Price: r.Price,
		IsActive: r.IsActive, CreatedAt: r.CreatedAt,
	}
}

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO products (shop_id, category_id, title, description, price, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ShopID, p.CategoryID, p.Title, p.Description, p.Price, p.IsActive, p.CreatedAt)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("insert product: %w", wrapErr(err))
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE products SET category_id = ?, title = ?, description = ?, price = ?, is_active = ?
		WHERE id = ?
	`, p.CategoryID, p.Title, p.Description, p.Price, p.IsActive, p.ID)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("update product: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return catalog.Product{}, fault.NotFound("product", p.ID)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, s.ext, &row, `
		SELECT id, shop_id, category_id, title, description, price, is_active, created_at
		FROM products WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, fault.NotFound("product", id)
		}
		return catalog.Product{}, fmt.Errorf("get product: %w", wrapErr(err))
	}
	return row.toDomain(), nil
}

func (s *Store) ListProducts(ctx context.Context, f storage.ProductFilter, p storage.Page) ([]catalog.Product, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.ShopID != 0 {
		where = append(where, "shop_id = ?")
		args = append(args, f.ShopID)
	}
	if f.CategoryID != 0 {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	args = append(args, limitOf(p), p.Offset)

	var rows []productRow
	query := `SELECT id, shop_id, category_id, title, description, price, is_active, created_at
		FROM products WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", wrapErr(err))
	}
	result := make([]catalog.Product, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("product", id)
	}
	return nil
}

func (s *Store) CountActiveProducts(ctx context.Context, shopID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext, &count, `
		SELECT COUNT(*) FROM products WHERE shop_id = ? AND is_active = 1
	`, shopID)
	if err != nil {
		return 0, fmt.Errorf("count active products: %w", wrapErr(err))
	}
	return count, nil
}
