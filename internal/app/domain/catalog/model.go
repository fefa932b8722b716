package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a catalog node. The tree is at most two levels deep: a child
// category never has children of its own.
type Category struct {
	ID       int64
	Name     string
	Slug     string // URL-safe, unique
	Icon     string
	ParentID *int64
}

// Product is a sellable item belonging to one shop and one category.
type Product struct {
	ID          int64
	ShopID      int64
	CategoryID  int64
	Title       string
	Description string
	Price       decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
}
