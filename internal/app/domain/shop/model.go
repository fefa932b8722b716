package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a seller-owned storefront. Rating and view aggregates are
// denormalised and maintained inside the transactions that mutate them.
type Shop struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string

	Email     string
	Telegram  string
	Instagram string
	Latitude  *float64
	Longitude *float64

	AverageRating  decimal.Decimal
	ReviewsCount   int
	ViewsCount     int
	RedemptionRate decimal.Decimal

	IsVerified bool
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Review is a buyer's rating of a shop. At most one exists per (user, shop).
type Review struct {
	ID        int64
	ShopID    int64
	UserID    int64
	Rating    int // 1..5
	Text      string
	CreatedAt time.Time
}
