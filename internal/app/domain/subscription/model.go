package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinPaidPrice is the lowest non-zero plan price the platform's payments
// layer accepts, in the local currency.
var MinPaidPrice = decimal.NewFromInt(60)

// Plan is a subscription tier granting a product quota for a duration.
type Plan struct {
	ID           int64
	Name         string
	Description  string
	Price        decimal.Decimal // 0 (free) or >= MinPaidPrice
	DurationDays int
	MaxProducts  int
	IsActive     bool
}

// ShopSubscription binds a shop to a plan for a time window. At most one
// active row exists per shop at any instant.
type ShopSubscription struct {
	ID        int64
	ShopID    int64
	PlanID    int64
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

// PriceValid reports whether a plan price satisfies the payment floor.
func (p Plan) PriceValid() bool {
	return p.Price.IsZero() || p.Price.GreaterThanOrEqual(MinPaidPrice)
}

// Expired reports whether the subscription window has closed at now.
func (s ShopSubscription) Expired(now time.Time) bool {
	return !s.EndDate.After(now)
}
