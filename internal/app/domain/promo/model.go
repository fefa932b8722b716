package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type determines how a promo's value is applied at order placement.
type Type string

const (
	TypePercent      Type = "percent"
	TypeFixed        Type = "fixed"
	TypeFreeDelivery Type = "free_delivery"
)

// Valid reports whether t is one of the known promo types.
func (t Type) Valid() bool {
	switch t {
	case TypePercent, TypeFixed, TypeFreeDelivery:
		return true
	}
	return false
}

// Promo is a redeemable discount code. ShopID is nil for platform-wide codes.
type Promo struct {
	ID             int64
	ShopID         *int64
	Code           string // unique
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	MaxUses        *int
	UsesCount      int
	ValidFrom      time.Time
	ValidUntil     time.Time
	IsActive       bool
	FirstOrderOnly bool
	CreatedAt      time.Time
}

// UsedUp reports whether the usage cap, if any, is exhausted.
func (p Promo) UsedUp() bool {
	return p.MaxUses != nil && p.UsesCount >= *p.MaxUses
}

// WindowContains reports whether now falls inside the validity window.
func (p Promo) WindowContains(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidUntil)
}

// Discount computes the subtotal discount for the promo. free_delivery
// applies to the delivery fee channel, never the subtotal, so it yields zero
// here; fixed discounts never exceed the subtotal.
func (p Promo) Discount(subtotal decimal.Decimal) decimal.Decimal {
	switch p.Type {
	case TypePercent:
		return subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
	case TypeFixed:
		if p.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return p.Value
	default:
		return decimal.Zero
	}
}
