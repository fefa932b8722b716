package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusNew        Status = "new"
	StatusConfirmed  Status = "confirmed"
	StatusInDelivery Status = "in_delivery"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// transitions is the legal edge set of the status machine. cancelled and
// refunded are terminal.
var transitions = map[Status][]Status{
	StatusNew:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInDelivery, StatusCancelled},
	StatusInDelivery: {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReleasesPromo reports whether entering the status returns the order's promo
// use back to the pool.
func ReleasesPromo(to Status) bool {
	return to == StatusCancelled || to == StatusRefunded
}

// Order is a purchase placed by a user against a shop.
type Order struct {
	ID               int64
	UserID           int64
	ShopID           int64
	Reference        string // opaque token surfaced to the buyer
	DeliveryAddress  string
	DeliveryTimeSlot string
	Status           Status
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	PromoID          *int64
	CreatedAt        time.Time

	Items []Item
}

// Item is one order line with the product price snapshotted at placement.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}
