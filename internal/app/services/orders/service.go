// Package orders implements order placement and the fulfilment status
// machine.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/order"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/metrics"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// PlaceItem is one requested order line.
type PlaceItem struct {
	ProductID int64
	Quantity  int
}

// PlaceRequest carries everything needed to place an order. DeliveryTime is
// the legacy field name still sent by old clients; DeliveryTimeSlot wins when
// both are set.
type PlaceRequest struct {
	UserID           int64
	ShopID           int64
	Items            []PlaceItem
	DeliveryAddress  string
	DeliveryTimeSlot string
	DeliveryTime     string
	PromoCode        string
}

// Service manages orders.
type Service struct {
	store storage.Store
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an orders service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) { s.now = now }

// Place creates an order in a single transaction: prices are snapshotted,
// the promo (if any) is validated and consumed, and the delivery slot is
// normalised into the canonical field.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (order.Order, error) {
	if len(req.Items) == 0 {
		return order.Order{}, fmt.Errorf("order needs at least one item: %w", fault.ErrConstraint)
	}
	now := s.now()

	var placed order.Order
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetUser(ctx, req.UserID); err != nil {
			return err
		}
		if _, err := tx.GetShop(ctx, req.ShopID); err != nil {
			return err
		}

		items := make([]order.Item, 0, len(req.Items))
		subtotal := decimal.Zero
		for _, it := range req.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("quantity must be positive: %w", fault.ErrConstraint)
			}
			p, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.ShopID != req.ShopID {
				return fault.NotFound("product", it.ProductID)
			}
			items = append(items, order.Item{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
			})
			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		discount := decimal.Zero
		var promoID *int64
		if req.PromoCode != "" {
			pr, err := resolvePromo(ctx, tx, req.ShopID, req.UserID, req.PromoCode, subtotal, now)
			if err != nil {
				return err
			}
			discount = pr.Discount(subtotal)
			id := pr.ID
			promoID = &id
		}

		total := subtotal.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		slot := req.DeliveryTimeSlot
		if slot == "" {
			slot = req.DeliveryTime
		}

		var err error
		placed, err = tx.CreateOrder(ctx, order.Order{
			UserID:           req.UserID,
			ShopID:           req.ShopID,
			Reference:        uuid.NewString(),
			DeliveryAddress:  req.DeliveryAddress,
			DeliveryTimeSlot: slot,
			Status:           order.StatusNew,
			Subtotal:         subtotal,
			Discount:         discount,
			Total:            total,
			PromoID:          promoID,
			Items:            items,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
		if promoID != nil {
			if err := tx.AddPromoUses(ctx, *promoID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	metrics.RecordOrderPlaced(placed.PromoID != nil)
	s.log.WithField("order_id", placed.ID).
		WithField("shop_id", placed.ShopID).
		WithField("total", placed.Total.String()).
		Info("order placed")
	return placed, nil
}

// Quote validates a promo code against a prospective subtotal and returns
// the discount it would grant, without consuming a use.
func (s *Service) Quote(ctx context.Context, shopID, userID int64, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	pr, err := resolvePromo(ctx, s.store, shopID, userID, code, subtotal, s.now())
	if err != nil {
		return decimal.Zero, err
	}
	return pr.Discount(subtotal), nil
}

// Transition moves an order through the status machine. Only the shop owner
// may drive transitions. Entering cancelled or refunded returns the order's
// promo use to the pool.
func (s *Service) Transition(ctx context.Context, ownerID, orderID int64, to order.Status) (order.Order, error) {
	var result order.Order
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		sh, err := tx.GetShop(ctx, o.ShopID)
		if err != nil {
			return err
		}
		if sh.OwnerID != ownerID {
			return fault.NotFound("order", orderID)
		}
		if !order.CanTransition(o.Status, to) {
			return fmt.Errorf("order %d: %s -> %s: %w", orderID, o.Status, to, fault.ErrInvalidTransition)
		}
		if err := tx.SetOrderStatus(ctx, orderID, to); err != nil {
			return err
		}
		if order.ReleasesPromo(to) && o.PromoID != nil {
			if err := tx.AddPromoUses(ctx, *o.PromoID, -1); err != nil {
				return err
			}
		}
		o.Status = to
		result = o
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	metrics.RecordOrderTransition(string(to))
	s.log.WithField("order_id", orderID).
		WithField("status", string(to)).
		Info("order status changed")
	return result, nil
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (order.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, f storage.OrderFilter, p storage.Page) ([]order.Order, error) {
	return s.store.ListOrders(ctx, f, p)
}

// resolvePromo loads and validates a promo code for the shop, user and
// subtotal at the given instant. Every rejection carries a typed reason.
func resolvePromo(ctx context.Context, st storage.Store, shopID, userID int64, code string, subtotal decimal.Decimal, now time.Time) (promo.Promo, error) {
	pr, err := st.GetPromoByCode(ctx, code)
	if err != nil {
		if fault.IsNotFound(err) {
			return promo.Promo{}, fault.NewPromoError(code, fault.PromoUnknown)
		}
		return promo.Promo{}, err
	}
	if pr.ShopID != nil && *pr.ShopID != shopID {
		return promo.Promo{}, fault.NewPromoError(code, fault.PromoUnknown)
	}
	if !pr.IsActive {
		return promo.Promo{}, fault.NewPromoError(code, fault.PromoInactive)
	}
	if !pr.WindowContains(now) {
		return promo.Promo{}, fault.NewPromoError(code, fault.PromoExpired)
	}
	if pr.UsedUp() {
		return promo.Promo{}, fault.NewPromoError(code, fault.PromoUsedUp)
	}
	if pr.MinOrderAmount != nil && subtotal.LessThan(*pr.MinOrderAmount) {
		return promo.Promo{}, fault.NewPromoError(code, fault.PromoMinAmount)
	}
	if pr.FirstOrderOnly {
		count, err := st.CountUserShopOrders(ctx, userID, shopID)
		if err != nil {
			return promo.Promo{}, err
		}
		if count > 0 {
			return promo.Promo{}, fault.NewPromoError(code, fault.PromoFirstOrderOnly)
		}
	}
	return pr, nil
}
