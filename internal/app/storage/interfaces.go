package storage

import (
	"context"
	"time"

	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/order"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/domain/reminder"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
	"github.com/shoplink/marketplace/internal/app/domain/user"
)

// Page bounds list results by offset and limit. A zero Limit means the store
// default (100).
type Page struct {
	Offset int
	Limit  int
}

// ShopFilter narrows shop listings. Zero values are ignored.
type ShopFilter struct {
	OwnerID    int64
	ActiveOnly bool
}

// ProductFilter narrows product listings. Zero values are ignored.
type ProductFilter struct {
	ShopID     int64
	CategoryID int64
	ActiveOnly bool
}

// OrderFilter narrows order listings. Zero values are ignored.
type OrderFilter struct {
	UserID int64
	ShopID int64
}

// UserStore persists messaging-platform identities.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByHandle(ctx context.Context, handle int64) (user.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ShopStore persists shops and their denormalised aggregates.
type ShopStore interface {
	CreateShop(ctx context.Context, s shop.Shop) (shop.Shop, error)
	UpdateShop(ctx context.Context, s shop.Shop) (shop.Shop, error)
	GetShop(ctx context.Context, id int64) (shop.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID int64) (shop.Shop, error)
	ListShops(ctx context.Context, f ShopFilter, p Page) ([]shop.Shop, error)
	DeleteShop(ctx context.Context, id int64) error
	IncrementShopViews(ctx context.Context, id int64) error
}

// ReviewStore persists shop reviews.
type ReviewStore interface {
	CreateReview(ctx context.Context, r shop.Review) (shop.Review, error)
	UpdateReview(ctx context.Context, r shop.Review) (shop.Review, error)
	GetReviewByUserShop(ctx context.Context, userID, shopID int64) (shop.Review, error)
	ListShopReviews(ctx context.Context, shopID int64) ([]shop.Review, error)
}

// CategoryStore persists the two-level category tree.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error)
	UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error)
	GetCategory(ctx context.Context, id int64) (catalog.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// ProductStore persists products.
type ProductStore interface {
	CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	ListProducts(ctx context.Context, f ProductFilter, p Page) ([]catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CountActiveProducts(ctx context.Context, shopID int64) (int, error)
}

// SubscriptionStore persists plans and shop subscriptions.
type SubscriptionStore interface {
	CreatePlan(ctx context.Context, p subscription.Plan) (subscription.Plan, error)
	UpdatePlan(ctx context.Context, p subscription.Plan) (subscription.Plan, error)
	GetPlan(ctx context.Context, id int64) (subscription.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]subscription.Plan, error)

	CreateSubscription(ctx context.Context, s subscription.ShopSubscription) (subscription.ShopSubscription, error)
	UpdateSubscription(ctx context.Context, s subscription.ShopSubscription) (subscription.ShopSubscription, error)
	GetActiveSubscription(ctx context.Context, shopID int64) (subscription.ShopSubscription, error)
	ListSubscriptions(ctx context.Context, shopID int64) ([]subscription.ShopSubscription, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	HasActiveSubscriptions(ctx context.Context) (bool, error)
}

// OrderStore persists orders and their items.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	ListOrders(ctx context.Context, f OrderFilter, p Page) ([]order.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status order.Status) error
	CountUserShopOrders(ctx context.Context, userID, shopID int64) (int, error)
}

// PromoStore persists promo codes.
type PromoStore interface {
	CreatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error)
	UpdatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error)
	GetPromo(ctx context.Context, id int64) (promo.Promo, error)
	GetPromoByCode(ctx context.Context, code string) (promo.Promo, error)
	ListPromos(ctx context.Context, shopID int64) ([]promo.Promo, error)
	// AddPromoUses adjusts uses_count by delta without breaching max_uses or
	// dropping below zero.
	AddPromoUses(ctx context.Context, id int64, delta int) error
}

// ReminderStore persists the outbound reminder queue.
type ReminderStore interface {
	CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error)
	GetReminder(ctx context.Context, id int64) (reminder.Reminder, error)
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]reminder.Reminder, error)
	ListUserReminders(ctx context.Context, userID int64) ([]reminder.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// Maintenance backs the marketctl tooling.
type Maintenance interface {
	// ClearAll deletes every row and resets auto-increment identities.
	ClearAll(ctx context.Context) error
	// Counts returns the row count per table.
	Counts(ctx context.Context) (map[string]int, error)
	DeleteAllCategories(ctx context.Context) error
	DeleteAllPlans(ctx context.Context) error
}

// Store aggregates all persistence concerns of the marketplace core.
type Store interface {
	UserStore
	ShopStore
	ReviewStore
	CategoryStore
	ProductStore
	SubscriptionStore
	OrderStore
	PromoStore
	ReminderStore
	Maintenance

	// InTx runs fn against a transaction-scoped store. fn returning an error
	// rolls back every write made through its store; nil commits atomically.
	InTx(ctx context.Context, fn func(Store) error) error
}
