// Package memory provides an in-memory implementation of the storage
// interfaces. It enforces the same uniqueness, foreign-key and cascade rules
// as the SQLite store and is intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/order"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/domain/reminder"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
)

const defaultLimit = 100

type tables struct {
	users         map[int64]user.User
	shops         map[int64]shop.Shop
	reviews       map[int64]shop.Review
	categories    map[int64]catalog.Category
	products      map[int64]catalog.Product
	plans         map[int64]subscription.Plan
	subscriptions map[int64]subscription.ShopSubscription
	orders        map[int64]order.Order
	orderItems    map[int64][]order.Item
	promos        map[int64]promo.Promo
	reminders     map[int64]reminder.Reminder
	nextID        map[string]int64
}

func newTables() *tables {
	return &tables{
		users:         make(map[int64]user.User),
		shops:         make(map[int64]shop.Shop),
		reviews:       make(map[int64]shop.Review),
		categories:    make(map[int64]catalog.Category),
		products:      make(map[int64]catalog.Product),
		plans:         make(map[int64]subscription.Plan),
		subscriptions: make(map[int64]subscription.ShopSubscription),
		orders:        make(map[int64]order.Order),
		orderItems:    make(map[int64][]order.Item),
		promos:        make(map[int64]promo.Promo),
		reminders:     make(map[int64]reminder.Reminder),
		nextID:        make(map[string]int64),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.shops {
		c.shops[k] = v
	}
	for k, v := range t.reviews {
		c.reviews[k] = v
	}
	for k, v := range t.categories {
		c.categories[k] = v
	}
	for k, v := range t.products {
		c.products[k] = v
	}
	for k, v := range t.plans {
		c.plans[k] = v
	}
	for k, v := range t.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = v
	}
	for k, v := range t.orderItems {
		items := make([]order.Item, len(v))
		copy(items, v)
		c.orderItems[k] = items
	}
	for k, v := range t.promos {
		c.promos[k] = v
	}
	for k, v := range t.reminders {
		c.reminders[k] = v
	}
	for k, v := range t.nextID {
		c.nextID[k] = v
	}
	return c
}

func (t *tables) next(table string) int64 {
	t.nextID[table]++
	return t.nextID[table]
}

// Store is the in-memory storage.Store.
type Store struct {
	mu   *sync.Mutex
	data *tables
	inTx bool
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newTables()}
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// InTx serialises writers and restores a snapshot when fn fails, so partial
// writes never become visible.
func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		// Nested transactions join the outer one.
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func page(p storage.Page, n int) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.lock()
	defer s.unlock()

	for _, existing := range s.data.users {
		if existing.Handle == u.Handle {
			return user.User{}, fault.ErrConstraint
		}
	}
	u.ID = s.data.next("users")
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.data.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.lock()
	defer s.unlock()

	existing, ok := s.data.users[u.ID]
	if !ok {
		return user.User{}, fault.NotFound("user", u.ID)
	}
	u.CreatedAt = existing.CreatedAt
	s.data.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.lock()
	defer s.unlock()

	u, ok := s.data.users[id]
	if !ok {
		return user.User{}, fault.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByHandle(_ context.Context, handle int64) (user.User, error) {
	s.lock()
	defer s.unlock()

	for _, u := range s.data.users {
		if u.Handle == handle {
			return u, nil
		}
	}
	return user.User{}, fault.NotFound("user", handle)
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.users[id]; !ok {
		return fault.NotFound("user", id)
	}
	for sid, sh := range s.data.shops {
		if sh.OwnerID == id {
			s.deleteShopLocked(sid)
		}
	}
	for rid, r := range s.data.reviews {
		if r.UserID == id {
			delete(s.data.reviews, rid)
		}
	}
	for oid, o := range s.data.orders {
		if o.UserID == id {
			delete(s.data.orders, oid)
			delete(s.data.orderItems, oid)
		}
	}
	for rid, r := range s.data.reminders {
		if r.UserID == id {
			delete(s.data.reminders, rid)
		}
	}
	delete(s.data.users, id)
	return nil
}

// --- ShopStore --------------------------------------------------------------

func (s *Store) CreateShop(_ context.Context, sh shop.Shop) (shop.Shop, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.users[sh.OwnerID]; !ok {
		return shop.Shop{}, fault.ErrConstraint
	}
	sh.ID = s.data.next("shops")
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now
	s.data.shops[sh.ID] = sh
	return sh, nil
}

func (s *Store) UpdateShop(_ context.Context, sh shop.Shop) (shop.Shop, error) {
	s.lock()
	defer s.unlock()

	existing, ok := s.data.shops[sh.ID]
	if !ok {
		return shop.Shop{}, fault.NotFound("shop", sh.ID)
	}
	sh.CreatedAt = existing.CreatedAt
	sh.UpdatedAt = time.Now().UTC()
	s.data.shops[sh.ID] = sh
	return sh, nil
}

func (s *Store) GetShop(_ context.Context, id int64) (shop.Shop, error) {
	s.lock()
	defer s.unlock()

	sh, ok := s.data.shops[id]
	if !ok {
		return shop.Shop{}, fault.NotFound("shop", id)
	}
	return sh, nil
}

func (s *Store) GetShopByOwner(_ context.Context, ownerID int64) (shop.Shop, error) {
	s.lock()
	defer s.unlock()

	for _, sh := range s.data.shops {
		if sh.OwnerID == ownerID {
			return sh, nil
		}
	}
	return shop.Shop{}, fault.NotFound("shop for owner", ownerID)
}

func (s *Store) ListShops(_ context.Context, f storage.ShopFilter, p storage.Page) ([]shop.Shop, error) {
	s.lock()
	defer s.unlock()

	var result []shop.Shop
	for _, sh := range s.data.shops {
		if f.OwnerID != 0 && sh.OwnerID != f.OwnerID {
			continue
		}
		if f.ActiveOnly && !sh.IsActive {
			continue
		}
		result = append(result, sh)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	start, end := page(p, len(result))
	return result[start:end], nil
}

func (s *Store) DeleteShop(_ context.Context, id int64) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.shops[id]; !ok {
		return fault.NotFound("shop", id)
	}
	s.deleteShopLocked(id)
	return nil
}

func (s *Store) deleteShopLocked(id int64) {
	for pid, p := range s.data.products {
		if p.ShopID == id {
			delete(s.data.products, pid)
		}
	}
	for pid, p := range s.data.promos {
		if p.ShopID != nil && *p.ShopID == id {
			delete(s.data.promos, pid)
		}
	}
	for sid, sub := range s.data.subscriptions {
		if sub.ShopID == id {
			delete(s.data.subscriptions, sid)
		}
	}
	for oid, o := range s.data.orders {
		if o.ShopID == id {
			delete(s.data.orders, oid)
			delete(s.data.orderItems, oid)
		}
	}
	for rid, r := range s.data.reviews {
		if r.ShopID == id {
			delete(s.data.reviews, rid)
		}
	}
	delete(s.data.shops, id)
}

func (s *Store) IncrementShopViews(_ context.Context, id int64) error {
	s.lock()
	defer s.unlock()

	sh, ok := s.data.shops[id]
	if !ok {
		return fault.NotFound("shop", id)
	}
	sh.ViewsCount++
	s.data.shops[id] = sh
	return nil
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r shop.Review) (shop.Review, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.users[r.UserID]; !ok {
		return shop.Review{}, fault.ErrConstraint
	}
	if _, ok := s.data.shops[r.ShopID]; !ok {
		return shop.Review{}, fault.ErrConstraint
	}
	for _, existing := range s.data.reviews {
		if existing.UserID == r.UserID && existing.ShopID == r.ShopID {
			return shop.Review{}, fault.ErrConstraint
		}
	}
	r.ID = s.data.next("reviews")
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.data.reviews[r.ID] = r
	return r, nil
}

func (s *Store) UpdateReview(_ context.Context, r shop.Review) (shop.Review, error) {
	s.lock()
	defer s.unlock()

	existing, ok := s.data.reviews[r.ID]
	if !ok {
		return shop.Review{}, fault.NotFound("review", r.ID)
	}
	r.CreatedAt = existing.CreatedAt
	s.data.reviews[r.ID] = r
	return r, nil
}

func (s *Store) GetReviewByUserShop(_ context.Context, userID, shopID int64) (shop.Review, error) {
	s.lock()
	defer s.unlock()

	for _, r := range s.data.reviews {
		if r.UserID == userID && r.ShopID == shopID {
			return r, nil
		}
	}
	return shop.Review{}, fault.NotFound("review for user", userID)
}

func (s *Store) ListShopReviews(_ context.Context, shopID int64) ([]shop.Review, error) {
	s.lock()
	defer s.unlock()

	var result []shop.Review
	for _, r := range s.data.reviews {
		if r.ShopID == shopID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c catalog.Category) (catalog.Category, error) {
	s.lock()
	defer s.unlock()

	for _, existing := range s.data.categories {
		if existing.Slug == c.Slug {
			return catalog.Category{}, fault.ErrConstraint
		}
	}
	if c.ParentID != nil {
		if _, ok := s.data.categories[*c.ParentID]; !ok {
			return catalog.Category{}, fault.ErrConstraint
		}
	}
	c.ID = s.data.next("categories")
	s.data.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c catalog.Category) (catalog.Category, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.categories[c.ID]; !ok {
		return catalog.Category{}, fault.NotFound("category", c.ID)
	}
	for _, existing := range s.data.categories {
		if existing.ID != c.ID && existing.Slug == c.Slug {
			return catalog.Category{}, fault.ErrConstraint
		}
	}
	s.data.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (catalog.Category, error) {
	s.lock()
	defer s.unlock()

	c, ok := s.data.categories[id]
	if !ok {
		return catalog.Category{}, fault.NotFound("category", id)
	}
	return c, nil
}

func (s *Store) GetCategoryBySlug(_ context.Context, slug string) (catalog.Category, error) {
	s.lock()
	defer s.unlock()

	for _, c := range s.data.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return catalog.Category{}, fault.ErrNotFound
}

func (s *Store) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.lock()
	defer s.unlock()

	result := make([]catalog.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.categories[id]; !ok {
		return fault.NotFound("category", id)
	}
	s.deleteCategoryLocked(id)
	return nil
}

func (s *Store) deleteCategoryLocked(id int64) {
	for cid, c := range s.data.categories {
		if c.ParentID != nil && *c.ParentID == id {
			s.deleteCategoryLocked(cid)
		}
	}
	for pid, p := range s.data.products {
		if p.CategoryID == id {
			delete(s.data.products, pid)
		}
	}
	delete(s.data.categories, id)
}

// --- ProductStore -----------------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.shops[p.ShopID]; !ok {
		return catalog.Product{}, fault.ErrConstraint
	}
	if _, ok := s.data.categories[p.CategoryID]; !ok {
		return catalog.Product{}, fault.ErrConstraint
	}
	p.ID = s.data.next("products")
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.data.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.lock()
	defer s.unlock()

	existing, ok := s.data.products[p.ID]
	if !ok {
		return catalog.Product{}, fault.NotFound("product", p.ID)
	}
	if _, ok := s.data.categories[p.CategoryID]; !ok {
		return catalog.Product{}, fault.ErrConstraint
	}
	p.ShopID = existing.ShopID
	p.CreatedAt = existing.CreatedAt
	s.data.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	s.lock()
	defer s.unlock()

	p, ok := s.data.products[id]
	if !ok {
		return catalog.Product{}, fault.NotFound("product", id)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, f storage.ProductFilter, p storage.Page) ([]catalog.Product, error) {
	s.lock()
	defer s.unlock()

	var result []catalog.Product
	for _, pr := range s.data.products {
		if f.ShopID != 0 && pr.ShopID != f.ShopID {
			continue
		}
		if f.CategoryID != 0 && pr.CategoryID != f.CategoryID {
			continue
		}
		if f.ActiveOnly && !pr.IsActive {
			continue
		}
		result = append(result, pr)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	start, end := page(p, len(result))
	return result[start:end], nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.products[id]; !ok {
		return fault.NotFound("product", id)
	}
	delete(s.data.products, id)
	return nil
}

func (s *Store) CountActiveProducts(_ context.Context, shopID int64) (int, error) {
	s.lock()
	defer s.unlock()

	count := 0
	for _, p := range s.data.products {
		if p.ShopID == shopID && p.IsActive {
			count++
		}
	}
	return count, nil
}

// --- SubscriptionStore ------------------------------------------------------

func (s *Store) CreatePlan(_ context.Context, p subscription.Plan) (subscription.Plan, error) {
	s.lock()
	defer s.unlock()

	p.ID = s.data.next("plans")
	s.data.plans[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePlan(_ context.Context, p subscription.Plan) (subscription.Plan, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.plans[p.ID]; !ok {
		return subscription.Plan{}, fault.NotFound("plan", p.ID)
	}
	s.data.plans[p.ID] = p
	return p, nil
}

func (s *Store) GetPlan(_ context.Context, id int64) (subscription.Plan, error) {
	s.lock()
	defer s.unlock()

	p, ok := s.data.plans[id]
	if !ok {
		return subscription.Plan{}, fault.NotFound("plan", id)
	}
	return p, nil
}

func (s *Store) ListPlans(_ context.Context, activeOnly bool) ([]subscription.Plan, error) {
	s.lock()
	defer s.unlock()

	var result []subscription.Plan
	for _, p := range s.data.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateSubscription(_ context.Context, sub subscription.ShopSubscription) (subscription.ShopSubscription, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.shops[sub.ShopID]; !ok {
		return subscription.ShopSubscription{}, fault.ErrConstraint
	}
	if _, ok := s.data.plans[sub.PlanID]; !ok {
		return subscription.ShopSubscription{}, fault.ErrConstraint
	}
	if !sub.EndDate.After(sub.StartDate) {
		return subscription.ShopSubscription{}, fault.ErrConstraint
	}
	sub.ID = s.data.next("subscriptions")
	s.data.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub subscription.ShopSubscription) (subscription.ShopSubscription, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.subscriptions[sub.ID]; !ok {
		return subscription.ShopSubscription{}, fault.NotFound("subscription", sub.ID)
	}
	s.data.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetActiveSubscription(_ context.Context, shopID int64) (subscription.ShopSubscription, error) {
	s.lock()
	defer s.unlock()

	for _, sub := range s.data.subscriptions {
		if sub.ShopID == shopID && sub.IsActive {
			return sub, nil
		}
	}
	return subscription.ShopSubscription{}, fault.NotFound("active subscription for shop", shopID)
}

func (s *Store) ListSubscriptions(_ context.Context, shopID int64) ([]subscription.ShopSubscription, error) {
	s.lock()
	defer s.unlock()

	var result []subscription.ShopSubscription
	for _, sub := range s.data.subscriptions {
		if sub.ShopID == shopID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	s.lock()
	defer s.unlock()

	count := 0
	for id, sub := range s.data.subscriptions {
		if sub.IsActive && sub.Expired(now) {
			sub.IsActive = false
			s.data.subscriptions[id] = sub
			count++
		}
	}
	return count, nil
}

func (s *Store) HasActiveSubscriptions(_ context.Context) (bool, error) {
	s.lock()
	defer s.unlock()

	for _, sub := range s.data.subscriptions {
		if sub.IsActive {
			return true, nil
		}
	}
	return false, nil
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.users[o.UserID]; !ok {
		return order.Order{}, fault.ErrConstraint
	}
	if _, ok := s.data.shops[o.ShopID]; !ok {
		return order.Order{}, fault.ErrConstraint
	}
	for _, item := range o.Items {
		if _, ok := s.data.products[item.ProductID]; !ok {
			return order.Order{}, fault.ErrConstraint
		}
	}
	o.ID = s.data.next("orders")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	items := make([]order.Item, len(o.Items))
	for i, item := range o.Items {
		item.ID = s.data.next("order_items")
		item.OrderID = o.ID
		items[i] = item
	}
	o.Items = items
	s.data.orders[o.ID] = o
	s.data.orderItems[o.ID] = items
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.lock()
	defer s.unlock()

	o, ok := s.data.orders[id]
	if !ok {
		return order.Order{}, fault.NotFound("order", id)
	}
	items := s.data.orderItems[id]
	o.Items = make([]order.Item, len(items))
	copy(o.Items, items)
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f storage.OrderFilter, p storage.Page) ([]order.Order, error) {
	s.lock()
	defer s.unlock()

	var result []order.Order
	for _, o := range s.data.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.ShopID != 0 && o.ShopID != f.ShopID {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	start, end := page(p, len(result))
	return result[start:end], nil
}

func (s *Store) SetOrderStatus(_ context.Context, id int64, status order.Status) error {
	s.lock()
	defer s.unlock()

	o, ok := s.data.orders[id]
	if !ok {
		return fault.NotFound("order", id)
	}
	o.Status = status
	s.data.orders[id] = o
	return nil
}

func (s *Store) CountUserShopOrders(_ context.Context, userID, shopID int64) (int, error) {
	s.lock()
	defer s.unlock()

	count := 0
	for _, o := range s.data.orders {
		if o.UserID == userID && o.ShopID == shopID {
			count++
		}
	}
	return count, nil
}

// --- PromoStore -------------------------------------------------------------

func (s *Store) CreatePromo(_ context.Context, p promo.Promo) (promo.Promo, error) {
	s.lock()
	defer s.unlock()

	if !p.Type.Valid() {
		return promo.Promo{}, fault.ErrConstraint
	}
	for _, existing := range s.data.promos {
		if existing.Code == p.Code {
			return promo.Promo{}, fault.ErrConstraint
		}
	}
	if p.ShopID != nil {
		if _, ok := s.data.shops[*p.ShopID]; !ok {
			return promo.Promo{}, fault.ErrConstraint
		}
	}
	p.ID = s.data.next("promos")
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.data.promos[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePromo(_ context.Context, p promo.Promo) (promo.Promo, error) {
	s.lock()
	defer s.unlock()

	existing, ok := s.data.promos[p.ID]
	if !ok {
		return promo.Promo{}, fault.NotFound("promo", p.ID)
	}
	if !p.Type.Valid() {
		return promo.Promo{}, fault.ErrConstraint
	}
	p.CreatedAt = existing.CreatedAt
	s.data.promos[p.ID] = p
	return p, nil
}

func (s *Store) GetPromo(_ context.Context, id int64) (promo.Promo, error) {
	s.lock()
	defer s.unlock()

	p, ok := s.data.promos[id]
	if !ok {
		return promo.Promo{}, fault.NotFound("promo", id)
	}
	return p, nil
}

func (s *Store) GetPromoByCode(_ context.Context, code string) (promo.Promo, error) {
	s.lock()
	defer s.unlock()

	for _, p := range s.data.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return promo.Promo{}, fault.ErrNotFound
}

func (s *Store) ListPromos(_ context.Context, shopID int64) ([]promo.Promo, error) {
	s.lock()
	defer s.unlock()

	var result []promo.Promo
	for _, p := range s.data.promos {
		if shopID != 0 && (p.ShopID == nil || *p.ShopID != shopID) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) AddPromoUses(_ context.Context, id int64, delta int) error {
	s.lock()
	defer s.unlock()

	p, ok := s.data.promos[id]
	if !ok {
		return fault.NotFound("promo", id)
	}
	next := p.UsesCount + delta
	if next < 0 {
		next = 0
	}
	if p.MaxUses != nil && next > *p.MaxUses {
		return fault.ErrConstraint
	}
	p.UsesCount = next
	s.data.promos[id] = p
	return nil
}

// --- ReminderStore ----------------------------------------------------------

func (s *Store) CreateReminder(_ context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.users[r.UserID]; !ok {
		return reminder.Reminder{}, fault.ErrConstraint
	}
	if len(r.Description) > reminder.MaxDescriptionLen {
		return reminder.Reminder{}, fault.ErrConstraint
	}
	r.ID = s.data.next("reminders")
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.data.reminders[r.ID] = r
	return r, nil
}

func (s *Store) GetReminder(_ context.Context, id int64) (reminder.Reminder, error) {
	s.lock()
	defer s.unlock()

	r, ok := s.data.reminders[id]
	if !ok {
		return reminder.Reminder{}, fault.NotFound("reminder", id)
	}
	return r, nil
}

func (s *Store) ListDueReminders(_ context.Context, now time.Time, limit int) ([]reminder.Reminder, error) {
	s.lock()
	defer s.unlock()

	var result []reminder.Reminder
	for _, r := range s.data.reminders {
		if r.Due(now) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListUserReminders(_ context.Context, userID int64) ([]reminder.Reminder, error) {
	s.lock()
	defer s.unlock()

	var result []reminder.Reminder
	for _, r := range s.data.reminders {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) MarkReminderSent(_ context.Context, id int64, at time.Time) error {
	s.lock()
	defer s.unlock()

	r, ok := s.data.reminders[id]
	if !ok {
		return fault.NotFound("reminder", id)
	}
	r.IsSent = true
	r.SentAt = &at
	s.data.reminders[id] = r
	return nil
}

// --- Maintenance ------------------------------------------------------------

func (s *Store) ClearAll(_ context.Context) error {
	s.lock()
	defer s.unlock()

	s.data = newTables()
	return nil
}

func (s *Store) Counts(_ context.Context) (map[string]int, error) {
	s.lock()
	defer s.unlock()

	items := 0
	for _, v := range s.data.orderItems {
		items += len(v)
	}
	return map[string]int{
		"users":              len(s.data.users),
		"shops":              len(s.data.shops),
		"shop_reviews":       len(s.data.reviews),
		"categories":         len(s.data.categories),
		"products":           len(s.data.products),
		"subscription_plans": len(s.data.plans),
		"shop_subscriptions": len(s.data.subscriptions),
		"orders":             len(s.data.orders),
		"order_items":        items,
		"promos":             len(s.data.promos),
		"reminders":          len(s.data.reminders),
	}, nil
}

func (s *Store) DeleteAllCategories(_ context.Context) error {
	s.lock()
	defer s.unlock()

	for id := range s.data.categories {
		if _, ok := s.data.categories[id]; ok {
			s.deleteCategoryLocked(id)
		}
	}
	return nil
}

func (s *Store) DeleteAllPlans(_ context.Context) error {
	s.lock()
	defer s.unlock()

	for _, sub := range s.data.subscriptions {
		if sub.IsActive {
			return fault.ErrConstraint
		}
	}
	s.data.plans = make(map[int64]subscription.Plan)
	return nil
}
