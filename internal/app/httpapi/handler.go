// Package httpapi exposes the marketplace REST API.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	app "github.com/shoplink/marketplace/internal/app"
	"github.com/shoplink/marketplace/internal/app/domain/catalog"
	"github.com/shoplink/marketplace/internal/app/domain/order"
	"github.com/shoplink/marketplace/internal/app/domain/promo"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/metrics"
	"github.com/shoplink/marketplace/internal/app/services/orders"
	"github.com/shoplink/marketplace/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a gin engine exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/users", h.upsertUser)
	r.GET("/users/:handle", h.getUser)

	r.GET("/categories", h.listCategories)
	r.POST("/categories", h.createCategory)
	r.PUT("/categories/:id", h.updateCategory)
	r.DELETE("/categories/:id", h.deleteCategory)

	r.GET("/shops", h.listShops)
	r.POST("/shops", h.createShop)
	r.GET("/shops/:id", h.getShop)
	r.PUT("/shops/:id", h.updateShop)
	r.POST("/shops/:id/deactivate", h.deactivateShop)
	r.POST("/shops/:id/views", h.recordShopView)
	r.GET("/shops/:id/reviews", h.listReviews)
	r.POST("/shops/:id/reviews", h.upsertReview)
	r.GET("/shops/:id/subscription", h.getSubscription)
	r.POST("/shops/:id/subscribe", h.subscribe)

	r.GET("/plans", h.listPlans)

	r.GET("/products", h.listProducts)
	r.POST("/products", h.createProduct)
	r.GET("/products/:id", h.getProduct)
	r.PUT("/products/:id", h.updateProduct)
	r.DELETE("/products/:id", h.deleteProduct)

	r.GET("/orders", h.listOrders)
	r.POST("/orders", h.placeOrder)
	r.GET("/orders/:id", h.getOrder)
	r.POST("/orders/:id/status", h.setOrderStatus)

	r.GET("/promos", h.listPromos)
	r.POST("/promos", h.createPromo)
	r.POST("/promos/:id/deactivate", h.deactivatePromo)
	r.POST("/promos/preview", h.previewPromo)

	r.GET("/reminders", h.listReminders)
	r.POST("/reminders", h.createReminder)

	return r
}

// --- users -------------------------------------------------------------------

func (h *handler) upsertUser(c *gin.Context) {
	var payload struct {
		Handle   int64  `json:"handle"`
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Accounts.UpsertByHandle(c.Request.Context(), payload.Handle, payload.Name, payload.Username)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) getUser(c *gin.Context) {
	handle, ok := paramInt(c, "handle")
	if !ok {
		return
	}
	u, err := h.app.Accounts.GetByHandle(c.Request.Context(), handle)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- categories --------------------------------------------------------------

func (h *handler) listCategories(c *gin.Context) {
	cats, err := h.app.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *handler) createCategory(c *gin.Context) {
	var payload struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		Icon     string `json:"icon"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Catalog.CreateCategory(c.Request.Context(), catalog.Category{
		Name:     payload.Name,
		Slug:     payload.Slug,
		Icon:     payload.Icon,
		ParentID: payload.ParentID,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) updateCategory(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		Icon     string `json:"icon"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Catalog.UpdateCategory(c.Request.Context(), catalog.Category{
		ID:       id,
		Name:     payload.Name,
		Slug:     payload.Slug,
		Icon:     payload.Icon,
		ParentID: payload.ParentID,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) deleteCategory(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.app.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		writeFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- shops -------------------------------------------------------------------

func (h *handler) listShops(c *gin.Context) {
	f := storage.ShopFilter{ActiveOnly: c.Query("active") == "true"}
	if owner := c.Query("owner_id"); owner != "" {
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		f.OwnerID = id
	}
	shops, err := h.app.Shops.List(c.Request.Context(), f, pageOf(c))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, shops)
}

func (h *handler) createShop(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Email       string   `json:"email"`
		Telegram    string   `json:"telegram"`
		Instagram   string   `json:"instagram"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Shops.Create(c.Request.Context(), actor, shop.Shop{
		Name:        payload.Name,
		Description: payload.Description,
		Email:       payload.Email,
		Telegram:    payload.Telegram,
		Instagram:   payload.Instagram,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) getShop(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	sh, err := h.app.Shops.Get(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (h *handler) updateShop(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Email       string   `json:"email"`
		Telegram    string   `json:"telegram"`
		Instagram   string   `json:"instagram"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Shops.Update(c.Request.Context(), actor, shop.Shop{
		ID:          id,
		Name:        payload.Name,
		Description: payload.Description,
		Email:       payload.Email,
		Telegram:    payload.Telegram,
		Instagram:   payload.Instagram,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) deactivateShop(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.app.Shops.Deactivate(c.Request.Context(), actor, id); err != nil {
		writeFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) recordShopView(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.app.Shops.RecordView(c.Request.Context(), id); err != nil {
		writeFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listReviews(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	reviews, err := h.app.Shops.Reviews(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *handler) upsertReview(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	review, err := h.app.Shops.UpsertReview(c.Request.Context(), actor, id, payload.Rating, payload.Text)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// --- subscriptions -----------------------------------------------------------

func (h *handler) listPlans(c *gin.Context) {
	plans, err := h.app.Subscriptions.ListPlans(c.Request.Context(), c.Query("active") != "false")
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *handler) getSubscription(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	sub, err := h.app.Subscriptions.ActiveSubscription(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handler) subscribe(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var payload struct {
		PlanID int64 `json:"plan_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	sub, err := h.app.Subscriptions.Subscribe(c.Request.Context(), id, payload.PlanID, timeNow())
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// --- products ----------------------------------------------------------------

func (h *handler) listProducts(c *gin.Context) {
	f := storage.ProductFilter{ActiveOnly: c.Query("active") == "true"}
	if v := c.Query("shop_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		f.ShopID = id
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		f.CategoryID = id
	}
	products, err := h.app.Catalog.ListProducts(c.Request.Context(), f, pageOf(c))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type productPayload struct {
	ShopID      int64           `json:"shop_id"`
	CategoryID  int64           `json:"category_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
}

func (h *handler) createProduct(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload productPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Catalog.CreateProduct(c.Request.Context(), actor, catalog.Product{
		ShopID:      payload.ShopID,
		CategoryID:  payload.CategoryID,
		Title:       payload.Title,
		Description: payload.Description,
		Price:       payload.Price,
		IsActive:    payload.IsActive,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) getProduct(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	p, err := h.app.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) updateProduct(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload productPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Catalog.UpdateProduct(c.Request.Context(), actor, catalog.Product{
		ID:          id,
		CategoryID:  payload.CategoryID,
		Title:       payload.Title,
		Description: payload.Description,
		Price:       payload.Price,
		IsActive:    payload.IsActive,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) deleteProduct(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.app.Catalog.DeleteProduct(c.Request.Context(), actor, id); err != nil {
		writeFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- orders ------------------------------------------------------------------

func (h *handler) listOrders(c *gin.Context) {
	var f storage.OrderFilter
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		f.UserID = id
	}
	if v := c.Query("shop_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		f.ShopID = id
	}
	list, err := h.app.Orders.List(c.Request.Context(), f, pageOf(c))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) placeOrder(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		ShopID int64 `json:"shop_id"`
		Items  []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		} `json:"items"`
		DeliveryAddress  string `json:"delivery_address"`
		DeliveryTimeSlot string `json:"delivery_time_slot"`
		DeliveryTime     string `json:"delivery_time"`
		PromoCode        string `json:"promo_code"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	req := orders.PlaceRequest{
		UserID:           actor,
		ShopID:           payload.ShopID,
		DeliveryAddress:  payload.DeliveryAddress,
		DeliveryTimeSlot: payload.DeliveryTimeSlot,
		DeliveryTime:     payload.DeliveryTime,
		PromoCode:        payload.PromoCode,
	}
	for _, it := range payload.Items {
		req.Items = append(req.Items, orders.PlaceItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	placed, err := h.app.Orders.Place(c.Request.Context(), req)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, placed)
}

func (h *handler) getOrder(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	o, err := h.app.Orders.Get(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) setOrderStatus(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Orders.Transition(c.Request.Context(), actor, id, order.Status(payload.Status))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// --- promos ------------------------------------------------------------------

func (h *handler) listPromos(c *gin.Context) {
	var shopID int64
	if v := c.Query("shop_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		shopID = id
	}
	list, err := h.app.Promos.List(c.Request.Context(), shopID)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) createPromo(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		ShopID         *int64           `json:"shop_id"`
		Code           string           `json:"code"`
		Type           string           `json:"type"`
		Value          decimal.Decimal  `json:"value"`
		MinOrderAmount *decimal.Decimal `json:"min_order_amount"`
		MaxUses        *int             `json:"max_uses"`
		ValidFrom      string           `json:"valid_from"`
		ValidUntil     string           `json:"valid_until"`
		FirstOrderOnly bool             `json:"first_order_only"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	from, err := parseDate(payload.ValidFrom)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	until, err := parseDate(payload.ValidUntil)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Promos.Create(c.Request.Context(), actor, promo.Promo{
		ShopID:         payload.ShopID,
		Code:           payload.Code,
		Type:           promo.Type(payload.Type),
		Value:          payload.Value,
		MinOrderAmount: payload.MinOrderAmount,
		MaxUses:        payload.MaxUses,
		ValidFrom:      from,
		ValidUntil:     until,
		IsActive:       true,
		FirstOrderOnly: payload.FirstOrderOnly,
	})
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) deactivatePromo(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.app.Promos.Deactivate(c.Request.Context(), actor, id); err != nil {
		writeFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) previewPromo(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		ShopID   int64           `json:"shop_id"`
		Code     string          `json:"code"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	discount, err := h.app.Orders.Quote(c.Request.Context(), payload.ShopID, actor, payload.Code, payload.Subtotal)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": payload.Code, "discount": discount})
}

// --- reminders ---------------------------------------------------------------

func (h *handler) listReminders(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	list, err := h.app.Reminders.ListForUser(c.Request.Context(), actor)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) createReminder(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var payload struct {
		EventDate   string `json:"event_date"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	eventDate, err := parseDate(payload.EventDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Reminders.Create(c.Request.Context(), actor, eventDate, payload.Description)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
