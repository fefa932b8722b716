// Package bot routes messaging-platform commands and inline callbacks onto
// the marketplace services. The platform transport is injected through
// Responder, so the router stays SDK-free and testable.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	app "github.com/shoplink/marketplace/internal/app"
	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/pkg/logger"
)

// timeNow is swapped in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// Button is one inline keyboard option. Data round-trips through the platform
// and comes back as a callback token.
type Button struct {
	Label string
	Data  string
}

// Responder delivers rendered replies back to the platform chat.
type Responder interface {
	Reply(ctx context.Context, chatID int64, html string, buttons []Button) error
}

// Update is the platform-agnostic projection of one incoming event. Exactly
// one of Command or Callback is set.
type Update struct {
	ChatID   int64
	Handle   int64
	Name     string
	Username string
	Command  string
	Callback string
}

// Router dispatches updates onto the application services.
type Router struct {
	app       *app.Application
	responder Responder
	log       *logger.Logger
}

// NewRouter constructs a bot router.
func NewRouter(application *app.Application, responder Responder, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault("bot")
	}
	return &Router{app: application, responder: responder, log: log}
}

// Handle processes one update. The sender is upserted first so every
// interaction keeps the identity row fresh.
func (r *Router) Handle(ctx context.Context, u Update) error {
	usr, err := r.app.Accounts.UpsertByHandle(ctx, u.Handle, u.Name, u.Username)
	if err != nil {
		return fmt.Errorf("upsert sender: %w", err)
	}

	switch {
	case u.Command != "":
		return r.command(ctx, u, usr.ID)
	case u.Callback != "":
		return r.callback(ctx, u, usr.ID)
	default:
		return r.mainMenu(ctx, u.ChatID)
	}
}

func (r *Router) command(ctx context.Context, u Update, userID int64) error {
	switch strings.TrimPrefix(strings.Fields(u.Command)[0], "/") {
	case "start":
		return r.mainMenu(ctx, u.ChatID)
	case "shop":
		return r.myShop(ctx, u.ChatID, userID)
	case "cart":
		return r.cart(ctx, u.ChatID)
	default:
		return r.responder.Reply(ctx, u.ChatID, "Unknown command. Try /start.", nil)
	}
}

func (r *Router) callback(ctx context.Context, u Update, userID int64) error {
	token := u.Callback
	if id, ok := strings.CutPrefix(token, "subscribe_"); ok {
		planID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return r.responder.Reply(ctx, u.ChatID, "That plan no longer exists.", nil)
		}
		return r.subscribe(ctx, u.ChatID, userID, planID)
	}

	switch token {
	case "back_to_main":
		return r.mainMenu(ctx, u.ChatID)
	case "my_shop":
		return r.myShop(ctx, u.ChatID, userID)
	case "create_shop":
		return r.responder.Reply(ctx, u.ChatID,
			"Send your shop name to open a storefront.",
			[]Button{{Label: "Back", Data: "back_to_main"}})
	case "subscription_plans":
		return r.plans(ctx, u.ChatID)
	case "open_catalog":
		return r.catalog(ctx, u.ChatID)
	case "cart":
		return r.cart(ctx, u.ChatID)
	case "favorites":
		return r.responder.Reply(ctx, u.ChatID,
			"You have no favourites yet.",
			[]Button{{Label: "Back", Data: "back_to_main"}})
	default:
		r.log.WithField("callback", token).Warn("unknown callback token")
		return r.mainMenu(ctx, u.ChatID)
	}
}

func (r *Router) mainMenu(ctx context.Context, chatID int64) error {
	return r.responder.Reply(ctx, chatID, "<b>Welcome to the marketplace!</b>", []Button{
		{Label: "Catalog", Data: "open_catalog"},
		{Label: "My shop", Data: "my_shop"},
		{Label: "Cart", Data: "cart"},
		{Label: "Favourites", Data: "favorites"},
	})
}

func (r *Router) myShop(ctx context.Context, chatID, userID int64) error {
	sh, err := r.app.Shops.GetByOwner(ctx, userID)
	if err != nil {
		if fault.IsNotFound(err) {
			return r.responder.Reply(ctx, chatID,
				"You do not have a shop yet.",
				[]Button{
					{Label: "Create shop", Data: "create_shop"},
					{Label: "Back", Data: "back_to_main"},
				})
		}
		return err
	}

	quota, err := r.app.Subscriptions.EffectiveQuota(ctx, sh.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("<b>%s</b>\nRating: %s (%d reviews)\nViews: %d\nProduct quota: %d",
		sh.Name, sh.AverageRating.StringFixed(1), sh.ReviewsCount, sh.ViewsCount, quota)
	return r.responder.Reply(ctx, chatID, text, []Button{
		{Label: "Subscription", Data: "subscription_plans"},
		{Label: "Back", Data: "back_to_main"},
	})
}

func (r *Router) plans(ctx context.Context, chatID int64) error {
	plans, err := r.app.Subscriptions.ListPlans(ctx, true)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("<b>Subscription plans</b>\n")
	buttons := make([]Button, 0, len(plans)+1)
	for _, p := range plans {
		fmt.Fprintf(&b, "%s: %s for %d days, up to %d products\n",
			p.Name, p.Price.StringFixed(0), p.DurationDays, p.MaxProducts)
		buttons = append(buttons, Button{
			Label: p.Name,
			Data:  fmt.Sprintf("subscribe_%d", p.ID),
		})
	}
	buttons = append(buttons, Button{Label: "Back", Data: "my_shop"})
	return r.responder.Reply(ctx, chatID, b.String(), buttons)
}

func (r *Router) subscribe(ctx context.Context, chatID, userID, planID int64) error {
	sh, err := r.app.Shops.GetByOwner(ctx, userID)
	if err != nil {
		if fault.IsNotFound(err) {
			return r.responder.Reply(ctx, chatID,
				"Create a shop before subscribing.",
				[]Button{{Label: "Create shop", Data: "create_shop"}})
		}
		return err
	}
	sub, err := r.app.Subscriptions.Subscribe(ctx, sh.ID, planID, timeNow())
	if err != nil {
		r.log.WithError(err).WithField("plan_id", planID).Warn("subscribe failed")
		return r.responder.Reply(ctx, chatID,
			"Could not activate that plan. Try again later.",
			[]Button{{Label: "Back", Data: "my_shop"}})
	}
	return r.responder.Reply(ctx, chatID,
		fmt.Sprintf("Subscribed until %s.", sub.EndDate.Format("2006-01-02")),
		[]Button{{Label: "My shop", Data: "my_shop"}})
}

func (r *Router) catalog(ctx context.Context, chatID int64) error {
	cats, err := r.app.Catalog.ListCategories(ctx)
	if err != nil {
		return err
	}
	buttons := make([]Button, 0, len(cats)+1)
	for _, c := range cats {
		if c.ParentID != nil {
			continue
		}
		label := c.Name
		if c.Icon != "" {
			label = c.Icon + " " + label
		}
		buttons = append(buttons, Button{Label: label, Data: "category_" + c.Slug})
	}
	buttons = append(buttons, Button{Label: "Back", Data: "back_to_main"})
	return r.responder.Reply(ctx, chatID, "<b>Catalog</b>", buttons)
}

func (r *Router) cart(ctx context.Context, chatID int64) error {
	return r.responder.Reply(ctx, chatID,
		"Your cart is empty. Open the catalog to add products.",
		[]Button{
			{Label: "Catalog", Data: "open_catalog"},
			{Label: "Back", Data: "back_to_main"},
		})
}
