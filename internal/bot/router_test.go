package bot

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	app "github.com/shoplink/marketplace/internal/app"
	"github.com/shoplink/marketplace/internal/app/domain/shop"
	"github.com/shoplink/marketplace/internal/app/domain/subscription"
)

type recordedReply struct {
	chatID  int64
	html    string
	buttons []Button
}

type captureResponder struct {
	replies []recordedReply
}

func (c *captureResponder) Reply(ctx context.Context, chatID int64, html string, buttons []Button) error {
	c.replies = append(c.replies, recordedReply{chatID: chatID, html: html, buttons: buttons})
	return nil
}

func (c *captureResponder) last(t *testing.T) recordedReply {
	t.Helper()
	if len(c.replies) == 0 {
		t.Fatalf("no reply recorded")
	}
	return c.replies[len(c.replies)-1]
}

func (r recordedReply) hasButton(data string) bool {
	for _, b := range r.buttons {
		if b.Data == data {
			return true
		}
	}
	return false
}

func newTestRouter(t *testing.T) (*Router, *captureResponder, *app.Application) {
	t.Helper()
	application, err := app.New(app.Options{}, nil)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	responder := &captureResponder{}
	return NewRouter(application, responder, nil), responder, application
}

func TestStartRegistersUserAndShowsMenu(t *testing.T) {
	router, responder, application := newTestRouter(t)
	ctx := context.Background()

	err := router.Handle(ctx, Update{ChatID: 10, Handle: 42, Name: "Alice", Username: "alice", Command: "/start"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if _, err := application.Accounts.GetByHandle(ctx, 42); err != nil {
		t.Fatalf("sender not registered: %v", err)
	}
	reply := responder.last(t)
	if reply.chatID != 10 {
		t.Fatalf("wrong chat: %d", reply.chatID)
	}
	for _, want := range []string{"open_catalog", "my_shop", "cart", "favorites"} {
		if !reply.hasButton(want) {
			t.Fatalf("menu missing %s: %+v", want, reply.buttons)
		}
	}
}

func TestMyShopWithoutShopOffersCreation(t *testing.T) {
	router, responder, _ := newTestRouter(t)

	if err := router.Handle(context.Background(), Update{ChatID: 10, Handle: 42, Callback: "my_shop"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	reply := responder.last(t)
	if !reply.hasButton("create_shop") {
		t.Fatalf("expected create_shop offer, got %+v", reply.buttons)
	}
}

func TestSubscribeFlow(t *testing.T) {
	router, responder, application := newTestRouter(t)
	ctx := context.Background()

	u, err := application.Accounts.UpsertByHandle(ctx, 42, "Alice", "alice")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := application.Shops.Create(ctx, u.ID, shop.Shop{Name: "Flowers"}); err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	plan, err := application.Store.CreatePlan(ctx, subscription.Plan{
		Name:         "Basic",
		Price:        decimal.NewFromInt(299),
		DurationDays: 30,
		MaxProducts:  30,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	if err := router.Handle(ctx, Update{ChatID: 10, Handle: 42, Callback: "subscription_plans"}); err != nil {
		t.Fatalf("plans: %v", err)
	}
	if !responder.last(t).hasButton("subscribe_" + itoa(plan.ID)) {
		t.Fatalf("plan button missing: %+v", responder.last(t).buttons)
	}

	if err := router.Handle(ctx, Update{ChatID: 10, Handle: 42, Callback: "subscribe_" + itoa(plan.ID)}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !strings.Contains(responder.last(t).html, "Subscribed until") {
		t.Fatalf("unexpected reply: %q", responder.last(t).html)
	}

	sh, err := application.Shops.GetByOwner(ctx, u.ID)
	if err != nil {
		t.Fatalf("shop: %v", err)
	}
	sub, err := application.Subscriptions.ActiveSubscription(ctx, sh.ID)
	if err != nil {
		t.Fatalf("subscription not active: %v", err)
	}
	if sub.PlanID != plan.ID {
		t.Fatalf("wrong plan: %d", sub.PlanID)
	}
	if !sub.EndDate.After(time.Now().UTC().AddDate(0, 0, 29)) {
		t.Fatalf("end date too early: %v", sub.EndDate)
	}
}

func TestUnknownCallbackFallsBack(t *testing.T) {
	router, responder, _ := newTestRouter(t)

	if err := router.Handle(context.Background(), Update{ChatID: 10, Handle: 42, Callback: "bogus_token"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !responder.last(t).hasButton("open_catalog") {
		t.Fatalf("expected fallback to main menu")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
