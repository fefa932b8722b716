// Package app assembles the marketplace services and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	accountssvc "github.com/shoplink/marketplace/internal/app/services/accounts"
	catalogsvc "github.com/shoplink/marketplace/internal/app/services/catalog"
	orderssvc "github.com/shoplink/marketplace/internal/app/services/orders"
	promossvc "github.com/shoplink/marketplace/internal/app/services/promos"
	reminderssvc "github.com/shoplink/marketplace/internal/app/services/reminders"
	shopssvc "github.com/shoplink/marketplace/internal/app/services/shops"
	subscriptionssvc "github.com/shoplink/marketplace/internal/app/services/subscriptions"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/internal/app/storage/memory"
	"github.com/shoplink/marketplace/internal/app/system"
	"github.com/shoplink/marketplace/pkg/logger"
)

// Options configures the application. A nil Store defaults to the in-memory
// implementation; a nil ReminderSender disables the dispatch loop.
type Options struct {
	Store            storage.Store
	ReminderSender   reminderssvc.Sender
	ReminderInterval time.Duration
	ReminderBatch    int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store         storage.Store
	Accounts      *accountssvc.Service
	Shops         *shopssvc.Service
	Catalog       *catalogsvc.Service
	Subscriptions *subscriptionssvc.Service
	Orders        *orderssvc.Service
	Promos        *promossvc.Service
	Reminders     *reminderssvc.Service
}

// New builds a fully initialised application with the provided options.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	store := opts.Store
	if store == nil {
		store = memory.New()
	}

	manager := system.NewManager()

	subsService := subscriptionssvc.New(store, log)
	remService := reminderssvc.New(store, opts.ReminderSender, log)
	if opts.ReminderBatch > 0 {
		remService.WithBatchSize(opts.ReminderBatch)
	}

	lapser := subscriptionssvc.NewLapser(subsService, log)
	if err := manager.Register(lapser); err != nil {
		return nil, fmt.Errorf("register %s: %w", lapser.Name(), err)
	}

	if opts.ReminderSender != nil {
		scheduler := reminderssvc.NewScheduler(remService, opts.ReminderInterval, log)
		if err := manager.Register(scheduler); err != nil {
			return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
		}
	} else {
		log.Warn("no reminder sender configured; reminder dispatch disabled")
	}

	return &Application{
		manager:       manager,
		log:           log,
		Store:         store,
		Accounts:      accountssvc.New(store, log),
		Shops:         shopssvc.New(store, log),
		Catalog:       catalogsvc.New(store, log),
		Subscriptions: subsService,
		Orders:        orderssvc.New(store, log),
		Promos:        promossvc.New(store, log),
		Reminders:     remService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
