package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shoplink/marketplace/internal/app/system"
	"github.com/shoplink/marketplace/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Scheduler drives DispatchDue on a cron schedule. Run at most one instance
// per database; concurrent schedulers would race on the same due rows.
type Scheduler struct {
	service *Service
	log     *logger.Logger
	spec    string
	timeout time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a lifecycle-managed reminder dispatcher. interval is
// the pause between passes; zero means one minute.
func NewScheduler(service *Service, interval time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("reminder-scheduler")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		service: service,
		log:     log,
		spec:    fmt.Sprintf("@every %s", interval),
		timeout: 30 * time.Second,
	}
}

func (s *Scheduler) Name() string { return "reminder-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.pass); err != nil {
		return fmt.Errorf("schedule reminder pass: %w", err)
	}
	c.Start()
	s.cron = c
	s.running = true

	s.log.WithField("schedule", s.spec).Info("reminder scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("reminder scheduler stopped")
	return nil
}

func (s *Scheduler) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.service.DispatchDue(ctx); err != nil {
		s.log.WithError(err).Warn("reminder dispatch pass failed")
	}
}
