package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/shoplink/marketplace/internal/app/system"
	"github.com/shoplink/marketplace/pkg/logger"
)

var _ system.Service = (*Lapser)(nil)

// Lapser periodically expires subscriptions whose window has closed.
type Lapser struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLapser creates a lifecycle-managed subscription lapser.
func NewLapser(service *Service, log *logger.Logger) *Lapser {
	if log == nil {
		log = logger.NewDefault("subscription-lapser")
	}
	return &Lapser{
		service:  service,
		log:      log,
		interval: time.Hour,
	}
}

// WithInterval overrides the tick interval. Call before Start.
func (l *Lapser) WithInterval(d time.Duration) {
	if d > 0 {
		l.interval = d
	}
}

func (l *Lapser) Name() string { return "subscription-lapser" }

func (l *Lapser) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		l.tick(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				l.tick(runCtx)
			}
		}
	}()

	l.log.Info("subscription lapser started")
	return nil
}

func (l *Lapser) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel := l.cancel
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.log.Info("subscription lapser stopped")
	return nil
}

func (l *Lapser) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := l.service.LapseExpired(ctx, time.Now().UTC()); err != nil {
		l.log.WithError(err).Warn("subscription lapse tick failed")
	}
}
