package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ratipstack/ratip-engine/internal/metrics"
	"github.com/ratipstack/ratip-engine/internal/models"
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// DispatcherConfig tunes filtering, rate limiting and queueing.
type DispatcherConfig struct {
	// MinConfidence drops events scored below it.
	MinConfidence float64
	// PerMinute caps accepted alerts per minute; zero disables the limit.
	PerMinute int
	Burst     int
	QueueSize int
	// SendTimeout bounds a single Sender.Send call.
	SendTimeout time.Duration
}

// Dispatcher fans correlation events out to senders from a background worker.
type Dispatcher struct {
	senders  []Sender
	cfg      DispatcherConfig
	limiter  *rate.Limiter
	queue    chan models.CorrelatedEvent
	logger   *slog.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewDispatcher constructs and starts a dispatcher.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, senders ...Sender) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	var limiter *rate.Limiter
	if cfg.PerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60.0), burst)
	}
	d := &Dispatcher{
		senders: senders,
		cfg:     cfg,
		limiter: limiter,
		queue:   make(chan models.CorrelatedEvent, cfg.QueueSize),
		logger:  logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues event without blocking. It reports whether the event was accepted.
func (d *Dispatcher) Notify(event models.CorrelatedEvent) bool {
	if event.ConfidenceScore < d.cfg.MinConfidence {
		metrics.ObserveNotification("dispatcher", metrics.OutcomeDropped)
		return false
	}
	if d.limiter != nil && !d.limiter.Allow() {
		d.logger.Warn("notification rate limited", slog.String("correlation_id", event.ID))
		metrics.ObserveNotification("dispatcher", metrics.OutcomeDropped)
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("notification queue full, dropping alert", slog.String("correlation_id", event.ID))
		metrics.ObserveNotification("dispatcher", metrics.OutcomeDropped)
		return false
	}
}

// Stop closes the queue, delivers what is already queued and waits for the worker.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event models.CorrelatedEvent) {
	for _, s := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := s.Send(ctx, event)
		cancel()
		if err != nil {
			d.logger.Error("notification send failed",
				slog.String("sender", s.Name()),
				slog.String("correlation_id", event.ID),
				slog.Any("error", err),
			)
			metrics.ObserveNotification(s.Name(), metrics.OutcomeError)
			continue
		}
		metrics.ObserveNotification(s.Name(), metrics.OutcomeSuccess)
	}
}
