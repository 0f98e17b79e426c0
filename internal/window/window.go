// Package window keeps a trailing, time-bounded view of recent telemetry.
package window

import (
	"sync"
	"time"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

// DefaultSize is the trailing interval retained when no size is configured.
const DefaultSize = 15 * time.Minute

// TelemetryWindow is a concurrency-safe append log of telemetry samples. Samples
// whose timestamp is strictly before now-size are evicted lazily, on every read
// and every write; there is no background sweeper.
type TelemetryWindow struct {
	mu      sync.Mutex
	samples []models.TelemetrySample
	size    time.Duration
	now     func() time.Time
}

// Option customises a TelemetryWindow.
type Option func(*TelemetryWindow)

// WithClock overrides the wall clock used for eviction.
func WithClock(now func() time.Time) Option {
	return func(w *TelemetryWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// New constructs a window retaining the trailing size interval.
func New(size time.Duration, opts ...Option) *TelemetryWindow {
	if size <= 0 {
		size = DefaultSize
	}
	w := &TelemetryWindow{size: size, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Size returns the retention interval.
func (w *TelemetryWindow) Size() time.Duration {
	return w.size
}

// Append adds sample and evicts stale entries.
func (w *TelemetryWindow) Append(sample models.TelemetrySample) error {
	if err := sample.Validate(); err != nil {
		return utils.NewAppError("window.Append", "telemetry rejected", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample)
	w.evictLocked()
	return nil
}

// Snapshot evicts stale entries and returns a copy of everything left.
func (w *TelemetryWindow) Snapshot() []models.TelemetrySample {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()
	return append(make([]models.TelemetrySample, 0, len(w.samples)), w.samples...)
}

// SnapshotByService is Snapshot restricted to one service.
func (w *TelemetryWindow) SnapshotByService(service string) []models.TelemetrySample {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()

	out := make([]models.TelemetrySample, 0)
	for _, s := range w.samples {
		if s.ServiceName == service {
			out = append(out, s)
		}
	}
	return out
}

// Len evicts stale entries and reports how many samples remain.
func (w *TelemetryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()
	return len(w.samples)
}

// evictLocked filters in place. Producers may append out of timestamp order, so
// stale entries are not assumed to form a prefix.
func (w *TelemetryWindow) evictLocked() {
	cutoff := w.now().Add(-w.size)
	kept := w.samples[:0]
	for _, s := range w.samples {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	// Zero the tail so evicted samples can be collected.
	for i := len(kept); i < len(w.samples); i++ {
		w.samples[i] = models.TelemetrySample{}
	}
	w.samples = kept
}
