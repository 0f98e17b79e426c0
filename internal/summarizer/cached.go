package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ratipstack/ratip-engine/internal/cache"
	"github.com/ratipstack/ratip-engine/internal/models"
)

// CachingSummarizer memoises successful answers keyed by the query and the
// (alarm, telemetry) pairs it was asked about. Cache failures never fail a call.
type CachingSummarizer struct {
	next   Summarizer
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingSummarizer decorates next. A nil provider disables caching.
func NewCachingSummarizer(next Summarizer, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachingSummarizer {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingSummarizer{next: next, cache: provider, ttl: ttl, logger: logger}
}

// Summarize implements Summarizer.
func (c *CachingSummarizer) Summarize(ctx context.Context, events []models.CorrelatedEvent, query string) (string, error) {
	key := CacheKey(events, query)
	if data, err := c.cache.Get(ctx, key); err == nil {
		c.logger.Debug("summary cache hit", slog.String("key", key))
		return string(data), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("summary cache read failed", slog.Any("error", err))
	}

	text, err := c.next.Summarize(ctx, events, query)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("summary cache write failed", slog.Any("error", err))
	}
	return text, nil
}

// CacheKey hashes the normalised query and the ordered record pairs. Correlation
// ids are excluded since they are regenerated on every run.
func CacheKey(events []models.CorrelatedEvent, query string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	for _, ev := range events {
		h.Write([]byte{0})
		h.Write([]byte(ev.Alarm.ID))
		h.Write([]byte{'|'})
		h.Write([]byte(ev.Telemetry.ID))
	}
	return "summary:" + hex.EncodeToString(h.Sum(nil))
}
