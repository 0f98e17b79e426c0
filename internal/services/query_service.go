// Package services hosts the query orchestrator that answers operator questions.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ratipstack/ratip-engine/internal/engine"
	"github.com/ratipstack/ratip-engine/internal/metrics"
	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/store"
	"github.com/ratipstack/ratip-engine/internal/summarizer"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

// EmptyQueryMessage is returned for blank operator questions.
const EmptyQueryMessage = "Query cannot be empty"

const (
	defaultRange          = 2 * time.Hour
	defaultSummaryTimeout = 30 * time.Second
	errorAnswerPrefix     = "Error processing your query: "
)

type rangeRule struct {
	keywords []string
	duration time.Duration
}

// First match wins. "24 hours" contains "hour" and therefore resolves to one hour.
var rangeRules = []rangeRule{
	{keywords: []string{"hour"}, duration: time.Hour},
	{keywords: []string{"24 hours", "day"}, duration: 24 * time.Hour},
	{keywords: []string{"week"}, duration: 7 * 24 * time.Hour},
}

// ExtractTimeRange maps a free-text query to a lookback duration.
func ExtractTimeRange(query string) time.Duration {
	q := strings.ToLower(query)
	for _, rule := range rangeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.duration
			}
		}
	}
	return defaultRange
}

// QueryResult is the outcome of Process. Failed results carry a user-facing
// error string in Answer.
type QueryResult struct {
	Query     string
	Answer    string
	Source    summarizer.Source
	Events    []models.CorrelatedEvent
	Range     models.TimeRange
	Timestamp time.Time
	Failed    bool
	// Invalid marks input validation failures.
	Invalid bool
}

// Option customises a QueryService.
type Option func(*QueryService)

// WithClock overrides the clock used to anchor query intervals.
func WithClock(now func() time.Time) Option {
	return func(s *QueryService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSummaryTimeout bounds each summarizer call.
func WithSummaryTimeout(d time.Duration) Option {
	return func(s *QueryService) {
		if d > 0 {
			s.summaryTimeout = d
		}
	}
}

// QueryService orchestrates retrieval, correlation and summarization.
type QueryService struct {
	logger         *slog.Logger
	store          *store.EventStore
	engine         *engine.CorrelationEngine
	summarizer     summarizer.Summarizer
	summaryTimeout time.Duration
	now            func() time.Time
	latencies      *utils.LatencyTracker
}

// NewQueryService constructs the orchestrator. A nil summarizer always yields
// the fallback answer.
func NewQueryService(logger *slog.Logger, st *store.EventStore, eng *engine.CorrelationEngine, sum summarizer.Summarizer, opts ...Option) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &QueryService{
		logger:         logger,
		store:          st,
		engine:         eng,
		summarizer:     sum,
		summaryTimeout: defaultSummaryTimeout,
		now:            time.Now,
		latencies:      utils.NewLatencyTracker(1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process answers query. It never panics and never returns an error: failures
// are reported through QueryResult.Failed.
func (s *QueryService) Process(ctx context.Context, query string) (result QueryResult) {
	start := time.Now()
	result = QueryResult{Query: query, Timestamp: s.now()}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query processing panicked", slog.Any("panic", r))
			result = s.failed(query, fmt.Errorf("%v", r))
		}
		outcome := metrics.OutcomeSuccess
		if result.Failed {
			outcome = metrics.OutcomeError
		}
		s.observe(time.Since(start), outcome)
	}()

	if strings.TrimSpace(query) == "" {
		result.Failed, result.Invalid = true, true
		result.Answer = EmptyQueryMessage
		return result
	}

	lookback := ExtractTimeRange(query)
	end := s.now()
	interval := models.TimeRange{Start: end.Add(-lookback), End: end}

	events, err := s.correlate(ctx, interval)
	if err != nil {
		s.logger.Error("query processing failed", slog.String("query", query), slog.Any("error", err))
		return s.failed(query, err)
	}

	summary := s.summarize(ctx, events, query)
	metrics.ObserveSummary(string(summary.Source))

	result.Answer = summary.Text
	result.Source = summary.Source
	result.Events = events
	result.Range = interval
	s.logger.Info("query processed",
		slog.String("query", query),
		slog.Duration("range", lookback),
		slog.Int("correlations", len(events)),
		slog.String("source", string(summary.Source)),
	)
	return result
}

func (s *QueryService) correlate(ctx context.Context, interval models.TimeRange) ([]models.CorrelatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alarms := s.store.AlarmsBetween(interval.Start, interval.End)

	type pair struct{ service, metric string }
	seen := make(map[pair]struct{})
	var telemetry []models.TelemetrySample
	for _, a := range alarms {
		key := pair{a.ServiceName, a.MetricType}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		telemetry = append(telemetry, s.store.QueryTelemetry(a.ServiceName, a.MetricType, interval.Start, interval.End)...)
	}

	events, err := s.engine.Correlate(alarms, telemetry)
	if err != nil {
		return nil, fmt.Errorf("correlate: %w", err)
	}
	metrics.AddCorrelations(len(events))
	return events, nil
}

// summarize decides between the external answer and the local fallback.
func (s *QueryService) summarize(ctx context.Context, events []models.CorrelatedEvent, query string) summarizer.Summary {
	if s.summarizer == nil {
		return summarizer.Local(events, query)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	text, err := s.summarizer.Summarize(callCtx, events, query)
	switch {
	case errors.Is(err, summarizer.ErrNotConfigured):
		s.logger.Debug("summarizer not configured, using fallback")
		return summarizer.Local(events, query)
	case err != nil:
		s.logger.Warn("summarizer failed, using fallback", slog.Any("error", err))
		return summarizer.Local(events, query)
	case strings.TrimSpace(text) == "":
		s.logger.Warn("summarizer returned empty answer, using fallback")
		return summarizer.Local(events, query)
	}
	return summarizer.External(text)
}

func (s *QueryService) failed(query string, err error) QueryResult {
	return QueryResult{
		Query:     query,
		Answer:    errorAnswerPrefix + utils.UserMessage(err),
		Timestamp: s.now(),
		Failed:    true,
	}
}

func (s *QueryService) observe(d time.Duration, outcome string) {
	metrics.ObserveQuery(d, outcome)
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("query latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
}

// LatencyP95 returns the current p95 query latency.
func (s *QueryService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
