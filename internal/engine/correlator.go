package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

// Join and scoring constants. Confidence arithmetic is done in hundredths so the
// maximum bonus sum lands exactly on 1.0.
const (
	MaxSkewMinutes   = 5
	CloseSkewMinutes = 2

	baseConfidencePct = 70
	criticalBonusPct  = 20
	proximityBonusPct = 10
	maxConfidencePct  = 100
)

// CorrelationEngine joins alarms against telemetry samples that share a service
// and metric and were observed within a few minutes of each other.
type CorrelationEngine struct {
	logger  *slog.Logger
	actions *ActionPolicy
	now     func() time.Time
	newID   func() string
}

// Option customises a CorrelationEngine.
type Option func(*CorrelationEngine)

// WithClock overrides the clock used for CorrelationTimestamp.
func WithClock(now func() time.Time) Option {
	return func(e *CorrelationEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides correlation id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *CorrelationEngine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewCorrelationEngine constructs an engine. A nil policy selects the built-in actions.
func NewCorrelationEngine(logger *slog.Logger, actions *ActionPolicy, opts ...Option) *CorrelationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if actions == nil {
		actions = DefaultActionPolicy()
	}
	e := &CorrelationEngine{
		logger:  logger,
		actions: actions,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Correlate evaluates every (alarm, telemetry) pair and emits one event per match.
// Overlapping matches are not deduplicated: an alarm matching three samples
// yields three events.
func (e *CorrelationEngine) Correlate(alarms []models.AlarmRecord, telemetry []models.TelemetrySample) ([]models.CorrelatedEvent, error) {
	for _, a := range alarms {
		if err := a.Validate(); err != nil {
			return nil, utils.NewAppError("engine.Correlate", "malformed alarm", err)
		}
	}
	for _, t := range telemetry {
		if err := t.Validate(); err != nil {
			return nil, utils.NewAppError("engine.Correlate", "malformed telemetry", err)
		}
	}

	correlations := make([]models.CorrelatedEvent, 0)
	for _, alarm := range alarms {
		for _, sample := range telemetry {
			if !Matches(alarm, sample) {
				continue
			}
			event := e.buildCorrelation(alarm, sample)
			correlations = append(correlations, event)
			e.logger.Debug("created correlation",
				slog.String("description", event.Description),
				slog.Float64("confidence", event.ConfidenceScore))
		}
	}
	return correlations, nil
}

// Matches reports whether alarm and sample share service and metric and lie
// within MaxSkewMinutes whole minutes of each other.
func Matches(alarm models.AlarmRecord, sample models.TelemetrySample) bool {
	if alarm.ServiceName != sample.ServiceName {
		return false
	}
	if alarm.MetricType != sample.MetricType {
		return false
	}
	return utils.AbsWholeMinutes(sample.Timestamp, alarm.Timestamp) <= MaxSkewMinutes
}

// Confidence scores a matched pair: 0.70 base, +0.20 for CRITICAL severity,
// +0.10 when within CloseSkewMinutes, capped at 1.0.
func Confidence(alarm models.AlarmRecord, sample models.TelemetrySample) float64 {
	pct := baseConfidencePct
	if alarm.Severity == models.SeverityCritical {
		pct += criticalBonusPct
	}
	if utils.AbsWholeMinutes(sample.Timestamp, alarm.Timestamp) <= CloseSkewMinutes {
		pct += proximityBonusPct
	}
	if pct > maxConfidencePct {
		pct = maxConfidencePct
	}
	return clamp(float64(pct)/100, 0, 1)
}

// RootCause names the service, metric, configured threshold and observed value.
func RootCause(alarm models.AlarmRecord, sample models.TelemetrySample) string {
	return fmt.Sprintf("Service %s experienced %s exceeding threshold of %.2f with value %.2f",
		alarm.ServiceName, alarm.MetricType, alarm.Threshold, sample.Value)
}

func (e *CorrelationEngine) buildCorrelation(alarm models.AlarmRecord, sample models.TelemetrySample) models.CorrelatedEvent {
	return models.CorrelatedEvent{
		ID:                   e.newID(),
		CorrelationType:      models.CorrelationTypeMetricAlarm,
		ConfidenceScore:      Confidence(alarm, sample),
		Description:          fmt.Sprintf("%s metric anomaly triggered %s alarm", sample.MetricType, alarm.AlarmName),
		CorrelationTimestamp: e.now().UTC(),
		Alarm:                alarm,
		Telemetry:            sample,
		RootCause:            RootCause(alarm, sample),
		RecommendedAction:    e.actions.Recommend(alarm),
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
