// Package ingest accepts telemetry and alarms, persists them and raises live
// correlation alerts.
package ingest

import (
	"log/slog"

	"github.com/ratipstack/ratip-engine/internal/engine"
	"github.com/ratipstack/ratip-engine/internal/metrics"
	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/store"
	"github.com/ratipstack/ratip-engine/internal/utils"
	"github.com/ratipstack/ratip-engine/internal/window"
)

const (
	kindTelemetry = "telemetry"
	kindAlarm     = "alarm"
)

// Notifier receives live correlation alerts. Implementations must not block.
type Notifier interface {
	Notify(event models.CorrelatedEvent) bool
}

// Service is the single write path into the event store and telemetry window.
type Service struct {
	store    *store.EventStore
	window   *window.TelemetryWindow
	engine   *engine.CorrelationEngine
	notifier Notifier
	logger   *slog.Logger
}

// NewService wires the ingest path. notifier may be nil.
func NewService(st *store.EventStore, win *window.TelemetryWindow, eng *engine.CorrelationEngine, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, window: win, engine: eng, notifier: notifier, logger: logger}
}

// IngestTelemetry validates sample and records it in the store and the window.
func (s *Service) IngestTelemetry(sample models.TelemetrySample) error {
	if err := sample.Validate(); err != nil {
		metrics.ObserveIngest(kindTelemetry, metrics.OutcomeError)
		return utils.NewAppError("ingest.IngestTelemetry", "telemetry rejected", err)
	}
	if err := s.store.PutTelemetry(sample); err != nil {
		metrics.ObserveIngest(kindTelemetry, metrics.OutcomeError)
		return err
	}
	if err := s.window.Append(sample); err != nil {
		metrics.ObserveIngest(kindTelemetry, metrics.OutcomeError)
		return err
	}
	metrics.ObserveIngest(kindTelemetry, metrics.OutcomeSuccess)
	metrics.SetWindowSamples(s.window.Len())
	return nil
}

// IngestAlarm validates and stores alarm, then correlates it against the recent
// telemetry of its service and hands every match to the notifier. It returns the
// live correlations for callers that want them.
func (s *Service) IngestAlarm(alarm models.AlarmRecord) ([]models.CorrelatedEvent, error) {
	if err := alarm.Validate(); err != nil {
		metrics.ObserveIngest(kindAlarm, metrics.OutcomeError)
		return nil, utils.NewAppError("ingest.IngestAlarm", "alarm rejected", err)
	}
	if err := s.store.PutAlarm(alarm); err != nil {
		metrics.ObserveIngest(kindAlarm, metrics.OutcomeError)
		return nil, err
	}
	metrics.ObserveIngest(kindAlarm, metrics.OutcomeSuccess)

	recent := s.window.SnapshotByService(alarm.ServiceName)
	events, err := s.engine.Correlate([]models.AlarmRecord{alarm}, recent)
	if err != nil {
		// window contents were validated on append
		s.logger.Error("live correlation failed", slog.String("alarm_id", alarm.ID), slog.Any("error", err))
		return nil, nil
	}
	metrics.AddCorrelations(len(events))

	if len(events) > 0 {
		s.logger.Info("live correlations found",
			slog.String("alarm_id", alarm.ID),
			slog.String("service", alarm.ServiceName),
			slog.Int("count", len(events)),
		)
	}
	if s.notifier != nil {
		for _, ev := range events {
			s.notifier.Notify(ev)
		}
	}
	return events, nil
}

// WindowSnapshot exposes the recent telemetry, optionally for one service.
func (s *Service) WindowSnapshot(service string) []models.TelemetrySample {
	if service == "" {
		return s.window.Snapshot()
	}
	return s.window.SnapshotByService(service)
}
