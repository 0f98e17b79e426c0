// Package store holds the canonical telemetry and alarm records keyed by id.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

// EventStore is an in-memory keyed store for telemetry and alarms. Writes are
// last-write-wins per id. Query results carry no ordering guarantee.
type EventStore struct {
	telemetryMu sync.RWMutex
	telemetry   map[string]models.TelemetrySample

	alarmsMu sync.RWMutex
	alarms   map[string]models.AlarmRecord
}

// New returns an empty EventStore.
func New() *EventStore {
	return &EventStore{
		telemetry: make(map[string]models.TelemetrySample),
		alarms:    make(map[string]models.AlarmRecord),
	}
}

// PutTelemetry inserts or overwrites sample by id.
func (s *EventStore) PutTelemetry(sample models.TelemetrySample) error {
	if sample.ID == "" {
		return utils.NewAppError("store.PutTelemetry", "telemetry rejected", fmt.Errorf("%w: telemetry id is required", models.ErrInvalidRecord))
	}
	s.telemetryMu.Lock()
	s.telemetry[sample.ID] = sample
	s.telemetryMu.Unlock()
	return nil
}

// PutAlarm inserts or overwrites alarm by id.
func (s *EventStore) PutAlarm(alarm models.AlarmRecord) error {
	if alarm.ID == "" {
		return utils.NewAppError("store.PutAlarm", "alarm rejected", fmt.Errorf("%w: alarm id is required", models.ErrInvalidRecord))
	}
	s.alarmsMu.Lock()
	s.alarms[alarm.ID] = alarm
	s.alarmsMu.Unlock()
	return nil
}

// QueryTelemetry returns samples for service and metric with start < timestamp < end.
func (s *EventStore) QueryTelemetry(service, metric string, start, end time.Time) []models.TelemetrySample {
	s.telemetryMu.RLock()
	defer s.telemetryMu.RUnlock()

	out := make([]models.TelemetrySample, 0)
	for _, t := range s.telemetry {
		if t.ServiceName == service && t.MetricType == metric && within(t.Timestamp, start, end) {
			out = append(out, t)
		}
	}
	return out
}

// QueryAlarms returns alarms for service with start < timestamp < end. An empty
// severity matches any severity.
func (s *EventStore) QueryAlarms(service, severity string, start, end time.Time) []models.AlarmRecord {
	s.alarmsMu.RLock()
	defer s.alarmsMu.RUnlock()

	out := make([]models.AlarmRecord, 0)
	for _, a := range s.alarms {
		if a.ServiceName != service {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		if within(a.Timestamp, start, end) {
			out = append(out, a)
		}
	}
	return out
}

// AlarmsBetween returns alarms of every service with start < timestamp < end.
func (s *EventStore) AlarmsBetween(start, end time.Time) []models.AlarmRecord {
	s.alarmsMu.RLock()
	defer s.alarmsMu.RUnlock()

	out := make([]models.AlarmRecord, 0)
	for _, a := range s.alarms {
		if within(a.Timestamp, start, end) {
			out = append(out, a)
		}
	}
	return out
}

// AllTelemetry returns every stored sample.
func (s *EventStore) AllTelemetry() []models.TelemetrySample {
	s.telemetryMu.RLock()
	defer s.telemetryMu.RUnlock()
	out := make([]models.TelemetrySample, 0, len(s.telemetry))
	for _, t := range s.telemetry {
		out = append(out, t)
	}
	return out
}

// AllAlarms returns every stored alarm.
func (s *EventStore) AllAlarms() []models.AlarmRecord {
	s.alarmsMu.RLock()
	defer s.alarmsMu.RUnlock()
	out := make([]models.AlarmRecord, 0, len(s.alarms))
	for _, a := range s.alarms {
		out = append(out, a)
	}
	return out
}

// within is exclusive on both ends; callers rely on boundary timestamps being dropped.
func within(ts, start, end time.Time) bool {
	return ts.After(start) && ts.Before(end)
}
