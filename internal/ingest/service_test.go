package ingest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ratipstack/ratip-engine/internal/engine"
	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/store"
	"github.com/ratipstack/ratip-engine/internal/window"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu     sync.Mutex
	events []models.CorrelatedEvent
}

func (c *captureNotifier) Notify(ev models.CorrelatedEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestService(n Notifier) (*Service, *store.EventStore) {
	st := store.New()
	now := func() time.Time { return baseTime.Add(time.Minute) }
	win := window.New(15*time.Minute, window.WithClock(now))
	eng := engine.NewCorrelationEngine(nil, nil, engine.WithClock(now))
	return NewService(st, win, eng, n, nil), st
}

func sample(id, service, metric string, ts time.Time) models.TelemetrySample {
	return models.TelemetrySample{ID: id, ServiceName: service, MetricType: metric, Value: 300, Timestamp: ts}
}

func alarm(id, service, metric string, ts time.Time) models.AlarmRecord {
	return models.AlarmRecord{
		ID: id, AlarmName: "High" + metric, ServiceName: service, MetricType: metric,
		Severity: models.SeverityCritical, Threshold: 200, Value: 310, Timestamp: ts,
	}
}

func TestIngestTelemetryWritesStoreAndWindow(t *testing.T) {
	svc, st := newTestService(nil)
	if err := svc.IngestTelemetry(sample("t1", "checkout", "Latency", baseTime)); err != nil {
		t.Fatalf("IngestTelemetry: %v", err)
	}
	if len(st.AllTelemetry()) != 1 {
		t.Fatalf("expected sample in store")
	}
	if got := svc.WindowSnapshot("checkout"); len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected sample in window, got %+v", got)
	}
	if got := svc.WindowSnapshot(""); len(got) != 1 {
		t.Fatalf("expected full snapshot of 1, got %d", len(got))
	}
}

func TestIngestRejectsInvalidRecords(t *testing.T) {
	svc, st := newTestService(nil)
	err := svc.IngestTelemetry(models.TelemetrySample{ID: "t1", Timestamp: baseTime})
	if !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	if _, err := svc.IngestAlarm(models.AlarmRecord{ID: "a1"}); !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for alarm, got %v", err)
	}
	if len(st.AllTelemetry()) != 0 || len(st.AllAlarms()) != 0 {
		t.Fatalf("invalid records must not be stored")
	}
}

func TestIngestAlarmCorrelatesAgainstWindow(t *testing.T) {
	n := &captureNotifier{}
	svc, st := newTestService(n)
	mustIngest(t, svc, sample("t1", "checkout", "Latency", baseTime.Add(-time.Minute)))
	mustIngest(t, svc, sample("t2", "checkout", "CPU", baseTime))
	mustIngest(t, svc, sample("t3", "payments", "Latency", baseTime))

	events, err := svc.IngestAlarm(alarm("a1", "checkout", "Latency", baseTime))
	if err != nil {
		t.Fatalf("IngestAlarm: %v", err)
	}
	if len(events) != 1 || events[0].Telemetry.ID != "t1" {
		t.Fatalf("expected one correlation with t1, got %+v", events)
	}
	if events[0].ConfidenceScore != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", events[0].ConfidenceScore)
	}
	if n.count() != 1 {
		t.Fatalf("expected notifier to receive one event, got %d", n.count())
	}
	if len(st.AllAlarms()) != 1 {
		t.Fatalf("expected alarm in store")
	}
}

func TestIngestAlarmWithoutTelemetry(t *testing.T) {
	n := &captureNotifier{}
	svc, _ := newTestService(n)
	events, err := svc.IngestAlarm(alarm("a1", "checkout", "Latency", baseTime))
	if err != nil {
		t.Fatalf("IngestAlarm: %v", err)
	}
	if len(events) != 0 || n.count() != 0 {
		t.Fatalf("expected no correlations, got %d events and %d notifications", len(events), n.count())
	}
}

func mustIngest(t *testing.T, svc *Service, s models.TelemetrySample) {
	t.Helper()
	if err := svc.IngestTelemetry(s); err != nil {
		t.Fatalf("IngestTelemetry(%s): %v", s.ID, err)
	}
}
