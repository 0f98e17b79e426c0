package demo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ratipstack/ratip-engine/internal/engine"
	"github.com/ratipstack/ratip-engine/internal/ingest"
	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/store"
	"github.com/ratipstack/ratip-engine/internal/window"
)

type recordingSink struct {
	telemetry []models.TelemetrySample
	alarms    []models.AlarmRecord
	err       error
}

func (r *recordingSink) IngestTelemetry(s models.TelemetrySample) error {
	if r.err != nil {
		return r.err
	}
	r.telemetry = append(r.telemetry, s)
	return nil
}

func (r *recordingSink) IngestAlarm(a models.AlarmRecord) ([]models.CorrelatedEvent, error) {
	r.alarms = append(r.alarms, a)
	return nil, nil
}

func TestSeedOnceGeneratesValidRecords(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, Config{Seed: 42}, nil)
	batch, err := s.SeedOnce()
	if err != nil {
		t.Fatalf("SeedOnce: %v", err)
	}
	if batch.Telemetry != len(DefaultScenarios) || len(sink.telemetry) != len(DefaultScenarios) {
		t.Fatalf("expected one sample per scenario, got %+v", batch)
	}
	for _, sample := range sink.telemetry {
		if err := sample.Validate(); err != nil {
			t.Fatalf("invalid sample: %v", err)
		}
	}
	for _, a := range sink.alarms {
		if err := a.Validate(); err != nil {
			t.Fatalf("invalid alarm: %v", err)
		}
		if a.Value <= a.Threshold {
			t.Fatalf("alarm raised below threshold: %+v", a)
		}
	}
	if batch.Alarms != len(sink.alarms) {
		t.Fatalf("batch alarm count mismatch: %d vs %d", batch.Alarms, len(sink.alarms))
	}
}

func TestSeedOnceAlarmsCorrelateThroughIngest(t *testing.T) {
	st := store.New()
	svc := ingest.NewService(st, window.New(15*time.Minute), engine.NewCorrelationEngine(nil, nil), nil, nil)
	scenario := Scenario{Service: "api-gateway", Metric: "API_Latency", AlarmName: "High Latency Alarm", Threshold: 200, Min: 300, Max: 400}
	s := New(svc, Config{Seed: 7, Scenarios: []Scenario{scenario}}, nil)

	batch, err := s.SeedOnce()
	if err != nil {
		t.Fatalf("SeedOnce: %v", err)
	}
	if batch.Alarms != 1 || batch.Correlations != 1 {
		t.Fatalf("expected an alarm correlating with its sample, got %+v", batch)
	}
	if len(st.AllTelemetry()) != 1 || len(st.AllAlarms()) != 1 {
		t.Fatalf("expected seeded records in the store")
	}
}

func TestSeedOncePropagatesSinkErrors(t *testing.T) {
	s := New(&recordingSink{err: errors.New("closed")}, Config{Seed: 1}, nil)
	if _, err := s.SeedOnce(); err == nil {
		t.Fatalf("expected sink error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, Config{Seed: 3, Interval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
