package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *CorrelationEngine {
	return NewCorrelationEngine(nil, nil, WithClock(func() time.Time { return t0.Add(time.Hour) }))
}

func testAlarm(id, service, metric, severity string, ts time.Time) models.AlarmRecord {
	return models.AlarmRecord{
		ID:          id,
		AlarmName:   "High " + metric,
		ServiceName: service,
		MetricType:  metric,
		Severity:    severity,
		State:       "ALARM",
		Threshold:   200,
		Value:       310,
		Timestamp:   ts,
	}
}

func testSample(id, service, metric string, ts time.Time) models.TelemetrySample {
	return models.TelemetrySample{ID: id, ServiceName: service, MetricType: metric, Value: 310, Timestamp: ts}
}

func TestCorrelateEndToEndScenario(t *testing.T) {
	engine := newTestEngine()
	alarm := testAlarm("a1", "api-gateway", "API_Latency", models.SeverityCritical, t0)
	sample := testSample("t1", "api-gateway", "API_Latency", t0.Add(-time.Minute))

	events, err := engine.Correlate([]models.AlarmRecord{alarm}, []models.TelemetrySample{sample})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one correlation, got %d", len(events))
	}
	ev := events[0]
	if ev.ConfidenceScore != 1.0 {
		t.Fatalf("expected confidence exactly 1.0, got %v", ev.ConfidenceScore)
	}
	if !strings.Contains(ev.RootCause, "threshold of 200.00") || !strings.Contains(ev.RootCause, "value 310.00") {
		t.Fatalf("root cause missing threshold/value: %q", ev.RootCause)
	}
	if ev.RecommendedAction != ActionLatency {
		t.Fatalf("expected latency action, got %q", ev.RecommendedAction)
	}
	if ev.CorrelationType != models.CorrelationTypeMetricAlarm {
		t.Fatalf("unexpected type %q", ev.CorrelationType)
	}
	if ev.Description != "API_Latency metric anomaly triggered High API_Latency alarm" {
		t.Fatalf("unexpected description %q", ev.Description)
	}
	if !ev.CorrelationTimestamp.Equal(t0.Add(time.Hour)) {
		t.Fatalf("correlation timestamp must come from the clock, got %v", ev.CorrelationTimestamp)
	}
	if ev.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestConfidenceScoring(t *testing.T) {
	cases := []struct {
		name     string
		severity string
		skew     time.Duration
		want     float64
	}{
		{"warning far", models.SeverityWarning, 4 * time.Minute, 0.7},
		{"warning close", models.SeverityWarning, 2*time.Minute + 59*time.Second, 0.8},
		{"critical far", models.SeverityCritical, -5 * time.Minute, 0.9},
		{"critical close", models.SeverityCritical, 30 * time.Second, 1.0},
		{"unknown severity", "INFO", 3 * time.Minute, 0.7},
	}
	for _, tc := range cases {
		a := testAlarm("a", "svc", "CPU", tc.severity, t0)
		s := testSample("s", "svc", "CPU", t0.Add(tc.skew))
		if got := Confidence(a, s); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMatchesPredicate(t *testing.T) {
	a := testAlarm("a", "svc", "API_Latency", models.SeverityWarning, t0)
	cases := []struct {
		name   string
		sample models.TelemetrySample
		want   bool
	}{
		{"exact", testSample("s", "svc", "API_Latency", t0), true},
		{"five minutes", testSample("s", "svc", "API_Latency", t0.Add(-5*time.Minute)), true},
		{"partial sixth minute", testSample("s", "svc", "API_Latency", t0.Add(5*time.Minute+59*time.Second)), true},
		{"six minutes", testSample("s", "svc", "API_Latency", t0.Add(6*time.Minute)), false},
		{"other service", testSample("s", "other", "API_Latency", t0), false},
		{"other metric", testSample("s", "svc", "CPU", t0), false},
		{"centuries apart", testSample("s", "svc", "API_Latency", time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)), false},
	}
	for _, tc := range cases {
		if got := Matches(a, tc.sample); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCorrelateRejectsCenturiesOfSkew(t *testing.T) {
	engine := newTestEngine()
	alarm := testAlarm("a", "svc", "API_Latency", models.SeverityWarning, time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC))
	sample := testSample("s", "svc", "API_Latency", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if Matches(alarm, sample) {
		t.Fatalf("expected no match across centuries")
	}
	if got := Confidence(alarm, sample); got != 0.7 {
		t.Fatalf("expected no proximity bonus, got %v", got)
	}
	events, err := engine.Correlate([]models.AlarmRecord{alarm}, []models.TelemetrySample{sample})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no correlations, got %d", len(events))
	}
}

func TestCorrelateEmitsEveryMatchingPair(t *testing.T) {
	engine := newTestEngine()
	services := []string{"api-gateway", "payments"}
	metrics := []string{"API_Latency", "CPU_Utilization"}

	var alarms []models.AlarmRecord
	var samples []models.TelemetrySample
	for i := 0; i < 6; i++ {
		svc, metric := services[i%2], metrics[(i/2)%2]
		alarms = append(alarms, testAlarm(fmt.Sprintf("a%d", i), svc, metric, models.SeverityWarning, t0.Add(time.Duration(i)*3*time.Minute)))
	}
	for i := 0; i < 20; i++ {
		svc, metric := services[i%2], metrics[(i/3)%2]
		samples = append(samples, testSample(fmt.Sprintf("t%d", i), svc, metric, t0.Add(time.Duration(i)*90*time.Second)))
	}

	expected := 0
	for _, a := range alarms {
		for _, s := range samples {
			if Matches(a, s) {
				expected++
			}
		}
	}
	if expected == 0 {
		t.Fatalf("fixture produced no matching pairs")
	}

	events, err := engine.Correlate(alarms, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != expected {
		t.Fatalf("expected %d correlations, got %d", expected, len(events))
	}

	seenIDs := make(map[string]struct{})
	for _, ev := range events {
		if ev.Alarm.ServiceName != ev.Telemetry.ServiceName || ev.Alarm.MetricType != ev.Telemetry.MetricType {
			t.Fatalf("join produced mismatched pair: %+v", ev)
		}
		if utils.AbsWholeMinutes(ev.Alarm.Timestamp, ev.Telemetry.Timestamp) > MaxSkewMinutes {
			t.Fatalf("join produced distant pair: %+v", ev)
		}
		if ev.ConfidenceScore < 0.7 || ev.ConfidenceScore > 1.0 {
			t.Fatalf("confidence out of bounds: %v", ev.ConfidenceScore)
		}
		if _, dup := seenIDs[ev.ID]; dup {
			t.Fatalf("duplicate correlation id %s", ev.ID)
		}
		seenIDs[ev.ID] = struct{}{}
	}
}

func TestCorrelateDoesNotDeduplicate(t *testing.T) {
	engine := newTestEngine()
	alarm := testAlarm("a", "svc", "API_Latency", models.SeverityWarning, t0)
	samples := []models.TelemetrySample{
		testSample("t1", "svc", "API_Latency", t0.Add(-time.Minute)),
		testSample("t2", "svc", "API_Latency", t0),
		testSample("t3", "svc", "API_Latency", t0.Add(4*time.Minute)),
	}
	events, err := engine.Correlate([]models.AlarmRecord{alarm}, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected three independent correlations, got %d", len(events))
	}
}

func TestCorrelateEmptyInputs(t *testing.T) {
	engine := newTestEngine()
	alarm := testAlarm("a", "svc", "CPU", models.SeverityWarning, t0)
	sample := testSample("t", "svc", "CPU", t0)

	for name, run := range map[string]func() ([]models.CorrelatedEvent, error){
		"no alarms": func() ([]models.CorrelatedEvent, error) {
			return engine.Correlate(nil, []models.TelemetrySample{sample})
		},
		"no telemetry": func() ([]models.CorrelatedEvent, error) { return engine.Correlate([]models.AlarmRecord{alarm}, nil) },
		"both empty":   func() ([]models.CorrelatedEvent, error) { return engine.Correlate(nil, nil) },
	} {
		events, err := run()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if events == nil || len(events) != 0 {
			t.Fatalf("%s: expected empty non-nil result, got %#v", name, events)
		}
	}
}

func TestCorrelateRejectsMalformedInput(t *testing.T) {
	engine := newTestEngine()
	good := testAlarm("a", "svc", "CPU", models.SeverityWarning, t0)
	badAlarm := good
	badAlarm.Severity = ""
	if _, err := engine.Correlate([]models.AlarmRecord{badAlarm}, nil); !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("expected invalid alarm error, got %v", err)
	}

	badSample := testSample("", "svc", "CPU", t0)
	if _, err := engine.Correlate([]models.AlarmRecord{good}, []models.TelemetrySample{badSample}); !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("expected invalid telemetry error, got %v", err)
	}
}

func TestCorrelateUsesInjectedIDs(t *testing.T) {
	n := 0
	engine := NewCorrelationEngine(nil, nil, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("corr-%d", n)
	}))
	a := testAlarm("a", "svc", "CPU", models.SeverityWarning, t0)
	events, err := engine.Correlate([]models.AlarmRecord{a}, []models.TelemetrySample{testSample("t", "svc", "CPU", t0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events[0].ID != "corr-1" {
		t.Fatalf("unexpected id %q", events[0].ID)
	}
	if events[0].RecommendedAction != ActionCapacity {
		t.Fatalf("unexpected action %q", events[0].RecommendedAction)
	}
}
