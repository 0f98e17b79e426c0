// Package demo generates plausible telemetry and alarms for local runs.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// Sink receives generated records; ingest.Service satisfies it.
type Sink interface {
	IngestTelemetry(sample models.TelemetrySample) error
	IngestAlarm(alarm models.AlarmRecord) ([]models.CorrelatedEvent, error)
}

// Scenario describes one service/metric pair the seeder exercises.
type Scenario struct {
	Service     string
	Metric      string
	AlarmName   string
	Threshold   float64
	Min, Max    float64
	Description string
}

// DefaultScenarios mirrors a small serverless stack.
var DefaultScenarios = []Scenario{
	{Service: "api-gateway", Metric: "API_Latency", AlarmName: "High Latency Alarm", Threshold: 200, Min: 150, Max: 250, Description: "API latency exceeded threshold"},
	{Service: "orders-service", Metric: "Error_Rate", AlarmName: "Error Rate Alarm", Threshold: 5, Min: 2, Max: 9, Description: "Error rate above 5%"},
	{Service: "payments-service", Metric: "CPU_Utilization", AlarmName: "CPU Pressure Alarm", Threshold: 80, Min: 60, Max: 98, Description: "CPU utilization sustained above 80%"},
	{Service: "inventory-service", Metric: "Memory_Usage", AlarmName: "Memory Pressure Alarm", Threshold: 85, Min: 70, Max: 97, Description: "Memory usage above 85%"},
	{Service: "stream-processor", Metric: "Iterator_Age", AlarmName: "Consumer Lag Alarm", Threshold: 60000, Min: 20000, Max: 90000, Description: "Stream consumer falling behind"},
}

var regions = []string{"us-east-1", "us-west-2", "eu-west-1"}

// Config tunes the seeder.
type Config struct {
	Interval  time.Duration
	Seed      int64
	Scenarios []Scenario
}

// Seeder periodically writes telemetry and alarms into a Sink.
type Seeder struct {
	sink      Sink
	faker     *gofakeit.Faker
	interval  time.Duration
	scenarios []Scenario
	now       func() time.Time
	logger    *slog.Logger
}

// New constructs a Seeder. A zero seed picks a time-based seed.
func New(sink Sink, cfg Config, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	scenarios := cfg.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios
	}
	return &Seeder{
		sink:      sink,
		faker:     gofakeit.New(seed),
		interval:  interval,
		scenarios: scenarios,
		now:       time.Now,
		logger:    logger,
	}
}

// Batch reports what one SeedOnce call wrote.
type Batch struct {
	Telemetry    int
	Alarms       int
	Correlations int
}

// SeedOnce writes one telemetry sample per scenario and an alarm for every
// sample above its threshold, one minute after the sample.
func (s *Seeder) SeedOnce() (Batch, error) {
	var batch Batch
	now := s.now()
	for _, sc := range s.scenarios {
		ts := now.Add(-time.Duration(s.faker.Number(2, 4)) * time.Minute)
		region := s.faker.RandomString(regions)
		value := s.faker.Float64Range(sc.Min, sc.Max)

		sample := models.TelemetrySample{
			ID:          uuid.NewString(),
			ServiceName: sc.Service,
			MetricType:  sc.Metric,
			Value:       value,
			Timestamp:   ts,
			Region:      region,
			Environment: "production",
		}
		if err := s.sink.IngestTelemetry(sample); err != nil {
			return batch, fmt.Errorf("seed telemetry %s/%s: %w", sc.Service, sc.Metric, err)
		}
		batch.Telemetry++

		if value <= sc.Threshold {
			continue
		}
		severity := models.SeverityWarning
		if s.faker.Bool() {
			severity = models.SeverityCritical
		}
		alarm := models.AlarmRecord{
			ID:          uuid.NewString(),
			AlarmName:   sc.AlarmName,
			ServiceName: sc.Service,
			MetricType:  sc.Metric,
			Severity:    severity,
			State:       "ALARM",
			Threshold:   sc.Threshold,
			Value:       value,
			Timestamp:   ts.Add(time.Minute),
			Description: sc.Description,
			Region:      region,
		}
		events, err := s.sink.IngestAlarm(alarm)
		if err != nil {
			return batch, fmt.Errorf("seed alarm %s/%s: %w", sc.Service, sc.Metric, err)
		}
		batch.Alarms++
		batch.Correlations += len(events)
	}
	return batch, nil
}

// Run seeds immediately and then every interval until ctx is cancelled.
func (s *Seeder) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("demo seeder started", slog.Duration("interval", s.interval), slog.Int("scenarios", len(s.scenarios)))
	for {
		batch, err := s.SeedOnce()
		if err != nil {
			s.logger.Warn("demo seeding failed", slog.Any("error", err))
		} else {
			s.logger.Debug("demo batch seeded",
				slog.Int("telemetry", batch.Telemetry),
				slog.Int("alarms", batch.Alarms),
				slog.Int("correlations", batch.Correlations),
			)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("demo seeder stopped")
			return
		case <-ticker.C:
		}
	}
}
