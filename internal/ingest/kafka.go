package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// KafkaConfig configures the optional Kafka ingestion path.
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	TelemetryTopic string
	AlarmTopic     string
	MaxWait        time.Duration
	CommitInterval time.Duration
}

// messageReader is the subset of *kafka.Reader the consumer relies on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds JSON telemetry and alarm topics into a Service. Messages
// that fail to decode or validate are logged and committed.
type KafkaConsumer struct {
	service *Service
	readers map[string]messageReader
	logger  *slog.Logger
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewKafkaConsumer builds one reader per configured topic.
func NewKafkaConsumer(cfg KafkaConfig, service *Service, logger *slog.Logger) (*KafkaConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka groupID cannot be empty")
	}
	if cfg.TelemetryTopic == "" && cfg.AlarmTopic == "" {
		return nil, fmt.Errorf("at least one kafka topic is required")
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}

	readers := make(map[string]messageReader)
	for kind, topic := range map[string]string{kindTelemetry: cfg.TelemetryTopic, kindAlarm: cfg.AlarmTopic} {
		if topic == "" {
			continue
		}
		readers[kind] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        cfg.MaxWait,
			CommitInterval: cfg.CommitInterval,
			StartOffset:    kafka.FirstOffset,
		})
		logger.Info("kafka consumer configured",
			slog.String("kind", kind),
			slog.String("topic", topic),
			slog.String("group_id", cfg.GroupID),
		)
	}
	return newKafkaConsumer(service, readers, logger), nil
}

func newKafkaConsumer(service *Service, readers map[string]messageReader, logger *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{service: service, readers: readers, logger: logger}
}

// Run consumes every topic until ctx is cancelled or any topic fails; the
// first failure stops the remaining readers and is returned.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(c.readers))
	for kind, r := range c.readers {
		wg.Add(1)
		go func(kind string, r messageReader) {
			defer wg.Done()
			if err := c.consume(ctx, kind, r); err != nil {
				errCh <- err
				cancel()
			}
		}(kind, r)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}

func (c *KafkaConsumer) consume(ctx context.Context, kind string, r messageReader) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch %s message: %w", kind, err)
		}

		if err := c.handle(kind, msg.Value); err != nil {
			c.logger.Warn("discarding kafka message",
				slog.String("kind", kind),
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err),
			)
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit %s message: %w", kind, err)
		}
	}
}

func (c *KafkaConsumer) handle(kind string, payload []byte) error {
	switch kind {
	case kindTelemetry:
		var sample models.TelemetrySample
		if err := json.Unmarshal(payload, &sample); err != nil {
			return fmt.Errorf("unmarshal telemetry: %w", err)
		}
		return c.service.IngestTelemetry(sample)
	case kindAlarm:
		var alarm models.AlarmRecord
		if err := json.Unmarshal(payload, &alarm); err != nil {
			return fmt.Errorf("unmarshal alarm: %w", err)
		}
		_, err := c.service.IngestAlarm(alarm)
		return err
	default:
		return fmt.Errorf("unknown message kind %q", kind)
	}
}

// Close closes every reader.
func (c *KafkaConsumer) Close() error {
	var errs []error
	for kind, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s reader: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}
