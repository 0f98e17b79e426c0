package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// DefaultNATSSubject is used when no subject is configured.
const DefaultNATSSubject = "ratip.correlations.alert"

// Publisher is the subset of *nats.Conn used by NATSSender.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NATSSender publishes alerts as JSON to a NATS subject.
type NATSSender struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

// DialNATS connects to NATS and returns a sender that owns the connection.
func DialNATS(cfg NATSConfig, logger *slog.Logger) (*NATSSender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "ratip-engine"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	s := NewNATSSender(conn, cfg.Subject)
	s.conn = conn
	return s, nil
}

// NewNATSSender wraps an existing publisher.
func NewNATSSender(pub Publisher, subject string) *NATSSender {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSender{pub: pub, subject: subject}
}

func (s *NATSSender) Name() string { return "nats" }

func (s *NATSSender) Send(ctx context.Context, event models.CorrelatedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	return nil
}

// Close drains the connection when the sender owns one.
func (s *NATSSender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
