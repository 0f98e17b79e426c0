package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ratipstack/ratip-engine/internal/models"
)

const (
	webhookEnvelopeType    = "correlation.alert"
	webhookSchemaVersion   = "1"
	defaultWebhookTimeout  = 10 * time.Second
	webhookUserAgent       = "ratip-engine/v1"
	maxWebhookErrorSnippet = 256
)

// WebhookEnvelope is the JSON payload POSTed to webhook endpoints.
type WebhookEnvelope struct {
	Type          string                 `json:"type"`
	SchemaVersion string                 `json:"schemaVersion"`
	Timestamp     string                 `json:"timestamp"`
	Message       string                 `json:"message"`
	Data          models.CorrelatedEvent `json:"data"`
}

// WebhookConfig configures a WebhookSender.
type WebhookConfig struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// WebhookSender POSTs alerts to an HTTP endpoint.
type WebhookSender struct {
	url        string
	authToken  string
	httpClient *http.Client
	now        func() time.Time
}

// NewWebhookSender validates the URL and constructs a sender.
func NewWebhookSender(cfg WebhookConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{
		url:        cfg.URL,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

func (s *WebhookSender) Name() string { return "webhook" }

func (s *WebhookSender) Send(ctx context.Context, event models.CorrelatedEvent) error {
	envelope := WebhookEnvelope{
		Type:          webhookEnvelopeType,
		SchemaVersion: webhookSchemaVersion,
		Timestamp:     s.now().UTC().Format(time.RFC3339),
		Message:       RenderMessage(event),
		Data:          event,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookErrorSnippet))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, string(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
