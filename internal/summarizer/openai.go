package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ratipstack/ratip-engine/internal/models"
)

const (
	defaultBaseURL     = "https://api.openai.com"
	completionsPath    = "/v1/chat/completions"
	placeholderAPIKey  = "your-api-key-here"
	maxContextEvents   = 20
	systemPrompt       = "You are an expert DevOps assistant analyzing telemetry and alarm data. Provide concise, actionable insights."
	maxErrorBodyLength = 512
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient summarizes events through an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	cfg        OpenAIConfig
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient constructs a client. It never fails; a missing key surfaces as
// ErrNotConfigured on each call.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIClient{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + completionsPath,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *OpenAIClient) Configured() bool {
	key := strings.TrimSpace(c.cfg.APIKey)
	return key != "" && key != placeholderAPIKey
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize implements Summarizer.
func (c *OpenAIClient) Summarize(ctx context.Context, events []models.CorrelatedEvent, query string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(events, query)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return "", fmt.Errorf("chat completions returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completions returned empty content")
	}

	c.logger.Info("summary generated", slog.String("model", c.cfg.Model), slog.Int("events", len(events)))
	return content, nil
}

// BuildPrompt renders the user prompt from at most 20 events.
func BuildPrompt(events []models.CorrelatedEvent, query string) string {
	var b strings.Builder
	b.WriteString("Based on the following telemetry and alarm data:\n\n")
	b.WriteString("Recent Events and Correlations:\n\n")
	for i := 0; i < len(events) && i < maxContextEvents; i++ {
		ev := events[i]
		fmt.Fprintf(&b, "%d. [%s] %s (Confidence: %.1f%%)\n",
			i+1, ev.CorrelationTimestamp.UTC().Format(time.RFC3339), ev.Description, ev.ConfidenceScore*100)
		fmt.Fprintf(&b, "   Alarm: %s - %s (Severity: %s)\n", ev.Alarm.ServiceName, ev.Alarm.AlarmName, ev.Alarm.Severity)
		fmt.Fprintf(&b, "   Telemetry: %s = %.2f\n\n", ev.Telemetry.MetricType, ev.Telemetry.Value)
	}
	fmt.Fprintf(&b, "\nUser Question: %s\n\n", query)
	b.WriteString("Provide a concise, actionable answer. Include specific metrics, identify root causes, and suggest remediation steps if applicable.")
	return b.String()
}
