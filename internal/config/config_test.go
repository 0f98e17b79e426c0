package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RATIP_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Size != 15*time.Minute {
		t.Fatalf("expected 15m window, got %s", cfg.Window.Size)
	}
	if cfg.Summarizer.Model != "gpt-4o-mini" || cfg.Summarizer.MaxTokens != 500 || cfg.Summarizer.Temperature != 0.7 {
		t.Fatalf("unexpected summarizer defaults: %+v", cfg.Summarizer)
	}
	if cfg.Server.HTTPAddress != ":8080" || cfg.Server.MetricsAddress != ":2112" || !cfg.Server.Reflection {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ratip.yaml")
	content := []byte(`
server:
  httpAddress: ":9090"
window:
  size: 10m
notifier:
  minConfidence: 0.9
  webhook:
    url: http://hooks.local/alerts
cache:
  enabled: true
  addr: localhost:6379
  summaryTTL: 1m
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("RATIP_LOG_LEVEL", "debug")
	t.Setenv("RATIP_KAFKA_ENABLED", "true")
	t.Setenv("RATIP_KAFKA_BROKERS", "kafka:9092")
	t.Setenv("RATIP_GRPC_REFLECTION", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" || cfg.Server.Address != ":50051" {
		t.Fatalf("file values should merge over defaults: %+v", cfg.Server)
	}
	if cfg.Server.Reflection {
		t.Fatalf("expected reflection disabled by env")
	}
	if cfg.Window.Size != 10*time.Minute || cfg.Notifier.MinConfidence != 0.9 {
		t.Fatalf("unexpected window/notifier: %+v %+v", cfg.Window, cfg.Notifier)
	}
	if cfg.Notifier.Webhook.URL != "http://hooks.local/alerts" {
		t.Fatalf("unexpected webhook url %q", cfg.Notifier.Webhook.URL)
	}
	if !cfg.Cache.Enabled || cfg.Cache.SummaryTTL != time.Minute {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Summarizer.APIKey != "sk-env" || cfg.Logging.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Summarizer, cfg.Logging)
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Brokers != "kafka:9092" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("RATIP_CONFIG", "")
	t.Setenv("RATIP_NOTIFIER_MIN_CONFIDENCE", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRequiresBrokersForKafka(t *testing.T) {
	t.Setenv("RATIP_CONFIG", "")
	t.Setenv("RATIP_KAFKA_ENABLED", "true")
	t.Setenv("RATIP_KAFKA_BROKERS", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected kafka validation error")
	}
}
