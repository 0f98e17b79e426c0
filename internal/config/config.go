package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting required to boot the correlation service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Window     WindowConfig     `yaml:"window"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Demo       DemoConfig       `yaml:"demo"`
	Logging    LoggingConfig    `yaml:"logging"`
	Rules      RulesConfig      `yaml:"rules"`
}

// ServerConfig controls the gRPC, HTTP and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	Reflection      bool          `yaml:"reflection"`
}

// WindowConfig sizes the live telemetry window.
type WindowConfig struct {
	Size time.Duration `yaml:"size"`
}

// SummarizerConfig configures the chat-completions client.
type SummarizerConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NotifierConfig controls live correlation alerts.
type NotifierConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MinConfidence float64       `yaml:"minConfidence"`
	PerMinute     int           `yaml:"perMinute"`
	Burst         int           `yaml:"burst"`
	QueueSize     int           `yaml:"queueSize"`
	SendTimeout   time.Duration `yaml:"sendTimeout"`
	Webhook       WebhookConfig `yaml:"webhook"`
	NATS          NATSConfig    `yaml:"nats"`
}

// WebhookConfig enables the HTTP webhook sender when URL is set.
type WebhookConfig struct {
	URL       string        `yaml:"url"`
	AuthToken string        `yaml:"authToken"`
	Timeout   time.Duration `yaml:"timeout"`
}

// NATSConfig enables the NATS sender when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Token   string `yaml:"token"`
}

// CacheConfig controls Redis-backed caching of summaries.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	SummaryTTL   time.Duration `yaml:"summaryTTL"`
}

// KafkaConfig enables topic ingestion when brokers are set.
type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        string        `yaml:"brokers"`
	GroupID        string        `yaml:"groupID"`
	TelemetryTopic string        `yaml:"telemetryTopic"`
	AlarmTopic     string        `yaml:"alarmTopic"`
	MaxWait        time.Duration `yaml:"maxWait"`
	CommitInterval time.Duration `yaml:"commitInterval"`
}

// DemoConfig controls the synthetic data seeder.
type DemoConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Seed     int64         `yaml:"seed"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls action-pack loading for recommended actions.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("RATIP_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Window.Size <= 0 {
		return fmt.Errorf("window.size must be positive")
	}
	if c.Notifier.MinConfidence < 0 || c.Notifier.MinConfidence > 1 {
		return fmt.Errorf("notifier.minConfidence must be within [0,1]")
	}
	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.Brokers) == "" {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			Reflection:      true,
		},
		Window: WindowConfig{Size: 15 * time.Minute},
		Summarizer: SummarizerConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		},
		Notifier: NotifierConfig{
			Enabled:       true,
			MinConfidence: 0.7,
			PerMinute:     60,
			Burst:         10,
			QueueSize:     256,
			SendTimeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KeyPrefix:    "ratip:",
			SummaryTTL:   5 * time.Minute,
		},
		Kafka: KafkaConfig{
			GroupID:        "ratip-engine",
			TelemetryTopic: "ratip.telemetry",
			AlarmTopic:     "ratip.alarms",
			MaxWait:        time.Second,
			CommitInterval: time.Second,
		},
		Demo:    DemoConfig{Enabled: false, Interval: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/actions.yaml"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RATIP_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("RATIP_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("RATIP_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("RATIP_GRPC_REFLECTION"); v != "" {
		cfg.Server.Reflection = parseBool(v)
	}
	if v := os.Getenv("RATIP_WINDOW_SIZE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Window.Size = d
		}
	}
	if v := os.Getenv("RATIP_SUMMARIZER_BASE_URL"); v != "" {
		cfg.Summarizer.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
	}
	if v := os.Getenv("RATIP_SUMMARIZER_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
	}
	if v := os.Getenv("RATIP_SUMMARIZER_MODEL"); v != "" {
		cfg.Summarizer.Model = v
	}
	if v := os.Getenv("RATIP_SUMMARIZER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Summarizer.Timeout = d
		}
	}
	if v := os.Getenv("RATIP_NOTIFIER_ENABLED"); v != "" {
		cfg.Notifier.Enabled = parseBool(v)
	}
	if v := os.Getenv("RATIP_NOTIFIER_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Notifier.MinConfidence = f
		}
	}
	if v := os.Getenv("RATIP_NOTIFIER_WEBHOOK_URL"); v != "" {
		cfg.Notifier.Webhook.URL = v
	}
	if v := os.Getenv("RATIP_NOTIFIER_WEBHOOK_TOKEN"); v != "" {
		cfg.Notifier.Webhook.AuthToken = v
	}
	if v := os.Getenv("RATIP_NOTIFIER_NATS_URL"); v != "" {
		cfg.Notifier.NATS.URL = v
	}
	if v := os.Getenv("RATIP_NOTIFIER_NATS_SUBJECT"); v != "" {
		cfg.Notifier.NATS.Subject = v
	}
	if v := os.Getenv("RATIP_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("RATIP_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("RATIP_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("RATIP_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("RATIP_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("RATIP_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("RATIP_CACHE_SUMMARY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SummaryTTL = d
		}
	}
	if v := os.Getenv("RATIP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("RATIP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = v
	}
	if v := os.Getenv("RATIP_KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("RATIP_DEMO_ENABLED"); v != "" {
		cfg.Demo.Enabled = parseBool(v)
	}
	if v := os.Getenv("RATIP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RATIP_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("RATIP_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
