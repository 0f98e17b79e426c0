package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ratipstack/ratip-engine/internal/api"
	"github.com/ratipstack/ratip-engine/internal/cache"
	"github.com/ratipstack/ratip-engine/internal/config"
	"github.com/ratipstack/ratip-engine/internal/demo"
	"github.com/ratipstack/ratip-engine/internal/engine"
	"github.com/ratipstack/ratip-engine/internal/ingest"
	"github.com/ratipstack/ratip-engine/internal/metrics"
	"github.com/ratipstack/ratip-engine/internal/notifier"
	"github.com/ratipstack/ratip-engine/internal/services"
	"github.com/ratipstack/ratip-engine/internal/store"
	"github.com/ratipstack/ratip-engine/internal/summarizer"
	"github.com/ratipstack/ratip-engine/internal/utils"
	"github.com/ratipstack/ratip-engine/internal/window"
)

const memoryCacheEntries = 1024

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting ratip-engine",
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider(memoryCacheEntries)
	}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
			KeyPrefix:    cfg.Cache.KeyPrefix,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, using in-process cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	actions, err := engine.NewActionPolicy(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load action pack", slog.Any("error", err))
		os.Exit(1)
	}
	correlator := engine.NewCorrelationEngine(logger, actions)

	eventStore := store.New()
	recent := window.New(cfg.Window.Size)

	var dispatcher *notifier.Dispatcher
	var natsSender *notifier.NATSSender
	if cfg.Notifier.Enabled {
		senders := []notifier.Sender{notifier.NewLogSender(logger)}
		if cfg.Notifier.Webhook.URL != "" {
			webhook, err := notifier.NewWebhookSender(notifier.WebhookConfig{
				URL:       cfg.Notifier.Webhook.URL,
				AuthToken: cfg.Notifier.Webhook.AuthToken,
				Timeout:   cfg.Notifier.Webhook.Timeout,
			})
			if err != nil {
				logger.Error("invalid webhook configuration", slog.Any("error", err))
				os.Exit(1)
			}
			senders = append(senders, webhook)
		}
		if cfg.Notifier.NATS.URL != "" {
			natsSender, err = notifier.DialNATS(notifier.NATSConfig{
				URL:           cfg.Notifier.NATS.URL,
				Subject:       cfg.Notifier.NATS.Subject,
				Token:         cfg.Notifier.NATS.Token,
				MaxReconnects: -1,
			}, logger)
			if err != nil {
				logger.Warn("nats notifier unavailable", slog.Any("error", err))
			} else {
				senders = append(senders, natsSender)
			}
		}
		dispatcher = notifier.NewDispatcher(notifier.DispatcherConfig{
			MinConfidence: cfg.Notifier.MinConfidence,
			PerMinute:     cfg.Notifier.PerMinute,
			Burst:         cfg.Notifier.Burst,
			QueueSize:     cfg.Notifier.QueueSize,
			SendTimeout:   cfg.Notifier.SendTimeout,
		}, logger, senders...)
	}

	var alerts ingest.Notifier
	if dispatcher != nil {
		alerts = dispatcher
	}
	ingestService := ingest.NewService(eventStore, recent, correlator, alerts, logger)

	openai := summarizer.NewOpenAIClient(summarizer.OpenAIConfig{
		BaseURL:     cfg.Summarizer.BaseURL,
		APIKey:      cfg.Summarizer.APIKey,
		Model:       cfg.Summarizer.Model,
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Temperature: cfg.Summarizer.Temperature,
		Timeout:     cfg.Summarizer.Timeout,
	}, logger)
	if !openai.Configured() {
		logger.Warn("summarizer API key not configured, answers will use the offline summary")
	}
	cachedSummarizer := summarizer.NewCachingSummarizer(openai, cacheProvider, cfg.Cache.SummaryTTL, logger)

	queryService := services.NewQueryService(logger, eventStore, correlator, cachedSummarizer,
		services.WithSummaryTimeout(cfg.Summarizer.Timeout))

	server, err := api.NewGRPCServer(cfg.Server, api.NewCorrelationService(logger, ingestService, queryService), logger)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           api.NewHTTPHandler(queryService, ingestService, logger),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Summarizer.Timeout + 15*time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	var consumer *ingest.KafkaConsumer
	if cfg.Kafka.Enabled {
		consumer, err = ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers:        ingest.ParseBrokers(cfg.Kafka.Brokers),
			GroupID:        cfg.Kafka.GroupID,
			TelemetryTopic: cfg.Kafka.TelemetryTopic,
			AlarmTopic:     cfg.Kafka.AlarmTopic,
			MaxWait:        cfg.Kafka.MaxWait,
			CommitInterval: cfg.Kafka.CommitInterval,
		}, ingestService, logger)
		if err != nil {
			logger.Error("failed to create kafka consumer", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("kafka consumer exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	if cfg.Demo.Enabled {
		seeder := demo.New(ingestService, demo.Config{Interval: cfg.Demo.Interval, Seed: cfg.Demo.Seed}, logger)
		go seeder.Run(ctx)
	}

	grpcDone := make(chan struct{})
	go func() {
		defer close(grpcDone)
		if serveErr := server.Run(ctx); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	<-grpcDone

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("kafka consumer close", slog.Any("error", err))
		}
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if natsSender != nil {
		if err := natsSender.Close(); err != nil {
			logger.Warn("nats close", slog.Any("error", err))
		}
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("ratip-engine stopped", slog.Duration("query_p95", queryService.LatencyP95()))
}
