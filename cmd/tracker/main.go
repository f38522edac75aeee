package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/incident-tracker-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/incident-tracker-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-tracker-service/internal/config"
	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/observability"
	"github.com/couchcryptid/incident-tracker-service/internal/pipeline"
	"github.com/couchcryptid/incident-tracker-service/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	format, err := feed.ParseFormat(cfg.FeedFormat)
	if err != nil {
		logger.Error("invalid feed format", "error", err)
		os.Exit(1)
	}

	normalizer := domain.NewNormalizer(logger, aliasOptions(cfg.FieldAliases, logger)...)
	loader := feed.NewLoader(&http.Client{Timeout: cfg.FeedTimeout}, normalizer, logger, feed.WithMaxBodyBytes(cfg.FeedMaxBytes))
	st := store.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Change notifications are feature-flagged via KAFKA_ENABLED.
	var notifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		notifier = kafkaadapter.NewNotifier(cfg, logger, metrics)
		st.Subscribe(notifier.Listener(ctx))
		logger.Info("kafka notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	src := feed.Source{URL: cfg.FeedURL, Format: format}
	refresher := pipeline.New(loader, st, src, cfg.RefreshInterval, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, st, httpadapter.Options{
		TopN:        cfg.TopN,
		RecentLimit: cfg.RecentLimit,
		Clock:       clock,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start feed refresher.
	go func() {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// aliasOptions turns configured header aliases into normalizer options,
// skipping entries that name an unknown field.
func aliasOptions(aliases map[string]string, logger *slog.Logger) []domain.Option {
	opts := make([]domain.Option, 0, len(aliases))
	for header, name := range aliases {
		field, err := domain.ParseField(name)
		if err != nil {
			logger.Warn("ignoring field alias", "header", header, "error", err)
			continue
		}
		opts = append(opts, domain.WithAlias(header, field))
	}
	return opts
}
