package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/amishk599/rankwatch/internal/ai"
	"github.com/amishk599/rankwatch/internal/config"
	"github.com/amishk599/rankwatch/internal/hh"
	"github.com/amishk599/rankwatch/internal/metrics"
	"github.com/amishk599/rankwatch/internal/model"
	"github.com/amishk599/rankwatch/internal/pipeline"
	"github.com/amishk599/rankwatch/internal/ratelimit"
	"github.com/amishk599/rankwatch/internal/retry"
	"github.com/amishk599/rankwatch/internal/store"
	"github.com/amishk599/rankwatch/internal/tracker"
)

// app bundles the wired pipeline and the resources that must be released.
type app struct {
	runner   *pipeline.Runner
	store    model.JobStore
	registry *prometheus.Registry
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildApp wires every component from cfg. The returned app owns the store.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hhClient := setupHHClient(cfg, m, logger)

	normalizer, err := setupNormalizer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	posTracker := tracker.New(hhClient, logger,
		tracker.WithPacing(cfg.Tracking.Pacing),
		tracker.WithObserver(m),
	)

	jobStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := pipeline.NewRunner(hhClient, normalizer, posTracker, jobStore, logger,
		pipeline.WithObserver(m),
	)
	return &app{runner: runner, store: jobStore, registry: registry}, nil
}

func setupHHClient(cfg *config.Config, m *metrics.Collectors, logger *slog.Logger) *hh.Client {
	httpClient := &http.Client{Timeout: cfg.HH.Timeout}
	limiter := ratelimit.NewHostLimiter(cfg.HH.MinDelay)
	logger.Debug("rate limiter configured", "min_delay", cfg.HH.MinDelay.String())

	fetcher := retry.NewFetcher(httpClient, logger,
		retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retry.WithBaseDelay(cfg.Retry.BaseDelay),
		retry.WithLimiter(limiter),
		retry.WithObserver(m),
	)
	return hh.NewClient(fetcher, cfg.HH.BaseURL, cfg.HH.UserAgent, logger)
}

func setupNormalizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.TitleNormalizer, error) {
	httpClient := &http.Client{Timeout: cfg.AI.Timeout}

	var provider ai.LLMProvider
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		p, err := ai.NewGeminiProvider(ctx, cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
		if err != nil {
			return nil, fmt.Errorf("setting up gemini provider: %w", err)
		}
		provider = p
	case config.ProviderOpenAI:
		provider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	default:
		logger.Info("title normalization disabled, using raw titles")
		return ai.NewRawTitleNormalizer(), nil
	}

	logger.Info("title normalizer enabled", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	return ai.NewTitleNormalizer(provider, nil, logger, ai.WithBatchSize(cfg.AI.BatchSize)), nil
}

func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.JobStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("using postgres store")
		return s, nil
	case config.DriverNone:
		logger.Info("job records will not be persisted")
		return store.NewNopStore(), nil
	default:
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.Store.Path)
		return s, nil
	}
}
