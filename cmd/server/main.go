package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Chardonneaur/VisitorExclusion/internal/api"
	"github.com/Chardonneaur/VisitorExclusion/internal/config"
	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/exclusion"
	"github.com/Chardonneaur/VisitorExclusion/internal/logging"
	"github.com/Chardonneaur/VisitorExclusion/internal/store"
	"github.com/Chardonneaur/VisitorExclusion/internal/telemetry"
	"github.com/Chardonneaur/VisitorExclusion/internal/webhook"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", logging.FormatJSON, os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	base, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}

	st, err := withCache(ctx, cfg, base, logger)
	if err != nil {
		_ = base.Close()
		return err
	}
	defer st.Close()

	telemetry.Init()

	svc := exclusion.NewService(st, device.NewUAClassifier(), nil, logger)

	// initial snapshot; an unreachable store leaves the empty rule set in
	// force and the reloader keeps retrying
	if snap, err := svc.Reload(ctx); err == nil {
		logger.Info().Int("rules", len(snap.Rules)).Str("etag", snap.ETag).Msg("snapshot loaded")
	}

	srvAPI := api.NewServer(svc, api.Options{
		AdminKey:       cfg.AdminAPIKey,
		AdminKeyHash:   cfg.AdminKeyHash,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Logger:         logger,
	})

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // the rule stream is long-lived
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.StartReloader(gctx, cfg.ReloadInterval)
	})
	if len(cfg.WebhookURLs) > 0 {
		dispatcher := newDispatcher(cfg, logger)
		dispatcher.Start()
		g.Go(func() error {
			return dispatcher.Watch(gctx, svc.Holder())
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := dispatcher.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("webhook queue not drained before shutdown")
			}
			return nil
		})
		logger.Info().Int("endpoints", len(cfg.WebhookURLs)).Msg("snapshot webhooks enabled")
	}
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Msg("api listening")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withCache(ctx context.Context, cfg *config.Config, st store.Store, logger zerolog.Logger) (store.Store, error) {
	if cfg.CacheType != config.CacheRedis {
		return st, nil
	}

	cached, err := store.WithRedisCache(ctx, st, store.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("redis rule cache enabled")
	return cached, nil
}

func newDispatcher(cfg *config.Config, logger zerolog.Logger) *webhook.Dispatcher {
	endpoints := make([]webhook.Endpoint, 0, len(cfg.WebhookURLs))
	for _, u := range cfg.WebhookURLs {
		endpoints = append(endpoints, webhook.Endpoint{URL: u, Secret: cfg.WebhookSecret})
	}
	return webhook.NewDispatcher(endpoints, webhook.Options{
		Timeout:    cfg.WebhookTimeout,
		MaxRetries: cfg.WebhookMaxRetries,
		Logger:     logger,
	})
}
