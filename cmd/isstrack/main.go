package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/api"
	"github.com/iranarang/iss-data-analysis/internal/config"
	"github.com/iranarang/iss-data-analysis/internal/geocode"
	"github.com/iranarang/iss-data-analysis/internal/metrics"
	"github.com/iranarang/iss-data-analysis/internal/oem"
	"github.com/iranarang/iss-data-analysis/internal/refresh"
	"github.com/iranarang/iss-data-analysis/internal/transform"
)

func main() {
	cfgPath := os.Getenv("ISSTRACK_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	store := oem.NewStore()
	fetcher := oem.NewFetcher(cfg.Feed.URL, time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, cfg.Feed.Retries, logger)
	diskCache := oem.NewCache(cfg.Feed.CacheDir, cfg.Feed.CacheMaxFiles)

	// Attempt to load cached feed data on startup so a dead upstream does
	// not keep the service down.
	if data, ts, err := diskCache.LoadLatest(); err != nil {
		logger.Info("no feed cache found, starting without trajectory data", "error", err)
	} else if doc, err := oem.Parse(data); err != nil {
		logger.Warn("failed to parse cached feed data", "error", err)
	} else {
		doc.Source = "cache"
		doc.FetchedAt = ts
		store.Set(doc)
		metrics.SetFeedStateVectors(len(doc.StateVectors))
		logger.Info("loaded trajectory data from cache",
			"state_vectors", len(doc.StateVectors),
			"cached_at", ts.Format(time.RFC3339),
		)
	}

	refresher := refresh.New(fetcher, store, diskCache, time.Duration(cfg.Feed.RefreshSeconds)*time.Second, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial fetch; a failure here is survivable when the disk cache
	// provided a snapshot, otherwise readiness stays down until a refresh
	// succeeds.
	startupCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Feed.TimeoutSeconds+5)*time.Second)
	if err := refresher.RefreshOnce(startupCtx); err != nil {
		logger.Warn("startup feed fetch failed", "error", err)
	}
	cancel()

	converter := transform.NewConverter(cfg.Conversion.TruncateEpochSeconds)
	geocoder := geocode.NewClient(
		cfg.Geocoder.BaseURL,
		cfg.Geocoder.UserAgent,
		time.Duration(cfg.Geocoder.TimeoutSeconds)*time.Second,
		cfg.Geocoder.Retries,
		logger,
	)

	handlers := api.NewHandlers(store, fetcher, converter, geocoder, logger)
	srv := api.NewServer(cfg.Server.Addr, logger, cfg.Server.TrustProxy, store, handlers)

	// Background feed refresher.
	go refresher.Start(ctx)

	// Background goroutine to update the feed age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetFeedAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"feed_url", fetcher.SourceURL(),
			"truncate_epoch_seconds", cfg.Conversion.TruncateEpochSeconds,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
