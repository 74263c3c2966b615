// Package refresh keeps the in-memory trajectory document current by
// re-fetching the upstream feed on a fixed interval. A failed refresh keeps
// the previous snapshot; readers never observe a partially loaded document.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/metrics"
	"github.com/iranarang/iss-data-analysis/internal/oem"
)

// Refresher periodically replaces the stored trajectory document.
type Refresher struct {
	fetcher  *oem.Fetcher
	store    *oem.Store
	cache    *oem.Cache
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Refresher. cache may be nil to skip disk caching. An
// interval of zero disables the periodic loop; RefreshOnce still works.
func New(fetcher *oem.Fetcher, store *oem.Store, cache *oem.Cache, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		store:    store,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the refresh loop until ctx is cancelled. Intended to run in its
// own goroutine; the initial load is the caller's responsibility.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("feed refresh disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("feed refresher started", "interval_seconds", r.interval.Seconds())

	for {
		select {
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Warn("feed refresh failed, keeping previous snapshot", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RefreshOnce fetches, parses, and atomically installs a new document,
// writing the raw bytes to the disk cache on success.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncFeedFetch("fetch_error")
		return err
	}

	doc, err := oem.Parse(data)
	if err != nil {
		metrics.IncFeedFetch("parse_error")
		return err
	}
	doc.Source = r.fetcher.SourceURL()
	doc.FetchedAt = time.Now().UTC()

	r.store.Set(doc)
	metrics.IncFeedFetch("success")
	metrics.SetFeedStateVectors(len(doc.StateVectors))

	if r.cache != nil {
		if err := r.cache.Write(data, doc.FetchedAt); err != nil {
			// Cache failure is not a refresh failure.
			r.logger.Warn("failed to write feed cache", "error", err)
		}
	}

	r.logger.Info("feed refreshed",
		"state_vectors", len(doc.StateVectors),
		"source", doc.Source,
	)
	return nil
}
