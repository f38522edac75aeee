// Package pipeline keeps the served incident collection in sync with the feed.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/observability"
	"github.com/couchcryptid/incident-tracker-service/internal/store"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Loader fetches and normalizes one feed document.
type Loader interface {
	Load(ctx context.Context, src feed.Source) (feed.Result, error)
}

// Replacer installs a new canonical collection.
type Replacer interface {
	Replace(next store.Snapshot) store.Snapshot
}

// Refresher orchestrates fetch, normalize and replace cycles.
type Refresher struct {
	loader   Loader
	store    Replacer
	source   feed.Source
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Refresher. An interval of zero disables periodic refreshes;
// Run then only retries until the first load succeeds.
func New(loader Loader, st Replacer, src feed.Source, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		loader:   loader,
		store:    st,
		source:   src,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a collection has been loaded, or an error
// describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no incident collection has been loaded yet")
	}
	return nil
}

// Refresh loads the feed once and replaces the collection on success. On
// failure the previous collection stays in place and the typed feed error is
// returned unchanged.
func (r *Refresher) Refresh(ctx context.Context) (store.Snapshot, error) {
	start := r.clock.Now()

	res, err := r.loader.Load(ctx, r.source)
	r.recordReport(res)
	if err != nil {
		r.metrics.Refreshes.WithLabelValues(feed.Kind(err)).Inc()
		if errors.Is(err, feed.ErrBusy) {
			r.logger.Debug("refresh skipped, load in progress")
		} else {
			r.logger.Error("feed refresh failed", "error", err, "kind", feed.Kind(err), "url", r.source.URL)
		}
		return store.Snapshot{}, err
	}

	snap := r.store.Replace(store.Snapshot{
		Incidents:   res.Incidents,
		LastUpdated: res.LastUpdated,
		LoadedAt:    r.clock.Now(),
		Source:      r.source.URL,
		Report:      res.Report,
	})
	r.ready.Store(true)

	r.metrics.Refreshes.WithLabelValues("success").Inc()
	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())
	r.metrics.LastSuccess.Set(float64(snap.LoadedAt.Unix()))
	r.metrics.IncidentsLoaded.Set(float64(snap.Len()))
	r.metrics.FeedBytes.Observe(float64(res.Bytes))

	r.logger.Info("incident collection replaced",
		"version", snap.Version,
		"incidents", snap.Len(),
		"format", res.Format,
		"discarded", res.Report.Discarded,
		"invalid_coordinates", res.Report.InvalidCoordinates,
		"unparsable_dates", res.Report.UnparsableDates,
		"duplicate_ids", res.Report.DuplicateIDs,
	)
	return snap, nil
}

func (r *Refresher) recordReport(res feed.Result) {
	rep := res.Report
	if rep.RowsRead == 0 {
		return
	}
	r.metrics.RowsRead.Add(float64(rep.RowsRead))
	r.metrics.RowsDiscarded.Add(float64(rep.Discarded))
	r.metrics.InvalidCoordinates.Add(float64(rep.InvalidCoordinates))
	r.metrics.UnparsableDates.Add(float64(rep.UnparsableDates))
}

// Run refreshes immediately and then on every interval until the context is
// cancelled. Failed refreshes are retried with exponential backoff.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "url", r.source.URL, "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	backoff := initialBackoff
	for {
		_, err := r.Refresh(ctx)
		if ctx.Err() != nil {
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}

		var wait time.Duration
		switch {
		case err == nil:
			backoff = initialBackoff
			wait = r.interval
		case errors.Is(err, feed.ErrBusy) && r.interval > 0:
			wait = r.interval
		default:
			wait = backoff
			if r.interval > 0 && wait > r.interval {
				wait = r.interval
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		if wait <= 0 {
			// Periodic refresh disabled and the collection is loaded.
			<-ctx.Done()
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}
		if !sleepWithContext(ctx, r.clock, wait) {
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
