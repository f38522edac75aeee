package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_tracker"

// Metrics holds the Prometheus collectors for feed refreshes and the served
// collection.
type Metrics struct {
	RefresherRunning prometheus.Gauge

	// Refresh outcome metrics.
	Refreshes       *prometheus.CounterVec // labels: outcome={success,busy,network,http_status,parse,empty_feed,no_valid_rows,unknown}
	RefreshDuration prometheus.Histogram
	LastSuccess     prometheus.Gauge

	// Data-quality metrics.
	RowsRead           prometheus.Counter
	RowsDiscarded      prometheus.Counter
	InvalidCoordinates prometheus.Counter
	UnparsableDates    prometheus.Counter

	// Collection metrics.
	IncidentsLoaded prometheus.Gauge
	FeedBytes       prometheus.Histogram

	// Notification metrics.
	NotificationsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefresherRunning,
		m.Refreshes,
		m.RefreshDuration,
		m.LastSuccess,
		m.RowsRead,
		m.RowsDiscarded,
		m.InvalidCoordinates,
		m.UnparsableDates,
		m.IncidentsLoaded,
		m.FeedBytes,
		m.NotificationsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Feed refresh attempts by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_refresh_duration_seconds",
			Help:      "Duration of a fetch-parse-normalize-replace cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rows_read_total",
			Help:      "Total raw rows parsed from the feed.",
		}),
		RowsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rows_discarded_total",
			Help:      "Total rows dropped for lacking both a title and a victim group.",
		}),
		InvalidCoordinates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_invalid_coordinates_total",
			Help:      "Total rows whose coordinates were present but rejected.",
		}),
		UnparsableDates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_unparsable_dates_total",
			Help:      "Total rows whose incident date could not be parsed.",
		}),
		IncidentsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents_loaded",
			Help:      "Number of incidents in the current collection.",
		}),
		FeedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_size_bytes",
			Help:      "Size of fetched feed documents.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8),
		}),
		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Collection-replaced notifications sent to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
