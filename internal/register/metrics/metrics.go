package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the register module. Tracks lifecycle
// transition counts and durations on the publish/archive critical paths.
type Metrics struct {
	VersionsConfirmed prometheus.Counter
	VersionsPublished prometheus.Counter
	VersionsArchived  prometheus.Counter
	SlugsAssigned     prometheus.Counter
	PublishDuration   prometheus.Histogram
	ArchiveDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all register module metrics registered.
func New() *Metrics {
	return &Metrics{
		VersionsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "profreg_versions_confirmed_total",
			Help: "Total number of versions confirmed for review",
		}),
		VersionsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "profreg_versions_published_total",
			Help: "Total number of versions promoted to live",
		}),
		VersionsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "profreg_versions_archived_total",
			Help: "Total number of versions withdrawn",
		}),
		SlugsAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "profreg_slugs_assigned_total",
			Help: "Total number of first-publish slug assignments",
		}),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "profreg_publish_duration_seconds",
			Help:    "Duration of publish operations (tx plus search index sync)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ArchiveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "profreg_archive_duration_seconds",
			Help:    "Duration of archive operations (tx plus search index sync)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObservePublish records the duration of a publish operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObservePublish(start time.Time) {
	m.PublishDuration.Observe(time.Since(start).Seconds())
}

// ObserveArchive records the duration of an archive operation.
func (m *Metrics) ObserveArchive(start time.Time) {
	m.ArchiveDuration.Observe(time.Since(start).Seconds())
}
