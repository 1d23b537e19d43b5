package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names scraped back by the status command.
const (
	SamplesTotal       = "hiketracker_location_samples_total"
	FetchAttemptsTotal = "hiketracker_fetch_attempts_total"
	FetchesTotal       = "hiketracker_fetches_total"
	FetchDuration      = "hiketracker_fetch_duration_seconds"
	CacheHitsTotal     = "hiketracker_fetch_cache_hits_total"
	PhotosStoredTotal  = "hiketracker_photos_stored_total"
	FetchInFlight      = "hiketracker_fetch_in_flight"
	ObserverAttached   = "hiketracker_observer_attached"
	AlertsFiredTotal   = "hiketracker_alerts_fired_total"
	JournalDropped     = "hiketracker_journal_dropped_total"
)

// Metrics holds every collector exported by the tracker. All methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	samples      *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	duration     prometheus.Histogram
	cacheHits    prometheus.Counter
	stored       prometheus.Counter
	inFlight     prometheus.Gauge
	attached     prometheus.Gauge
	alertsFired  *prometheus.CounterVec
	journalDrops prometheus.Counter
}

// New creates the collectors on a private registry, together with the
// standard Go runtime and process collectors.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: SamplesTotal,
			Help: "Location samples received, by filter decision",
		}, []string{"result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: FetchAttemptsTotal,
			Help: "Photo-search HTTP attempts, by outcome",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: FetchesTotal,
			Help: "Completed fetches, by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    FetchDuration,
			Help:    "Wall time of a fetch including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: CacheHitsTotal,
			Help: "Fetches answered from the response cache",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: PhotosStoredTotal,
			Help: "Photo results appended to the store",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: FetchInFlight,
			Help: "1 while a fetch is outstanding",
		}),
		attached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ObserverAttached,
			Help: "1 while an observer is attached",
		}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: AlertsFiredTotal,
			Help: "Alerts fired, by rule",
		}, []string{"rule"}),
		journalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: JournalDropped,
			Help: "Journal entries evicted because the write buffer was full",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.samples, m.attempts, m.fetches, m.duration, m.cacheHits, m.stored,
		m.inFlight, m.attached, m.alertsFired, m.journalDrops,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Sample counts one location sample; accepted is the filter decision.
func (m *Metrics) Sample(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.samples.WithLabelValues("accepted").Inc()
	} else {
		m.samples.WithLabelValues("filtered").Inc()
	}
}

// Attempt counts one HTTP attempt with its outcome ("ok", "timeout", ...).
func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

// Fetch counts one completed fetch and records its duration.
func (m *Metrics) Fetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// CacheHit counts a fetch served from cache.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// Stored counts one appended photo result.
func (m *Metrics) Stored() {
	if m == nil {
		return
	}
	m.stored.Inc()
}

// SetFetching sets the in-flight gauge.
func (m *Metrics) SetFetching(fetching bool) {
	if m == nil {
		return
	}
	m.inFlight.Set(boolToFloat(fetching))
}

// SetAttached sets the observer gauge.
func (m *Metrics) SetAttached(attached bool) {
	if m == nil {
		return
	}
	m.attached.Set(boolToFloat(attached))
}

// AlertFired counts one fired alert.
func (m *Metrics) AlertFired(rule string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(rule).Inc()
}

// JournalDrop counts one evicted journal entry.
func (m *Metrics) JournalDrop() {
	if m == nil {
		return
	}
	m.journalDrops.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
