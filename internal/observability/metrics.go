package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_search"

// Metrics holds the Prometheus collectors for searches, FDSN traffic and
// the result cache.
type Metrics struct {
	Searches        *prometheus.CounterVec // labels: outcome={success,error,cached}
	SearchDuration  prometheus.Histogram
	EventsFound     prometheus.Counter
	StationsRanked  prometheus.Counter
	WaveformsServed prometheus.Counter

	FDSNRequests *prometheus.CounterVec   // labels: service={event,station,dataselect}, outcome={success,nodata,error,retry}
	FDSNDuration *prometheus.HistogramVec // labels: service

	CacheLookups *prometheus.CounterVec // labels: store={search,waveform}, result={hit,miss}
	CachePurged  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Region searches by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of an uncached region search.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		EventsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_found_total",
			Help:      "Events returned by event services.",
		}),
		StationsRanked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_ranked_total",
			Help:      "Stations kept after proximity ranking.",
		}),
		WaveformsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waveforms_served_total",
			Help:      "Waveform segments returned to clients.",
		}),
		FDSNRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fdsn_requests_total",
			Help:      "FDSN web service requests by service and outcome.",
		}, []string{"service", "outcome"}),
		FDSNDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fdsn_request_duration_seconds",
			Help:      "FDSN web service request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by store and result.",
		}, []string{"store", "result"}),
		CachePurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_purged_rows_total",
			Help:      "Expired cache rows removed by the janitor.",
		}),
	}
}

// NewMetrics creates the collectors and registers them with the default
// Prometheus registry. Call it once per process.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Searches,
		m.SearchDuration,
		m.EventsFound,
		m.StationsRanked,
		m.WaveformsServed,
		m.FDSNRequests,
		m.FDSNDuration,
		m.CacheLookups,
		m.CachePurged,
	)
	return m
}

// NewMetricsForTesting returns unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
