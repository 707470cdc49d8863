package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback service.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       *prometheus.CounterVec
	errorsTotal         *prometheus.CounterVec
	playlistsServed     prometheus.Counter
	segmentsServed      prometheus.Counter
	eventListings       prometheus.Counter
	pathRejectionsTotal prometheus.Counter
	streams             prometheus.Gauge
}

// New creates and registers Prometheus metrics for the playback service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_requests_total",
		Help: "Total number of HTTP requests received",
	}, []string{"method"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	}, []string{"class"})
	playlistsServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_playlists_served_total",
		Help: "Total number of event playlists synthesized",
	})
	segmentsServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_segments_served_total",
		Help: "Total number of segment or recording files opened for streaming",
	})
	eventListings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_event_listings_total",
		Help: "Total number of event listings computed",
	})
	pathRejectionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_path_rejections_total",
		Help: "Total number of requests rejected for path traversal",
	})
	streams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_streams",
		Help: "Number of streams known to the catalog",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		playlistsServed,
		segmentsServed,
		eventListings,
		pathRejectionsTotal,
		streams,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		playlistsServed:     playlistsServed,
		segmentsServed:      segmentsServed,
		eventListings:       eventListings,
		pathRejectionsTotal: pathRejectionsTotal,
		streams:             streams,
	}
}

// IncRequests increments the request counter for the given method.
func (m *Metrics) IncRequests(method string) {
	m.requestsTotal.WithLabelValues(method).Inc()
}

// IncErrors increments the error counter; class is "4xx" or "5xx".
func (m *Metrics) IncErrors(class string) {
	m.errorsTotal.WithLabelValues(class).Inc()
}

// IncPlaylistsServed increments the playlists counter.
func (m *Metrics) IncPlaylistsServed() {
	m.playlistsServed.Inc()
}

// IncSegmentsServed increments the segments counter.
func (m *Metrics) IncSegmentsServed() {
	m.segmentsServed.Inc()
}

// IncEventListings increments the event listings counter.
func (m *Metrics) IncEventListings() {
	m.eventListings.Inc()
}

// IncPathRejections increments the traversal rejection counter.
func (m *Metrics) IncPathRejections() {
	m.pathRejectionsTotal.Inc()
}

// SetStreams sets the streams gauge.
func (m *Metrics) SetStreams(n int) {
	m.streams.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
