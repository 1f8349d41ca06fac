package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query and page Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonemap",
			Name:      "query_requests_total",
			Help:      "Total number of remote text-generation requests",
		},
		[]string{"provider", "status"},
	)

	QueryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zonemap",
			Name:      "query_request_duration_seconds",
			Help:      "Remote text-generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	QueryTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonemap",
			Name:      "query_tokens_total",
			Help:      "Total tokens consumed by remote text generation",
		},
		[]string{"provider", "model", "type"},
	)

	QueryClicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonemap",
			Name:      "query_clicks_total",
			Help:      "Map clicks by session outcome",
		},
		[]string{"result"}, // accepted, in_flight, no_description, closed
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonemap",
			Name:      "query_cache_total",
			Help:      "Answer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	PagesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zonemap",
			Name:      "pages_active",
			Help:      "Number of live page sessions",
		},
	)

	GeodataFeatures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zonemap",
			Name:      "geodata_features",
			Help:      "Number of features in the published collection",
		},
	)

	GeodataLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonemap",
			Name:      "geodata_loads_total",
			Help:      "Feature collection load attempts",
		},
		[]string{"status"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus query and page metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryRequestDuration)
	prometheus.MustRegister(QueryTokensTotal)
	prometheus.MustRegister(QueryClicksTotal)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(PagesActive)
	prometheus.MustRegister(GeodataFeatures)
	prometheus.MustRegister(GeodataLoadsTotal)
	queryMetricsRegistered = true
}
