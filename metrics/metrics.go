package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_registrations_total",
			Help: "Total oracle registration attempts",
		},
		[]string{"result"}, // success|failure
	)

	PoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_pool_size",
			Help: "Number of registered oracle identities",
		},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_requests_total",
			Help: "Status requests received, by whether any oracle was eligible",
		},
		[]string{"match"}, // hit|none
	)

	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_responses_total",
			Help: "Terminal response submissions by state",
		},
		[]string{"state"}, // Submitted|Failed
	)

	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_submission_duration_seconds",
			Help:    "Duration of a single response submission",
			Buckets: prometheus.DefBuckets,
		},
	)

	StreamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_stream_reconnects_total",
			Help: "Request event stream re-subscription attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(RegistrationsTotal)
	prometheus.MustRegister(PoolSize)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ResponsesTotal)
	prometheus.MustRegister(SubmissionDuration)
	prometheus.MustRegister(StreamReconnects)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
