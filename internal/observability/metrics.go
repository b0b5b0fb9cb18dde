package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_question_resolutions_total",
		Help: "Question resolutions by strategy and outcome",
	}, []string{"strategy", "outcome"})

	indexLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_question_index_lookups_total",
		Help: "Question index snapshot lookups by cache result",
	}, []string{"result"})

	aggregateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surveytrends_aggregate_duration_seconds",
		Help:    "Response aggregation duration by backend and status",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"backend", "status"})

	recordsFolded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_records_folded_total",
		Help: "Respondent records folded into period buckets, by partition",
	}, []string{"partition"})

	partitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_partition_failures_total",
		Help: "Partition stream failures after retries",
	}, []string{"partition"})

	gateExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_gate_executions_total",
		Help: "Backend execution gate results by operation and source",
	}, []string{"op", "source"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveytrends_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surveytrends_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "surveytrends_http_inflight_requests",
		Help: "HTTP requests currently being served",
	})
)

func ObserveResolution(strategy, outcome string) {
	resolutions.WithLabelValues(strategy, outcome).Inc()
}

func ObserveIndexLookup(hit bool) {
	if hit {
		indexLoads.WithLabelValues("hit").Inc()
		return
	}
	indexLoads.WithLabelValues("miss").Inc()
}

func ObserveAggregate(backend string, err error, dur time.Duration) {
	aggregateDuration.WithLabelValues(backend, status(err)).Observe(dur.Seconds())
}

func ObserveFolded(partition string, n int) {
	if n > 0 {
		recordsFolded.WithLabelValues(partition).Add(float64(n))
	}
}

func ObservePartitionFailure(partition string) {
	partitionFailures.WithLabelValues(partition).Inc()
}

func ObserveGate(op, source string) {
	gateExecutions.WithLabelValues(op, source).Inc()
}

func ObserveHTTP(method, route, code string, dur time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func HTTPInflight(delta float64) {
	httpInflight.Add(delta)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
