package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the platform exports. Services share one
// registry per process via Registry().
type Metrics struct {
	registry *prometheus.Registry

	CallsUploaded   prometheus.Counter
	PipelineJobs    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	LLMRequests     *prometheus.CounterVec
	FMCSALookups    *prometheus.CounterVec
	LoadTransitions *prometheus.CounterVec
	WatcherPolls    prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Registry returns the process-wide metrics instance, building it on
// first use.
func Registry() *Metrics {
	once.Do(func() {
		instance = newMetrics("freightdesk")
	})
	return instance
}

func newMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		CallsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_uploaded_total",
			Help:      "Audio uploads accepted by the call service.",
		}),
		PipelineJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_jobs_total",
			Help:      "Pipeline jobs finished, by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM extraction calls, by outcome.",
		}, []string{"outcome"}),
		FMCSALookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fmcsa_lookups_total",
			Help:      "FMCSA verification lookups, by result.",
		}, []string{"result"}),
		LoadTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_transitions_total",
			Help:      "Load workflow transition attempts, by outcome.",
		}, []string{"outcome"}),
		WatcherPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_polls_total",
			Help:      "Status polls issued by completion watchers.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		m.CallsUploaded,
		m.PipelineJobs,
		m.StageDuration,
		m.LLMRequests,
		m.FMCSALookups,
		m.LoadTransitions,
		m.WatcherPolls,
		m.HTTPDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, code int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
