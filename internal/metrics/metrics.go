// Package metrics records compile and build metrics with Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Recorder implements compile and build observation. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	reg             *prom.Registry
	compileDuration *prom.HistogramVec
	compileResults  *prom.CounterVec
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	records         *prom.GaugeVec
}

// NewRecorder constructs and registers the metrics on reg (a fresh registry
// when nil).
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		compileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "codex",
			Name:      "compile_duration_seconds",
			Help:      "Duration of single document compiles",
			Buckets:   prom.DefBuckets,
		}, []string{"collection"}),
		compileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codex",
			Name:      "compile_results_total",
			Help:      "Document compiles by outcome",
		}, []string{"collection", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "codex",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codex",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		records: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "codex",
			Name:      "collection_records",
			Help:      "Records compiled per collection in the last build",
		}, []string{"collection"}),
	}
	reg.MustRegister(r.compileDuration, r.compileResults, r.buildDuration, r.buildOutcome, r.records)
	return r
}

// ObserveCompile matches compiler.Observer.
func (r *Recorder) ObserveCompile(collection string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.compileDuration.WithLabelValues(collection).Observe(d.Seconds())
	r.compileResults.WithLabelValues(collection, result(err)).Inc()
}

func (r *Recorder) ObserveBuild(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.buildDuration.Observe(d.Seconds())
	r.buildOutcome.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) SetRecords(collection string, n int) {
	if r == nil {
		return
	}
	r.records.WithLabelValues(collection).Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
