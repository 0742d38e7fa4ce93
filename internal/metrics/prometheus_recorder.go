package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	signals          *prom.CounterVec
	commits          *prom.CounterVec
	committedSeconds prom.Counter
	tracking         prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		signals: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dwell",
			Name:      "signals_total",
			Help:      "Environment signals handled by the tracker, by kind",
		}, []string{"kind"}),
		commits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dwell",
			Name:      "commits_total",
			Help:      "Ledger commits by result",
		}, []string{"result"}),
		committedSeconds: prom.NewCounter(prom.CounterOpts{
			Namespace: "dwell",
			Name:      "committed_seconds_total",
			Help:      "Seconds of active time committed to the ledger",
		}),
		tracking: prom.NewGauge(prom.GaugeOpts{
			Namespace: "dwell",
			Name:      "tracking",
			Help:      "1 while a domain is being tracked, 0 otherwise",
		}),
	}
	reg.MustRegister(pr.signals, pr.commits, pr.committedSeconds, pr.tracking)
	return pr
}

func (p *PrometheusRecorder) IncSignal(kind string) {
	if p == nil {
		return
	}
	p.signals.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncCommit(result CommitResult) {
	if p == nil {
		return
	}
	p.commits.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) AddCommittedSeconds(seconds float64) {
	if p == nil || seconds <= 0 {
		return
	}
	p.committedSeconds.Add(seconds)
}

func (p *PrometheusRecorder) SetTracking(active bool) {
	if p == nil {
		return
	}
	if active {
		p.tracking.Set(1)
		return
	}
	p.tracking.Set(0)
}

// HTTPHandler returns an http.Handler that serves metrics from reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
