package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"flux-exporter/internal/model"
)

const (
	prometheusNamespace = "flux"

	jobCountName = "job_count"
	nodesUpName  = "nodes_up"
	stateLabel   = "state"
)

// Exporter adapts a Registry to prometheus.Collector. Each scrape reads one
// Snapshot, so the job_count family is always emitted from a single tally.
type Exporter struct {
	registry *Registry
	jobCount *prometheus.Desc
	nodesUp  *prometheus.Desc
}

func NewExporter(r *Registry) *Exporter {
	return &Exporter{
		registry: r,
		jobCount: prometheus.NewDesc(
			prometheus.BuildFQName(prometheusNamespace, "", jobCountName),
			"Number of jobs in Flux",
			[]string{stateLabel}, nil,
		),
		nodesUp: prometheus.NewDesc(
			prometheus.BuildFQName(prometheusNamespace, "", nodesUpName),
			"Number of online nodes",
			nil, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.jobCount
	ch <- e.nodesUp
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.registry.Snapshot()
	for _, b := range model.AllBuckets() {
		ch <- prometheus.MustNewConstMetric(e.jobCount, prometheus.GaugeValue, float64(snap.Jobs.Get(b)), b.String())
	}
	ch <- prometheus.MustNewConstMetric(e.nodesUp, prometheus.GaugeValue, float64(snap.NodesUp))
}

// NewPrometheusRegistry returns a dedicated prometheus registry holding only
// the exporter's two gauge families.
func NewPrometheusRegistry(r *Registry) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(r))
	return reg
}
