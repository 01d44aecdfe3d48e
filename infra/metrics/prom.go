package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
)

// PromSink records assignment runs in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	clients    *prometheus.GaugeVec
	subregions *prometheus.GaugeVec
	spread     prometheus.Gauge
	stddev     prometheus.Gauge
	workload   *prometheus.GaugeVec
	unassigned *prometheus.CounterVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The HTTP endpoint is served by the API server.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_runs_total",
			Help: "Total number of assignment runs by status",
		}, []string{"status", "skip_reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldops_run_duration_seconds",
			Help:    "Duration of assignment runs",
			Buckets: prometheus.DefBuckets,
		}),
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fieldops_run_clients",
			Help: "Clients of the last completed run by state",
		}, []string{"state"}),
		subregions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fieldops_run_subregions",
			Help: "Subregions of the last completed run by vehicle coverage",
		}, []string{"coverage"}),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldops_workload_spread",
			Help: "Difference between the busiest and the least busy staff member",
		}),
		stddev: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldops_workload_stddev",
			Help: "Standard deviation of clients per assigned staff member",
		}),
		workload: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fieldops_staff_workload",
			Help: "Clients assigned to each staff member in the last committed outcome",
		}, []string{"staff_id"}),
		unassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_unassigned_clients_total",
			Help: "Clients left without staff by reason",
		}, []string{"reason"}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.clients, err = register(reg, s.clients); err != nil {
		return nil, err
	}
	if s.subregions, err = register(reg, s.subregions); err != nil {
		return nil, err
	}
	if s.spread, err = register(reg, s.spread); err != nil {
		return nil, err
	}
	if s.stddev, err = register(reg, s.stddev); err != nil {
		return nil, err
	}
	if s.workload, err = register(reg, s.workload); err != nil {
		return nil, err
	}
	if s.unassigned, err = register(reg, s.unassigned); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when an identical one
// exists, so several sinks can share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the run counters. Gauges only follow completed runs.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Status, ev.SkipReason).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	if ev.Status != "completed" {
		return nil
	}
	s.clients.WithLabelValues("evaluated").Set(float64(ev.Totals.Evaluated))
	s.clients.WithLabelValues("due").Set(float64(ev.Totals.Due))
	s.clients.WithLabelValues("assigned").Set(float64(ev.Totals.Assigned))
	s.clients.WithLabelValues("unassigned").Set(float64(ev.Totals.Unassigned))
	s.subregions.WithLabelValues("covered").Set(float64(ev.Totals.SubRegionsCovered))
	s.subregions.WithLabelValues("uncovered").Set(float64(ev.Totals.SubRegionsUncovered))
	s.spread.Set(float64(ev.WorkloadSpread))
	s.stddev.Set(ev.WorkloadStdDev)
	return nil
}

// RecordOutcome replaces the per-staff workload gauges and counts unassigned
// clients by reason.
func (s *PromSink) RecordOutcome(out model.Outcome) error {
	s.workload.Reset()
	for _, w := range out.Workloads {
		s.workload.WithLabelValues(w.StaffID).Set(float64(w.Count))
	}
	for _, u := range out.UnassignedClients {
		s.unassigned.WithLabelValues(u.Reason).Inc()
	}
	return nil
}
