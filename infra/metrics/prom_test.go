package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	ev := coremetrics.RunEvent{
		Status:         "completed",
		Duration:       200 * time.Millisecond,
		Totals:         model.RunTotals{Evaluated: 5, Due: 4, Assigned: 3, Unassigned: 1, SubRegionsCovered: 2},
		WorkloadSpread: 1,
		WorkloadStdDev: 0.5,
	}
	if err := sink.RecordRun(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.RecordRun(coremetrics.RunEvent{Status: "skipped", SkipReason: "blackout_weekday"}); err != nil {
		t.Fatalf("record skip: %v", err)
	}

	expected := `
# HELP fieldops_runs_total Total number of assignment runs by status
# TYPE fieldops_runs_total counter
fieldops_runs_total{skip_reason="",status="completed"} 1
fieldops_runs_total{skip_reason="blackout_weekday",status="skipped"} 1
`
	if err := testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.clients.WithLabelValues("assigned")); v != 3 {
		t.Errorf("assigned gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.spread); v != 1 {
		t.Errorf("spread gauge = %v", v)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 1 {
		t.Errorf("duration not recorded")
	}
}

func TestPromSink_RecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	out := model.Outcome{
		Workloads:         []model.StaffWorkload{{StaffID: "S1", Count: 3}, {StaffID: "S2", Count: 2}},
		UnassignedClients: []model.UnassignedClient{{ClientID: "c9", Reason: model.ReasonNoAccess}},
	}
	if err := sink.RecordOutcome(out); err != nil {
		t.Fatalf("record: %v", err)
	}
	if v := testutil.ToFloat64(sink.workload.WithLabelValues("S1")); v != 3 {
		t.Errorf("S1 workload = %v", v)
	}

	// A later outcome without S2 drops its series.
	if err := sink.RecordOutcome(model.Outcome{Workloads: []model.StaffWorkload{{StaffID: "S1", Count: 1}}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if c := testutil.CollectAndCount(sink.workload); c != 1 {
		t.Errorf("expected 1 workload series, got %d", c)
	}
	if v := testutil.ToFloat64(sink.unassigned.WithLabelValues(model.ReasonNoAccess)); v != 1 {
		t.Errorf("unassigned counter = %v", v)
	}
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = a.RecordRun(coremetrics.RunEvent{Status: "failed"})
	_ = b.RecordRun(coremetrics.RunEvent{Status: "failed"})
	if v := testutil.ToFloat64(a.runs.WithLabelValues("failed", "")); v != 2 {
		t.Errorf("shared counter = %v", v)
	}
}
