package scenarios

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

// Run imports the scenario into a fresh in-memory store, runs every history
// date and then the target date. It returns the summary and the committed
// outcome of the target run. A skipped target run has an empty outcome.
func (sc *Scenario) Run(ctx context.Context, log logger.Logger) (assign.RunSummary, model.Outcome, error) {
	target, err := sc.Target()
	if err != nil {
		return assign.RunSummary{}, model.Outcome{}, err
	}
	ds, err := sc.Dataset()
	if err != nil {
		return assign.RunSummary{}, model.Outcome{}, err
	}
	st := store.NewMemoryStore(ds)
	defer func() { _ = st.Close() }()

	cfg := assign.Config{LeadDays: sc.LeadDays}
	cfg.SetDefaults()
	eng := assign.NewEngine(st, cfg, log)

	for _, h := range sc.History {
		d, err := model.ParseDate(h)
		if err != nil {
			return assign.RunSummary{}, model.Outcome{}, fmt.Errorf("history date %q: %w", h, err)
		}
		if _, err := eng.Run(ctx, d); err != nil {
			return assign.RunSummary{}, model.Outcome{}, fmt.Errorf("history run %s: %w", h, err)
		}
	}

	sum, err := eng.Run(ctx, target)
	if err != nil {
		return sum, model.Outcome{}, err
	}
	if sum.Status != assign.RunCompleted {
		return sum, model.Outcome{}, nil
	}
	out, err := st.Outcome(ctx, target)
	if err != nil {
		return sum, model.Outcome{}, err
	}
	return sum, out, nil
}

// Check compares a run against the expectations and returns one message per
// mismatch.
func (e Expected) Check(sum assign.RunSummary, out model.Outcome) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}
	if e.Status != "" && string(sum.Status) != e.Status {
		fail("status: got %s want %s", sum.Status, e.Status)
	}
	if e.SkipReason != "" && string(sum.SkipReason) != e.SkipReason {
		fail("skip reason: got %q want %q", sum.SkipReason, e.SkipReason)
	}
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			fail("%s: got %d want %d", name, got, *want)
		}
	}
	checkInt("due", e.Due, out.Totals.Due)
	checkInt("assigned", e.Assigned, out.Totals.Assigned)
	checkInt("unassigned", e.Unassigned, out.Totals.Unassigned)
	if e.MaxSpread != nil && sum.Stats.Spread > *e.MaxSpread {
		fail("workload spread: got %d want at most %d", sum.Stats.Spread, *e.MaxSpread)
	}

	staff := make(map[string]string, len(out.StaffAssignments))
	for _, a := range out.StaffAssignments {
		staff[a.ClientID] = a.StaffID
	}
	for client, want := range e.Staff {
		if got := staff[client]; got != want {
			fail("staff of %s: got %q want %q", client, got, want)
		}
	}

	reasons := make(map[string]string, len(out.UnassignedClients))
	for _, u := range out.UnassignedClients {
		reasons[u.ClientID] = u.Reason
	}
	for client, want := range e.Reasons {
		if got := reasons[client]; got != want {
			fail("reason of %s: got %q want %q", client, got, want)
		}
	}

	vehicles := make(map[string][]string, len(out.SubRegionVehicles))
	for _, sv := range out.SubRegionVehicles {
		vehicles[model.SubRegionKey(sv.Region, sv.SubRegion)] = sv.VehicleIDs
	}
	for key, want := range e.Vehicles {
		if got := vehicles[key]; !sameSet(got, want) {
			fail("vehicles of %s: got %v want %v", key, got, want)
		}
	}

	if e.Uncovered != nil {
		var got []string
		for _, u := range out.UnassignedSubRegions {
			got = append(got, model.SubRegionKey(u.Region, u.SubRegion))
		}
		if !sameSet(got, e.Uncovered) {
			fail("uncovered subregions: got %v want %v", got, e.Uncovered)
		}
	}
	if e.DataQuality != nil {
		var got []string
		for _, q := range out.DataQuality {
			got = append(got, q.ID)
		}
		if !sameSet(got, e.DataQuality) {
			fail("data quality: got %v want %v", got, e.DataQuality)
		}
	}
	return errs
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	return strings.Join(x, "\x00") == strings.Join(y, "\x00")
}
