// Package export renders run results for the command line.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/model"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSummary writes a readable run summary to w.
func WriteSummary(w io.Writer, sum assign.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "date\t%s\n", model.DateKey(sum.Date))
	fmt.Fprintf(tw, "run\t%s\n", sum.RunID)
	fmt.Fprintf(tw, "status\t%s\n", sum.Status)
	if sum.SkipReason != assign.SkipNone {
		fmt.Fprintf(tw, "skip reason\t%s\n", sum.SkipReason)
	}
	if sum.Message != "" {
		fmt.Fprintf(tw, "message\t%s\n", sum.Message)
	}
	if sum.Status != assign.RunCompleted {
		return tw.Flush()
	}
	t := sum.Totals
	fmt.Fprintf(tw, "clients\t%d evaluated, %d due, %d assigned, %d unassigned\n", t.Evaluated, t.Due, t.Assigned, t.Unassigned)
	fmt.Fprintf(tw, "staff\t%d available, %d unavailable\n", t.StaffAvailable, t.StaffUnavailable)
	fmt.Fprintf(tw, "subregions\t%d covered, %d uncovered\n", t.SubRegionsCovered, t.SubRegionsUncovered)
	fmt.Fprintf(tw, "workload\tmean %.2f, std dev %.2f, spread %d\n", sum.Stats.Mean, sum.Stats.StdDev, sum.Stats.Spread)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sum.Workloads) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STAFF\tSUBREGION\tCLIENTS\tIDS")
		for _, wl := range sum.Workloads {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", wl.StaffID, model.SubRegionKey(wl.Region, wl.SubRegion), wl.Count, strings.Join(wl.ClientIDs, ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(sum.VehicleCoverage) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VEHICLE\tSUBREGIONS")
		ids := make([]string, 0, len(sum.VehicleCoverage))
		for id := range sum.VehicleCoverage {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(tw, "%s\t%s\n", id, strings.Join(sum.VehicleCoverage[id], ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(sum.UnassignedClients) > 0 || len(sum.UnassignedSubRegions) > 0 || len(sum.DataQuality) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tID\tDETAIL")
		for _, u := range sum.UnassignedClients {
			fmt.Fprintf(tw, "unassigned client\t%s\t%s (%s)\n", u.ClientID, u.Reason, model.SubRegionKey(u.Region, u.SubRegion))
		}
		for _, u := range sum.UnassignedSubRegions {
			fmt.Fprintf(tw, "uncovered subregion\t%s\tmissing %s\n", model.SubRegionKey(u.Region, u.SubRegion), strings.Join(u.MissingServices, ","))
		}
		for _, q := range sum.DataQuality {
			fmt.Fprintf(tw, "data quality\t%s %s\t%s\n", q.Entity, q.ID, q.Reason)
		}
		return tw.Flush()
	}
	return nil
}
