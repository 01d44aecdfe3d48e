package assign

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldops/core/model"
)

// WorkloadStats summarises how evenly clients were spread over staff.
type WorkloadStats struct {
	Staff  int     `json:"staff"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Spread int     `json:"spread"`
}

// Report is the readable summary of a persisted outcome.
type Report struct {
	Date                 time.Time                   `json:"date"`
	RunID                string                      `json:"run_id"`
	Totals               model.RunTotals             `json:"totals"`
	Workloads            []model.StaffWorkload       `json:"workloads"`
	VehicleCoverage      map[string][]string         `json:"vehicle_coverage"`
	UnassignedClients    []model.UnassignedClient    `json:"unassigned_clients"`
	UnassignedSubRegions []model.UnassignedSubRegion `json:"unassigned_subregions"`
	DataQuality          []model.DataQualityIssue    `json:"data_quality"`
	Stats                WorkloadStats               `json:"stats"`
}

// stageResults carries the output of every stage of a run.
type stageResults struct {
	due      DueResult
	pool     *StaffPool
	staff    StaffResult
	vehicles VehicleResult
}

// buildOutcome turns the stage results into the records persisted for date.
func buildOutcome(date time.Time, runID string, createdAt time.Time, r stageResults) model.Outcome {
	out := model.Outcome{Date: date, RunID: runID, CreatedAt: createdAt}

	type load struct {
		region, sub string
		clients     []string
	}
	loads := make(map[string]*load)
	for _, ca := range r.staff.Assignments {
		out.StaffAssignments = append(out.StaffAssignments, model.StaffAssignment{
			Date: date, ClientID: ca.Client.Client.ID, StaffID: ca.StaffID,
			Region: ca.Region, SubRegion: ca.SubRegion, LocationGroup: ca.LocationGroup,
			WorkloadIndex: ca.WorkloadIndex,
		})
		l, ok := loads[ca.StaffID]
		if !ok {
			l = &load{region: ca.Region, sub: ca.SubRegion}
			loads[ca.StaffID] = l
		}
		l.clients = append(l.clients, ca.Client.Client.ID)
	}
	staffIDs := make([]string, 0, len(loads))
	for id := range loads {
		staffIDs = append(staffIDs, id)
	}
	sort.Strings(staffIDs)
	for _, id := range staffIDs {
		l := loads[id]
		out.Workloads = append(out.Workloads, model.StaffWorkload{
			Date: date, StaffID: id, Region: l.region, SubRegion: l.sub, Count: len(l.clients), ClientIDs: l.clients,
		})
	}

	for _, uc := range r.staff.Unassigned {
		out.UnassignedClients = append(out.UnassignedClients, model.UnassignedClient{
			Date: date, ClientID: uc.Client.Client.ID, Region: uc.Region, SubRegion: uc.SubRegion, Reason: uc.Reason,
		})
		out.Todos = append(out.Todos, model.ReassignmentTodo{Date: date, ClientID: uc.Client.Client.ID, Reason: uc.Reason})
	}

	for _, c := range r.vehicles.Covers {
		out.SubRegionVehicles = append(out.SubRegionVehicles, model.SubRegionVehicles{
			Date: date, Region: c.Region, SubRegion: c.SubRegion, VehicleIDs: c.VehicleIDs, Strategy: c.Strategy,
		})
	}
	for _, cv := range r.vehicles.Clients {
		out.VehicleAssignments = append(out.VehicleAssignments, model.VehicleAssignment{
			Date: date, Region: cv.Region, SubRegion: cv.SubRegion, VehicleID: cv.VehicleID, ClientID: cv.ClientID,
		})
	}
	for _, u := range r.vehicles.Uncovered {
		out.UnassignedSubRegions = append(out.UnassignedSubRegions, model.UnassignedSubRegion{
			Date: date, Region: u.Region, SubRegion: u.SubRegion, ClientIDs: u.ClientIDs, MissingServices: u.Missing,
		})
	}

	out.DataQuality = append(out.DataQuality, r.due.Issues...)
	if r.pool != nil {
		out.DataQuality = append(out.DataQuality, r.pool.Issues...)
		out.Totals.StaffAvailable = r.pool.Size()
		out.Totals.StaffUnavailable = len(r.pool.Excluded)
	}
	out.Totals.Evaluated = r.due.Evaluated
	out.Totals.Due = len(r.due.Due)
	out.Totals.Assigned = len(out.StaffAssignments)
	out.Totals.Unassigned = len(out.UnassignedClients)
	out.Totals.SubRegionsCovered = len(out.SubRegionVehicles)
	out.Totals.SubRegionsUncovered = len(out.UnassignedSubRegions)
	return out
}

// Summarize builds the report of an outcome.
func Summarize(out model.Outcome) Report {
	rep := Report{
		Date:                 out.Date,
		RunID:                out.RunID,
		Totals:               out.Totals,
		Workloads:            out.Workloads,
		VehicleCoverage:      make(map[string][]string),
		UnassignedClients:    out.UnassignedClients,
		UnassignedSubRegions: out.UnassignedSubRegions,
		DataQuality:          out.DataQuality,
		Stats:                workloadStats(out.Workloads),
	}
	for _, sv := range out.SubRegionVehicles {
		for _, id := range sv.VehicleIDs {
			rep.VehicleCoverage[id] = append(rep.VehicleCoverage[id], model.SubRegionKey(sv.Region, sv.SubRegion))
		}
	}
	return rep
}

func workloadStats(ws []model.StaffWorkload) WorkloadStats {
	if len(ws) == 0 {
		return WorkloadStats{}
	}
	counts := make([]float64, len(ws))
	st := WorkloadStats{Staff: len(ws), Min: ws[0].Count, Max: ws[0].Count}
	for i, w := range ws {
		counts[i] = float64(w.Count)
		if w.Count < st.Min {
			st.Min = w.Count
		}
		if w.Count > st.Max {
			st.Max = w.Count
		}
	}
	if len(counts) < 2 {
		st.Mean = counts[0]
	} else {
		st.Mean, st.StdDev = stat.PopMeanStdDev(counts, nil)
	}
	st.Spread = st.Max - st.Min
	return st
}
