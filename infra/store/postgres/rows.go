package postgres

import (
	"time"

	"github.com/kilianp07/fieldops/core/model"
)

// Input tables.

type clientRow struct {
	ID              string     `gorm:"column:id;primaryKey"`
	CompanyName     string     `gorm:"column:company_name"`
	Region          string     `gorm:"column:region"`
	Route           string     `gorm:"column:route"`
	SiteID          string     `gorm:"column:site_id"`
	Services        []string   `gorm:"column:services;serializer:json"`
	Frequency       string     `gorm:"column:frequency"`
	LastServiceDate *time.Time `gorm:"column:last_service_date;type:date"`
	Quantity        *int       `gorm:"column:quantity"`
	Active          bool       `gorm:"column:active"`
	Inactive        bool       `gorm:"column:inactive"`
	Prospect        bool       `gorm:"column:prospect"`
}

func (clientRow) TableName() string { return "clients" }

func newClientRow(c model.Client) clientRow {
	return clientRow{
		ID: c.ID, CompanyName: c.CompanyName, Region: c.Region, Route: c.Route, SiteID: c.SiteID,
		Services: c.Services, Frequency: c.Frequency, LastServiceDate: c.LastServiceDate, Quantity: c.Quantity,
		Active: c.Active, Inactive: c.Inactive, Prospect: c.Prospect,
	}
}

func (r clientRow) model() model.Client {
	var last *time.Time
	if r.LastServiceDate != nil {
		d := model.Day(*r.LastServiceDate)
		last = &d
	}
	return model.Client{
		ID: r.ID, CompanyName: r.CompanyName, Region: r.Region, Route: r.Route, SiteID: r.SiteID,
		Services: r.Services, Frequency: r.Frequency, LastServiceDate: last, Quantity: r.Quantity,
		Active: r.Active, Inactive: r.Inactive, Prospect: r.Prospect,
	}
}

type staffRow struct {
	ID              string   `gorm:"column:id;primaryKey"`
	Name            string   `gorm:"column:name"`
	Region          string   `gorm:"column:region"`
	Specializations []string `gorm:"column:specializations;serializer:json"`
	HandlesAll      bool     `gorm:"column:handles_all"`
	MultiRegion     bool     `gorm:"column:multi_region"`
	OnLeave         bool     `gorm:"column:on_leave"`
	LaidOff         bool     `gorm:"column:laid_off"`
	Emergency       bool     `gorm:"column:emergency"`
	Active          bool     `gorm:"column:active"`
}

func (staffRow) TableName() string { return "staff" }

func newStaffRow(s model.Staff) staffRow {
	return staffRow{
		ID: s.ID, Name: s.Name, Region: s.Region, Specializations: s.Specializations,
		HandlesAll: s.HandlesAll, MultiRegion: s.MultiRegion, OnLeave: s.OnLeave,
		LaidOff: s.LaidOff, Emergency: s.Emergency, Active: s.Active,
	}
}

func (r staffRow) model() model.Staff {
	return model.Staff{
		ID: r.ID, Name: r.Name, Region: r.Region, Specializations: r.Specializations,
		HandlesAll: r.HandlesAll, MultiRegion: r.MultiRegion, OnLeave: r.OnLeave,
		LaidOff: r.LaidOff, Emergency: r.Emergency, Active: r.Active,
	}
}

type vehicleRow struct {
	ID              string   `gorm:"column:id;primaryKey"`
	Name            string   `gorm:"column:name"`
	Region          string   `gorm:"column:region"`
	Capacity        int      `gorm:"column:capacity"`
	Specializations []string `gorm:"column:specializations;serializer:json"`
	HandlesAll      bool     `gorm:"column:handles_all"`
	Available       bool     `gorm:"column:available"`
}

func (vehicleRow) TableName() string { return "vehicles" }

func newVehicleRow(v model.Vehicle) vehicleRow {
	return vehicleRow{
		ID: v.ID, Name: v.Name, Region: v.Region, Capacity: v.Capacity,
		Specializations: v.Specializations, HandlesAll: v.HandlesAll, Available: v.Available,
	}
}

func (r vehicleRow) model() model.Vehicle {
	return model.Vehicle{
		ID: r.ID, Name: r.Name, Region: r.Region, Capacity: r.Capacity,
		Specializations: r.Specializations, HandlesAll: r.HandlesAll, Available: r.Available,
	}
}

type subRegionRow struct {
	ID           uint     `gorm:"column:id;primaryKey"`
	Region       string   `gorm:"column:region"`
	Name         string   `gorm:"column:name"`
	Routes       []string `gorm:"column:routes;serializer:json"`
	AllowedStaff []string `gorm:"column:allowed_staff;serializer:json"`
}

func (subRegionRow) TableName() string { return "subregions" }

type specialAccessRow struct {
	ID           uint     `gorm:"column:id;primaryKey"`
	ClientID     string   `gorm:"column:client_id"`
	AllowedStaff []string `gorm:"column:allowed_staff;serializer:json"`
	Comment      string   `gorm:"column:comment"`
}

func (specialAccessRow) TableName() string { return "special_access" }

type frequencyRow struct {
	Name         string `gorm:"column:name;primaryKey"`
	Label        string `gorm:"column:label"`
	IntervalDays int    `gorm:"column:interval_days"`
	Active       bool   `gorm:"column:active"`
}

func (frequencyRow) TableName() string { return "frequencies" }

type settingsRow struct {
	ID       int                      `gorm:"column:id;primaryKey"`
	Settings model.AssignmentSettings `gorm:"column:settings;serializer:json"`
}

func (settingsRow) TableName() string { return "assignment_settings" }

// Outcome tables. Every row carries the target date it belongs to.

type runSummaryRow struct {
	Date      time.Time       `gorm:"column:date;type:date;primaryKey"`
	RunID     string          `gorm:"column:run_id"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	Totals    model.RunTotals `gorm:"column:totals;serializer:json"`
}

func (runSummaryRow) TableName() string { return "run_summaries" }

type staffAssignmentRow struct {
	ID            uint      `gorm:"column:id;primaryKey"`
	Date          time.Time `gorm:"column:date;type:date"`
	ClientID      string    `gorm:"column:client_id"`
	StaffID       string    `gorm:"column:staff_id"`
	Region        string    `gorm:"column:region"`
	SubRegion     string    `gorm:"column:subregion"`
	LocationGroup string    `gorm:"column:location_group"`
	WorkloadIndex int       `gorm:"column:workload_index"`
}

func (staffAssignmentRow) TableName() string { return "staff_assignments" }

type vehicleAssignmentRow struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Date      time.Time `gorm:"column:date;type:date"`
	Region    string    `gorm:"column:region"`
	SubRegion string    `gorm:"column:subregion"`
	VehicleID string    `gorm:"column:vehicle_id"`
	ClientID  string    `gorm:"column:client_id"`
}

func (vehicleAssignmentRow) TableName() string { return "vehicle_assignments" }

type subRegionVehiclesRow struct {
	ID         uint      `gorm:"column:id;primaryKey"`
	Date       time.Time `gorm:"column:date;type:date"`
	Region     string    `gorm:"column:region"`
	SubRegion  string    `gorm:"column:subregion"`
	VehicleIDs []string  `gorm:"column:vehicle_ids;serializer:json"`
	Strategy   string    `gorm:"column:strategy"`
}

func (subRegionVehiclesRow) TableName() string { return "subregion_vehicles" }

type unassignedClientRow struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Date      time.Time `gorm:"column:date;type:date"`
	ClientID  string    `gorm:"column:client_id"`
	Region    string    `gorm:"column:region"`
	SubRegion string    `gorm:"column:subregion"`
	Reason    string    `gorm:"column:reason"`
}

func (unassignedClientRow) TableName() string { return "unassigned_clients" }

type unassignedSubRegionRow struct {
	ID              uint      `gorm:"column:id;primaryKey"`
	Date            time.Time `gorm:"column:date;type:date"`
	Region          string    `gorm:"column:region"`
	SubRegion       string    `gorm:"column:subregion"`
	ClientIDs       []string  `gorm:"column:client_ids;serializer:json"`
	MissingServices []string  `gorm:"column:missing_services;serializer:json"`
}

func (unassignedSubRegionRow) TableName() string { return "unassigned_subregions" }

type todoRow struct {
	ID       uint      `gorm:"column:id;primaryKey"`
	Date     time.Time `gorm:"column:date;type:date"`
	ClientID string    `gorm:"column:client_id"`
	Reason   string    `gorm:"column:reason"`
}

func (todoRow) TableName() string { return "reassignment_todos" }

type workloadRow struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Date      time.Time `gorm:"column:date;type:date"`
	StaffID   string    `gorm:"column:staff_id"`
	Region    string    `gorm:"column:region"`
	SubRegion string    `gorm:"column:subregion"`
	Count     int       `gorm:"column:client_count"`
	ClientIDs []string  `gorm:"column:client_ids;serializer:json"`
}

func (workloadRow) TableName() string { return "staff_workloads" }

type dataQualityRow struct {
	ID       uint      `gorm:"column:id;primaryKey"`
	Date     time.Time `gorm:"column:date;type:date"`
	Entity   string    `gorm:"column:entity"`
	RecordID string    `gorm:"column:record_id"`
	Reason   string    `gorm:"column:reason"`
}

func (dataQualityRow) TableName() string { return "data_quality_issues" }

// outcomeTables lists the per-date tables cleared when an outcome is replaced.
var outcomeTables = []any{
	&staffAssignmentRow{}, &vehicleAssignmentRow{}, &subRegionVehiclesRow{},
	&unassignedClientRow{}, &unassignedSubRegionRow{}, &todoRow{},
	&workloadRow{}, &dataQualityRow{}, &runSummaryRow{},
}

// outcomeRows splits an outcome into the rows of every outcome table.
type outcomeRows struct {
	summary    runSummaryRow
	staff      []staffAssignmentRow
	vehicles   []vehicleAssignmentRow
	subregions []subRegionVehiclesRow
	unassigned []unassignedClientRow
	uncovered  []unassignedSubRegionRow
	todos      []todoRow
	workloads  []workloadRow
	quality    []dataQualityRow
}

func newOutcomeRows(out model.Outcome) outcomeRows {
	d := model.Day(out.Date)
	r := outcomeRows{summary: runSummaryRow{Date: d, RunID: out.RunID, CreatedAt: out.CreatedAt.UTC(), Totals: out.Totals}}
	for _, a := range out.StaffAssignments {
		r.staff = append(r.staff, staffAssignmentRow{Date: d, ClientID: a.ClientID, StaffID: a.StaffID,
			Region: a.Region, SubRegion: a.SubRegion, LocationGroup: a.LocationGroup, WorkloadIndex: a.WorkloadIndex})
	}
	for _, a := range out.VehicleAssignments {
		r.vehicles = append(r.vehicles, vehicleAssignmentRow{Date: d, Region: a.Region, SubRegion: a.SubRegion,
			VehicleID: a.VehicleID, ClientID: a.ClientID})
	}
	for _, s := range out.SubRegionVehicles {
		r.subregions = append(r.subregions, subRegionVehiclesRow{Date: d, Region: s.Region, SubRegion: s.SubRegion,
			VehicleIDs: s.VehicleIDs, Strategy: s.Strategy})
	}
	for _, u := range out.UnassignedClients {
		r.unassigned = append(r.unassigned, unassignedClientRow{Date: d, ClientID: u.ClientID, Region: u.Region,
			SubRegion: u.SubRegion, Reason: u.Reason})
	}
	for _, u := range out.UnassignedSubRegions {
		r.uncovered = append(r.uncovered, unassignedSubRegionRow{Date: d, Region: u.Region, SubRegion: u.SubRegion,
			ClientIDs: u.ClientIDs, MissingServices: u.MissingServices})
	}
	for _, t := range out.Todos {
		r.todos = append(r.todos, todoRow{Date: d, ClientID: t.ClientID, Reason: t.Reason})
	}
	for _, w := range out.Workloads {
		r.workloads = append(r.workloads, workloadRow{Date: d, StaffID: w.StaffID, Region: w.Region,
			SubRegion: w.SubRegion, Count: w.Count, ClientIDs: w.ClientIDs})
	}
	for _, q := range out.DataQuality {
		r.quality = append(r.quality, dataQualityRow{Date: d, Entity: q.Entity, RecordID: q.ID, Reason: q.Reason})
	}
	return r
}

func (r outcomeRows) model() model.Outcome {
	d := model.Day(r.summary.Date)
	out := model.Outcome{Date: d, RunID: r.summary.RunID, CreatedAt: r.summary.CreatedAt.UTC(), Totals: r.summary.Totals}
	for _, a := range r.staff {
		out.StaffAssignments = append(out.StaffAssignments, model.StaffAssignment{Date: d, ClientID: a.ClientID,
			StaffID: a.StaffID, Region: a.Region, SubRegion: a.SubRegion, LocationGroup: a.LocationGroup,
			WorkloadIndex: a.WorkloadIndex})
	}
	for _, a := range r.vehicles {
		out.VehicleAssignments = append(out.VehicleAssignments, model.VehicleAssignment{Date: d, Region: a.Region,
			SubRegion: a.SubRegion, VehicleID: a.VehicleID, ClientID: a.ClientID})
	}
	for _, s := range r.subregions {
		out.SubRegionVehicles = append(out.SubRegionVehicles, model.SubRegionVehicles{Date: d, Region: s.Region,
			SubRegion: s.SubRegion, VehicleIDs: s.VehicleIDs, Strategy: s.Strategy})
	}
	for _, u := range r.unassigned {
		out.UnassignedClients = append(out.UnassignedClients, model.UnassignedClient{Date: d, ClientID: u.ClientID,
			Region: u.Region, SubRegion: u.SubRegion, Reason: u.Reason})
	}
	for _, u := range r.uncovered {
		out.UnassignedSubRegions = append(out.UnassignedSubRegions, model.UnassignedSubRegion{Date: d,
			Region: u.Region, SubRegion: u.SubRegion, ClientIDs: u.ClientIDs, MissingServices: u.MissingServices})
	}
	for _, t := range r.todos {
		out.Todos = append(out.Todos, model.ReassignmentTodo{Date: d, ClientID: t.ClientID, Reason: t.Reason})
	}
	for _, w := range r.workloads {
		out.Workloads = append(out.Workloads, model.StaffWorkload{Date: d, StaffID: w.StaffID, Region: w.Region,
			SubRegion: w.SubRegion, Count: w.Count, ClientIDs: w.ClientIDs})
	}
	for _, q := range r.quality {
		out.DataQuality = append(out.DataQuality, model.DataQualityIssue{Entity: q.Entity, ID: q.RecordID, Reason: q.Reason})
	}
	return out
}
