package model

import "time"

// StaffAssignment binds a due client to a staff member for a date.
type StaffAssignment struct {
	Date          time.Time `json:"date"`
	ClientID      string    `json:"client_id"`
	StaffID       string    `json:"staff_id"`
	Region        string    `json:"region"`
	SubRegion     string    `json:"subregion"`
	LocationGroup string    `json:"location_group"`
	// WorkloadIndex is the staff member's running count after this client.
	WorkloadIndex int `json:"workload_index"`
}

// VehicleAssignment binds a client to the vehicle carrying its equipment.
type VehicleAssignment struct {
	Date      time.Time `json:"date"`
	Region    string    `json:"region"`
	SubRegion string    `json:"subregion"`
	VehicleID string    `json:"vehicle_id"`
	ClientID  string    `json:"client_id"`
}

// Vehicle strategies.
const (
	StrategySingle = "single"
	StrategyTeam   = "team"
)

// SubRegionVehicles lists the vehicles covering a subregion.
type SubRegionVehicles struct {
	Date       time.Time `json:"date"`
	Region     string    `json:"region"`
	SubRegion  string    `json:"subregion"`
	VehicleIDs []string  `json:"vehicle_ids"`
	Strategy   string    `json:"strategy"`
}

// Unassigned client reasons.
const (
	ReasonNoSpecialization = "no_specialization_match"
	ReasonNoAccess         = "no_access"
	ReasonNoAvailability   = "no_availability"
)

// UnassignedClient is an audit entry for a due client without staff.
type UnassignedClient struct {
	Date      time.Time `json:"date"`
	ClientID  string    `json:"client_id"`
	Region    string    `json:"region"`
	SubRegion string    `json:"subregion"`
	Reason    string    `json:"reason"`
}

// UnassignedSubRegion is an audit entry for a subregion without vehicle cover.
type UnassignedSubRegion struct {
	Date            time.Time `json:"date"`
	Region          string    `json:"region"`
	SubRegion       string    `json:"subregion"`
	ClientIDs       []string  `json:"client_ids"`
	MissingServices []string  `json:"missing_services"`
}

// ReassignmentTodo flags a client for manual follow-up.
type ReassignmentTodo struct {
	Date     time.Time `json:"date"`
	ClientID string    `json:"client_id"`
	Reason   string    `json:"reason"`
}

// StaffWorkload is the per-staff result of a run.
type StaffWorkload struct {
	Date      time.Time `json:"date"`
	StaffID   string    `json:"staff_id"`
	Region    string    `json:"region"`
	SubRegion string    `json:"subregion"`
	Count     int       `json:"count"`
	ClientIDs []string  `json:"client_ids"`
}

// DataQualityIssue records an entity skipped because of bad source data.
type DataQualityIssue struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// RunTotals is the pre-calculated summary of a run.
type RunTotals struct {
	Evaluated           int `json:"evaluated"`
	Due                 int `json:"due"`
	Assigned            int `json:"assigned"`
	Unassigned          int `json:"unassigned"`
	SubRegionsCovered   int `json:"subregions_covered"`
	SubRegionsUncovered int `json:"subregions_uncovered"`
	StaffAvailable      int `json:"staff_available"`
	StaffUnavailable    int `json:"staff_unavailable"`
}

// Outcome is everything a run persists for one target date. Writing an
// outcome replaces any previous outcome for the same date.
type Outcome struct {
	Date                 time.Time             `json:"date"`
	RunID                string                `json:"run_id"`
	CreatedAt            time.Time             `json:"created_at"`
	Totals               RunTotals             `json:"totals"`
	StaffAssignments     []StaffAssignment     `json:"staff_assignments"`
	VehicleAssignments   []VehicleAssignment   `json:"vehicle_assignments"`
	SubRegionVehicles    []SubRegionVehicles   `json:"subregion_vehicles"`
	UnassignedClients    []UnassignedClient    `json:"unassigned_clients"`
	UnassignedSubRegions []UnassignedSubRegion `json:"unassigned_subregions"`
	Todos                []ReassignmentTodo    `json:"todos"`
	Workloads            []StaffWorkload       `json:"workloads"`
	DataQuality          []DataQualityIssue    `json:"data_quality"`
}
