package model

// UnmappedSubRegion is the sentinel subregion holding clients whose route does
// not belong to any configured subregion.
const UnmappedSubRegion = "unmapped"

// SubRegion groups routes of a region. AllowedStaff restricts who may serve its
// clients; an empty list means unrestricted.
type SubRegion struct {
	Region       string   `json:"region"`
	Name         string   `json:"name"`
	Routes       []string `json:"routes"`
	AllowedStaff []string `json:"allowed_staff,omitempty"`
}

// Key identifies the subregion inside the run.
func (s SubRegion) Key() string { return SubRegionKey(s.Region, s.Name) }

// SubRegionKey builds the normalised region/subregion key.
func SubRegionKey(region, name string) string {
	return NormalizeKey(region) + "/" + NormalizeKey(name)
}

// SpecialAccess restricts a single client to an explicit list of staff,
// overriding any subregion restriction for that client.
type SpecialAccess struct {
	ClientID     string   `json:"client_id"`
	AllowedStaff []string `json:"allowed_staff"`
	Comment      string   `json:"comment,omitempty"`
}

// FrequencySetting maps a named visit frequency to its interval.
type FrequencySetting struct {
	Name         string `json:"name"`
	Label        string `json:"label,omitempty"`
	IntervalDays int    `json:"interval_days"`
	Active       bool   `json:"active"`
}

// FallbackIntervals is used when no active FrequencySetting exists for a name.
var FallbackIntervals = map[string]int{
	"weekly":      7,
	"bi-weekly":   4,
	"bi-monthly":  14,
	"tri-monthly": 10,
	"monthly":     28,
}
