package model

import (
	"errors"
	"fmt"
	"time"
)

// StaffingBands gives the minimum staff required per subregion for each
// client-count band.
type StaffingBands struct {
	Low      int `json:"low"`
	Mid      int `json:"mid"`
	High     int `json:"high"`
	Overflow int `json:"overflow"`
}

// AssignmentSettings is the process-wide configuration read once per run.
type AssignmentSettings struct {
	// Enabled is the global run switch. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`
	// NoAutomationWeekday skips target dates on this weekday (0=Sunday).
	// Nil or -1 disables the blackout.
	NoAutomationWeekday *int          `json:"no_automation_weekday,omitempty"`
	Bands               StaffingBands `json:"bands"`
	LowClientThreshold  int           `json:"low_client_threshold"`
	MidClientThreshold  int           `json:"mid_client_threshold"`
	HighClientThreshold int           `json:"high_client_threshold"`
	// ServiceCheck is the service type whose quantity triggers escalation.
	ServiceCheck string `json:"service_check"`
	MaxQuantity  int    `json:"max_quantity"`
	// RegionPriority orders regions processed first; others follow by name.
	RegionPriority []string `json:"region_priority"`
}

// DefaultSettings returns the operational defaults.
func DefaultSettings() AssignmentSettings {
	var s AssignmentSettings
	s.SetDefaults()
	blackout := 0
	s.NoAutomationWeekday = &blackout
	return s
}

// SetDefaults fills unset numeric and list fields. The blackout weekday is
// left untouched since nil is meaningful.
func (s *AssignmentSettings) SetDefaults() {
	if s.Bands.Low == 0 {
		s.Bands.Low = 1
	}
	if s.Bands.Mid == 0 {
		s.Bands.Mid = 2
	}
	if s.Bands.High == 0 {
		s.Bands.High = 3
	}
	if s.Bands.Overflow == 0 {
		s.Bands.Overflow = 4
	}
	if s.LowClientThreshold == 0 {
		s.LowClientThreshold = 10
	}
	if s.MidClientThreshold == 0 {
		s.MidClientThreshold = 20
	}
	if s.HighClientThreshold == 0 {
		s.HighClientThreshold = 30
	}
	if s.ServiceCheck == "" {
		s.ServiceCheck = "sanitary_bins"
	}
	if s.MaxQuantity == 0 {
		s.MaxQuantity = 25
	}
	if len(s.RegionPriority) == 0 {
		s.RegionPriority = []string{"eastern", "coast", "western", "north western", "nairobi"}
	}
}

// Blackout returns the blackout weekday, if any.
func (s AssignmentSettings) Blackout() (time.Weekday, bool) {
	w := s.NoAutomationWeekday
	if w == nil || *w < 0 || *w > 6 {
		return 0, false
	}
	return time.Weekday(*w), true
}

// IsEnabled reports the global run switch.
func (s AssignmentSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// RequiredStaff returns the minimum staffing level for a subregion with the
// given number of due clients.
func (s AssignmentSettings) RequiredStaff(clients int) int {
	switch {
	case clients <= s.LowClientThreshold:
		return s.Bands.Low
	case clients <= s.MidClientThreshold:
		return s.Bands.Mid
	case clients <= s.HighClientThreshold:
		return s.Bands.High
	default:
		return s.Bands.Overflow
	}
}

// Validate checks band and threshold consistency.
func (s AssignmentSettings) Validate() error {
	b := s.Bands
	if b.Low < 1 || b.Mid < b.Low || b.High < b.Mid || b.Overflow < b.High {
		return errors.New("staffing bands must be positive and non-decreasing")
	}
	if s.LowClientThreshold < 1 || s.MidClientThreshold < s.LowClientThreshold || s.HighClientThreshold < s.MidClientThreshold {
		return errors.New("client thresholds must be positive and non-decreasing")
	}
	if s.MaxQuantity < 0 {
		return fmt.Errorf("max_quantity must not be negative: %d", s.MaxQuantity)
	}
	if w := s.NoAutomationWeekday; w != nil && (*w < -1 || *w > 6) {
		return fmt.Errorf("no_automation_weekday out of range: %d", *w)
	}
	return nil
}
