package model

// Unavailability reasons reported for staff excluded from a run.
const (
	StaffInactive  = "inactive"
	StaffOnLeave   = "on_leave"
	StaffLaidOff   = "laid_off"
	StaffEmergency = "emergency"
)

// Staff is a field technician.
type Staff struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Region          string   `json:"region"`
	Specializations []string `json:"specializations"`
	// HandlesAll marks a technician qualified for every service type.
	HandlesAll  bool `json:"handles_all"`
	MultiRegion bool `json:"multi_region"`
	OnLeave     bool `json:"on_leave"`
	LaidOff     bool `json:"laid_off"`
	Emergency   bool `json:"emergency"`
	Active      bool `json:"active"`
}

// UnavailableReason returns why the staff member cannot work, or "" when
// available. The first disqualifying flag wins.
func (s Staff) UnavailableReason() string {
	switch {
	case !s.Active:
		return StaffInactive
	case s.OnLeave:
		return StaffOnLeave
	case s.LaidOff:
		return StaffLaidOff
	case s.Emergency:
		return StaffEmergency
	}
	return ""
}

// Available reports whether the staff member may be matched.
func (s Staff) Available() bool { return s.UnavailableReason() == "" }

// SpecSet returns the normalised specialization set.
func (s Staff) SpecSet() ServiceSet { return NewServiceSet(s.Specializations...) }
