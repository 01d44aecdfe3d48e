package assign

import (
	"time"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// SkipReason explains why a run did not proceed.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipDisabled SkipReason = "disabled"
	SkipBlackout SkipReason = "blackout_weekday"
)

// Decision is the outcome of the eligibility gate.
type Decision struct {
	Proceed bool
	Reason  SkipReason
}

// Gate decides whether a run should happen for the target date.
func Gate(target time.Time, s model.AssignmentSettings, log logger.Logger) Decision {
	if !s.IsEnabled() {
		return Decision{Reason: SkipDisabled}
	}
	if w := s.NoAutomationWeekday; w != nil && (*w < -1 || *w > 6) {
		log.Warnf("ignoring out of range no-automation weekday %d", *w)
	}
	if day, ok := s.Blackout(); ok && model.Day(target).Weekday() == day {
		return Decision{Reason: SkipBlackout}
	}
	return Decision{Proceed: true}
}
