package metrics

import (
	"errors"
	"io"
	"time"

	"github.com/kilianp07/fieldops/core/model"
)

// RunEvent describes a finished run, whatever its status.
type RunEvent struct {
	RunID      string
	Date       time.Time
	Status     string
	SkipReason string
	Duration   time.Duration
	Totals     model.RunTotals
	// WorkloadStdDev and WorkloadSpread describe the balance of the run.
	WorkloadStdDev float64
	WorkloadSpread int
	Time           time.Time
}

// RunSink records run events for observability purposes.
type RunSink interface {
	RecordRun(ev RunEvent) error
}

// OutcomeRecorder is implemented by sinks that also record the content of a
// committed outcome.
type OutcomeRecorder interface {
	RecordOutcome(out model.Outcome) error
}

// NopSink implements RunSink with a no-op.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []RunSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...RunSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to every sink, even after a failure, and
// returns the joined errors.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordOutcome forwards the outcome to the sinks supporting it.
func (m *MultiSink) RecordOutcome(out model.Outcome) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(OutcomeRecorder); ok {
			if err := rec.RecordOutcome(out); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks holding resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
