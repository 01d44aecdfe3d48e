package events

import (
	"time"

	"github.com/kilianp07/fieldops/core/model"
)

// RunCommitted is published once the outcome of a run has been committed.
// Consumers must treat Outcome as read-only.
type RunCommitted struct {
	RunID   string
	Date    time.Time
	Outcome model.Outcome
}
