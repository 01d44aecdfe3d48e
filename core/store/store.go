// Package store defines the boundary between the assignment engine and the
// record store holding contracts, staff, vehicles and run outcomes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fieldops/core/model"
)

// ErrNotFound is returned when no outcome exists for a date.
var ErrNotFound = errors.New("not found")

// Dataset holds the input records read by a run.
type Dataset struct {
	Clients       []model.Client            `json:"clients"`
	Staff         []model.Staff             `json:"staff"`
	Vehicles      []model.Vehicle           `json:"vehicles"`
	SubRegions    []model.SubRegion         `json:"subregions"`
	SpecialAccess []model.SpecialAccess     `json:"special_access"`
	Frequencies   []model.FrequencySetting  `json:"frequencies"`
	Settings      *model.AssignmentSettings `json:"settings,omitempty"`
}

// Snapshot is the consistent view a run works on.
type Snapshot struct {
	Dataset
	// PriorVehicles are the subregion vehicle records of the latest outcome
	// before the target date.
	PriorVehicles []model.SubRegionVehicles
}

// Tx is the unit of work of one run. Everything read and written through a
// Tx commits or rolls back together.
type Tx interface {
	Load(ctx context.Context, date time.Time) (Snapshot, error)
	// ReplaceOutcome deletes every record of out.Date and writes out.
	ReplaceOutcome(ctx context.Context, out model.Outcome) error
}

// Store is implemented by the record store backends.
type Store interface {
	// Settings returns the stored assignment settings, or nil when none are
	// stored.
	Settings(ctx context.Context) (*model.AssignmentSettings, error)
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Outcome returns the committed outcome of a date or ErrNotFound.
	Outcome(ctx context.Context, date time.Time) (model.Outcome, error)
	// Import replaces all input records.
	Import(ctx context.Context, ds Dataset) error
	Close() error
}
