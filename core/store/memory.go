package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fieldops/core/model"
)

// MemoryStore keeps records in memory. It backs simulations and tests.
type MemoryStore struct {
	mu       sync.Mutex
	data     Dataset
	outcomes map[string]model.Outcome
}

// NewMemoryStore returns a store seeded with ds.
func NewMemoryStore(ds Dataset) *MemoryStore {
	return &MemoryStore{data: cloneDataset(ds), outcomes: make(map[string]model.Outcome)}
}

func (m *MemoryStore) Settings(context.Context) (*model.AssignmentSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.Settings == nil {
		return nil, nil
	}
	s := *m.data.Settings
	return &s, nil
}

// WithinTx serialises transactions. Writes are staged and applied only when
// fn succeeds.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{store: m, staged: make(map[string]model.Outcome)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, out := range tx.staged {
		m.outcomes[k] = out
	}
	return nil
}

func (m *MemoryStore) Outcome(_ context.Context, date time.Time) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.outcomes[model.DateKey(date)]
	if !ok {
		return model.Outcome{}, ErrNotFound
	}
	return cloneOutcome(out), nil
}

func (m *MemoryStore) Import(_ context.Context, ds Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = cloneDataset(ds)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

type memoryTx struct {
	store  *MemoryStore
	staged map[string]model.Outcome
}

func (t *memoryTx) Load(ctx context.Context, date time.Time) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Dataset: cloneDataset(t.store.data)}
	target := model.DateKey(date)
	var keys []string
	for k := range t.store.outcomes {
		if k < target {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		prior := t.store.outcomes[keys[len(keys)-1]]
		snap.PriorVehicles = append([]model.SubRegionVehicles(nil), prior.SubRegionVehicles...)
	}
	return snap, nil
}

func (t *memoryTx) ReplaceOutcome(ctx context.Context, out model.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.staged[model.DateKey(out.Date)] = cloneOutcome(out)
	return nil
}

func cloneDataset(ds Dataset) Dataset {
	out := Dataset{
		Clients:       append([]model.Client(nil), ds.Clients...),
		Staff:         append([]model.Staff(nil), ds.Staff...),
		Vehicles:      append([]model.Vehicle(nil), ds.Vehicles...),
		SubRegions:    append([]model.SubRegion(nil), ds.SubRegions...),
		SpecialAccess: append([]model.SpecialAccess(nil), ds.SpecialAccess...),
		Frequencies:   append([]model.FrequencySetting(nil), ds.Frequencies...),
	}
	if ds.Settings != nil {
		s := *ds.Settings
		out.Settings = &s
	}
	return out
}

func cloneOutcome(o model.Outcome) model.Outcome {
	o.StaffAssignments = append([]model.StaffAssignment(nil), o.StaffAssignments...)
	o.VehicleAssignments = append([]model.VehicleAssignment(nil), o.VehicleAssignments...)
	o.SubRegionVehicles = append([]model.SubRegionVehicles(nil), o.SubRegionVehicles...)
	o.UnassignedClients = append([]model.UnassignedClient(nil), o.UnassignedClients...)
	o.UnassignedSubRegions = append([]model.UnassignedSubRegion(nil), o.UnassignedSubRegions...)
	o.Todos = append([]model.ReassignmentTodo(nil), o.Todos...)
	o.Workloads = append([]model.StaffWorkload(nil), o.Workloads...)
	o.DataQuality = append([]model.DataQualityIssue(nil), o.DataQuality...)
	return o
}
