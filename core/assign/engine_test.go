package assign

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

func engineDataset() store.Dataset {
	c1 := newClient("c1", "coast", "r1", "sanitary_bins")
	c1.LastServiceDate = datePtr("2024-01-01")
	c2 := newClient("c2", "coast", "r1", "mats")
	c3 := newClient("c3", "coast", "r2", "carpets")
	notDue := newClient("c4", "coast", "r1", "mats")
	notDue.LastServiceDate = datePtr("2024-01-12")
	return store.Dataset{
		Clients:    []model.Client{c1, c2, c3, notDue},
		Staff:      []model.Staff{newStaff("S1", "coast", "sanitary_bins", "mats"), newStaff("S2", "coast", "mats")},
		Vehicles:   []model.Vehicle{newVehicle("V1", "coast", "sanitary_bins"), newVehicle("V2", "coast", "mats")},
		SubRegions: []model.SubRegion{{Region: "coast", Name: "north", Routes: []string{"r1"}}, {Region: "coast", Name: "south", Routes: []string{"r2"}}},
	}
}

func newTestEngine(st store.Store) *Engine {
	var cfg Config
	cfg.SetDefaults()
	e := NewEngine(st, cfg, nop)
	n := 0
	e.newRunID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	e.now = func() time.Time { return time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC) }
	return e
}

type recordingSink struct{ events []metrics.RunEvent }

func (r *recordingSink) RecordRun(ev metrics.RunEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func TestEngineRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(engineDataset())
	e := newTestEngine(st)
	sink := &recordingSink{}
	e.SetMetrics(sink)
	bus := eventbus.New[events.RunCommitted](1)
	sub := bus.Subscribe()
	e.SetBus(bus)

	sum, err := e.Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, sum.Status)
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 3, sum.Totals.Due)
	assert.Equal(t, 2, sum.Totals.Assigned)
	assert.Equal(t, 1, sum.Totals.Unassigned)
	require.Len(t, sum.UnassignedClients, 1)
	assert.Equal(t, "c3", sum.UnassignedClients[0].ClientID)
	assert.Equal(t, model.ReasonNoSpecialization, sum.UnassignedClients[0].Reason)

	out, err := st.Outcome(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", out.RunID)
	assigned := map[string]string{}
	for _, a := range out.StaffAssignments {
		assigned[a.ClientID] = a.StaffID
	}
	// both locals join north; only S1 covers c1, so c2 goes to the idle S2
	assert.Equal(t, map[string]string{"c1": "S1", "c2": "S2"}, assigned)
	require.Len(t, out.SubRegionVehicles, 1)
	assert.Equal(t, model.StrategyTeam, out.SubRegionVehicles[0].Strategy)
	assert.Equal(t, []string{"V1", "V2"}, out.SubRegionVehicles[0].VehicleIDs)

	require.Len(t, sink.events, 1)
	assert.Equal(t, string(RunCompleted), sink.events[0].Status)
	ev := <-sub
	assert.Equal(t, "run-1", ev.RunID)
	assert.Len(t, ev.Outcome.StaffAssignments, 2)
}

func TestEngineRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(engineDataset())
	e := newTestEngine(st)

	_, err := e.Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	first, err := st.Outcome(ctx, date("2024-01-15"))
	require.NoError(t, err)

	_, err = e.Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	second, err := st.Outcome(ctx, date("2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, "run-2", second.RunID)
	first.RunID, second.RunID = "", ""
	assert.Equal(t, first, second)
}

func TestEngineSkips(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemoryStore(engineDataset())
	sum, err := newTestEngine(st).Run(ctx, date("2024-01-14"))
	require.NoError(t, err)
	assert.Equal(t, RunSkipped, sum.Status)
	assert.Equal(t, SkipBlackout, sum.SkipReason)
	_, err = st.Outcome(ctx, date("2024-01-14"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	ds := engineDataset()
	off := false
	settings := model.DefaultSettings()
	settings.Enabled = &off
	ds.Settings = &settings
	st = store.NewMemoryStore(ds)
	sum, err = newTestEngine(st).Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, RunSkipped, sum.Status)
	assert.Equal(t, SkipDisabled, sum.SkipReason)
	_, err = st.Outcome(ctx, date("2024-01-15"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// staleSettingsStore reports no stored settings outside the transaction
// while the transaction snapshot carries them.
type staleSettingsStore struct{ *store.MemoryStore }

func (staleSettingsStore) Settings(context.Context) (*model.AssignmentSettings, error) {
	return nil, nil
}

func TestEngineUsesSnapshotSettings(t *testing.T) {
	ctx := context.Background()
	ds := engineDataset()
	off := false
	settings := model.DefaultSettings()
	settings.Enabled = &off
	ds.Settings = &settings
	mem := store.NewMemoryStore(ds)

	e := newTestEngine(staleSettingsStore{mem})
	sink := &recordingSink{}
	e.SetMetrics(sink)
	sum, err := e.Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, RunSkipped, sum.Status)
	assert.Equal(t, SkipDisabled, sum.SkipReason)
	require.Len(t, sink.events, 1)
	assert.Equal(t, string(RunSkipped), sink.events[0].Status)
	_, err = mem.Outcome(ctx, date("2024-01-15"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngineInvalidStoredSettingsFallBack(t *testing.T) {
	ds := engineDataset()
	bad := model.DefaultSettings()
	bad.Bands.Mid = -1
	ds.Settings = &bad
	sum, err := newTestEngine(store.NewMemoryStore(ds)).Run(context.Background(), date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, sum.Status)
}

// failingStore wraps a MemoryStore and fails the outcome write.
type failingStore struct {
	*store.MemoryStore
	loadErr  error
	writeErr error
}

type failingTx struct {
	store.Tx
	s *failingStore
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return f.MemoryStore.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingTx{Tx: tx, s: f})
	})
}

func (t failingTx) Load(ctx context.Context, d time.Time) (store.Snapshot, error) {
	if t.s.loadErr != nil {
		return store.Snapshot{}, t.s.loadErr
	}
	return t.Tx.Load(ctx, d)
}

func (t failingTx) ReplaceOutcome(ctx context.Context, out model.Outcome) error {
	if t.s.writeErr != nil {
		return t.s.writeErr
	}
	return t.Tx.ReplaceOutcome(ctx, out)
}

func TestEngineRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(engineDataset())
	e := newTestEngine(mem)
	_, err := e.Run(ctx, date("2024-01-15"))
	require.NoError(t, err)
	before, err := mem.Outcome(ctx, date("2024-01-15"))
	require.NoError(t, err)

	disk := errors.New("disk full")
	fs := &failingStore{MemoryStore: mem, writeErr: disk}
	e = newTestEngine(fs)
	sink := &recordingSink{}
	e.SetMetrics(sink)
	sum, err := e.Run(ctx, date("2024-01-15"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, disk)
	assert.Equal(t, RunFailed, sum.Status)
	assert.Contains(t, sum.Message, "disk full")
	require.Len(t, sink.events, 1)
	assert.Equal(t, string(RunFailed), sink.events[0].Status)

	after, err := mem.Outcome(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "previous outcome untouched")
}

func TestEngineLoadFailure(t *testing.T) {
	fs := &failingStore{MemoryStore: store.NewMemoryStore(engineDataset()), loadErr: errors.New("connection reset")}
	sum, err := newTestEngine(fs).Run(context.Background(), date("2024-01-15"))
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, RunFailed, sum.Status)
}

func TestEngineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := store.NewMemoryStore(engineDataset())
	sum, err := newTestEngine(st).Run(ctx, date("2024-01-15"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStore)
	assert.Equal(t, RunFailed, sum.Status)
	_, err = st.Outcome(context.Background(), date("2024-01-15"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
