//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
	"github.com/kilianp07/fieldops/test/util"
)

func openContainer(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dsn, cleanup, err := util.StartPostgres(ctx)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(cleanup)

	s, err := Open(ctx, Config{DSN: dsn, Migrate: true}, logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	// A second migration run is a no-op.
	require.NoError(t, s.Migrate())
	return s
}

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dataset() store.Dataset {
	last := day("2024-01-08")
	client := func(id, route string, services ...string) model.Client {
		return model.Client{ID: id, Region: "coast", Route: route, Services: services, Frequency: "weekly", LastServiceDate: &last, Active: true}
	}
	settings := model.DefaultSettings()
	return store.Dataset{
		Clients: []model.Client{client("c1", "r1", "sanitary_bins"), client("c2", "r1", "mats"), client("c3", "r2", "carpets")},
		Staff: []model.Staff{
			{ID: "S1", Region: "coast", Specializations: []string{"sanitary_bins", "mats"}, Active: true},
			{ID: "S2", Region: "coast", Specializations: []string{"mats"}, Active: true},
		},
		Vehicles: []model.Vehicle{
			{ID: "V1", Region: "coast", Specializations: []string{"sanitary_bins"}, Available: true},
			{ID: "V2", Region: "coast", Specializations: []string{"mats"}, Available: true},
		},
		SubRegions: []model.SubRegion{
			{Region: "coast", Name: "north", Routes: []string{"r1"}},
			{Region: "coast", Name: "south", Routes: []string{"r2"}},
		},
		SpecialAccess: []model.SpecialAccess{{ClientID: "c2", AllowedStaff: []string{"S1", "S2"}}},
		Frequencies:   []model.FrequencySetting{{Name: "weekly", Label: "Weekly", IntervalDays: 7, Active: true}},
		Settings:      &settings,
	}
}

func TestPostgresStoreEngineRun(t *testing.T) {
	ctx := context.Background()
	s := openContainer(t)
	require.NoError(t, s.Import(ctx, dataset()))

	var cfg assign.Config
	cfg.SetDefaults()
	eng := assign.NewEngine(s, cfg, logger.NopLogger{})

	sum, err := eng.Run(ctx, day("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, assign.RunCompleted, sum.Status)
	assert.Equal(t, 2, sum.Totals.Assigned)

	first, err := s.Outcome(ctx, day("2024-01-15"))
	require.NoError(t, err)
	assert.Len(t, first.StaffAssignments, 2)
	require.Len(t, first.SubRegionVehicles, 1)
	assert.Equal(t, []string{"V1", "V2"}, first.SubRegionVehicles[0].VehicleIDs)
	require.Len(t, first.UnassignedClients, 1)
	assert.Equal(t, "c3", first.UnassignedClients[0].ClientID)

	// Rerunning supersedes the previous rows instead of accumulating.
	_, err = eng.Run(ctx, day("2024-01-15"))
	require.NoError(t, err)
	second, err := s.Outcome(ctx, day("2024-01-15"))
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	first.RunID, second.RunID = "", ""
	first.CreatedAt, second.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestPostgresWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openContainer(t)

	out := model.Outcome{
		Date:             day("2024-01-15"),
		RunID:            "run-1",
		CreatedAt:        time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC),
		StaffAssignments: []model.StaffAssignment{{Date: day("2024-01-15"), ClientID: "c1", StaffID: "S1", Region: "coast", SubRegion: "north", LocationGroup: "r1", WorkloadIndex: 1}},
	}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.ReplaceOutcome(ctx, out)
	}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		next := out
		next.RunID = "run-2"
		next.StaffAssignments = nil
		if err := tx.ReplaceOutcome(ctx, next); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Outcome(ctx, day("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.StaffAssignments, 1)

	_, err = s.Outcome(ctx, day("2024-01-16"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
