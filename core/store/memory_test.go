package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/model"
)

func day(s string) time.Time {
	d, _ := model.ParseDate(s)
	return d
}

func TestMemoryStoreCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(Dataset{Clients: []model.Client{{ID: "c1", Active: true}}})

	_, err := st.Outcome(ctx, day("2024-01-15"))
	assert.True(t, errors.Is(err, ErrNotFound))

	boom := errors.New("boom")
	err = st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.ReplaceOutcome(ctx, model.Outcome{Date: day("2024-01-15"), RunID: "a"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = st.Outcome(ctx, day("2024-01-15"))
	assert.ErrorIs(t, err, ErrNotFound, "failed transaction must not be visible")

	err = st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		snap, err := tx.Load(ctx, day("2024-01-15"))
		require.NoError(t, err)
		assert.Len(t, snap.Clients, 1)
		return tx.ReplaceOutcome(ctx, model.Outcome{Date: day("2024-01-15"), RunID: "b"})
	})
	require.NoError(t, err)
	out, err := st.Outcome(ctx, day("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "b", out.RunID)
}

func TestMemoryStorePriorVehicles(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(Dataset{})
	for _, d := range []string{"2024-01-10", "2024-01-12", "2024-01-20"} {
		date := day(d)
		require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.ReplaceOutcome(ctx, model.Outcome{Date: date, SubRegionVehicles: []model.SubRegionVehicles{
				{Date: date, Region: "coast", SubRegion: "north", VehicleIDs: []string{d}},
			}})
		}))
	}
	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		snap, err := tx.Load(ctx, day("2024-01-15"))
		require.NoError(t, err)
		require.Len(t, snap.PriorVehicles, 1)
		assert.Equal(t, []string{"2024-01-12"}, snap.PriorVehicles[0].VehicleIDs)
		return nil
	}))
}

func TestMemoryStoreSettingsAndImport(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(Dataset{})
	s, err := st.Settings(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	def := model.DefaultSettings()
	require.NoError(t, st.Import(ctx, Dataset{Settings: &def}))
	s, err = st.Settings(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, def.MaxQuantity, s.MaxQuantity)
}
