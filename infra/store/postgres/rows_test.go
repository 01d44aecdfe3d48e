package postgres

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/model"
)

func TestOutcomeRowsRoundTrip(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	out := model.Outcome{
		Date:      d,
		RunID:     "run-1",
		CreatedAt: time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC),
		Totals:    model.RunTotals{Due: 2, Assigned: 1, Unassigned: 1},
		StaffAssignments: []model.StaffAssignment{
			{Date: d, ClientID: "c1", StaffID: "S1", Region: "coast", SubRegion: "north", LocationGroup: "mall", WorkloadIndex: 1},
		},
		VehicleAssignments:   []model.VehicleAssignment{{Date: d, Region: "coast", SubRegion: "north", VehicleID: "V1", ClientID: "c1"}},
		SubRegionVehicles:    []model.SubRegionVehicles{{Date: d, Region: "coast", SubRegion: "north", VehicleIDs: []string{"V1"}, Strategy: model.StrategySingle}},
		UnassignedClients:    []model.UnassignedClient{{Date: d, ClientID: "c2", Region: "coast", SubRegion: "north", Reason: model.ReasonNoAccess}},
		UnassignedSubRegions: []model.UnassignedSubRegion{{Date: d, Region: "coast", SubRegion: "south", ClientIDs: []string{"c3"}, MissingServices: []string{"mats"}}},
		Todos:                []model.ReassignmentTodo{{Date: d, ClientID: "c2", Reason: model.ReasonNoAccess}},
		Workloads:            []model.StaffWorkload{{Date: d, StaffID: "S1", Region: "coast", SubRegion: "north", Count: 1, ClientIDs: []string{"c1"}}},
		DataQuality:          []model.DataQualityIssue{{Entity: "client", ID: "c9", Reason: "missing route"}},
	}

	rows := newOutcomeRows(out)
	assert.Equal(t, d, rows.summary.Date)
	require.Len(t, rows.quality, 1)
	assert.Equal(t, d, rows.quality[0].Date, "data quality rows are keyed by the run date")
	assert.Equal(t, out, rows.model())
}

func TestClientRowNormalisesServiceDate(t *testing.T) {
	local := time.Date(2024, 1, 8, 0, 0, 0, 0, time.FixedZone("EAT", 3*3600))
	r := clientRow{ID: "c1", LastServiceDate: &local, Active: true}
	c := r.model()
	require.NotNil(t, c.LastServiceDate)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), *c.LastServiceDate)
	assert.Equal(t, newClientRow(c).model(), c)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, 10, c.MaxOpenConns)
	assert.Equal(t, 5, c.MaxIdleConns)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	down, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.Len(t, down, len(files))
}
