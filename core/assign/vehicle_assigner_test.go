package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/model"
)

// staffed builds a StaffResult placing every client in the given subregion.
func staffed(region, sub string, clients ...model.Client) StaffResult {
	var res StaffResult
	for i, c := range clients {
		res.Assignments = append(res.Assignments, ClientAssignment{
			Client:        dueOf(c),
			StaffID:       "S1",
			Region:        region,
			SubRegion:     sub,
			SubRegionKey:  model.SubRegionKey(region, sub),
			WorkloadIndex: i + 1,
		})
	}
	return res
}

func vehicleOf(res VehicleResult) map[string]string {
	out := make(map[string]string)
	for _, cv := range res.Clients {
		out[cv.ClientID] = cv.VehicleID
	}
	return out
}

func TestVehicleAssignerTeamScenario(t *testing.T) {
	staff := staffed("coast", "north",
		newClient("c1", "coast", "r1", "sanitary_bins"),
		newClient("c2", "coast", "r1", "mats"),
	)
	vehicles := []model.Vehicle{newVehicle("V2", "coast", "mats"), newVehicle("V1", "coast", "sanitary_bins")}

	res := NewVehicleAssigner(vehicles, nil, nop).Assign(staff)
	require.Len(t, res.Covers, 1)
	assert.Empty(t, res.Uncovered)
	cover := res.Covers[0]
	assert.Equal(t, model.StrategyTeam, cover.Strategy)
	assert.Equal(t, []string{"V1", "V2"}, cover.VehicleIDs)
	assert.Equal(t, map[string]string{"c1": "V1", "c2": "V2"}, vehicleOf(res))
}

func TestVehicleAssignerSinglePreferred(t *testing.T) {
	staff := staffed("coast", "north",
		newClient("c1", "coast", "r1", "sanitary_bins"),
		newClient("c2", "coast", "r1", "mats"),
	)
	all := newVehicle("V9", "coast")
	all.HandlesAll = true
	vehicles := []model.Vehicle{newVehicle("V1", "coast", "sanitary_bins"), newVehicle("V2", "coast", "mats"), all}

	res := NewVehicleAssigner(vehicles, nil, nop).Assign(staff)
	require.Len(t, res.Covers, 1)
	assert.Equal(t, model.StrategySingle, res.Covers[0].Strategy)
	assert.Equal(t, []string{"V9"}, res.Covers[0].VehicleIDs)
	assert.Equal(t, map[string]string{"c1": "V9", "c2": "V9"}, vehicleOf(res))
}

func TestVehicleAssignerStability(t *testing.T) {
	staff := staffed("coast", "north", newClient("c1", "coast", "r1", "mats"))
	vehicles := []model.Vehicle{newVehicle("V1", "coast", "mats"), newVehicle("V2", "coast", "mats")}

	res := NewVehicleAssigner(vehicles, nil, nop).Assign(staff)
	assert.Equal(t, []string{"V1"}, res.Covers[0].VehicleIDs)

	prior := []model.SubRegionVehicles{{Region: "Coast", SubRegion: "North", VehicleIDs: []string{"V2"}, Strategy: model.StrategySingle}}
	res = NewVehicleAssigner(vehicles, prior, nop).Assign(staff)
	assert.Equal(t, []string{"V2"}, res.Covers[0].VehicleIDs)
}

func TestVehicleAssignerNoCover(t *testing.T) {
	staff := staffed("coast", "north",
		newClient("c1", "coast", "r1", "a", "b"),
		newClient("c2", "coast", "r1", "c"),
	)
	off := newVehicle("V3", "coast", "c")
	off.Available = false
	vehicles := []model.Vehicle{newVehicle("V1", "coast", "a"), newVehicle("V2", "coast", "b"), off, newVehicle("V4", "nairobi", "c")}

	res := NewVehicleAssigner(vehicles, nil, nop).Assign(staff)
	assert.Empty(t, res.Covers)
	assert.Empty(t, res.Clients)
	require.Len(t, res.Uncovered, 1)
	assert.Equal(t, []string{"c"}, res.Uncovered[0].Missing)
	assert.Equal(t, []string{"c1", "c2"}, res.Uncovered[0].ClientIDs)
}

func TestVehicleAssignerTeamCoversRequired(t *testing.T) {
	staff := staffed("coast", "north",
		newClient("c1", "coast", "r1", "a", "b"),
		newClient("c2", "coast", "r1", "c"),
		newClient("c3", "coast", "r1", "a", "c"),
	)
	vehicles := []model.Vehicle{
		newVehicle("V1", "coast", "a", "b"),
		newVehicle("V2", "coast", "c"),
		newVehicle("V3", "coast", "a"),
	}
	res := NewVehicleAssigner(vehicles, nil, nop).Assign(staff)
	require.Len(t, res.Covers, 1)
	cover := res.Covers[0]
	assert.Equal(t, []string{"V1", "V2"}, cover.VehicleIDs)

	union := model.NewServiceSet()
	for _, id := range cover.VehicleIDs {
		for _, v := range vehicles {
			if v.ID == id {
				union = union.Union(v.SpecSet())
			}
		}
	}
	assert.True(t, union.Covers(cover.Required))
	// c3 needs a and c: no single team vehicle covers it, both overlap by one
	// and V2 is the narrower.
	assert.Equal(t, map[string]string{"c1": "V1", "c2": "V2", "c3": "V2"}, vehicleOf(res))
}

func TestBindClientPrefersNarrowestCoveringVehicle(t *testing.T) {
	wide := &fleetVehicle{Vehicle: model.Vehicle{ID: "A"}, specs: model.NewServiceSet("a", "b")}
	narrow := &fleetVehicle{Vehicle: model.Vehicle{ID: "B"}, specs: model.NewServiceSet("a")}
	all := &fleetVehicle{Vehicle: model.Vehicle{ID: "0", HandlesAll: true}, specs: model.NewServiceSet()}

	assert.Equal(t, "B", bindClient([]*fleetVehicle{wide, narrow, all}, model.NewServiceSet("a")).ID)
	assert.Equal(t, "A", bindClient([]*fleetVehicle{wide, narrow, all}, model.NewServiceSet("b")).ID)
	assert.Equal(t, "0", bindClient([]*fleetVehicle{wide, narrow, all}, model.NewServiceSet("z")).ID)
}

func TestVehicleAssignerSubRegionsIndependent(t *testing.T) {
	staff := staffed("coast", "north", newClient("c1", "coast", "r1", "mats"))
	more := staffed("coast", "south", newClient("c2", "coast", "r2", "mats"))
	staff.Assignments = append(staff.Assignments, more.Assignments...)

	res := NewVehicleAssigner([]model.Vehicle{newVehicle("V1", "coast", "mats")}, nil, nop).Assign(staff)
	require.Len(t, res.Covers, 2)
	assert.Equal(t, map[string]string{"c1": "V1", "c2": "V1"}, vehicleOf(res))
}
