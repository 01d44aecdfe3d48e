package assign

import (
	"sort"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// SubRegionCover is the vehicle cover chosen for a subregion.
type SubRegionCover struct {
	Region     string
	SubRegion  string
	Key        string
	Strategy   string
	VehicleIDs []string
	Required   model.ServiceSet
}

// ClientVehicle binds a client to one vehicle of its subregion cover.
type ClientVehicle struct {
	ClientID  string
	Region    string
	SubRegion string
	VehicleID string
}

// UncoveredSubRegion is a subregion no vehicle combination can serve.
type UncoveredSubRegion struct {
	Region    string
	SubRegion string
	Key       string
	ClientIDs []string
	Missing   []string
}

// VehicleResult is the output of the vehicle matching stage.
type VehicleResult struct {
	Covers    []SubRegionCover
	Clients   []ClientVehicle
	Uncovered []UncoveredSubRegion
}

type fleetVehicle struct {
	model.Vehicle
	specs model.ServiceSet
}

// covers treats a handles-all vehicle as covering anything.
func (v *fleetVehicle) covers(s model.ServiceSet) bool {
	return v.HandlesAll || v.specs.Covers(s)
}

// size orders vehicles by specialization breadth, handles-all last.
func (v *fleetVehicle) size() int {
	if v.HandlesAll {
		return int(^uint(0) >> 1)
	}
	return v.specs.Len()
}

// VehicleAssigner covers staffed subregions with vehicles.
type VehicleAssigner struct {
	byRegion map[string][]*fleetVehicle
	history  map[string]string
	log      logger.Logger
}

// NewVehicleAssigner indexes available vehicles by region and seeds the
// stability history from the prior outcome. Single-vehicle covers only are
// remembered.
func NewVehicleAssigner(vehicles []model.Vehicle, prior []model.SubRegionVehicles, log logger.Logger) *VehicleAssigner {
	a := &VehicleAssigner{byRegion: make(map[string][]*fleetVehicle), history: make(map[string]string), log: log}
	for _, v := range vehicles {
		if !v.Available {
			continue
		}
		rk := model.NormalizeKey(v.Region)
		a.byRegion[rk] = append(a.byRegion[rk], &fleetVehicle{Vehicle: v, specs: v.SpecSet()})
	}
	for _, vs := range a.byRegion {
		sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	}
	for _, p := range prior {
		if p.Strategy == model.StrategySingle && len(p.VehicleIDs) == 1 {
			a.history[model.SubRegionKey(p.Region, p.SubRegion)] = p.VehicleIDs[0]
		}
	}
	return a
}

type staffedSubRegion struct {
	region, name, key string
	assignments       []ClientAssignment
}

// Assign covers every subregion holding at least one staff assignment.
func (a *VehicleAssigner) Assign(staff StaffResult) VehicleResult {
	var order []*staffedSubRegion
	byKey := make(map[string]*staffedSubRegion)
	for _, ca := range staff.Assignments {
		s, ok := byKey[ca.SubRegionKey]
		if !ok {
			s = &staffedSubRegion{region: ca.Region, name: ca.SubRegion, key: ca.SubRegionKey}
			byKey[ca.SubRegionKey] = s
			order = append(order, s)
		}
		s.assignments = append(s.assignments, ca)
	}

	var res VehicleResult
	for _, s := range order {
		required := make(model.ServiceSet)
		for _, ca := range s.assignments {
			required = required.Union(ca.Client.Services)
		}
		fleet := a.byRegion[model.NormalizeKey(s.region)]
		cover := SubRegionCover{Region: s.region, SubRegion: s.name, Key: s.key, Required: required}

		if v := a.single(fleet, s.key, required); v != nil {
			a.history[s.key] = v.ID
			cover.Strategy = model.StrategySingle
			cover.VehicleIDs = []string{v.ID}
			res.Covers = append(res.Covers, cover)
			for _, ca := range s.assignments {
				res.Clients = append(res.Clients, ClientVehicle{ClientID: ca.Client.Client.ID, Region: s.region, SubRegion: s.name, VehicleID: v.ID})
			}
			continue
		}

		team, missing := a.team(fleet, required)
		if len(missing) > 0 || len(team) == 0 {
			ids := make([]string, 0, len(s.assignments))
			for _, ca := range s.assignments {
				ids = append(ids, ca.Client.Client.ID)
			}
			a.log.Warnf("subregion %s has no vehicle cover, missing %v", s.key, missing.Sorted())
			res.Uncovered = append(res.Uncovered, UncoveredSubRegion{
				Region: s.region, SubRegion: s.name, Key: s.key, ClientIDs: ids, Missing: missing.Sorted(),
			})
			continue
		}
		cover.Strategy = model.StrategyTeam
		for _, v := range team {
			cover.VehicleIDs = append(cover.VehicleIDs, v.ID)
		}
		res.Covers = append(res.Covers, cover)
		for _, ca := range s.assignments {
			v := bindClient(team, ca.Client.Services)
			res.Clients = append(res.Clients, ClientVehicle{ClientID: ca.Client.Client.ID, Region: s.region, SubRegion: s.name, VehicleID: v.ID})
		}
	}
	return res
}

// single returns a vehicle covering every required service, preferring the
// one that served the subregion before.
func (a *VehicleAssigner) single(fleet []*fleetVehicle, key string, required model.ServiceSet) *fleetVehicle {
	var first *fleetVehicle
	prev := a.history[key]
	for _, v := range fleet {
		if !v.covers(required) {
			continue
		}
		if v.ID == prev {
			return v
		}
		if first == nil {
			first = v
		}
	}
	return first
}

// team assembles a greedy set cover. On failure it returns the services left
// uncovered and no vehicles.
func (a *VehicleAssigner) team(fleet []*fleetVehicle, required model.ServiceSet) ([]*fleetVehicle, model.ServiceSet) {
	remaining := required.Clone()
	used := make(map[string]bool)
	var team []*fleetVehicle
	for remaining.Len() > 0 {
		var best *fleetVehicle
		bestGain := 0
		for _, v := range fleet {
			if used[v.ID] {
				continue
			}
			gain := v.specs.Overlap(remaining)
			if v.HandlesAll {
				gain = remaining.Len()
			}
			if gain > bestGain {
				best, bestGain = v, gain
			}
		}
		if best == nil {
			return nil, remaining
		}
		used[best.ID] = true
		team = append(team, best)
		if best.HandlesAll {
			break
		}
		remaining = remaining.Minus(best.specs)
	}
	return team, nil
}

// bindClient picks the narrowest team vehicle covering the client's own
// services, or the one covering most of them.
func bindClient(team []*fleetVehicle, services model.ServiceSet) *fleetVehicle {
	var best *fleetVehicle
	for _, v := range team {
		if !v.covers(services) {
			continue
		}
		if best == nil || v.size() < best.size() || (v.size() == best.size() && v.ID < best.ID) {
			best = v
		}
	}
	if best != nil {
		return best
	}
	bestOverlap := -1
	for _, v := range team {
		o := v.specs.Overlap(services)
		switch {
		case o > bestOverlap:
		case o == bestOverlap && v.size() < best.size():
		case o == bestOverlap && v.size() == best.size() && v.ID < best.ID:
		default:
			continue
		}
		best, bestOverlap = v, o
	}
	return best
}
