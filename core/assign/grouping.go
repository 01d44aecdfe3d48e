package assign

import (
	"sort"
	"strings"

	"github.com/kilianp07/fieldops/core/model"
)

// LocationGroup holds due clients sharing a site.
type LocationGroup struct {
	Key     string
	Clients []DueClient
}

// SubRegionGroup holds the location groups of one subregion.
type SubRegionGroup struct {
	Region   string
	Name     string
	Key      string
	Unmapped bool
	Groups   []*LocationGroup
}

// Clients returns the clients ordered by location group then client ID.
func (g *SubRegionGroup) Clients() []DueClient {
	var out []DueClient
	for _, lg := range g.Groups {
		out = append(out, lg.Clients...)
	}
	return out
}

// Count returns the number of due clients.
func (g *SubRegionGroup) Count() int {
	n := 0
	for _, lg := range g.Groups {
		n += len(lg.Clients)
	}
	return n
}

// RegionGroup holds the subregions of a region.
type RegionGroup struct {
	Name       string
	Key        string
	SubRegions []*SubRegionGroup
}

// Grouping is the region, subregion, location-group hierarchy of due clients.
type Grouping struct {
	Regions []*RegionGroup
}

type routeIndex map[string]map[string]model.SubRegion

func newRouteIndex(subs []model.SubRegion) routeIndex {
	sorted := append([]model.SubRegion(nil), subs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	idx := make(routeIndex)
	for _, sub := range sorted {
		rk := model.NormalizeKey(sub.Region)
		if idx[rk] == nil {
			idx[rk] = make(map[string]model.SubRegion)
		}
		for _, route := range sub.Routes {
			k := model.NormalizeKey(route)
			if _, dup := idx[rk][k]; k == "" || dup {
				continue
			}
			idx[rk][k] = sub
		}
	}
	return idx
}

// GroupClients builds the hierarchy. Routes are matched within the client's
// region; unmatched clients land in the unmapped subregion. Regions follow
// priority then name, subregions and location groups are ordered by key.
func GroupClients(due []DueClient, subs []model.SubRegion, priority []string) Grouping {
	idx := newRouteIndex(subs)
	regions := make(map[string]*RegionGroup)
	subGroups := make(map[string]*SubRegionGroup)
	locGroups := make(map[string]*LocationGroup)

	for _, dc := range due {
		rk := model.NormalizeKey(dc.Client.Region)
		rg, ok := regions[rk]
		if !ok {
			rg = &RegionGroup{Name: strings.TrimSpace(dc.Client.Region), Key: rk}
			regions[rk] = rg
		}
		sub, matched := idx[rk][model.NormalizeKey(dc.Client.Route)]
		name := model.UnmappedSubRegion
		if matched {
			name = strings.TrimSpace(sub.Name)
		}
		sk := model.SubRegionKey(rk, name)
		sg, ok := subGroups[sk]
		if !ok {
			sg = &SubRegionGroup{Region: rg.Name, Name: name, Key: sk, Unmapped: !matched}
			subGroups[sk] = sg
			rg.SubRegions = append(rg.SubRegions, sg)
		}
		lk := sk + "#" + dc.Client.LocationKey()
		lg, ok := locGroups[lk]
		if !ok {
			lg = &LocationGroup{Key: dc.Client.LocationKey()}
			locGroups[lk] = lg
			sg.Groups = append(sg.Groups, lg)
		}
		lg.Clients = append(lg.Clients, dc)
	}

	var out Grouping
	for _, rg := range regions {
		sort.Slice(rg.SubRegions, func(i, j int) bool { return rg.SubRegions[i].Key < rg.SubRegions[j].Key })
		for _, sg := range rg.SubRegions {
			sort.Slice(sg.Groups, func(i, j int) bool { return sg.Groups[i].Key < sg.Groups[j].Key })
			for _, lg := range sg.Groups {
				sort.Slice(lg.Clients, func(i, j int) bool { return lg.Clients[i].Client.ID < lg.Clients[j].Client.ID })
			}
		}
		out.Regions = append(out.Regions, rg)
	}
	rank := regionRank(priority)
	sort.Slice(out.Regions, func(i, j int) bool {
		ri, rj := rank(out.Regions[i].Key), rank(out.Regions[j].Key)
		if ri != rj {
			return ri < rj
		}
		return out.Regions[i].Key < out.Regions[j].Key
	})
	return out
}

func regionRank(priority []string) func(string) int {
	pos := make(map[string]int, len(priority))
	for i, p := range priority {
		k := model.NormalizeKey(p)
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}
	return func(key string) int {
		if i, ok := pos[key]; ok {
			return i
		}
		return len(priority)
	}
}
