package assign

import (
	"sort"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// ClientAssignment binds a due client to a staff member.
type ClientAssignment struct {
	Client        DueClient
	StaffID       string
	Region        string
	SubRegion     string
	SubRegionKey  string
	LocationGroup string
	// WorkloadIndex is the staff member's run count including this client.
	WorkloadIndex int

	loadBefore  int
	minEligible int
}

// UnassignedClient is a due client no staff member could take.
type UnassignedClient struct {
	Client    DueClient
	Region    string
	SubRegion string
	Reason    string
}

// SubRegionStaffing describes how a subregion was staffed.
type SubRegionStaffing struct {
	Region      string
	SubRegion   string
	Key         string
	Unmapped    bool
	Clients     int
	Required    int
	Escalations int
	// Team lists the staff who received at least one client.
	Team []string
}

// StaffResult is the output of the staff matching stage.
type StaffResult struct {
	Assignments []ClientAssignment
	Unassigned  []UnassignedClient
	SubRegions  []SubRegionStaffing
}

// StaffAssigner matches staff to due clients subregion by subregion.
type StaffAssigner struct {
	settings model.AssignmentSettings
	pool     *StaffPool
	access   *AccessRules
	log      logger.Logger
}

// NewStaffAssigner creates a StaffAssigner.
func NewStaffAssigner(settings model.AssignmentSettings, pool *StaffPool, access *AccessRules, log logger.Logger) *StaffAssigner {
	return &StaffAssigner{settings: settings, pool: pool, access: access, log: log}
}

// staffRun holds the mutable state of one matching pass.
type staffRun struct {
	a         *StaffAssigner
	load      map[string]int
	committed map[string]string
	res       StaffResult
}

// Assign processes regions in grouping order and, inside a region, the
// busiest subregions first.
func (a *StaffAssigner) Assign(g Grouping) StaffResult {
	run := &staffRun{a: a, load: make(map[string]int), committed: make(map[string]string)}
	for _, rg := range g.Regions {
		subs := append([]*SubRegionGroup(nil), rg.SubRegions...)
		sort.SliceStable(subs, func(i, j int) bool {
			ci, cj := subs[i].Count(), subs[j].Count()
			if ci != cj {
				return ci > cj
			}
			return subs[i].Name < subs[j].Name
		})
		for _, sg := range subs {
			run.subregion(rg, sg)
		}
	}
	return run.res
}

// Eligible reports whether m may serve the client in the subregion.
func (a *StaffAssigner) Eligible(m *StaffMember, dc DueClient, subKey string) bool {
	if ok, _ := a.access.Allowed(dc.Client.ID, subKey, m.ID); !ok {
		return false
	}
	return m.Covers(dc.Services)
}

// RequiredStaff returns the staffing level of a subregion and how many
// escalation slots it includes.
func (a *StaffAssigner) RequiredStaff(clients []DueClient) (required, escalations int) {
	for _, dc := range clients {
		if a.escalates(dc) {
			escalations++
		}
	}
	return a.settings.RequiredStaff(len(clients)) + escalations, escalations
}

func (a *StaffAssigner) escalates(dc DueClient) bool {
	if dc.Client.QuantityOrZero() <= a.settings.MaxQuantity {
		return false
	}
	return a.settings.ServiceCheck == "" || dc.Services.Has(a.settings.ServiceCheck)
}

func (r *staffRun) subregion(rg *RegionGroup, sg *SubRegionGroup) {
	clients := sg.Clients()
	required, esc := r.a.RequiredStaff(clients)
	team := r.buildTeam(rg.Key, sg.Key, clients, required)
	for _, m := range team {
		r.committed[m.ID] = sg.Key
	}
	if len(team) < required {
		r.a.log.Warnf("subregion %s understaffed: %d of %d required", sg.Key, len(team), required)
	}

	served := make(map[string]int)
	locks := make(map[string]string)
	for _, lg := range sg.Groups {
		for _, dc := range lg.Clients {
			cands := r.eligibleAmong(team, dc, sg.Key)
			if len(cands) == 0 {
				if m := r.widen(rg.Key, sg.Key, dc); m != nil {
					team = append(team, m)
					r.committed[m.ID] = sg.Key
					cands = []*StaffMember{m}
				}
			}
			if len(cands) == 0 {
				reason := r.reason(rg.Key, sg.Key, dc)
				r.a.log.Infof("client %s in %s unassigned: %s", dc.Client.ID, sg.Key, reason)
				r.res.Unassigned = append(r.res.Unassigned, UnassignedClient{
					Client: dc, Region: sg.Region, SubRegion: sg.Name, Reason: reason,
				})
				continue
			}
			chosen, minLoad := r.pick(cands, locks[lg.Key])
			if _, ok := locks[lg.Key]; !ok {
				locks[lg.Key] = chosen.ID
			}
			before := r.load[chosen.ID]
			r.load[chosen.ID]++
			served[chosen.ID]++
			r.res.Assignments = append(r.res.Assignments, ClientAssignment{
				Client:        dc,
				StaffID:       chosen.ID,
				Region:        sg.Region,
				SubRegion:     sg.Name,
				SubRegionKey:  sg.Key,
				LocationGroup: lg.Key,
				WorkloadIndex: r.load[chosen.ID],
				loadBefore:    before,
				minEligible:   minLoad,
			})
		}
	}

	var ids []string
	for _, m := range team {
		if served[m.ID] == 0 {
			// idle members stay free for later subregions
			delete(r.committed, m.ID)
			continue
		}
		ids = append(ids, m.ID)
	}
	r.res.SubRegions = append(r.res.SubRegions, SubRegionStaffing{
		Region: sg.Region, SubRegion: sg.Name, Key: sg.Key, Unmapped: sg.Unmapped,
		Clients: len(clients), Required: required, Escalations: esc, Team: ids,
	})
}

// buildTeam takes every free local able to serve at least one client, and
// tops up with multi-region staff only when locals fall short of required.
func (r *staffRun) buildTeam(regionKey, subKey string, clients []DueClient, required int) []*StaffMember {
	usable := func(pool []*StaffMember) []*StaffMember {
		var out []*StaffMember
		for _, m := range pool {
			if _, busy := r.committed[m.ID]; busy {
				continue
			}
			for _, dc := range clients {
				if r.a.Eligible(m, dc, subKey) {
					out = append(out, m)
					break
				}
			}
		}
		r.sortByLoad(out)
		return out
	}
	team := usable(r.a.pool.Local(regionKey))
	if len(team) >= required {
		return team
	}
	for _, m := range usable(r.a.pool.MultiRegion(regionKey)) {
		if len(team) == required {
			break
		}
		team = append(team, m)
	}
	return team
}

// widen finds a free staff member outside the team for a client the team
// cannot serve, locals first.
func (r *staffRun) widen(regionKey, subKey string, dc DueClient) *StaffMember {
	for _, pool := range [][]*StaffMember{r.a.pool.Local(regionKey), r.a.pool.MultiRegion(regionKey)} {
		var free []*StaffMember
		for _, m := range pool {
			if _, busy := r.committed[m.ID]; busy {
				continue
			}
			if r.a.Eligible(m, dc, subKey) {
				free = append(free, m)
			}
		}
		if len(free) > 0 {
			r.sortByLoad(free)
			return free[0]
		}
	}
	return nil
}

func (r *staffRun) eligibleAmong(team []*StaffMember, dc DueClient, subKey string) []*StaffMember {
	var out []*StaffMember
	for _, m := range team {
		if r.a.Eligible(m, dc, subKey) {
			out = append(out, m)
		}
	}
	return out
}

// pick returns the least loaded candidate. Among candidates at the minimum
// the holder of the location group wins, then the lowest ID.
func (r *staffRun) pick(cands []*StaffMember, holder string) (*StaffMember, int) {
	best := cands[0]
	for _, m := range cands[1:] {
		if r.less(m, best) {
			best = m
		}
	}
	minLoad := r.load[best.ID]
	if holder != "" && holder != best.ID {
		for _, m := range cands {
			if m.ID == holder && r.load[m.ID] == minLoad {
				return m, minLoad
			}
		}
	}
	return best, minLoad
}

func (r *staffRun) less(a, b *StaffMember) bool {
	la, lb := r.load[a.ID], r.load[b.ID]
	if la != lb {
		return la < lb
	}
	return a.ID < b.ID
}

func (r *staffRun) sortByLoad(ms []*StaffMember) {
	sort.SliceStable(ms, func(i, j int) bool { return r.less(ms[i], ms[j]) })
}

// reason classifies why nobody could take the client, looking at every
// available member of the region and the multi-region pool.
func (r *staffRun) reason(regionKey, subKey string, dc DueClient) string {
	all := append(append([]*StaffMember(nil), r.a.pool.Local(regionKey)...), r.a.pool.MultiRegion(regionKey)...)
	if len(all) == 0 {
		return model.ReasonNoAvailability
	}
	var qualified []*StaffMember
	for _, m := range all {
		if m.Covers(dc.Services) {
			qualified = append(qualified, m)
		}
	}
	if len(qualified) == 0 {
		return model.ReasonNoSpecialization
	}
	for _, m := range qualified {
		if ok, _ := r.a.access.Allowed(dc.Client.ID, subKey, m.ID); ok {
			return model.ReasonNoAvailability
		}
	}
	return model.ReasonNoAccess
}
