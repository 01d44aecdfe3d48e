package assign

import (
	"sort"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// StaffMember is an available staff member prepared for matching.
type StaffMember struct {
	model.Staff
	RegionKey string
	Specs     model.ServiceSet
}

// Covers reports whether the member is qualified for every service.
func (m *StaffMember) Covers(services model.ServiceSet) bool {
	return m.HandlesAll || m.Specs.Covers(services)
}

// StaffPool indexes available staff by region.
type StaffPool struct {
	byRegion map[string][]*StaffMember
	multi    []*StaffMember
	byID     map[string]*StaffMember
	// Excluded maps unavailable staff IDs to the reason.
	Excluded map[string]string
	Issues   []model.DataQualityIssue
}

// NewStaffPool keeps available staff only. Members are ordered by ID.
func NewStaffPool(staff []model.Staff, log logger.Logger) *StaffPool {
	p := &StaffPool{
		byRegion: make(map[string][]*StaffMember),
		byID:     make(map[string]*StaffMember),
		Excluded: make(map[string]string),
	}
	sorted := append([]model.Staff(nil), staff...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, s := range sorted {
		if r := s.UnavailableReason(); r != "" {
			p.Excluded[s.ID] = r
			continue
		}
		if _, dup := p.byID[s.ID]; dup {
			log.Warnf("duplicate staff %s ignored", s.ID)
			p.Issues = append(p.Issues, model.DataQualityIssue{Entity: "staff", ID: s.ID, Reason: "duplicate id"})
			continue
		}
		m := &StaffMember{Staff: s, RegionKey: model.NormalizeKey(s.Region), Specs: s.SpecSet()}
		if m.RegionKey == "" && !m.MultiRegion {
			log.Warnf("staff %s has no region", s.ID)
			p.Issues = append(p.Issues, model.DataQualityIssue{Entity: "staff", ID: s.ID, Reason: "missing region"})
			continue
		}
		p.byID[s.ID] = m
		if m.RegionKey != "" {
			p.byRegion[m.RegionKey] = append(p.byRegion[m.RegionKey], m)
		}
		if m.MultiRegion {
			p.multi = append(p.multi, m)
		}
	}
	return p
}

// Local returns the members based in the region.
func (p *StaffPool) Local(regionKey string) []*StaffMember {
	return p.byRegion[regionKey]
}

// MultiRegion returns the multi-region members based outside the region.
func (p *StaffPool) MultiRegion(regionKey string) []*StaffMember {
	var out []*StaffMember
	for _, m := range p.multi {
		if m.RegionKey != regionKey {
			out = append(out, m)
		}
	}
	return out
}

// Get returns a member by ID.
func (p *StaffPool) Get(id string) (*StaffMember, bool) {
	m, ok := p.byID[id]
	return m, ok
}

// Size returns the number of available members.
func (p *StaffPool) Size() int { return len(p.byID) }
