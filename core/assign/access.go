package assign

import "github.com/kilianp07/fieldops/core/model"

// AccessSource tells which rule decided an access check.
type AccessSource int

const (
	AccessUnrestricted AccessSource = iota
	AccessClientOverride
	AccessSubRegion
)

func (s AccessSource) String() string {
	switch s {
	case AccessClientOverride:
		return "client_override"
	case AccessSubRegion:
		return "subregion"
	default:
		return "unrestricted"
	}
}

type staffSet map[string]struct{}

func newStaffSet(ids []string) staffSet {
	s := make(staffSet, len(ids))
	for _, id := range ids {
		if k := model.NormalizeKey(id); k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

// AccessRules resolves which staff may serve a client. A client override
// replaces the subregion restriction for that client.
type AccessRules struct {
	clients    map[string]staffSet
	subregions map[string]staffSet
}

// NewAccessRules builds the client and subregion mappings. Several special
// access records for one client are merged.
func NewAccessRules(special []model.SpecialAccess, subs []model.SubRegion) *AccessRules {
	r := &AccessRules{clients: make(map[string]staffSet), subregions: make(map[string]staffSet)}
	for _, sa := range special {
		set := newStaffSet(sa.AllowedStaff)
		if len(set) == 0 {
			continue
		}
		k := model.NormalizeKey(sa.ClientID)
		if cur, ok := r.clients[k]; ok {
			for id := range set {
				cur[id] = struct{}{}
			}
			continue
		}
		r.clients[k] = set
	}
	for _, sub := range subs {
		set := newStaffSet(sub.AllowedStaff)
		if len(set) == 0 {
			continue
		}
		r.subregions[sub.Key()] = set
	}
	return r
}

// Allowed reports whether staffID may serve the client located in the
// subregion identified by subKey, and which rule decided.
func (r *AccessRules) Allowed(clientID, subKey, staffID string) (bool, AccessSource) {
	id := model.NormalizeKey(staffID)
	if set, ok := r.clients[model.NormalizeKey(clientID)]; ok {
		_, in := set[id]
		return in, AccessClientOverride
	}
	if set, ok := r.subregions[subKey]; ok {
		_, in := set[id]
		return in, AccessSubRegion
	}
	return true, AccessUnrestricted
}
