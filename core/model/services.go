package model

import (
	"sort"
	"strings"
)

// NormalizeKey lowercases and trims a free-text identifier such as a route,
// region, service type or staff reference so that lookups are insensitive to
// formatting differences in the source records.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ServiceSet is a set of normalised service type names.
type ServiceSet map[string]struct{}

// NewServiceSet builds a set from raw names. Blank names are ignored.
func NewServiceSet(names ...string) ServiceSet {
	s := make(ServiceSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts the normalised name.
func (s ServiceSet) Add(name string) {
	k := NormalizeKey(name)
	if k == "" {
		return
	}
	s[k] = struct{}{}
}

// Has reports whether name is part of the set.
func (s ServiceSet) Has(name string) bool {
	_, ok := s[NormalizeKey(name)]
	return ok
}

// Len returns the number of services.
func (s ServiceSet) Len() int { return len(s) }

// Covers reports whether s is a superset of other.
func (s ServiceSet) Covers(other ServiceSet) bool {
	for k := range other {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}

// Overlap counts the services present in both sets.
func (s ServiceSet) Overlap(other ServiceSet) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for k := range small {
		if _, ok := large[k]; ok {
			n++
		}
	}
	return n
}

// Union returns a new set containing the services of both sets.
func (s ServiceSet) Union(other ServiceSet) ServiceSet {
	out := make(ServiceSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Minus returns the services of s missing from other.
func (s ServiceSet) Minus(other ServiceSet) ServiceSet {
	out := make(ServiceSet)
	for k := range s {
		if _, ok := other[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Clone copies the set.
func (s ServiceSet) Clone() ServiceSet {
	return s.Union(nil)
}

// Sorted returns the services in ascending order.
func (s ServiceSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
