package model

// Vehicle is a service van able to carry equipment for some service types.
type Vehicle struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Region          string   `json:"region"`
	Capacity        int      `json:"capacity"`
	Specializations []string `json:"specializations"`
	HandlesAll      bool     `json:"handles_all"`
	Available       bool     `json:"available"`
}

// SpecSet returns the normalised specialization set.
func (v Vehicle) SpecSet() ServiceSet { return NewServiceSet(v.Specializations...) }

// Serves reports whether the vehicle alone covers the services.
func (v Vehicle) Serves(services ServiceSet) bool {
	return v.HandlesAll || v.SpecSet().Covers(services)
}
