package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientStatus is returned when a client does not carry exactly one status.
var ErrClientStatus = errors.New("client must be exactly one of active, inactive or prospect")

// Client is a contracted customer receiving recurring visits.
type Client struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Region      string `json:"region"`
	// Route is the branch or route name used to resolve the subregion.
	Route string `json:"route"`
	// SiteID groups clients served together at one location. Empty means the
	// route is used as location group.
	SiteID          string     `json:"site_id,omitempty"`
	Services        []string   `json:"services"`
	Frequency       string     `json:"frequency"`
	LastServiceDate *time.Time `json:"last_service_date,omitempty"`
	// Quantity is the number of units (bins) serviced at each visit, if known.
	Quantity *int `json:"quantity,omitempty"`
	Active   bool `json:"active"`
	Inactive bool `json:"inactive"`
	Prospect bool `json:"prospect"`
}

// Validate checks the status invariant.
func (c Client) Validate() error {
	n := 0
	for _, f := range []bool{c.Active, c.Inactive, c.Prospect} {
		if f {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("client %s: %w", c.ID, ErrClientStatus)
	}
	return nil
}

// ServiceSet returns the normalised required services.
func (c Client) ServiceSet() ServiceSet {
	return NewServiceSet(c.Services...)
}

// LocationKey returns the location-group key of the client.
func (c Client) LocationKey() string {
	if k := NormalizeKey(c.SiteID); k != "" {
		return k
	}
	return NormalizeKey(c.Route)
}

// QuantityOrZero returns the quantity or 0 when unknown.
func (c Client) QuantityOrZero() int {
	if c.Quantity == nil {
		return 0
	}
	return *c.Quantity
}
