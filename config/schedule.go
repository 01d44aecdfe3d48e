package config

import (
	"fmt"
	"time"
)

// ScheduleConfig controls the daily run loop of the service.
type ScheduleConfig struct {
	Enabled bool `json:"enabled"`
	// Hour and Minute give the local time of the daily run.
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	// Timezone is an IANA name. Empty means the host's local zone.
	Timezone string `json:"timezone"`
	// TimeoutSeconds bounds a single scheduled run.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ScheduleConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 300
	}
}

// Validate checks the time of day and zone.
func (c ScheduleConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("hour out of range: %d", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("minute out of range: %d", c.Minute)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Timeout returns the run timeout.
func (c ScheduleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
