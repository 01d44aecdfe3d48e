package config

import (
	"fmt"

	"github.com/kilianp07/fieldops/infra/notify"
)

// NotifyConfig enables the MQTT hand-off of committed runs.
type NotifyConfig struct {
	Enabled bool          `json:"enabled"`
	MQTT    notify.Config `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *NotifyConfig) SetDefaults() {
	if c.Enabled {
		c.MQTT.SetDefaults()
	}
}

// Validate checks mandatory fields.
func (c NotifyConfig) Validate() error {
	if c.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}
