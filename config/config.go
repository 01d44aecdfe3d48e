// Package config loads the fieldops configuration file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/metrics"
)

// Config is the root configuration.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Store    StoreConfig    `json:"store"`
	Engine   assign.Config  `json:"engine"`
	Schedule ScheduleConfig `json:"schedule"`
	Lock     LockConfig     `json:"lock"`
	Metrics  metrics.Config `json:"metrics"`
	Notify   NotifyConfig   `json:"notify"`
	API      APIConfig      `json:"api"`
	Sentry   SentryConfig   `json:"sentry"`
}

// Load reads path, applies K_ environment overrides and validates the
// result. K_STORE__DRIVER=postgres overrides store.driver.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied: in-memory
// store and lock, no metrics sink and no notifier.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Store.SetDefaults()
	c.Engine.SetDefaults()
	c.Schedule.SetDefaults()
	c.Lock.SetDefaults()
	c.Notify.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	check("logging", c.Logging.Validate())
	check("store", c.Store.Validate())
	check("engine", c.Engine.Validate())
	check("schedule", c.Schedule.Validate())
	check("lock", c.Lock.Validate())
	check("notify", c.Notify.Validate())
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			errs = append(errs, fmt.Errorf("metrics: sink %d has no type", i))
		}
	}
	return errors.Join(errs...)
}
