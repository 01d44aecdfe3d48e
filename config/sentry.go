package config

import "github.com/kilianp07/fieldops/infra/monitoring"

// SentryConfig defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
	ServerName       string  `json:"server_name"`
}

// Monitoring converts the section into the Sentry monitor settings.
func (c SentryConfig) Monitoring() monitoring.Config {
	return monitoring.Config{
		DSN:              c.DSN,
		Environment:      c.Environment,
		TracesSampleRate: c.TracesSampleRate,
		Release:          c.Release,
		ServerName:       c.ServerName,
	}
}
