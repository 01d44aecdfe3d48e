package config

// APIConfig configures the HTTP server of the service.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on the runs API.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
