package postgrest

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/viewkit/resilience"
)

// Config holds PostgREST / Supabase connection settings.
type Config struct {
	// URL is the project URL (e.g., https://xyz.supabase.co).
	URL string `mapstructure:"url" validate:"required,url"`
	// APIKey is sent as the apikey header and as the Bearer token.
	APIKey string `mapstructure:"api_key" validate:"required"`
	// Schema selects a non-default schema through Accept-Profile.
	Schema string `mapstructure:"schema"`
	// RestPath is the REST root under URL. Defaults to /rest/v1.
	RestPath string        `mapstructure:"rest_path"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Retry applies to reads only. Writes are sent once.
	Retry   resilience.RetryConfig   `mapstructure:"retry"`
	Breaker resilience.BreakerConfig `mapstructure:"breaker"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.RestPath == "" {
		c.RestPath = "/rest/v1"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.Retry.ApplyDefaults()
	c.Breaker.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("postgrest: url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("postgrest: invalid url %q: %w", c.URL, err)
	}
	if c.APIKey == "" {
		return fmt.Errorf("postgrest: api_key is required")
	}
	return nil
}
