package fetchcache

import (
	"fmt"
	"time"
)

// Default timings.
const (
	DefaultGCTime        = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config holds cache timings.
type Config struct {
	// StaleTime is how long a loaded value stays fresh. Zero marks values
	// stale on first read, so every read revalidates in the background.
	StaleTime time.Duration `mapstructure:"stale_time" json:"staleTime" validate:"gte=0"`
	// GCTime evicts entries that have not been read for this long.
	GCTime time.Duration `mapstructure:"gc_time" json:"gcTime" validate:"gte=0"`
	// SweepInterval is how often the janitor runs Sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweepInterval" validate:"gte=0"`
	// LoadTimeout bounds each loader call. Zero means no bound.
	LoadTimeout time.Duration `mapstructure:"load_timeout" json:"loadTimeout" validate:"gte=0"`
	// PersistTTL is the expiry of values written to the persistent tier.
	PersistTTL time.Duration `mapstructure:"persist_ttl" json:"persistTtl" validate:"gte=0"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.GCTime == 0 {
		c.GCTime = DefaultGCTime
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.PersistTTL == 0 {
		c.PersistTTL = c.GCTime
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"stale_time":     c.StaleTime,
		"gc_time":        c.GCTime,
		"sweep_interval": c.SweepInterval,
		"load_timeout":   c.LoadTimeout,
		"persist_ttl":    c.PersistTTL,
	} {
		if d < 0 {
			return fmt.Errorf("fetchcache: %s must not be negative, got %s", name, d)
		}
	}
	return nil
}
