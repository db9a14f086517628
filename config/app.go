package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/viewkit/fetchcache"
	"github.com/kbukum/viewkit/listview"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/overlay"
	"github.com/kbukum/viewkit/querystate"
	"github.com/kbukum/viewkit/redis"
	"github.com/kbukum/viewkit/resource"
	"github.com/kbukum/viewkit/resource/gormstore"
	"github.com/kbukum/viewkit/resource/postgrest"
	"github.com/kbukum/viewkit/server"
	"github.com/kbukum/viewkit/validation"
)

// Store drivers.
const (
	DriverPostgREST = "postgrest"
	DriverSQLite    = "sqlite"
)

// Config is the full viewkit service configuration.
type Config struct {
	ServiceConfig `mapstructure:",squash"`

	Server    server.Config         `mapstructure:"server"`
	Cache     fetchcache.Config     `mapstructure:"cache"`
	Overlay   OverlayConfig         `mapstructure:"overlay"`
	Views     map[string]ViewConfig `mapstructure:"views" validate:"dive,keys,identifier,endkeys"`
	Store     StoreConfig           `mapstructure:"store"`
	Redis     redis.Config          `mapstructure:"redis"`
	Telemetry TelemetryConfig       `mapstructure:"telemetry"`
}

// OverlayConfig holds the overlay positioning defaults. The list service
// itself hosts no overlays; the section is read by embedding programs that
// share the service config and build their registry from it:
//
//	reg := overlay.New(det, overlay.WithPositioner(cfg.Overlay.Positioner()))
type OverlayConfig struct {
	// Offset is the gap between a trigger and its surface. Defaults to 8.
	Offset       float64 `mapstructure:"offset" validate:"gte=0"`
	SurfaceWidth float64 `mapstructure:"surface_width" validate:"gte=0"`
}

// Positioner returns the configured overlay positioner.
func (c OverlayConfig) Positioner() overlay.Positioner {
	return overlay.Positioner{Offset: c.Offset, SurfaceWidth: c.SurfaceWidth}
}

// ViewConfig describes one list endpoint.
type ViewConfig struct {
	// Table is the store table. Defaults to the view name.
	Table    string              `mapstructure:"table" validate:"identifier"`
	PageSize int                 `mapstructure:"page_size" validate:"gte=0,lte=1000"`
	Defaults querystate.Defaults `mapstructure:"defaults"`
	// Columns selects a subset of columns. Empty selects all.
	Columns []string `mapstructure:"columns" validate:"dive,identifier"`
	// Fields renames query fields to columns as "field=column" pairs, e.g.
	// "totalPrice=total_price". A list, since config keys are case-folded.
	Fields []string `mapstructure:"fields"`
	// Warm lists raw queries loaded at startup.
	Warm []string `mapstructure:"warm"`
}

// Mapping returns the store mapping of the view.
func (c ViewConfig) Mapping() resource.Mapping {
	m := resource.Mapping{Columns: c.Columns, PageSize: c.PageSize}
	for _, pair := range c.Fields {
		field, column, _ := strings.Cut(pair, "=")
		if m.Fields == nil {
			m.Fields = make(map[string]string, len(c.Fields))
		}
		m.Fields[strings.TrimSpace(field)] = strings.TrimSpace(column)
	}
	return m
}

func (c ViewConfig) validateFields(name string, v *validation.Validator) {
	for _, pair := range c.Fields {
		field, column, ok := strings.Cut(pair, "=")
		key := "views." + name + ".fields"
		v.Custom(ok && strings.TrimSpace(field) != "", key, "must be field=column, got "+pair)
		v.Identifier(key, strings.TrimSpace(column))
	}
}

// StoreConfig selects and configures the resource store.
type StoreConfig struct {
	Driver    string           `mapstructure:"driver" validate:"oneof=postgrest sqlite"`
	PostgREST postgrest.Config `mapstructure:"postgrest" validate:"-"`
	SQL       gormstore.Config `mapstructure:"sql" validate:"-"`
}

// TelemetryConfig turns on OTLP metrics and traces.
type TelemetryConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool          `mapstructure:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `mapstructure:"interval" validate:"gte=0"`
}

// MeterConfig returns the meter settings for the service.
func (c TelemetryConfig) MeterConfig(svc *ServiceConfig) observability.MeterConfig {
	mc := observability.DefaultMeterConfig(svc.Name)
	mc.ServiceVersion, mc.Environment = svc.Version, svc.Environment
	mc.Endpoint, mc.Insecure, mc.Interval = c.Endpoint, c.Insecure, c.Interval
	return mc
}

// TracerConfig returns the tracer settings for the service.
func (c TelemetryConfig) TracerConfig(svc *ServiceConfig) observability.TracerConfig {
	tc := observability.DefaultTracerConfig(svc.Name)
	tc.ServiceVersion, tc.Environment = svc.Version, svc.Environment
	tc.Endpoint, tc.Insecure, tc.SampleRate = c.Endpoint, c.Insecure, c.SampleRate
	return tc
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Cache.ApplyDefaults()

	if c.Overlay.Offset == 0 {
		c.Overlay.Offset = overlay.DefaultOffset
	}

	for name, v := range c.Views {
		if v.Table == "" {
			v.Table = name
		}
		if v.PageSize == 0 {
			v.PageSize = listview.DefaultPageSize
		}
		v.Defaults.ApplyDefaults()
		c.Views[name] = v
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	switch c.Store.Driver {
	case DriverPostgREST:
		c.Store.PostgREST.ApplyDefaults()
	case DriverSQLite:
		if c.Store.SQL.DSN == "" {
			c.Store.SQL.DSN = "file:viewkit.db"
		}
		c.Store.SQL.ApplyDefaults()
	}

	if c.Redis.Enabled {
		c.Redis.ApplyDefaults()
	}

	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 15 * time.Second
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1
	}
}

// Validate checks struct tags, then each section's own rules.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if len(c.Views) == 0 {
		return fmt.Errorf("config.views: at least one view is required")
	}
	fields := validation.New()
	for _, name := range c.ViewNames() {
		c.Views[name].validateFields(name, fields)
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	type section struct {
		name     string
		validate func() error
	}
	sections := []section{
		{"server", c.Server.Validate},
		{"cache", c.Cache.Validate},
		{"redis", c.Redis.Validate},
	}
	switch c.Store.Driver {
	case DriverPostgREST:
		sections = append(sections, section{"store.postgrest", c.Store.PostgREST.Validate})
	case DriverSQLite:
		sections = append(sections, section{"store.sql", c.Store.SQL.Validate})
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config.%s: %w", s.name, err)
		}
	}
	return nil
}

// ViewNames returns the configured view names in order.
func (c *Config) ViewNames() []string {
	names := make([]string, 0, len(c.Views))
	for name := range c.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
