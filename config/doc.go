// Package config loads service configuration with Viper.
//
// LoadConfig reads a YAML file, then a .env file via godotenv, then the
// process environment, and unmarshals the merged result into a struct with
// mapstructure tags. Durations accept Go syntax ("30s", "5m").
//
// Environment variables override file values. With WithEnvPrefix("VIEWKIT"),
// VIEWKIT_CACHE_STALE_TIME sets cache.stale_time.
//
//	type AppConfig struct {
//	    config.ServiceConfig `mapstructure:",squash"`
//	    Cache fetchcache.Config `mapstructure:"cache"`
//	}
//	var cfg AppConfig
//	err := config.LoadConfig("viewkit", &cfg, config.WithEnvPrefix("VIEWKIT"))
//
// Config is the list service configuration. Its overlay section is not used
// by the service; programs embedding the overlay package read it through
// OverlayConfig.Positioner.
package config
