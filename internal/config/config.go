// Package config loads runtime configuration from environment variables, per
// §6's enumerated variable list.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the magnet canvas server.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	SentryDSN       string  `mapstructure:"sentry_dsn"`
	TraceSampleRate float64 `mapstructure:"trace_sample_rate"`
	ErrorSampleRate float64 `mapstructure:"error_sample_rate"`

	BroadcastCapacity int    `mapstructure:"broadcast_capacity"`
	CORSOrigin        string `mapstructure:"cors_origin"`

	DatabaseURL   string `mapstructure:"database_url"`
	StorePoolSize int    `mapstructure:"store_pool_size"`

	BindAddr string `mapstructure:"bind_addr"`

	// MaxRequestBodyBytes bounds request bodies on the thin out-of-scope HTTP
	// glue (the /health handler), mirroring the original's RequestBodyLimitLayer.
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
}

// String redacts DatabaseURL and SentryDSN, reporting only whether each was
// set. Neither value belongs in a log line.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{LogLevel:%s DatabaseURL:%s SentryDSN:%s TraceSampleRate:%v ErrorSampleRate:%v "+
			"BroadcastCapacity:%d CORSOrigin:%s StorePoolSize:%d BindAddr:%s MaxRequestBodyBytes:%d}",
		c.LogLevel, redactedState(c.DatabaseURL), redactedState(c.SentryDSN),
		c.TraceSampleRate, c.ErrorSampleRate, c.BroadcastCapacity, c.CORSOrigin,
		c.StorePoolSize, c.BindAddr, c.MaxRequestBodyBytes,
	)
}

func redactedState(v string) string {
	if v == "" {
		return "<unset>"
	}
	return "<set>"
}

// Load reads configuration from the environment, applying the defaults
// named in §6 and validating the sample-rate bounds.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "DEBUG")
	v.SetDefault("trace_sample_rate", 0.1)
	v.SetDefault("error_sample_rate", 1.0)
	v.SetDefault("broadcast_capacity", 100)
	v.SetDefault("store_pool_size", 5)
	v.SetDefault("bind_addr", "0.0.0.0:8080")
	v.SetDefault("max_request_body_bytes", 1024)

	v.SetEnvPrefix("")
	for _, key := range []string{
		"log_level", "sentry_dsn", "trace_sample_rate", "error_sample_rate",
		"broadcast_capacity", "cors_origin", "database_url", "store_pool_size", "bind_addr",
		"max_request_body_bytes",
	} {
		_ = v.BindEnv(key)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TraceSampleRate < 0 || cfg.TraceSampleRate > 1 {
		return Config{}, fmt.Errorf("TRACE_SAMPLE_RATE must be in [0,1], got %v", cfg.TraceSampleRate)
	}
	if cfg.ErrorSampleRate < 0 || cfg.ErrorSampleRate > 1 {
		return Config{}, fmt.Errorf("ERROR_SAMPLE_RATE must be in [0,1], got %v", cfg.ErrorSampleRate)
	}
	if cfg.BroadcastCapacity <= 0 {
		cfg.BroadcastCapacity = 100
	}
	if cfg.StorePoolSize <= 0 {
		cfg.StorePoolSize = 5
	}
	if cfg.StorePoolSize > 10 {
		cfg.StorePoolSize = 10
	}

	return cfg, nil
}
