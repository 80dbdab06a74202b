package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
	} `yaml:"provider"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Server struct {
		Port               int `yaml:"port"`
		SessionTTLMinutes  int `yaml:"session_ttl_minutes"`
		FetchAheadDays     int `yaml:"fetch_ahead_days"`
		ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`

	Booking struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"booking"`

	Audit struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.FetchAheadDays <= 0 {
		cfg.Server.FetchAheadDays = 28
	}
	if cfg.Provider.RatePerSecond <= 0 {
		cfg.Provider.RatePerSecond = 10
	}
	if cfg.Provider.Burst <= 0 {
		cfg.Provider.Burst = 20
	}
	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		cfg.Audit.Path = "data/lessonbook_audit.db"
	}

	return &cfg, nil
}

func (c *Config) SessionTTL() time.Duration {
	if c.Server.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSec <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// Location resolves the reference timezone in which calendar dates
// and "today" are evaluated. Falls back to UTC on bad names.
func (c *Config) Location() *time.Location {
	if c.Booking.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
