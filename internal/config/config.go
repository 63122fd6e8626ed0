// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type DatabaseConfig struct {
	// URL may be empty: the service then runs Redis-only and skips
	// durable persistence.
	URL string `mapstructure:"url"`
}

type FeedsConfig struct {
	AbuseIPDB AbuseIPDBConfig `mapstructure:"abuseipdb"`
	Radar     RadarConfig     `mapstructure:"radar"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

type AbuseIPDBConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Limit         int           `mapstructure:"limit"`
	MinConfidence int           `mapstructure:"min_confidence"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RadarConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DemoConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Batch   int  `mapstructure:"batch"`
}

type SchedulerConfig struct {
	IngestInterval time.Duration `mapstructure:"ingest_interval"`
	IngestJitter   time.Duration `mapstructure:"ingest_jitter"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
	RawRetention   time.Duration `mapstructure:"raw_retention"`
}

type GeoConfig struct {
	// MMDBPath points at an optional MaxMind GeoLite2 country database.
	// Absence degrades to centroid-only resolution.
	MMDBPath string `mapstructure:"mmdb_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("database.url", "")
	// AbuseIPDB free tier allows 1,000 requests/day; 90s keeps ~960/day.
	v.SetDefault("scheduler.ingest_interval", "90s")
	v.SetDefault("scheduler.ingest_jitter", "45s")
	v.SetDefault("scheduler.drain_timeout", "10s")
	v.SetDefault("scheduler.raw_retention", "168h")
	v.SetDefault("feeds.abuseipdb.limit", 500)
	v.SetDefault("feeds.abuseipdb.min_confidence", 80)
	v.SetDefault("feeds.abuseipdb.timeout", "15s")
	v.SetDefault("feeds.radar.timeout", "15s")
	v.SetDefault("feeds.demo.enabled", false)
	v.SetDefault("feeds.demo.batch", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/strikemap")
	}

	// Environment variables override (STRIKEMAP_SERVER_PORT, etc.)
	v.SetEnvPrefix("STRIKEMAP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
