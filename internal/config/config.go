// Package config loads leadroute configuration from file, environment and
// defaults, and installs the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures the scoring engine. Hub and radius describe the
// operational service area; the remaining values are batch defaults.
type EngineConfig struct {
	HubLat             float64 `yaml:"hub_lat" mapstructure:"hub_lat"`
	HubLng             float64 `yaml:"hub_lng" mapstructure:"hub_lng"`
	ServiceRadiusMiles float64 `yaml:"service_radius_miles" mapstructure:"service_radius_miles"`
	PerDeviceRate      float64 `yaml:"per_device_rate" mapstructure:"per_device_rate"`
	MinScore           int     `yaml:"min_score" mapstructure:"min_score"`
	MaxResults         int     `yaml:"max_results" mapstructure:"max_results"`
	SortBy             string  `yaml:"sort_by" mapstructure:"sort_by"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	TablesPath         string  `yaml:"tables_path" mapstructure:"tables_path"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.hub_lat", 47.1853)
	v.SetDefault("engine.hub_lng", -122.2928)
	v.SetDefault("engine.service_radius_miles", 20.0)
	v.SetDefault("engine.per_device_rate", 250.0)
	v.SetDefault("engine.min_score", 30)
	v.SetDefault("engine.max_results", 100)
	v.SetDefault("engine.sort_by", "score")
	v.SetDefault("engine.concurrency", 1)
	v.SetDefault("engine.tables_path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadroute.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are
// set. Modes: "score", "serve", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Engine.ServiceRadiusMiles <= 0 {
		errs = append(errs, "engine.service_radius_miles must be > 0")
	}
	if c.Engine.HubLat < -90 || c.Engine.HubLat > 90 {
		errs = append(errs, "engine.hub_lat must be between -90 and 90")
	}
	if c.Engine.HubLng < -180 || c.Engine.HubLng > 180 {
		errs = append(errs, "engine.hub_lng must be between -180 and 180")
	}
	if c.Engine.PerDeviceRate < 0 {
		errs = append(errs, "engine.per_device_rate must be >= 0")
	}
	if c.Engine.Concurrency < 1 || c.Engine.Concurrency > 64 {
		errs = append(errs, "engine.concurrency must be between 1 and 64")
	}

	switch mode {
	case "score":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
