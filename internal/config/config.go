// Package config provides configuration management for the bioVisor daemon.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/biovisor/biovisor/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Chassis   ChassisConfig   `mapstructure:"chassis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address string.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ChassisConfig selects the simulated host type. Profile names a built-in
// ("prokaryote" or "eukaryote"); "custom" uses the explicit capacities below.
type ChassisConfig struct {
	Profile          string   `mapstructure:"profile"`
	MaxVMs           int      `mapstructure:"max_vms"`
	RibosomeCapacity int64    `mapstructure:"ribosome_capacity"`
	MemoryCapacity   int64    `mapstructure:"memory_capacity"`
	FeatureFlags     []string `mapstructure:"feature_flags"`
}

// Build resolves the chassis configuration into a validated profile.
func (c ChassisConfig) Build() (*domain.ChassisProfile, error) {
	switch c.Profile {
	case "prokaryote":
		return domain.Prokaryote(), nil
	case "eukaryote":
		return domain.Eukaryote(), nil
	case "custom":
		return domain.NewChassisProfile("custom", c.MaxVMs, c.RibosomeCapacity, c.MemoryCapacity, c.FeatureFlags)
	default:
		return nil, &domain.InvalidConfigError{
			Field:  "chassis.profile",
			Reason: fmt.Sprintf("unknown profile %q", c.Profile),
		}
	}
}

// SchedulerConfig holds tick scheduler configuration.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Quantum      time.Duration `mapstructure:"quantum"`
	MinSlice     time.Duration `mapstructure:"min_slice"`
	BurstFactor  float64       `mapstructure:"burst_factor"`
}

// WatchdogConfig holds the starvation watchdog configuration.
type WatchdogConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MissedTicks uint64 `mapstructure:"missed_ticks"`
}

// TelemetryConfig holds the snapshot feed configuration.
type TelemetryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// Default returns a configuration populated with defaults only, without
// consulting config files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static values that always unmarshal.
		panic(fmt.Sprintf("default config unmarshal: %v", err))
	}
	return &cfg
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BIOVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Chassis
	v.SetDefault("chassis.profile", "prokaryote")
	v.SetDefault("chassis.max_vms", 8)
	v.SetDefault("chassis.ribosome_capacity", 2000)
	v.SetDefault("chassis.memory_capacity", 4096)

	// Scheduler
	v.SetDefault("scheduler.tick_interval", "100ms")
	v.SetDefault("scheduler.quantum", "10ms")
	v.SetDefault("scheduler.min_slice", "1ms")
	v.SetDefault("scheduler.burst_factor", 1.0)

	// Watchdog
	v.SetDefault("watchdog.enabled", false)
	v.SetDefault("watchdog.missed_ticks", 10)

	// Telemetry
	v.SetDefault("telemetry.history_size", 512)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// CORS
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
}
