/*
config.go - Runtime configuration

PURPOSE:
  One Config drives both entry points (cmd/server, cmd/gami). Values come
  from three layers, later layers winning:

    1. Defaults()              compiled-in values
    2. YAML file               optional, path from -config / GAMI_CONFIG
    3. GAMI_* environment      per-field overrides

EXAMPLE FILE:
  server:
    port: 8080
  storage:
    driver: bolt
    path: ./data/gami.bolt
  canisters:
    mode: gateway
    gateway_url: http://127.0.0.1:4943
  identity:
    mode: redirect
  rewards:
    oracle: canister

SEE ALSO:
  - bootstrap/bootstrap.go: Turns a Config into a wired Manager
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SECTIONS
// =============================================================================

type ServerConfig struct {
	Port            int           `yaml:"port" env:"GAMI_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"GAMI_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"GAMI_ALLOWED_ORIGINS" envSeparator:","`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type StorageConfig struct {
	Driver      string `yaml:"driver" env:"GAMI_STORAGE_DRIVER"`
	Path        string `yaml:"path" env:"GAMI_STORAGE_PATH"`
	RedisURL    string `yaml:"redis_url" env:"GAMI_REDIS_URL"`
	RedisPrefix string `yaml:"redis_prefix" env:"GAMI_REDIS_PREFIX"`
}

// Canister modes.
const (
	CanistersMemory  = "memory"
	CanistersGateway = "gateway"
)

type CanisterIDs struct {
	Backend     string `yaml:"backend" env:"GAMI_CANISTER_BACKEND"`
	Profiles    string `yaml:"profiles" env:"GAMI_CANISTER_PROFILES"`
	Leaderboard string `yaml:"leaderboard" env:"GAMI_CANISTER_LEADERBOARD"`
	Ledger      string `yaml:"ledger" env:"GAMI_CANISTER_LEDGER"`
	Rewards     string `yaml:"rewards" env:"GAMI_CANISTER_REWARDS"`
}

type CanisterConfig struct {
	Mode       string        `yaml:"mode" env:"GAMI_CANISTERS_MODE"`
	GatewayURL string        `yaml:"gateway_url" env:"GAMI_GATEWAY_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"GAMI_GATEWAY_TIMEOUT"`
	RatePerSec float64       `yaml:"rate_per_sec" env:"GAMI_GATEWAY_RATE"`
	Burst      int           `yaml:"burst" env:"GAMI_GATEWAY_BURST"`
	IDs        CanisterIDs   `yaml:"ids"`
}

// Identity modes.
const (
	IdentityDev      = "dev"
	IdentityRedirect = "redirect"
)

type IdentityConfig struct {
	Mode         string        `yaml:"mode" env:"GAMI_IDENTITY_MODE"`
	ProviderURL  string        `yaml:"provider_url" env:"GAMI_IDENTITY_PROVIDER_URL"`
	CallbackAddr string        `yaml:"callback_addr" env:"GAMI_IDENTITY_CALLBACK_ADDR"`
	Timeout      time.Duration `yaml:"timeout" env:"GAMI_IDENTITY_TIMEOUT"`
}

// Reward oracles.
const (
	OracleSimulated = "simulated"
	OracleCanister  = "canister"
)

type RewardsConfig struct {
	Oracle      string        `yaml:"oracle" env:"GAMI_REWARD_ORACLE"`
	SuccessRate float64       `yaml:"success_rate" env:"GAMI_REWARD_SUCCESS_RATE"`
	MinDelay    time.Duration `yaml:"min_delay" env:"GAMI_REWARD_MIN_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"GAMI_REWARD_MAX_DELAY"`
}

type SyncConfig struct {
	Enabled  bool   `yaml:"enabled" env:"GAMI_SYNC_ENABLED"`
	Schedule string `yaml:"schedule" env:"GAMI_SYNC_SCHEDULE"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GAMI_LOG_LEVEL"`
	Format string `yaml:"format" env:"GAMI_LOG_FORMAT"`
}

// Config is the full runtime configuration.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Storage     StorageConfig  `yaml:"storage"`
	Canisters   CanisterConfig `yaml:"canisters"`
	Identity    IdentityConfig `yaml:"identity"`
	Rewards     RewardsConfig  `yaml:"rewards"`
	Sync        SyncConfig     `yaml:"sync"`
	Log         LogConfig      `yaml:"log"`
	CatalogPath string         `yaml:"catalog_path" env:"GAMI_CATALOG_PATH"`
}

// Defaults returns a configuration that runs fully offline: sqlite file,
// in-process canisters, dev identity, simulated oracle.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			Path:        "gami.db",
			RedisPrefix: "gami:",
		},
		Canisters: CanisterConfig{
			Mode:       CanistersMemory,
			GatewayURL: "http://127.0.0.1:4943",
			Timeout:    10 * time.Second,
			RatePerSec: 20,
			Burst:      5,
			IDs: CanisterIDs{
				Backend:     "gami_backend",
				Profiles:    "user_profiles",
				Leaderboard: "leaderboard",
				Ledger:      "token_ledger",
				Rewards:     "quest_rewards",
			},
		},
		Identity: IdentityConfig{
			Mode:         IdentityDev,
			ProviderURL:  "https://identity.ic0.app",
			CallbackAddr: "127.0.0.1:3001",
			Timeout:      5 * time.Minute,
		},
		Rewards: RewardsConfig{
			Oracle:      OracleSimulated,
			SuccessRate: 0.9,
			MinDelay:    time.Second,
			MaxDelay:    2 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:  false,
			Schedule: "@every 5m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist) and the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables. Fields whose
// variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverBolt:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for %s", c.Storage.Driver))
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.RedisURL) == "" {
			errs = append(errs, errors.New("storage.redis_url is required for redis"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Canisters.Mode {
	case CanistersMemory:
	case CanistersGateway:
		if c.Canisters.GatewayURL == "" {
			errs = append(errs, errors.New("canisters.gateway_url is required for gateway"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown canisters.mode %q", c.Canisters.Mode))
	}

	if c.Identity.Mode != IdentityDev && c.Identity.Mode != IdentityRedirect {
		errs = append(errs, fmt.Errorf("unknown identity.mode %q", c.Identity.Mode))
	}

	switch c.Rewards.Oracle {
	case OracleSimulated:
		if c.Rewards.SuccessRate < 0 || c.Rewards.SuccessRate > 1 {
			errs = append(errs, fmt.Errorf("rewards.success_rate %v outside [0,1]", c.Rewards.SuccessRate))
		}
		if c.Rewards.MinDelay < 0 || c.Rewards.MaxDelay < c.Rewards.MinDelay {
			errs = append(errs, errors.New("rewards delays must satisfy 0 <= min_delay <= max_delay"))
		}
	case OracleCanister:
	default:
		errs = append(errs, fmt.Errorf("unknown rewards.oracle %q", c.Rewards.Oracle))
	}

	if c.Sync.Enabled && strings.TrimSpace(c.Sync.Schedule) == "" {
		errs = append(errs, errors.New("sync.schedule is required when sync is enabled"))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// LOGGER
// =============================================================================

// NewLogger builds a logrus logger from the log section. Call after
// Validate; an unparseable level falls back to info.
func (c LogConfig) NewLogger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
