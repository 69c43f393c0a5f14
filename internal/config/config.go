// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine EngineConfig `yaml:"engine"`
}

type EngineConfig struct {
	// ---- transport ----
	DefaultPort      int `yaml:"default_port"`
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	ReadTimeoutMs    int `yaml:"read_timeout_ms"`

	// ---- pool ----
	CooldownMs      int `yaml:"cooldown_ms"`
	IdleTimeoutMs   int `yaml:"idle_timeout_ms"`
	SweepIntervalMs int `yaml:"sweep_interval_ms"`

	// ---- walker / decoder ----
	MaxChainHops    int    `yaml:"max_chain_hops"`
	RoundDecimals   int    `yaml:"round_decimals"`
	SchemaPath      string `yaml:"schema_path"`
	CachePath       string `yaml:"cache_path"`
	RevalidateCache bool   `yaml:"revalidate_cache"`

	// ---- scheduler ----
	IntervalMs    int `yaml:"interval_ms"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffCapMs  int `yaml:"backoff_cap_ms"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the engine defaults applied under a missing or
// partial config file.
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			DefaultPort:      502,
			ConnectTimeoutMs: 3000,
			ReadTimeoutMs:    2000,
			CooldownMs:       60,
			IdleTimeoutMs:    120000,
			SweepIntervalMs:  30000,
			MaxChainHops:     64,
			RoundDecimals:    -1,
			CachePath:        "sunspec-cache.json",
			IntervalMs:       30000,
			BackoffBaseMs:    1000,
			BackoffCapMs:     30000,
			LogLevel:         "info",
		},
	}
}

// Load reads the YAML config and applies environment overrides. A .env
// file next to the process is honoured when present. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config read: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Engine.DefaultPort = getEnvAsInt("SUNSPEC_DEFAULT_PORT", cfg.Engine.DefaultPort)
	cfg.Engine.ConnectTimeoutMs = getEnvAsInt("SUNSPEC_CONNECT_TIMEOUT_MS", cfg.Engine.ConnectTimeoutMs)
	cfg.Engine.ReadTimeoutMs = getEnvAsInt("SUNSPEC_READ_TIMEOUT_MS", cfg.Engine.ReadTimeoutMs)
	cfg.Engine.CachePath = getEnv("SUNSPEC_CACHE_PATH", cfg.Engine.CachePath)
	cfg.Engine.SchemaPath = getEnv("SUNSPEC_SCHEMA_PATH", cfg.Engine.SchemaPath)
	cfg.Engine.LogLevel = getEnv("SUNSPEC_LOG_LEVEL", cfg.Engine.LogLevel)
	cfg.Engine.RevalidateCache = getEnvAsBool("SUNSPEC_REVALIDATE_CACHE", cfg.Engine.RevalidateCache)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
