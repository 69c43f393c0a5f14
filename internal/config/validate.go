// internal/config/validate.go
package config

import "fmt"

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	e := cfg.Engine

	if e.DefaultPort < 1 || e.DefaultPort > 65535 {
		return fmt.Errorf("default_port %d outside 1-65535", e.DefaultPort)
	}
	if e.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("connect_timeout_ms must be > 0")
	}
	if e.ReadTimeoutMs <= 0 {
		return fmt.Errorf("read_timeout_ms must be > 0")
	}
	if e.CooldownMs < 0 {
		return fmt.Errorf("cooldown_ms must be >= 0")
	}
	if e.IdleTimeoutMs <= 0 {
		return fmt.Errorf("idle_timeout_ms must be > 0")
	}
	if e.SweepIntervalMs <= 0 {
		return fmt.Errorf("sweep_interval_ms must be > 0")
	}
	if e.MaxChainHops <= 0 {
		return fmt.Errorf("max_chain_hops must be > 0")
	}
	if e.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be > 0")
	}
	if e.BackoffBaseMs <= 0 {
		return fmt.Errorf("backoff_base_ms must be > 0")
	}
	if e.BackoffCapMs < e.BackoffBaseMs {
		return fmt.Errorf("backoff_cap_ms %d below backoff_base_ms %d", e.BackoffCapMs, e.BackoffBaseMs)
	}
	if e.CachePath == "" {
		return fmt.Errorf("cache_path required")
	}

	return nil
}
