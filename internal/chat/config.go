// Package chat provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package chat

import (
	"sync"
	"time"
)

const defaultListenAddr = "127.0.0.1:6000"

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the chat service configuration. The service deliberately has
// no flag, file, or environment surface; the listen address is a fixed
// constant unless overridden in code.
type Config struct {
	ListenAddr string
	RateLimit  RateLimitConfig
}

var (
	configMu     sync.RWMutex
	activeConfig Config
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		RateLimit: RateLimitConfig{
			Burst:          32,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 32
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}
	sanitizeConfig(*cfg)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return activeConfig
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}
