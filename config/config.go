// Package config loads the emulator settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Guest address or size accepting any strconv base prefix ("0x10000")
type Address uint64

func (a *Address) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 64)
	if err != nil {
		return fmt.Errorf("address %q: %w", text, err)
	}
	*a = Address(v)
	return nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Config holds the settings of a gopm4 run. Command line flags override them.
type Config struct {
	PollInterval time.Duration `env:"GOPM4_POLL_INTERVAL" envDefault:"1ms"`
	MemoryBase   Address       `env:"GOPM4_MEMORY_BASE"   envDefault:"0x100000"`
	MemorySize   Address       `env:"GOPM4_MEMORY_SIZE"   envDefault:"0x1000000"`
	Capture      string        `env:"GOPM4_CAPTURE"`
	Verbose      bool          `env:"GOPM4_VERBOSE"`
	LogEcho      bool          `env:"GOPM4_LOG_ECHO"      envDefault:"true"`
	LogTail      int           `env:"GOPM4_LOG_TAIL"      envDefault:"20"`
	OtelEndpoint string        `env:"GOPM4_OTEL_ENDPOINT"`
	OtelEnabled  bool          `env:"GOPM4_OTEL_ENABLED"  envDefault:"true"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be expressed by struct tags.
func (cfg Config) Validate() error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MemorySize == 0 || cfg.MemorySize%4 != 0 {
		return fmt.Errorf("memory size %s must be a non zero multiple of 4", cfg.MemorySize)
	}
	if cfg.MemoryBase%4 != 0 {
		return fmt.Errorf("memory base %s must be word aligned", cfg.MemoryBase)
	}
	if uint64(cfg.MemoryBase)+uint64(cfg.MemorySize) < uint64(cfg.MemoryBase) {
		return fmt.Errorf("memory range %s+%s overflows", cfg.MemoryBase, cfg.MemorySize)
	}
	return nil
}
