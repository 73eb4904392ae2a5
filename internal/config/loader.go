package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SYNAPSE_CONFIG is set
//  3. env (prefix SYNAPSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SYNAPSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: SYNAPSE_ADDR, SYNAPSE_WORKER_COUNT, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("SYNAPSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "synapse_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.StoreDriver != "memory" && c.StoreDriver != "sqlite":
		return fmt.Errorf("%w: store_driver must be memory or sqlite", ErrInvalidConfig)
	case c.StoreDriver == "sqlite" && c.StorePath == "":
		return fmt.Errorf("%w: store_path required for the sqlite driver", ErrInvalidConfig)
	case c.CooldownCycles < 0:
		return fmt.Errorf("%w: cooldown_cycles must not be negative", ErrInvalidConfig)
	case c.CycleIntervalHours < 1:
		return fmt.Errorf("%w: cycle_interval_hours must be positive", ErrInvalidConfig)
	}
	return nil
}
