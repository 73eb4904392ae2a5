// Package config defines service configuration structures and loading hooks.
//
// Conventions follow the rest of the engine: defaults live in New, Load
// layers file and environment on top, and validation happens once at load.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of bucket workers per cycle.
	WorkerCount int `koanf:"worker_count"`

	// BucketQueueSize bounds the in-memory bucket queue.
	BucketQueueSize int `koanf:"bucket_queue_size"`

	// StoreDriver selects the slot store backend: "memory" or "sqlite".
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database path when StoreDriver is "sqlite".
	StorePath string `koanf:"store_path"`

	// StoreTimeoutMS bounds every store call made during a cycle.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// CycleIntervalHours is the scheduler period; 168 is weekly.
	CycleIntervalHours int `koanf:"cycle_interval_hours"`

	// CooldownCycles is how many prior cycles a repeat pairing stays
	// penalized for.
	CooldownCycles int `koanf:"cooldown_cycles"`

	// Scoring weights. Zero values fall back to scorer defaults.
	InterestWeight float64 `koanf:"interest_weight"`
	InterestCap    int     `koanf:"interest_cap"`
	IntentBonus    float64 `koanf:"intent_bonus"`
	DiversityBonus float64 `koanf:"diversity_bonus"`
	SectionPenalty float64 `koanf:"section_penalty"`
	NoveltyBonus   float64 `koanf:"novelty_bonus"`
	RepeatPenalty  float64 `koanf:"repeat_penalty"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		WorkerCount:        runtime.NumCPU(),
		BucketQueueSize:    1024,
		StoreDriver:        "memory",
		StorePath:          "data/synapse.db",
		StoreTimeoutMS:     5000,
		CycleIntervalHours: 168,
		CooldownCycles:     4,
		InterestWeight:     10,
		InterestCap:        5,
		IntentBonus:        25,
		DiversityBonus:     50,
		SectionPenalty:     -20,
		NoveltyBonus:       30,
		RepeatPenalty:      -100,
	}
}
