package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/iimb-synergy/synapse/internal/seed"
)

// Default configuration constants.
const (
	defaultNumUsers     = 200
	defaultSlotsPerUser = 3
	defaultTimeout      = 30 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		storePath    = flag.String("store", "synapse.db", "Path to the SQLite store shared with the service")
		numUsers     = flag.Int("users", defaultNumUsers, "Number of users to generate")
		slotsPerUser = flag.Int("slots", defaultSlotsPerUser, "Open slots declared per user")
		rngSeed      = flag.Int64("seed", 0, "RNG seed; 0 uses the clock")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile      = flag.String("log", "", "Log file for run output (default: seed_log_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	if err := seed.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &seed.Config{
		BaseURL:      *baseURL,
		StorePath:    *storePath,
		NumUsers:     *numUsers,
		SlotsPerUser: *slotsPerUser,
		Seed:         *rngSeed,
		Timeout:      *timeout,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if err := seed.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seed run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
