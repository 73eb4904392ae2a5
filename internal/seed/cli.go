package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/iimb-synergy/synapse/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "seed_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Synapse Seed Tool
=================

Populates the matching store with generated users and availability slots,
triggers a matching cycle against a running service, and verifies the
committed matches.

Usage:
  go run cmd/seed/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -store string
        Path to the SQLite store shared with the service (default "synapse.db")
  -users int
        Number of users to generate (default 200)
  -slots int
        Open slots declared per user (default 3)
  -seed int
        RNG seed; 0 uses the clock (default 0)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for run output (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed with defaults against a local service
  go run cmd/seed/main.go

  # Reproducible large campus
  go run cmd/seed/main.go -users 2000 -slots 4 -seed 42

  # Point at a custom store and service
  go run cmd/seed/main.go -store /var/lib/synapse/synapse.db -url http://localhost:8080
`)
}
