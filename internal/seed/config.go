package seed

import (
	"time"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Config holds configuration for the seeding run
type Config struct {
	BaseURL      string        // Base URL of the running service
	StorePath    string        // SQLite database shared with the service
	NumUsers     int           // Number of users to generate
	SlotsPerUser int           // Open slots declared per user
	Seed         int64         // RNG seed; 0 means time-based
	Timeout      time.Duration // HTTP request timeout
	LogFile      string        // Log file for run output
	Verbose      bool          // Enable verbose logging
}

// runReport mirrors the response of POST /cycles/run
type runReport struct {
	CycleID         string   `json:"cycle_id"`
	SlotsIngested   int      `json:"slots_ingested"`
	SlotsSkipped    int      `json:"slots_skipped"`
	BucketsMatched  int      `json:"buckets_matched"`
	MatchesCreated  int      `json:"matches_created"`
	FallbackMatches int      `json:"fallback_matches"`
	SlotsLeftOpen   int      `json:"slots_left_open"`
	SkippedPairs    int      `json:"skipped_pairs"`
	DurationMS      int64    `json:"duration_ms"`
	Errors          []string `json:"errors,omitempty"`
}

// Stats holds seeding-run statistics
type Stats struct {
	UsersGenerated int
	SlotsGenerated int
	MatchesCreated int
	SlotsLeftOpen  int
	Matches        []model.Match
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
