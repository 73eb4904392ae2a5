package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

// Run executes the complete seed-and-verify flow: populate the shared store
// with generated users and open slots, trigger a matching cycle over HTTP,
// then check the committed matches against the engine's guarantees.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting seed run",
		logger.String("baseURL", config.BaseURL),
		logger.String("storePath", config.StorePath),
		logger.Int("users", config.NumUsers),
		logger.Int("slotsPerUser", config.SlotsPerUser),
		logger.Any("seed", config.Seed),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Open the store the service reads from
	store, err := repository.NewSQLiteStore(config.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Get().Warn(context.Background(), "failed to close store", logger.Error(err))
		}
	}()

	// Step 3: Generate and persist users and slots
	rng := newRNG(config.Seed)
	users := generateUsers(ctx, rng, config.NumUsers)
	slots := generateSlots(ctx, rng, users, config.SlotsPerUser, time.Now().UTC())

	for _, u := range users {
		if err := store.PutUser(ctx, u); err != nil {
			return fmt.Errorf("seeding user %s: %w", u.ID, err)
		}
	}
	for _, s := range slots {
		if err := store.PutSlot(ctx, s); err != nil {
			return fmt.Errorf("seeding slot %s: %w", s.ID, err)
		}
	}
	stats.UsersGenerated = len(users)
	stats.SlotsGenerated = len(slots)
	logger.Get().Info(ctx, "seeded store",
		logger.Int("users", len(users)),
		logger.Int("slots", len(slots)))

	// Step 4: Trigger the cycle
	report, err := triggerCycle(ctx, config)
	if err != nil {
		return fmt.Errorf("cycle trigger failed: %w", err)
	}
	stats.MatchesCreated = report.MatchesCreated
	stats.SlotsLeftOpen = report.SlotsLeftOpen

	// Step 5: Load committed matches and verify
	matches, err := store.ListMatches(ctx, report.CycleID)
	if err != nil {
		return fmt.Errorf("loading matches: %w", err)
	}
	stats.Matches = matches
	if err := verifyResults(ctx, store, report, matches, users); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, report, stats)

	logger.Get().Info(ctx, "seed run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// triggerCycle posts /cycles/run and decodes the report.
func triggerCycle(ctx context.Context, config *Config) (*runReport, error) {
	logger.Get().Info(ctx, "triggering matching cycle")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Post(ctx, config.BaseURL+"/cycles/run", map[string]string{})
	if err != nil {
		return nil, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cycle run returned status %d: %s", resp.StatusCode, string(body))
	}

	var report runReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decoding cycle report: %w", err)
	}

	logger.Get().Info(ctx, "cycle finished",
		logger.String("cycleID", report.CycleID),
		logger.Int("matchesCreated", report.MatchesCreated),
		logger.Int("slotsLeftOpen", report.SlotsLeftOpen),
	)
	return &report, nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(ctx context.Context, report *runReport, stats *Stats) {
	var matchRate float64
	if stats.SlotsGenerated > 0 {
		matchRate = float64(2*stats.MatchesCreated) / float64(stats.SlotsGenerated) * 100
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("usersGenerated", stats.UsersGenerated),
		logger.Int("slotsGenerated", stats.SlotsGenerated),
		logger.Int("slotsIngested", report.SlotsIngested),
		logger.Int("matchesCreated", stats.MatchesCreated),
		logger.Int("fallbackMatches", report.FallbackMatches),
		logger.Int("slotsLeftOpen", stats.SlotsLeftOpen),
		logger.Int("skippedPairs", report.SkippedPairs),
		logger.Float64("slotMatchRatePct", matchRate),
		logger.String("duration", stats.Duration.String()),
	)
}
