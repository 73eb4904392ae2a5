package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

// Campus reference data for generated profiles.
var (
	programs = []string{"PGP", "EPGP", "PGPEM", "PGPBA", "FPM"}
	sections = []string{"A", "B", "C", "D", "E", "F"}
	intents  = []model.Intent{
		model.IntentCoFounder,
		model.IntentStudyPartner,
		model.IntentCasualChat,
		model.IntentSportsBuddy,
	}
	interestPool = []string{
		"consulting", "product", "fintech", "marketing", "startups",
		"public-policy", "analytics", "design", "cricket", "football",
		"trekking", "music", "photography", "quizzing", "debate",
	}
	days = []model.Day{
		model.Monday, model.Tuesday, model.Wednesday, model.Thursday,
		model.Friday, model.Saturday, model.Sunday,
	}
	clocks     = []string{"07:30", "08:00", "12:30", "13:00", "17:00", "18:30", "20:00", "21:30"}
	activities = []model.Activity{
		// Coffee and Lunch twice so they dominate, matching real usage.
		model.Coffee, model.Coffee, model.Lunch, model.Lunch,
		model.Sports, model.Study, model.Chat,
	}
)

const (
	minInterests   = 2
	interestSpread = 4 // up to minInterests+interestSpread-1 interests
)

// newRNG builds the run's random source. A zero seed falls back to the
// clock; a fixed seed makes the generated campus reproducible.
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// generateUsers creates numUsers profiles with varied programs, sections,
// interests and intents.
func generateUsers(ctx context.Context, rng *rand.Rand, numUsers int) []model.User {
	logger.Get().Info(ctx, "generating users", logger.Int("numUsers", numUsers))

	users := make([]model.User, numUsers)
	for i := range users {
		id := uuid.New().String()
		program := programs[rng.Intn(len(programs))]
		section := ""
		if program == "PGP" {
			section = sections[rng.Intn(len(sections))]
		}

		n := minInterests + rng.Intn(interestSpread)
		perm := rng.Perm(len(interestPool))
		interests := make([]string, 0, n)
		for _, idx := range perm[:n] {
			interests = append(interests, interestPool[idx])
		}

		users[i] = model.User{
			ID:        id,
			FullName:  fmt.Sprintf("Seed User %04d", i),
			Email:     fmt.Sprintf("seed.user%04d@example.edu", i),
			Program:   program,
			Year:      1 + rng.Intn(2),
			Section:   section,
			Interests: interests,
			Intent:    intents[rng.Intn(len(intents))],
		}
	}
	return users
}

// generateSlots creates slotsPerUser open slots for every user, deduplicated
// on the (user, day, time, activity) tuple so seeded data never trips the
// ingestion duplicate check.
func generateSlots(ctx context.Context, rng *rand.Rand, users []model.User, slotsPerUser int, now time.Time) []model.AvailabilitySlot {
	slots := make([]model.AvailabilitySlot, 0, len(users)*slotsPerUser)
	for _, u := range users {
		seen := make(map[string]struct{}, slotsPerUser)
		for len(seen) < slotsPerUser {
			day := days[rng.Intn(len(days))]
			clock := clocks[rng.Intn(len(clocks))]
			activity := activities[rng.Intn(len(activities))]

			tuple := string(day) + "|" + clock + "|" + string(activity)
			if _, dup := seen[tuple]; dup {
				continue
			}
			seen[tuple] = struct{}{}

			slots = append(slots, model.AvailabilitySlot{
				ID:        uuid.New().String(),
				UserID:    u.ID,
				Day:       day,
				Time:      clock,
				Activity:  activity,
				Status:    model.StatusOpen,
				CreatedAt: now,
			})
		}
	}
	logger.Get().Info(ctx, "generated slots", logger.Int("count", len(slots)))
	return slots
}
