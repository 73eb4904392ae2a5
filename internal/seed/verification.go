package seed

import (
	"context"
	"fmt"

	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

// verifyResults checks the committed matches against the engine's
// guarantees: distinct users per match, no user matched twice in the cycle,
// both referenced slots flipped to Matched, and report counts consistent
// with what the store holds.
func verifyResults(ctx context.Context, store repository.Store, report *runReport, matches []model.Match, users []model.User) error {
	logger.Get().Info(ctx, "verifying results", logger.Int("matches", len(matches)))

	if len(matches) != report.MatchesCreated {
		return fmt.Errorf("report counts %d matches but store holds %d", report.MatchesCreated, len(matches))
	}

	known := make(map[string]struct{}, len(users))
	for _, u := range users {
		known[u.ID] = struct{}{}
	}

	seenUsers := make(map[string]string, 2*len(matches))
	for _, m := range matches {
		if m.User1ID == m.User2ID {
			return fmt.Errorf("match %s pairs user %s with themselves", m.ID, m.User1ID)
		}
		if m.User1ID > m.User2ID {
			return fmt.Errorf("match %s users not in canonical order", m.ID)
		}
		for _, uid := range []string{m.User1ID, m.User2ID} {
			if _, ok := known[uid]; !ok {
				return fmt.Errorf("match %s references unknown user %s", m.ID, uid)
			}
			if other, dup := seenUsers[uid]; dup {
				return fmt.Errorf("user %s appears in matches %s and %s", uid, other, m.ID)
			}
			seenUsers[uid] = m.ID
		}

		for _, slotID := range []string{m.Slot1ID, m.Slot2ID} {
			slot, err := store.GetSlot(ctx, slotID)
			if err != nil {
				return fmt.Errorf("match %s references missing slot %s: %w", m.ID, slotID, err)
			}
			if slot.Status != model.StatusMatched {
				return fmt.Errorf("slot %s backing match %s has status %s", slotID, m.ID, slot.Status)
			}
		}

		if m.Location == "" {
			return fmt.Errorf("match %s has no location", m.ID)
		}
	}

	// Remaining open slots in the store must agree with the report.
	open, err := store.ListOpenSlots(ctx)
	if err != nil {
		return fmt.Errorf("listing open slots: %w", err)
	}
	if len(open) != report.SlotsLeftOpen {
		return fmt.Errorf("report counts %d open slots but store holds %d", report.SlotsLeftOpen, len(open))
	}

	logger.Get().Info(ctx, "verification passed",
		logger.Int("matchedUsers", len(seenUsers)),
		logger.Int("openSlots", len(open)))
	return nil
}
