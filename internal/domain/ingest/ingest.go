// Package ingest loads and validates the Open slots for a matching cycle.
// Per-slot problems are recorded and skipped; only a store outage aborts,
// and it does so before any write has happened.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

// Candidate is a validated Open slot joined with its owner's profile.
type Candidate struct {
	Slot model.AvailabilitySlot
	User model.User
}

// Skip records a slot dropped during validation and why.
type Skip struct {
	SlotID string
	UserID string
	Err    error
}

// Ingestor reads Open slots through the store contract.
type Ingestor struct {
	store repository.Store
	log   logger.Logger
}

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(in *Ingestor) {
		if log != nil {
			in.log = log
		}
	}
}

// New creates an Ingestor over the given store.
func New(store repository.Store, opts ...Option) *Ingestor {
	in := &Ingestor{
		store: store,
		log:   logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Load returns the validated candidates for a cycle plus the slots it
// skipped. The returned candidates are ordered by slot id (the store
// guarantees it), which makes every downstream tie reproducible.
//
// Validation rules:
//   - day, time slot and activity must parse;
//   - the owning user must exist (missing reference data is a per-slot
//     validation error, not a cycle failure);
//   - at most one Open slot per (user, day, time, activity): the first slot
//     by id wins, later duplicates are rejected, never silently merged.
func (in *Ingestor) Load(ctx context.Context, cycleID string) ([]Candidate, []Skip, error) {
	slots, err := in.store.ListOpenSlots(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading open slots for cycle %s: %w", cycleID, err)
	}

	users := make(map[string]model.User)
	seenTuple := make(map[string]string) // tuple key -> winning slot id

	var candidates []Candidate
	var skips []Skip

	for _, slot := range slots {
		if slot.Status != model.StatusOpen {
			// ListOpenSlots already filters; re-check so a Cancelled or
			// Matched slot can never reach the matcher.
			skips = append(skips, in.skip(ctx, slot, fmt.Errorf("%w: slot status %s", ErrValidation, slot.Status)))
			continue
		}
		if _, err := model.ParseDay(string(slot.Day)); err != nil {
			skips = append(skips, in.skip(ctx, slot, fmt.Errorf("%w: %v", ErrValidation, err)))
			continue
		}
		if _, _, err := model.ParseClock(slot.Time); err != nil {
			skips = append(skips, in.skip(ctx, slot, fmt.Errorf("%w: %v", ErrValidation, err)))
			continue
		}
		if _, err := model.ParseActivity(string(slot.Activity)); err != nil {
			skips = append(skips, in.skip(ctx, slot, fmt.Errorf("%w: %v", ErrValidation, err)))
			continue
		}

		user, ok := users[slot.UserID]
		if !ok {
			user, err = in.store.GetUser(ctx, slot.UserID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				skips = append(skips, in.skip(ctx, slot, fmt.Errorf("%w: unknown user %s", ErrValidation, slot.UserID)))
				continue
			case err != nil:
				return nil, nil, fmt.Errorf("loading user %s for cycle %s: %w", slot.UserID, cycleID, err)
			}
			users[slot.UserID] = user
		}

		key := slot.TupleKey()
		if winner, dup := seenTuple[key]; dup {
			skips = append(skips, in.skip(ctx, slot,
				fmt.Errorf("%w: duplicate open slot for tuple, slot %s already holds it", ErrValidation, winner)))
			continue
		}
		seenTuple[key] = slot.ID

		candidates = append(candidates, Candidate{Slot: slot, User: user})
	}

	return candidates, skips, nil
}

func (in *Ingestor) skip(ctx context.Context, slot model.AvailabilitySlot, err error) Skip {
	in.log.Warn(ctx, "skipping slot",
		logger.String("slotID", slot.ID),
		logger.String("userID", slot.UserID),
		logger.Error(err),
	)
	return Skip{SlotID: slot.ID, UserID: slot.UserID, Err: err}
}
