// Package repository defines the slot/match store contract and errors.
package repository

import (
	"context"
	"time"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Store provides read/write access to users, availability slots and matches.
// The engine owns no state between cycles beyond what lives behind this
// contract, which keeps every run a pure function of store contents.
type Store interface {
	// ListOpenSlots returns every slot currently in status Open.
	// Returns ErrUnavailable when the backing store cannot be reached.
	ListOpenSlots(ctx context.Context) ([]model.AvailabilitySlot, error)

	// GetSlot returns a slot by id. Returns ErrNotFound for unknown ids.
	GetSlot(ctx context.Context, id string) (model.AvailabilitySlot, error)

	// GetUser returns profile reference data for a user id.
	// Returns ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (model.User, error)

	// ListUsers returns all known users.
	ListUsers(ctx context.Context) ([]model.User, error)

	// RecentPairs returns the unordered user pairs of every match created at
	// or after since. Used for the novelty cooldown lookup.
	RecentPairs(ctx context.Context, since time.Time) ([]model.UserPair, error)

	// UpdateSlotStatus flips a slot from expected to next.
	// Returns false with no error when the slot exists but its current
	// status is not expected (optimistic guard lost).
	UpdateSlotStatus(ctx context.Context, id string, expected, next model.SlotStatus) (bool, error)

	// InsertMatch persists a match record and returns its id.
	InsertMatch(ctx context.Context, m model.Match) (string, error)

	// CommitMatch atomically inserts the match and flips both source slots
	// Open -> Matched. Returns ErrConflict, leaving no partial writes, when
	// either slot is no longer Open.
	CommitMatch(ctx context.Context, m model.Match) error

	// ListMatches returns the matches committed for a cycle.
	ListMatches(ctx context.Context, cycleID string) ([]model.Match, error)

	// PutUser and PutSlot upsert reference data; used by onboarding
	// collaborators and the seeder, never by the engine itself.
	PutUser(ctx context.Context, u model.User) error
	PutSlot(ctx context.Context, s model.AvailabilitySlot) error
}
