package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// MemoryStore implements Store with mutex-guarded maps. It is the default
// backend for tests and local runs; durable deployments use the SQLite store.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]model.User
	slots   map[string]model.AvailabilitySlot
	matches []model.Match
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		slots: make(map[string]model.AvailabilitySlot),
	}
}

// ListOpenSlots returns all Open slots sorted by slot id.
func (s *MemoryStore) ListOpenSlots(ctx context.Context) ([]model.AvailabilitySlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AvailabilitySlot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.Status == model.StatusOpen {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSlot returns a slot by id.
func (s *MemoryStore) GetSlot(ctx context.Context, id string) (model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return model.AvailabilitySlot{}, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	return slot, nil
}

// GetUser returns profile reference data by user id.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

// ListUsers returns all users sorted by id.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecentPairs returns unordered user pairs of matches created at or after since.
func (s *MemoryStore) RecentPairs(ctx context.Context, since time.Time) ([]model.UserPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.UserPair
	for _, m := range s.matches {
		if !m.CreatedAt.Before(since) {
			out = append(out, model.PairOf(m.User1ID, m.User2ID))
		}
	}
	return out, nil
}

// UpdateSlotStatus flips a slot from expected to next under the store lock.
func (s *MemoryStore) UpdateSlotStatus(ctx context.Context, id string, expected, next model.SlotStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return false, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	if slot.Status != expected {
		return false, nil
	}
	slot.Status = next
	s.slots[id] = slot
	return true, nil
}

// InsertMatch appends a match record, assigning an id when absent.
func (s *MemoryStore) InsertMatch(ctx context.Context, m model.Match) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(m), nil
}

func (s *MemoryStore) insertLocked(m model.Match) string {
	if m.ID == "" {
		m.ID = model.NewMatchID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.matches = append(s.matches, m)
	return m.ID
}

// CommitMatch inserts the match and flips both source slots in one critical
// section. Either everything is applied or nothing is. A user already
// matched in the cycle conflicts, regardless of which slots are involved.
func (s *MemoryStore) CommitMatch(ctx context.Context, m model.Match) error {
	if m.User1ID == m.User2ID {
		return fmt.Errorf("match %s pairs user %s with itself", m.ID, m.User1ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prev := range s.matches {
		if prev.CycleID != m.CycleID {
			continue
		}
		for _, uid := range []string{m.User1ID, m.User2ID} {
			if prev.User1ID == uid || prev.User2ID == uid {
				return fmt.Errorf("user %s already matched in cycle %s: %w", uid, m.CycleID, ErrConflict)
			}
		}
	}

	for _, slotID := range []string{m.Slot1ID, m.Slot2ID} {
		slot, ok := s.slots[slotID]
		if !ok {
			return fmt.Errorf("slot %s: %w", slotID, ErrNotFound)
		}
		if slot.Status != model.StatusOpen {
			return fmt.Errorf("slot %s is %s: %w", slotID, slot.Status, ErrConflict)
		}
	}

	for _, slotID := range []string{m.Slot1ID, m.Slot2ID} {
		slot := s.slots[slotID]
		slot.Status = model.StatusMatched
		s.slots[slotID] = slot
	}
	s.insertLocked(m)
	return nil
}

// ListMatches returns the matches committed for a cycle, oldest first.
func (s *MemoryStore) ListMatches(ctx context.Context, cycleID string) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.CycleID == cycleID {
			out = append(out, m)
		}
	}
	return out, nil
}

// PutUser upserts a user record.
func (s *MemoryStore) PutUser(ctx context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// PutSlot upserts a slot record.
func (s *MemoryStore) PutSlot(ctx context.Context, slot model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	s.slots[slot.ID] = slot
	return nil
}
