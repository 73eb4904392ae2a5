package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iimb-synergy/synapse/internal/domain/model"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore implements Store on a local SQLite database. The driver is
// pure Go (modernc.org/sqlite), so no cgo toolchain is required.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL,
			program TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			section TEXT NOT NULL DEFAULT '',
			interests TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS availability_slots (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			day TEXT NOT NULL,
			time_slot TEXT NOT NULL,
			activity TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Open',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_slots_status ON availability_slots(status);

		CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			user_1_id TEXT NOT NULL REFERENCES users(id),
			user_2_id TEXT NOT NULL REFERENCES users(id),
			activity TEXT NOT NULL,
			location TEXT NOT NULL,
			scheduled_at TIMESTAMP NOT NULL,
			slot_1_id TEXT NOT NULL,
			slot_2_id TEXT NOT NULL,
			score REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_cycle ON matches(cycle_id);
		CREATE INDEX IF NOT EXISTS idx_matches_created ON matches(created_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_cycle_user1 ON matches(cycle_id, user_1_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_cycle_user2 ON matches(cycle_id, user_2_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrap maps driver failures onto the store sentinels.
func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// ListOpenSlots returns all Open slots ordered by slot id.
func (s *SQLiteStore) ListOpenSlots(ctx context.Context) ([]model.AvailabilitySlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, day, time_slot, activity, status, created_at
		 FROM availability_slots WHERE status = ? ORDER BY id`, string(model.StatusOpen))
	if err != nil {
		return nil, wrap("list open slots", err)
	}
	defer rows.Close()

	var out []model.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, wrap("list open slots", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list open slots", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(r rowScanner) (model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	var day, activity, status string
	if err := r.Scan(&slot.ID, &slot.UserID, &day, &slot.Time, &activity, &status, &slot.CreatedAt); err != nil {
		return model.AvailabilitySlot{}, err
	}
	slot.Day = model.Day(day)
	slot.Activity = model.Activity(activity)
	slot.Status = model.SlotStatus(status)
	return slot, nil
}

// GetSlot returns a slot by id.
func (s *SQLiteStore) GetSlot(ctx context.Context, id string) (model.AvailabilitySlot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, day, time_slot, activity, status, created_at
		 FROM availability_slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return model.AvailabilitySlot{}, wrap("get slot "+id, err)
	}
	return slot, nil
}

// GetUser returns profile reference data by user id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, program, year, section, interests, intent, bio
		 FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, wrap("get user "+id, err)
	}
	return u, nil
}

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	var interests, intent string
	if err := r.Scan(&u.ID, &u.FullName, &u.Email, &u.Program, &u.Year, &u.Section, &interests, &intent, &u.Bio); err != nil {
		return model.User{}, err
	}
	if interests != "" {
		u.Interests = strings.Split(interests, ",")
	}
	u.Intent = model.Intent(intent)
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, email, program, year, section, interests, intent, bio
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("list users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list users", err)
	}
	return out, nil
}

// RecentPairs returns unordered user pairs of matches created at or after since.
func (s *SQLiteStore) RecentPairs(ctx context.Context, since time.Time) ([]model.UserPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_1_id, user_2_id FROM matches WHERE created_at >= ?`, since)
	if err != nil {
		return nil, wrap("recent pairs", err)
	}
	defer rows.Close()

	var out []model.UserPair
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, wrap("recent pairs", err)
		}
		out = append(out, model.PairOf(a, b))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("recent pairs", err)
	}
	return out, nil
}

// UpdateSlotStatus flips a slot from expected to next with a guarded UPDATE.
func (s *SQLiteStore) UpdateSlotStatus(ctx context.Context, id string, expected, next model.SlotStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE availability_slots SET status = ? WHERE id = ? AND status = ?`,
		string(next), id, string(expected))
	if err != nil {
		return false, wrap("update slot "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("update slot "+id, err)
	}
	if n == 0 {
		// Distinguish a missing slot from a lost guard.
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM availability_slots WHERE id = ?`, id)
		if err := row.Scan(&exists); err != nil {
			return false, wrap("update slot "+id, err)
		}
		return false, nil
	}
	return true, nil
}

// InsertMatch persists a match record.
func (s *SQLiteStore) InsertMatch(ctx context.Context, m model.Match) (string, error) {
	m = withMatchDefaults(m)
	if err := insertMatchExec(ctx, s.db, m); err != nil {
		return "", wrap("insert match", err)
	}
	return m.ID, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func withMatchDefaults(m model.Match) model.Match {
	if m.ID == "" {
		m.ID = model.NewMatchID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return m
}

func insertMatchExec(ctx context.Context, db execer, m model.Match) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO matches (id, cycle_id, user_1_id, user_2_id, activity, location, scheduled_at, slot_1_id, slot_2_id, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CycleID, m.User1ID, m.User2ID, string(m.Activity), m.Location,
		m.ScheduledAt, m.Slot1ID, m.Slot2ID, m.Score, m.CreatedAt)
	return err
}

// CommitMatch runs the per-pair transaction: the per-cycle user-uniqueness
// check, both slot flips under the Open guard, and the match insert, all or
// nothing. The unique (cycle_id, user) indexes back the same invariant at
// the schema level; the SELECT also catches a user switching columns.
func (s *SQLiteStore) CommitMatch(ctx context.Context, m model.Match) error {
	if m.User1ID == m.User2ID {
		return fmt.Errorf("match %s pairs user %s with itself", m.ID, m.User1ID)
	}
	m = withMatchDefaults(m)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("commit match", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var taken string
	err = tx.QueryRowContext(ctx,
		`SELECT user_1_id FROM matches
		 WHERE cycle_id = ? AND (user_1_id IN (?, ?) OR user_2_id IN (?, ?)) LIMIT 1`,
		m.CycleID, m.User1ID, m.User2ID, m.User1ID, m.User2ID).Scan(&taken)
	switch {
	case err == nil:
		return fmt.Errorf("pair (%s, %s) has a user already matched in cycle %s: %w",
			m.User1ID, m.User2ID, m.CycleID, ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return wrap("commit match", err)
	}

	for _, slotID := range []string{m.Slot1ID, m.Slot2ID} {
		res, err := tx.ExecContext(ctx,
			`UPDATE availability_slots SET status = ? WHERE id = ? AND status = ?`,
			string(model.StatusMatched), slotID, string(model.StatusOpen))
		if err != nil {
			return wrap("commit match", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrap("commit match", err)
		}
		if n == 0 {
			return fmt.Errorf("slot %s is no longer open: %w", slotID, ErrConflict)
		}
	}

	if err := insertMatchExec(ctx, tx, m); err != nil {
		return wrap("commit match", err)
	}
	if err := tx.Commit(); err != nil {
		return wrap("commit match", err)
	}
	return nil
}

// ListMatches returns the matches committed for a cycle, oldest first.
func (s *SQLiteStore) ListMatches(ctx context.Context, cycleID string) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cycle_id, user_1_id, user_2_id, activity, location, scheduled_at, slot_1_id, slot_2_id, score, created_at
		 FROM matches WHERE cycle_id = ? ORDER BY created_at`, cycleID)
	if err != nil {
		return nil, wrap("list matches", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var activity string
		if err := rows.Scan(&m.ID, &m.CycleID, &m.User1ID, &m.User2ID, &activity, &m.Location,
			&m.ScheduledAt, &m.Slot1ID, &m.Slot2ID, &m.Score, &m.CreatedAt); err != nil {
			return nil, wrap("list matches", err)
		}
		m.Activity = model.Activity(activity)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list matches", err)
	}
	return out, nil
}

// PutUser upserts a user record.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, full_name, email, program, year, section, interests, intent, bio)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name, email = excluded.email,
			program = excluded.program, year = excluded.year,
			section = excluded.section, interests = excluded.interests,
			intent = excluded.intent, bio = excluded.bio`,
		u.ID, u.FullName, u.Email, u.Program, u.Year, u.Section,
		strings.Join(u.Interests, ","), string(u.Intent), u.Bio)
	if err != nil {
		return wrap("put user "+u.ID, err)
	}
	return nil
}

// PutSlot upserts a slot record.
func (s *SQLiteStore) PutSlot(ctx context.Context, slot model.AvailabilitySlot) error {
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO availability_slots (id, user_id, day, time_slot, activity, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			day = excluded.day, time_slot = excluded.time_slot,
			activity = excluded.activity, status = excluded.status`,
		slot.ID, slot.UserID, string(slot.Day), slot.Time, string(slot.Activity),
		string(slot.Status), slot.CreatedAt)
	if err != nil {
		return wrap("put slot "+slot.ID, err)
	}
	return nil
}
