package repository

import "time"

// SQLiteOption applies a configuration option to the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets how long SQLite waits on a locked database before
// giving up. Matters under parallel bucket commits.
func WithBusyTimeout(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
