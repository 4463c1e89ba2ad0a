package memory

import (
	"context"
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetClock swaps the package clock and returns a func restoring it.
func SetClock(fn func() time.Time) func() {
	prev := timeNow
	timeNow = fn
	return func() { timeNow = prev }
}

// LiveLocks reports how many per-plan locks are currently held or awaited.
func (s *Store) LiveLocks() int {
	return s.locks.size()
}

// FailWrites makes every subsequent exec return err.
func (s *Store) FailWrites(err error) {
	s.hooks.exec = func(context.Context, execer, string, ...any) (sql.Result, error) {
		return nil, err
	}
}
