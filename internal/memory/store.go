// Package memory implements the persistent project memory behind the
// dispatcher: phased plans, decisions, reflections, constraints and the
// append-only activity log.
//
// It uses SQLite (modernc, pure Go) with WAL mode. Writes against one plan
// are serialized through a per-plan lock; different plans proceed in
// parallel. Every database call runs under a bounded timeout.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var to allow time injection in tests.
var timeNow = time.Now

// newID generates record ids. Tests may swap it for deterministic ids.
var newID = func(kind Kind) string {
	return string(kind) + "_" + uuid.NewString()
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir           string
	StorageTimeout    time.Duration
	QueryLimit        int
	ActivityCacheSize int
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:           filepath.Join(home, ".switchboard"),
		StorageTimeout:    5 * time.Second,
		QueryLimit:        10,
		ActivityCacheSize: 200,
	}
}

// Observer receives store events. The metrics package implements it.
type Observer interface {
	StorageError(op string)
	PhaseAdvanced(planID, phase string)
}

type nopObserver struct{}

func (nopObserver) StorageError(string)          {}
func (nopObserver) PhaseAdvanced(string, string) {}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver sets the store's event observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.obs = o
		}
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent memory engine backed by SQLite.
type Store struct {
	db       *sql.DB
	cfg      Config
	hooks    storeHooks
	log      *zap.Logger
	obs      Observer
	locks    *planLocks
	activity *activityCache
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// runs migrations and rebuilds the activity cache.
func New(cfg Config, opts ...Option) (*Store, error) {
	def := DefaultConfig()
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = def.StorageTimeout
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = def.QueryLimit
	}
	if cfg.ActivityCacheSize <= 0 {
		cfg.ActivityCacheSize = def.ActivityCacheSize
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "switchboard.db")
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	// Pragmas below are per-connection.
	db.SetMaxOpenConns(1)

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:       db,
		cfg:      cfg,
		log:      zap.NewNop(),
		obs:      nopObserver{},
		locks:    newPlanLocks(),
		activity: newActivityCache(cfg.ActivityCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := s.opCtx(context.Background())
	defer cancel()

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	if err := s.loadActivityCache(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: load activity: %w", err)
	}

	s.log.Debug("memory store opened", zap.String("path", dbPath))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// opCtx bounds a storage operation by the configured timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

// storageErr wraps a persistence failure and reports it to the observer.
func (s *Store) storageErr(op string, err error) error {
	s.obs.StorageError(op)
	s.log.Warn("memory storage error", zap.String("op", op), zap.Error(err))
	return &StorageError{Op: op, Err: err}
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS plans (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			status      TEXT NOT NULL,
			body        TEXT NOT NULL,
			search_text TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plans_status  ON plans(status, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at DESC);

		CREATE TABLE IF NOT EXISTS records (
			id          TEXT PRIMARY KEY,
			plan_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL,
			search_text TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			FOREIGN KEY (plan_id) REFERENCES plans(id)
		);

		CREATE INDEX IF NOT EXISTS idx_records_plan    ON records(plan_id, kind);
		CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);

		CREATE TABLE IF NOT EXISTS activity (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			id        TEXT NOT NULL UNIQUE,
			ts        TEXT NOT NULL,
			profile   TEXT NOT NULL,
			action    TEXT NOT NULL,
			plan_id   TEXT,
			source    TEXT,
			quality   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_activity_plan ON activity(plan_id);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := s.execHook(ctx, s.db, schema)
	return err
}

// ─── Settings ────────────────────────────────────────────────────────────────

const settingCurrentPlan = "current_plan"

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	_, err := s.execHook(ctx, s.db,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns aggregate counts across the whole store.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	st := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM plans),
			(SELECT COUNT(*) FROM plans WHERE status = 'active'),
			(SELECT COUNT(*) FROM records WHERE kind = 'decision'),
			(SELECT COUNT(*) FROM records WHERE kind = 'reflection'),
			(SELECT COUNT(*) FROM records WHERE kind = 'constraint'),
			(SELECT COUNT(*) FROM activity)`).
		Scan(&st.Plans, &st.ActivePlans, &st.Decisions, &st.Reflections, &st.Constraints, &st.Activity)
	if err != nil {
		return nil, s.storageErr("stats", err)
	}
	return st, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// cleanStrings trims entries and drops empties.
func cleanStrings(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// searchText lowercases and joins the textual fields of a record.
func searchText(parts ...string) string {
	return strings.ToLower(strings.Join(cleanStrings(parts), "\n"))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// Truncate shortens s to at most max runes, appending "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
