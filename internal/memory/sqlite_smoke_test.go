package memory_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestSQLiteSmokeTest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "smoke.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("failed to enable WAL mode: %v", err)
	}

	// Verify WAL mode is active
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL mode, got %q", mode)
	}
}

func TestStoreSchema(t *testing.T) {
	s := newTestStore(t)
	db := s.DB()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	for _, table := range []string{"plans", "records", "activity", "settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestStoreSchema_ForeignKeyOnRecords(t *testing.T) {
	s := newTestStore(t)

	_, err := s.DB().Exec(`INSERT INTO records (id, plan_id, kind, title, body, search_text, created_at, updated_at)
		VALUES ('decision_x', 'plan_missing', 'decision', 't', '{}', '', '', '')`)
	if err == nil {
		t.Fatal("record referencing a missing plan should be rejected")
	}
}
