package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.CreateRun(ctxT(t), "run-1", "first", map[string]int{"n": 1}); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("runs = %d, want 1", count)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "journal.db"))
	if err == nil {
		t.Error("Open() with invalid path should fail")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db = %v, want nil", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_TablesAndIndex(t *testing.T) {
	s := createTestStore(t)

	for _, name := range []string{"runs", "steps", "idx_steps_msg_type"} {
		var got string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", name,
		).Scan(&got)
		if err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestOpen_MigratesVersionZeroJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	for _, stmt := range []string{"DROP INDEX idx_steps_msg_type", "PRAGMA user_version = 0"} {
		if _, err := s1.db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	if err := s2.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	var name string
	err = s2.db.QueryRow("SELECT name FROM sqlite_master WHERE name = 'idx_steps_msg_type'").Scan(&name)
	if err != nil {
		t.Errorf("index not recreated: %v", err)
	}
}

func TestSchema_StepRequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteStep(ctxT(t), Step{RunID: "ghost", Seq: 1, MsgType: "init"})
	if err == nil {
		t.Error("WriteStep() for unknown run should violate the foreign key")
	}
}
