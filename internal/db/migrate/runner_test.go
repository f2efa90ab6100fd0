package migrate

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, "up"); err == nil {
			t.Errorf("Run(%q) should return error", dsn)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Up", "both"} {
		t.Run(direction, func(t *testing.T) {
			if err := Run("postgres://localhost/test", direction); err == nil {
				t.Errorf("Run with direction %q should return error", direction)
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test"} {
		if err := Run(dsn, "up"); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestRun_SQLiteUpDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pushauth.db")
	dsn := "sqlite://" + path

	if err := Run(dsn, "up"); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := Run(dsn, "up"); err != nil {
		t.Fatalf("second up should be a no-op: %v", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'challenges'").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 {
		t.Fatalf("challenges table count = %d, want 1", n)
	}

	if err := Run(dsn, "down"); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'challenges'").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Errorf("challenges table count after down = %d, want 0", n)
	}
}

func TestErrNoChange(t *testing.T) {
	if !errors.Is(ErrNoChange, ErrNoChange) {
		t.Error("ErrNoChange should be errors.Is compatible")
	}
	if got := sourceDir("sqlite:///tmp/x.db"); got != "migrations/sqlite" {
		t.Errorf("sourceDir sqlite = %q", got)
	}
	if got := sourceDir("postgres://localhost/db"); got != "migrations/postgres" {
		t.Errorf("sourceDir postgres = %q", got)
	}
}
