package db

import (
	"context"
	"testing"
)

func TestOpenSQLite_AppliesSchema(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "devices", "challenges"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestOpenSQLite_UniqueViolation(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	insert := SQLite.Rebind(`INSERT INTO users (id, email, name, status, created_at, updated_at) VALUES ($1, $2, '', 'active', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if _, err := db.Exec(insert, "u1", "a@example.com"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = db.Exec(insert, "u1", "b@example.com")
	if !SQLite.IsUniqueViolation(err) {
		t.Errorf("duplicate primary key err = %v, want unique violation", err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Error("OpenSQLite with empty path should fail")
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = $10"
	if got := Postgres.Rebind(q); got != q {
		t.Errorf("Postgres.Rebind changed query: %q", got)
	}
	if got, want := SQLite.Rebind(q), "SELECT * FROM t WHERE a = ? AND b = ? AND c = ?"; got != want {
		t.Errorf("SQLite.Rebind = %q, want %q", got, want)
	}
	if Postgres.IsUniqueViolation(nil) {
		t.Error("nil error is not a unique violation")
	}
}
