package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// A v1 database only had the minimal contact table.
func TestRunMigrationsUpgradesOldContactTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open(DriverCGO, path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE contact_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		submitted_at DATETIME NOT NULL
	)`)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	store, err := NewLocalStore(path)
	if err != nil {
		t.Fatalf("open with migrations: %v", err)
	}
	defer store.Close()

	for _, col := range []string{"reference", "company", "budget", "timeline", "newsletter", "status"} {
		if !columnExists(store.GetDB(), "contact_submissions", col) {
			t.Errorf("column %s was not added", col)
		}
	}
	if got := GetSchemaVersion(store.GetDB()); got != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", got, CurrentSchemaVersion)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 2; i++ {
		if err := RunMigrations(store.GetDB()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestTableExists(t *testing.T) {
	store := newTestStore(t)
	if !tableExists(store.GetDB(), "host_menus") {
		t.Error("host_menus should exist")
	}
	if tableExists(store.GetDB(), "nope") {
		t.Error("nope should not exist")
	}
}
