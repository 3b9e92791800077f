package store

import (
	"database/sql"
	"fmt"

	"sitesetup/internal/logging"
)

// Schema versions:
// v1: contact_submissions with name, email, message, submitted_at
// v2: company, budget, timeline, newsletter columns and the status workflow
// v3: host_* tables for the local platform; host_posts.excerpt and menu_order
const CurrentSchemaVersion = 3

// Migration defines a database schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns added after a table first shipped.
// CREATE TABLE IF NOT EXISTS leaves old tables alone, so older databases get
// the new columns here.
var pendingMigrations = []Migration{
	{"contact_submissions", "reference", "TEXT NOT NULL DEFAULT ''"},
	{"contact_submissions", "company", "TEXT NOT NULL DEFAULT ''"},
	{"contact_submissions", "budget", "TEXT NOT NULL DEFAULT ''"},
	{"contact_submissions", "timeline", "TEXT NOT NULL DEFAULT ''"},
	{"contact_submissions", "newsletter", "INTEGER NOT NULL DEFAULT 0"},
	{"contact_submissions", "status", "TEXT NOT NULL DEFAULT 'new'"},
	{"host_posts", "excerpt", "TEXT NOT NULL DEFAULT ''"},
	{"host_posts", "menu_order", "INTEGER NOT NULL DEFAULT 0"},
	{"host_posts", "meta", "TEXT NOT NULL DEFAULT '{}'"},
	{"host_plugins", "installed_at", "DATETIME"},
}

// RunMigrations applies schema migrations for existing databases and records
// the schema version in PRAGMA user_version.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	from := GetSchemaVersion(db)
	logging.Store("Running schema migrations (%d pending, schema v%d)", len(pendingMigrations), from)

	appliedCount := 0
	skippedCount := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			skippedCount++
			continue
		}

		if columnExists(db, m.Table, m.Column) {
			skippedCount++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			logging.Get(logging.CategoryStore).Error("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			return fmt.Errorf("migration %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		appliedCount++
	}

	if from < CurrentSchemaVersion {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			return err
		}
	}

	logging.Store("Schema migrations complete: applied=%d, skipped=%d", appliedCount, skippedCount)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rows, err := db.Query(query)
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version (0 for a fresh file).
func GetSchemaVersion(db *sql.DB) int {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		logging.StoreDebug("PRAGMA user_version failed: %v", err)
		return 0
	}
	return version
}

// SetSchemaVersion records a new schema version in the database.
func SetSchemaVersion(db *sql.DB, version int) error {
	// PRAGMA does not take bind parameters.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record schema version %d: %v", version, err)
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	logging.Store("Schema version set to %d", version)
	return nil
}
