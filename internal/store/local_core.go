package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sitesetup/internal/logging"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"
)

// Driver names accepted by NewLocalStoreWithDriver.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// LocalStore is the SQLite database behind sitesetup. It holds two groups of
// tables:
//
//   - contact_submissions: the one application-owned table
//   - host_*: plugin registry, options, theme mods, posts and menus for the
//     local host platform (see platform/local)
//
// Usage Example:
//
//	st, _ := store.NewLocalStore("data/sitesetup.db")
//	defer st.Close()
//	id, _ := st.InsertSubmission(ctx, &store.SubmissionRecord{Name: "Jane", ...})
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	driver string
}

// NewLocalStore initializes the SQLite database at the given path using the cgo driver.
func NewLocalStore(path string) (*LocalStore, error) {
	return NewLocalStoreWithDriver(DriverCGO, path)
}

// NewLocalStoreWithDriver initializes the SQLite database with an explicit driver.
func NewLocalStoreWithDriver(driver, path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s (driver=%s)", path, driver)

	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	store := &LocalStore{db: db, dbPath: path, driver: driver}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	store.ensureIndexes()

	logging.Store("LocalStore initialization complete")
	return store, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	contactTable := `
	CREATE TABLE IF NOT EXISTS contact_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL DEFAULT '',
		budget TEXT NOT NULL DEFAULT '',
		timeline TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		newsletter INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'new'
	);
	`

	pluginsTable := `
	CREATE TABLE IF NOT EXISTS host_plugins (
		file TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 0,
		installed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_host_plugins_slug ON host_plugins(slug);
	`

	optionsTable := `
	CREATE TABLE IF NOT EXISTS host_options (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS host_theme_mods (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	postsTable := `
	CREATE TABLE IF NOT EXISTS host_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'publish',
		menu_order INTEGER NOT NULL DEFAULT 0,
		meta TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_host_posts_type_slug ON host_posts(type, slug);
	`

	menusTable := `
	CREATE TABLE IF NOT EXISTS host_menus (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS host_menu_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		menu_id INTEGER NOT NULL REFERENCES host_menus(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		page_id INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_host_menu_items_menu ON host_menu_items(menu_id);
	CREATE TABLE IF NOT EXISTS host_menu_locations (
		location TEXT PRIMARY KEY,
		menu_id INTEGER NOT NULL
	);
	`

	for name, ddl := range map[string]string{
		"contact_submissions": contactTable,
		"host_plugins":        pluginsTable,
		"host_options":        optionsTable,
		"host_posts":          postsTable,
		"host_menus":          menusTable,
	} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", name, err)
		}
	}

	return nil
}

// ensureIndexes creates indexes on columns that may only exist after migrations.
func (s *LocalStore) ensureIndexes() {
	indexes := `
	CREATE INDEX IF NOT EXISTS idx_contact_status ON contact_submissions(status);
	CREATE INDEX IF NOT EXISTS idx_contact_submitted ON contact_submissions(submitted_at);
	`
	if _, err := s.db.Exec(indexes); err != nil {
		// Non-fatal: indexes improve performance but aren't required
		logging.Get(logging.CategoryStore).Warn("Failed to create contact indexes: %v", err)
	}
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	logging.Store("Closing LocalStore database connection")
	return s.db.Close()
}

// GetDB returns the underlying SQL database connection.
func (s *LocalStore) GetDB() *sql.DB {
	return s.db
}

// Driver returns the registered driver name in use.
func (s *LocalStore) Driver() string {
	return s.driver
}

// Ping verifies the database is reachable; used by /healthz.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetStats returns row counts per table.
func (s *LocalStore) GetStats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetStats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"contact_submissions", "host_plugins", "host_options", "host_theme_mods", "host_posts", "host_menus", "host_menu_items", "host_menu_locations"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed (may not exist): %v", table, err)
			continue
		}
		stats[table] = count
	}

	logging.StoreDebug("Database stats computed: tables=%d", len(stats))
	return stats, nil
}
