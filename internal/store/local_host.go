package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
)

// =============================================================================
// PLUGIN REGISTRY
// =============================================================================

// HostPlugins returns the plugin registry keyed by plugin file.
func (s *LocalStore) HostPlugins(ctx context.Context) (map[string]platform.InstalledPlugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT file, name, version, active FROM host_plugins")
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin registry: %w", err)
	}
	defer rows.Close()

	out := make(map[string]platform.InstalledPlugin)
	for rows.Next() {
		var p platform.InstalledPlugin
		var active int
		if err := rows.Scan(&p.File, &p.Name, &p.Version, &active); err != nil {
			return nil, fmt.Errorf("failed to scan plugin row: %w", err)
		}
		p.Active = active != 0
		out[p.File] = p
	}
	return out, rows.Err()
}

// UpsertHostPlugin records an installed plugin. Reinstalling keeps the active flag.
func (s *LocalStore) UpsertHostPlugin(ctx context.Context, slug string, p platform.InstalledPlugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_plugins (file, slug, name, version, active, installed_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(file) DO UPDATE SET slug = excluded.slug, name = excluded.name,
			version = excluded.version, installed_at = CURRENT_TIMESTAMP`,
		p.File, slug, p.Name, p.Version, boolToInt(p.Active))
	if err != nil {
		return fmt.Errorf("failed to record plugin %s: %w", p.File, err)
	}
	logging.StoreDebug("Recorded plugin %s (%s %s)", p.File, p.Name, p.Version)
	return nil
}

// SetHostPluginActive flips the active flag. Unknown files return platform.ErrNotFound.
func (s *LocalStore) SetHostPluginActive(ctx context.Context, file string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE host_plugins SET active = ? WHERE file = ?", boolToInt(active), file)
	if err != nil {
		return fmt.Errorf("failed to update plugin %s: %w", file, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plugin %s: %w", file, platform.ErrNotFound)
	}
	return nil
}

// =============================================================================
// OPTIONS AND THEME MODS
// =============================================================================

// GetHostOption reads a site option.
func (s *LocalStore) GetHostOption(ctx context.Context, name string) (string, bool, error) {
	return s.getKV(ctx, "host_options", name)
}

// SetHostOption writes a site option.
func (s *LocalStore) SetHostOption(ctx context.Context, name, value string) error {
	return s.setKV(ctx, "host_options", name, value)
}

// DeleteHostOption removes a site option. Missing options are ignored.
func (s *LocalStore) DeleteHostOption(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM host_options WHERE name = ?", name)
	return err
}

// HostThemeMods returns every theme mod.
func (s *LocalStore) HostThemeMods(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM host_theme_mods")
	if err != nil {
		return nil, fmt.Errorf("failed to read theme mods: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetHostThemeMod writes one theme mod.
func (s *LocalStore) SetHostThemeMod(ctx context.Context, name, value string) error {
	return s.setKV(ctx, "host_theme_mods", name, value)
}

// DeleteHostThemeMod removes a theme mod. Missing mods are ignored.
func (s *LocalStore) DeleteHostThemeMod(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM host_theme_mods WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete theme mod %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) getKV(ctx context.Context, table, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE name = ?", table), name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s.%s: %w", table, name, err)
	}
	return v, true, nil
}

func (s *LocalStore) setKV(ctx context.Context, table, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value", table),
		name, value)
	if err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", table, name, err)
	}
	return nil
}

// =============================================================================
// POSTS
// =============================================================================

// HostPostBySlug returns the oldest post of a type with the given slug.
func (s *LocalStore) HostPostBySlug(ctx context.Context, typ platform.PostType, slug string) (*platform.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, type, slug, title, content, excerpt, status, menu_order, meta
		FROM host_posts WHERE type = ? AND slug = ? ORDER BY id LIMIT 1`, string(typ), slug)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", typ, slug, platform.ErrNotFound)
	}
	return p, err
}

// HostPosts lists posts of a type in menu order.
func (s *LocalStore) HostPosts(ctx context.Context, typ platform.PostType) ([]platform.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, slug, title, content, excerpt, status, menu_order, meta
		FROM host_posts WHERE type = ? ORDER BY menu_order, id`, string(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s posts: %w", typ, err)
	}
	defer rows.Close()

	var out []platform.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// InsertHostPost inserts a post and returns its id.
func (s *LocalStore) InsertHostPost(ctx context.Context, p *platform.Post) (int64, error) {
	meta, err := encodeMeta(p.Meta)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO host_posts (type, slug, title, content, excerpt, status, menu_order, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.Type), p.Slug, p.Title, p.Content, p.Excerpt, postStatus(p.Status), p.MenuOrder, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s %q: %w", p.Type, p.Slug, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// UpdateHostPost overwrites a post's fields by id.
func (s *LocalStore) UpdateHostPost(ctx context.Context, p *platform.Post) error {
	meta, err := encodeMeta(p.Meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE host_posts SET slug = ?, title = ?, content = ?, excerpt = ?, status = ?,
		menu_order = ?, meta = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Slug, p.Title, p.Content, p.Excerpt, postStatus(p.Status), p.MenuOrder, meta, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", p.ID, platform.ErrNotFound)
	}
	return nil
}

// DeleteHostPost removes a post by id.
func (s *LocalStore) DeleteHostPost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM host_posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, platform.ErrNotFound)
	}
	return nil
}

// CountHostPosts counts posts of a type.
func (s *LocalStore) CountHostPosts(ctx context.Context, typ platform.PostType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM host_posts WHERE type = ?", string(typ)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s posts: %w", typ, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(r rowScanner) (*platform.Post, error) {
	var p platform.Post
	var typ, meta string
	if err := r.Scan(&p.ID, &typ, &p.Slug, &p.Title, &p.Content, &p.Excerpt, &p.Status, &p.MenuOrder, &meta); err != nil {
		return nil, err
	}
	p.Type = platform.PostType(typ)
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &p.Meta); err != nil {
			return nil, fmt.Errorf("corrupt meta on post %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func encodeMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode post meta: %w", err)
	}
	return string(b), nil
}

func postStatus(s string) string {
	if s == "" {
		return "publish"
	}
	return s
}

// =============================================================================
// MENUS
// =============================================================================

// HostMenuByName returns a menu by its unique name.
func (s *LocalStore) HostMenuByName(ctx context.Context, name string) (*platform.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m platform.Menu
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM host_menus WHERE name = ?", name).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("menu %q: %w", name, platform.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read menu %q: %w", name, err)
	}
	return &m, nil
}

// CreateHostMenu creates an empty menu.
func (s *LocalStore) CreateHostMenu(ctx context.Context, name string) (*platform.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "INSERT INTO host_menus (name) VALUES (?)", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &platform.Menu{ID: id, Name: name}, nil
}

// DeleteHostMenu removes a menu, its items and any location pointing at it.
func (s *LocalStore) DeleteHostMenu(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM host_menu_items WHERE menu_id = ?",
		"DELETE FROM host_menu_locations WHERE menu_id = ?",
		"DELETE FROM host_menus WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete menu %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ReplaceHostMenuItems swaps a menu's items in one transaction.
func (s *LocalStore) ReplaceHostMenuItems(ctx context.Context, menuID int64, items []platform.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM host_menus WHERE id = ?", menuID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("menu %d: %w", menuID, platform.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM host_menu_items WHERE menu_id = ?", menuID); err != nil {
		return fmt.Errorf("failed to clear menu %d: %w", menuID, err)
	}
	for i, it := range items {
		pos := it.Position
		if pos == 0 {
			pos = i + 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO host_menu_items (menu_id, title, page_id, url, position) VALUES (?, ?, ?, ?, ?)",
			menuID, it.Title, it.PageID, it.URL, pos); err != nil {
			return fmt.Errorf("failed to add menu item %q: %w", it.Title, err)
		}
	}
	return tx.Commit()
}

// HostMenuItems lists a menu's items by position.
func (s *LocalStore) HostMenuItems(ctx context.Context, menuID int64) ([]platform.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT title, page_id, url, position FROM host_menu_items WHERE menu_id = ? ORDER BY position", menuID)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu %d items: %w", menuID, err)
	}
	defer rows.Close()

	var out []platform.MenuItem
	for rows.Next() {
		var it platform.MenuItem
		if err := rows.Scan(&it.Title, &it.PageID, &it.URL, &it.Position); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetHostMenuLocation assigns a menu to a theme location.
func (s *LocalStore) SetHostMenuLocation(ctx context.Context, location string, menuID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO host_menu_locations (location, menu_id) VALUES (?, ?) ON CONFLICT(location) DO UPDATE SET menu_id = excluded.menu_id",
		location, menuID)
	if err != nil {
		return fmt.Errorf("failed to assign menu %d to %s: %w", menuID, location, err)
	}
	return nil
}

// ClearHostMenuLocation unassigns a theme location.
func (s *LocalStore) ClearHostMenuLocation(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM host_menu_locations WHERE location = ?", location); err != nil {
		return fmt.Errorf("failed to clear menu location %s: %w", location, err)
	}
	return nil
}

// HostMenuLocations returns location -> menu id.
func (s *LocalStore) HostMenuLocations(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT location, menu_id FROM host_menu_locations")
	if err != nil {
		return nil, fmt.Errorf("failed to read menu locations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var loc string
		var id int64
		if err := rows.Scan(&loc, &id); err != nil {
			return nil, err
		}
		out[loc] = id
	}
	return out, rows.Err()
}
