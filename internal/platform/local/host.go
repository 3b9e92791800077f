// Package local is a self-hosted rendition of the host platform: the plugin
// registry, options, theme mods and content live in SQLite, plugin packages are
// fetched from a WordPress.org style directory and unpacked on disk.
package local

import (
	"context"
	"fmt"
	"sync"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/store"
)

// Host implements platform.Client.
type Host struct {
	store      *store.LocalStore
	directory  *Directory
	pluginsDir string

	// The host serializes its own plugin mutations.
	pluginMu sync.Mutex
}

var _ platform.Client = (*Host)(nil)

// NewHost wires a Host over an open store.
func NewHost(st *store.LocalStore, dir *Directory, pluginsDir string) *Host {
	return &Host{store: st, directory: dir, pluginsDir: pluginsDir}
}

// UserCan resolves a capability from the role of the context user.
func (h *Host) UserCan(ctx context.Context, c platform.Capability) (bool, error) {
	u, ok := platform.UserFrom(ctx)
	if !ok {
		return false, nil
	}
	return platform.RoleCan(u.Role, c), nil
}

// =============================================================================
// PLUGINS
// =============================================================================

func (h *Host) InstalledPlugins(ctx context.Context) (map[string]platform.InstalledPlugin, error) {
	return h.store.HostPlugins(ctx)
}

func (h *Host) PluginInfo(ctx context.Context, slug string) (*platform.PluginInfo, error) {
	if h.directory == nil {
		return nil, fmt.Errorf("no plugin directory configured")
	}
	return h.directory.Lookup(ctx, slug)
}

// InstallPlugin downloads, unpacks and registers a plugin package. Installing
// over an existing copy overwrites the files and keeps the active flag.
func (h *Host) InstallPlugin(ctx context.Context, info *platform.PluginInfo) error {
	if h.directory == nil {
		return fmt.Errorf("no plugin directory configured")
	}
	timer := logging.StartTimer(logging.CategoryPlugins, "InstallPlugin:"+info.Slug)
	defer timer.Stop()

	data, err := h.directory.Download(ctx, info.DownloadURL)
	if err != nil {
		return err
	}

	h.pluginMu.Lock()
	defer h.pluginMu.Unlock()

	file, hdr, err := Unpack(ctx, data, h.pluginsDir, h.directory.ExtractLimit())
	if err != nil {
		return err
	}
	name, version := hdr.Name, hdr.Version
	if version == "" {
		version = info.Version
	}
	if name == "" {
		name = info.Name
	}
	logging.Plugins("Unpacked %s as %s (%s)", info.Slug, file, version)
	return h.store.UpsertHostPlugin(ctx, info.Slug, platform.InstalledPlugin{File: file, Name: name, Version: version})
}

func (h *Host) ActivatePlugin(ctx context.Context, file string) error {
	h.pluginMu.Lock()
	defer h.pluginMu.Unlock()
	return h.store.SetHostPluginActive(ctx, file, true)
}

// =============================================================================
// OPTIONS
// =============================================================================

func (h *Host) GetOption(ctx context.Context, name string) (string, bool, error) {
	return h.store.GetHostOption(ctx, name)
}

func (h *Host) SetOption(ctx context.Context, name, value string) error {
	return h.store.SetHostOption(ctx, name, value)
}

func (h *Host) DeleteOption(ctx context.Context, name string) error {
	return h.store.DeleteHostOption(ctx, name)
}

func (h *Host) ThemeMods(ctx context.Context) (map[string]string, error) {
	return h.store.HostThemeMods(ctx)
}

func (h *Host) SetThemeMod(ctx context.Context, name, value string) error {
	return h.store.SetHostThemeMod(ctx, name, value)
}

func (h *Host) DeleteThemeMod(ctx context.Context, name string) error {
	return h.store.DeleteHostThemeMod(ctx, name)
}

// =============================================================================
// CONTENT
// =============================================================================

func (h *Host) PostBySlug(ctx context.Context, typ platform.PostType, slug string) (*platform.Post, error) {
	return h.store.HostPostBySlug(ctx, typ, slug)
}

func (h *Host) InsertPost(ctx context.Context, p *platform.Post) (int64, error) {
	return h.store.InsertHostPost(ctx, p)
}

func (h *Host) UpdatePost(ctx context.Context, p *platform.Post) error {
	return h.store.UpdateHostPost(ctx, p)
}

func (h *Host) DeletePost(ctx context.Context, id int64) error {
	return h.store.DeleteHostPost(ctx, id)
}

func (h *Host) CountPosts(ctx context.Context, typ platform.PostType) (int, error) {
	return h.store.CountHostPosts(ctx, typ)
}

func (h *Host) MenuByName(ctx context.Context, name string) (*platform.Menu, error) {
	return h.store.HostMenuByName(ctx, name)
}

func (h *Host) CreateMenu(ctx context.Context, name string) (*platform.Menu, error) {
	return h.store.CreateHostMenu(ctx, name)
}

func (h *Host) DeleteMenu(ctx context.Context, id int64) error {
	return h.store.DeleteHostMenu(ctx, id)
}

func (h *Host) MenuItems(ctx context.Context, menuID int64) ([]platform.MenuItem, error) {
	return h.store.HostMenuItems(ctx, menuID)
}

func (h *Host) ReplaceMenuItems(ctx context.Context, menuID int64, items []platform.MenuItem) error {
	return h.store.ReplaceHostMenuItems(ctx, menuID, items)
}

func (h *Host) SetMenuLocation(ctx context.Context, location string, menuID int64) error {
	return h.store.SetHostMenuLocation(ctx, location, menuID)
}

func (h *Host) ClearMenuLocation(ctx context.Context, location string) error {
	return h.store.ClearHostMenuLocation(ctx, location)
}

func (h *Host) MenuLocations(ctx context.Context) (map[string]int64, error) {
	return h.store.HostMenuLocations(ctx)
}
