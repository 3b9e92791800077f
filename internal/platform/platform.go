// Package platform defines the host platform sitesetup configures: its plugin
// registry, option and theme-mod storage, content (pages, custom posts, menus)
// and the capability checks guarding each mutation. Components receive a
// Client (or one of its narrower parts) explicitly; nothing reaches the host
// through package state.
package platform

import (
	"context"
	"errors"
)

// Sentinel errors returned by every Client implementation.
var (
	// ErrNotFound is returned when a plugin, post, menu or directory entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the user in the context lacks a capability.
	ErrForbidden = errors.New("forbidden")
)

// InstalledPlugin is one entry in the host plugin registry, keyed by its file
// identifier (e.g. "elementor/elementor.php").
type InstalledPlugin struct {
	File    string
	Name    string
	Version string
	Active  bool
}

// PluginInfo is the plugin directory's metadata for a slug.
type PluginInfo struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	DownloadURL string `json:"download_link"`
}

// PluginHost is the plugin registry and directory.
type PluginHost interface {
	// InstalledPlugins returns the registry keyed by plugin file.
	InstalledPlugins(ctx context.Context) (map[string]InstalledPlugin, error)

	// PluginInfo looks a slug up in the plugin directory.
	PluginInfo(ctx context.Context, slug string) (*PluginInfo, error)

	// InstallPlugin downloads and unpacks a package. It does not activate.
	InstallPlugin(ctx context.Context, info *PluginInfo) error

	// ActivatePlugin flips an installed plugin to active. Activating an
	// active plugin is a no-op.
	ActivatePlugin(ctx context.Context, file string) error
}

// OptionStore is host configuration storage: site options and theme mods.
type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
	DeleteOption(ctx context.Context, name string) error

	ThemeMods(ctx context.Context) (map[string]string, error)
	SetThemeMod(ctx context.Context, name, value string) error
	DeleteThemeMod(ctx context.Context, name string) error
}

// ContentStore holds pages, custom posts and navigation menus.
type ContentStore interface {
	PostBySlug(ctx context.Context, typ PostType, slug string) (*Post, error)
	InsertPost(ctx context.Context, p *Post) (int64, error)
	UpdatePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, id int64) error
	CountPosts(ctx context.Context, typ PostType) (int, error)

	MenuByName(ctx context.Context, name string) (*Menu, error)
	CreateMenu(ctx context.Context, name string) (*Menu, error)
	DeleteMenu(ctx context.Context, id int64) error
	MenuItems(ctx context.Context, menuID int64) ([]MenuItem, error)
	ReplaceMenuItems(ctx context.Context, menuID int64, items []MenuItem) error
	SetMenuLocation(ctx context.Context, location string, menuID int64) error
	ClearMenuLocation(ctx context.Context, location string) error
	MenuLocations(ctx context.Context) (map[string]int64, error)
}

// Authorizer answers capability checks for the user carried in the context.
type Authorizer interface {
	UserCan(ctx context.Context, c Capability) (bool, error)
}

// Client is the whole host platform.
type Client interface {
	Authorizer
	PluginHost
	OptionStore
	ContentStore
}

// Require returns ErrForbidden (wrapped with the capability name) unless the
// context user holds c.
func Require(ctx context.Context, a Authorizer, c Capability) error {
	ok, err := a.UserCan(ctx, c)
	if err != nil {
		return err
	}
	if !ok {
		return &PermissionError{Capability: c}
	}
	return nil
}

// PermissionError reports a missing capability. It matches ErrForbidden.
type PermissionError struct {
	Capability Capability
}

func (e *PermissionError) Error() string {
	return "missing capability " + string(e.Capability)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrForbidden
}
