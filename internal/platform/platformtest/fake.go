// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sitesetup/internal/platform"
)

// Fake is an in-memory host. The zero value is not usable; call New.
//
// Faults are injected per operation through Fail, keyed by
// "<Method>" or "<Method>:<arg>" (e.g. "InstallPlugin:elementor",
// "SetOption:elementor_container_width", "ReplaceMenuItems").
type Fake struct {
	mu sync.Mutex

	// Directory maps slug -> the plugin the directory would install.
	Directory map[string]platform.InstalledPlugin

	plugins   map[string]platform.InstalledPlugin
	options   map[string]string
	mods      map[string]string
	posts     map[int64]*platform.Post
	menus     map[int64]*platform.Menu
	items     map[int64][]platform.MenuItem
	locations map[string]int64
	nextID    int64

	fail map[string]error

	// OnInstall runs inside InstallPlugin before the registry is updated.
	OnInstall func(ctx context.Context, slug string) error

	calls         map[string]int
	inFlight      int
	MaxConcurrent int
}

var _ platform.Client = (*Fake)(nil)

// New returns an empty fake host.
func New() *Fake {
	return &Fake{
		Directory: make(map[string]platform.InstalledPlugin),
		plugins:   make(map[string]platform.InstalledPlugin),
		options:   make(map[string]string),
		mods:      make(map[string]string),
		posts:     make(map[int64]*platform.Post),
		menus:     make(map[int64]*platform.Menu),
		items:     make(map[int64][]platform.MenuItem),
		locations: make(map[string]int64),
		fail:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Fail makes the keyed operation return err until cleared with Fail(key, nil).
func (f *Fake) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, key)
		return
	}
	f.fail[key] = err
}

// Calls returns how many times a method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetPlugin places a plugin straight into the registry.
func (f *Fake) SetPlugin(p platform.InstalledPlugin) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plugins[p.File] = p
}

// RemovePlugin deletes a registry entry.
func (f *Fake) RemovePlugin(file string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.plugins, file)
}

// Deactivate flips a plugin to inactive.
func (f *Fake) Deactivate(file string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.plugins[file]; ok {
		p.Active = false
		f.plugins[file] = p
	}
}

// Posts returns all posts of a type ordered by id.
func (f *Fake) Posts(typ platform.PostType) []platform.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Post
	for _, p := range f.posts {
		if p.Type == typ {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Menus returns all menus ordered by id.
func (f *Fake) Menus() []platform.Menu {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Menu
	for _, m := range f.menus {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) check(method, arg string) error {
	f.calls[method]++
	if err, ok := f.fail[method+":"+arg]; ok {
		return err
	}
	if err, ok := f.fail[method]; ok {
		return err
	}
	return nil
}

// UserCan grants capabilities by role of the context user.
func (f *Fake) UserCan(ctx context.Context, c platform.Capability) (bool, error) {
	f.mu.Lock()
	err := f.check("UserCan", string(c))
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	u, ok := platform.UserFrom(ctx)
	if !ok {
		return false, nil
	}
	return platform.RoleCan(u.Role, c), nil
}

// =============================================================================
// PLUGINS
// =============================================================================

func (f *Fake) InstalledPlugins(ctx context.Context) (map[string]platform.InstalledPlugin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("InstalledPlugins", ""); err != nil {
		return nil, err
	}
	out := make(map[string]platform.InstalledPlugin, len(f.plugins))
	for k, v := range f.plugins {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) PluginInfo(ctx context.Context, slug string) (*platform.PluginInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("PluginInfo", slug); err != nil {
		return nil, err
	}
	p, ok := f.Directory[slug]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", slug, platform.ErrNotFound)
	}
	return &platform.PluginInfo{Slug: slug, Name: p.Name, Version: p.Version, DownloadURL: "fake://" + slug}, nil
}

func (f *Fake) InstallPlugin(ctx context.Context, info *platform.PluginInfo) error {
	f.mu.Lock()
	if err := f.check("InstallPlugin", info.Slug); err != nil {
		f.mu.Unlock()
		return err
	}
	f.inFlight++
	if f.inFlight > f.MaxConcurrent {
		f.MaxConcurrent = f.inFlight
	}
	hook := f.OnInstall
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		if err := hook(ctx, info.Slug); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Directory[info.Slug]
	if !ok {
		return fmt.Errorf("plugin %q: %w", info.Slug, platform.ErrNotFound)
	}
	if existing, ok := f.plugins[p.File]; ok {
		p.Active = existing.Active
	} else {
		p.Active = false
	}
	f.plugins[p.File] = p
	return nil
}

func (f *Fake) ActivatePlugin(ctx context.Context, file string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ActivatePlugin", file); err != nil {
		return err
	}
	p, ok := f.plugins[file]
	if !ok {
		return fmt.Errorf("plugin %s: %w", file, platform.ErrNotFound)
	}
	p.Active = true
	f.plugins[file] = p
	return nil
}

// =============================================================================
// OPTIONS
// =============================================================================

func (f *Fake) GetOption(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GetOption", name); err != nil {
		return "", false, err
	}
	v, ok := f.options[name]
	return v, ok, nil
}

func (f *Fake) SetOption(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("SetOption", name); err != nil {
		return err
	}
	f.options[name] = value
	return nil
}

func (f *Fake) DeleteOption(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeleteOption", name); err != nil {
		return err
	}
	delete(f.options, name)
	return nil
}

func (f *Fake) ThemeMods(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ThemeMods", ""); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(f.mods))
	for k, v := range f.mods {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) SetThemeMod(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("SetThemeMod", name); err != nil {
		return err
	}
	f.mods[name] = value
	return nil
}

func (f *Fake) DeleteThemeMod(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeleteThemeMod", name); err != nil {
		return err
	}
	delete(f.mods, name)
	return nil
}

// =============================================================================
// CONTENT
// =============================================================================

func (f *Fake) PostBySlug(ctx context.Context, typ platform.PostType, slug string) (*platform.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("PostBySlug", slug); err != nil {
		return nil, err
	}
	var found *platform.Post
	for _, p := range f.posts {
		if p.Type == typ && p.Slug == slug && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s %q: %w", typ, slug, platform.ErrNotFound)
	}
	cp := clonePost(found)
	return &cp, nil
}

func (f *Fake) InsertPost(ctx context.Context, p *platform.Post) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("InsertPost", string(p.Type)); err != nil {
		return 0, err
	}
	f.nextID++
	p.ID = f.nextID
	cp := clonePost(p)
	if cp.Status == "" {
		cp.Status = "publish"
	}
	f.posts[cp.ID] = &cp
	return cp.ID, nil
}

func (f *Fake) UpdatePost(ctx context.Context, p *platform.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpdatePost", p.Slug); err != nil {
		return err
	}
	if _, ok := f.posts[p.ID]; !ok {
		return fmt.Errorf("post %d: %w", p.ID, platform.ErrNotFound)
	}
	cp := clonePost(p)
	f.posts[p.ID] = &cp
	return nil
}

func (f *Fake) DeletePost(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeletePost", ""); err != nil {
		return err
	}
	if _, ok := f.posts[id]; !ok {
		return fmt.Errorf("post %d: %w", id, platform.ErrNotFound)
	}
	delete(f.posts, id)
	return nil
}

func (f *Fake) CountPosts(ctx context.Context, typ platform.PostType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CountPosts", string(typ)); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range f.posts {
		if p.Type == typ {
			n++
		}
	}
	return n, nil
}

func (f *Fake) MenuByName(ctx context.Context, name string) (*platform.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("MenuByName", name); err != nil {
		return nil, err
	}
	for _, m := range f.menus {
		if m.Name == name {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("menu %q: %w", name, platform.ErrNotFound)
}

func (f *Fake) CreateMenu(ctx context.Context, name string) (*platform.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateMenu", name); err != nil {
		return nil, err
	}
	for _, m := range f.menus {
		if m.Name == name {
			return nil, fmt.Errorf("menu %q already exists", name)
		}
	}
	f.nextID++
	m := &platform.Menu{ID: f.nextID, Name: name}
	f.menus[m.ID] = m
	cp := *m
	return &cp, nil
}

func (f *Fake) DeleteMenu(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("DeleteMenu", ""); err != nil {
		return err
	}
	delete(f.menus, id)
	delete(f.items, id)
	for loc, mid := range f.locations {
		if mid == id {
			delete(f.locations, loc)
		}
	}
	return nil
}

func (f *Fake) MenuItems(ctx context.Context, menuID int64) ([]platform.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("MenuItems", ""); err != nil {
		return nil, err
	}
	if _, ok := f.menus[menuID]; !ok {
		return nil, fmt.Errorf("menu %d: %w", menuID, platform.ErrNotFound)
	}
	return append([]platform.MenuItem(nil), f.items[menuID]...), nil
}

func (f *Fake) ReplaceMenuItems(ctx context.Context, menuID int64, items []platform.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ReplaceMenuItems", ""); err != nil {
		return err
	}
	if _, ok := f.menus[menuID]; !ok {
		return fmt.Errorf("menu %d: %w", menuID, platform.ErrNotFound)
	}
	cp := make([]platform.MenuItem, len(items))
	for i, it := range items {
		if it.Position == 0 {
			it.Position = i + 1
		}
		cp[i] = it
	}
	f.items[menuID] = cp
	return nil
}

func (f *Fake) SetMenuLocation(ctx context.Context, location string, menuID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("SetMenuLocation", location); err != nil {
		return err
	}
	f.locations[location] = menuID
	return nil
}

func (f *Fake) ClearMenuLocation(ctx context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ClearMenuLocation", location); err != nil {
		return err
	}
	delete(f.locations, location)
	return nil
}

func (f *Fake) MenuLocations(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("MenuLocations", ""); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(f.locations))
	for k, v := range f.locations {
		out[k] = v
	}
	return out, nil
}

func clonePost(p *platform.Post) platform.Post {
	cp := *p
	if p.Meta != nil {
		cp.Meta = make(map[string]string, len(p.Meta))
		for k, v := range p.Meta {
			cp.Meta[k] = v
		}
	}
	return cp
}
