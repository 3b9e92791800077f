package demo

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/transparency"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// Stage names one step of the import.
type Stage string

const (
	StageManifest Stage = "manifest"
	StagePages    Stage = "pages"
	StagePosts    Stage = "posts"
	StageMenus    Stage = "menus"
	StageSettings Stage = "settings"
)

const excerptLength = 140

// Host is what the importer needs from the platform.
type Host interface {
	platform.Authorizer
	platform.OptionStore
	platform.ContentStore
}

// Importer writes a Manifest into the host.
//
// Pages are matched by slug and updated in place, so importing twice leaves
// one copy of each. Services, projects and testimonials are inserted on every
// run; a second import duplicates them.
type Importer struct {
	host     Host
	manifest *Manifest
	policy   *bluemonday.Policy

	// Transactional undoes the steps already applied when a later one fails.
	// Off by default: a failed import leaves earlier work in place.
	Transactional bool
}

// NewImporter creates an importer. A nil manifest uses DefaultManifest.
func NewImporter(host Host, m *Manifest) *Importer {
	if m == nil {
		m = DefaultManifest()
	}
	return &Importer{host: host, manifest: m, policy: bluemonday.StrictPolicy()}
}

// LoadManifest reads a manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read demo manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse demo manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid demo manifest %s: %w", path, err)
	}
	return &m, nil
}

// Result reports what an import wrote, including partial work on failure.
type Result struct {
	PagesCreated  []string                  `json:"pages_created"`
	PagesUpdated  []string                  `json:"pages_updated"`
	PageIDs       map[string]int64          `json:"page_ids"`
	PostsInserted map[platform.PostType]int `json:"posts_inserted"`
	Menus         map[string]int64          `json:"menus"`
	ModsUpdated   []string                  `json:"mods_updated"`
	FrontPageID   int64                     `json:"front_page_id,omitempty"`
	RolledBack    bool                      `json:"rolled_back"`
}

// ImportError reports the stage that failed and whether earlier work was undone.
type ImportError struct {
	Stage      Stage
	Category   transparency.ErrorCategory
	Err        error
	RolledBack bool
	UndoErrs   []error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("demo import failed at %s: %v", e.Stage, e.Err)
	switch {
	case e.RolledBack:
		msg += " (changes rolled back)"
	case len(e.UndoErrs) > 0:
		msg += fmt.Sprintf(" (rollback incomplete: %d errors)", len(e.UndoErrs))
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Err }

// ErrorCategory implements transparency.Categorized.
func (e *ImportError) ErrorCategory() transparency.ErrorCategory { return e.Category }

// Import runs every stage in order. It requires manage_options.
func (im *Importer) Import(ctx context.Context) (*Result, error) {
	if err := platform.Require(ctx, im.host, platform.CapManageOptions); err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategoryDemo, "Import")
	res := &Result{
		PageIDs:       make(map[string]int64),
		PostsInserted: make(map[platform.PostType]int),
		Menus:         make(map[string]int64),
	}

	err := im.run(ctx, res)
	elapsed := timer.Stop()

	if err != nil {
		logging.DemoError("Demo import failed: %v", err)
		logging.Audit().DemoImport(elapsed.Milliseconds(), false, err.Error())
		return res, err
	}
	logging.Demo("Demo import done: %d pages created, %d updated, %d posts, %d menus",
		len(res.PagesCreated), len(res.PagesUpdated), totalPosts(res), len(res.Menus))
	logging.Audit().DemoImport(elapsed.Milliseconds(), true, "")
	return res, nil
}

func (im *Importer) run(ctx context.Context, res *Result) error {
	if err := im.manifest.Validate(); err != nil {
		return &ImportError{Stage: StageManifest, Category: transparency.ErrorCategoryValidation, Err: err}
	}

	var undo *undoStack
	if im.Transactional {
		undo = &undoStack{}
	}

	stages := []struct {
		stage Stage
		fn    func(context.Context, *Result, *undoStack) error
	}{
		{StagePages, im.importPages},
		{StagePosts, im.importPosts},
		{StageMenus, im.importMenus},
		{StageSettings, im.importSettings},
	}

	for _, st := range stages {
		logging.DemoDebug("Stage %s", st.stage)
		err := st.fn(ctx, res, undo)
		if err == nil {
			continue
		}

		ie := &ImportError{Stage: st.stage, Category: categorize(err), Err: err}
		if undo != nil {
			logging.Demo("Rolling back %d demo import changes", undo.size())
			// The request may be gone; compensation still has to run.
			ie.UndoErrs = undo.rollback(context.WithoutCancel(ctx))
			ie.RolledBack = len(ie.UndoErrs) == 0
			res.RolledBack = ie.RolledBack
		}
		return ie
	}
	return nil
}

func (im *Importer) importPages(ctx context.Context, res *Result, undo *undoStack) error {
	for i, e := range im.manifest.Pages {
		p := im.post(platform.PostTypePage, e, i)

		existing, err := im.host.PostBySlug(ctx, platform.PostTypePage, e.Slug)
		switch {
		case err == nil:
			prev := *existing
			p.ID = existing.ID
			if err := im.host.UpdatePost(ctx, p); err != nil {
				return fmt.Errorf("failed to update page %s: %w", e.Slug, err)
			}
			undo.push("page "+e.Slug, func(ctx context.Context) error {
				return im.host.UpdatePost(ctx, &prev)
			})
			res.PagesUpdated = append(res.PagesUpdated, e.Slug)

		case errors.Is(err, platform.ErrNotFound):
			id, err := im.host.InsertPost(ctx, p)
			if err != nil {
				return fmt.Errorf("failed to create page %s: %w", e.Slug, err)
			}
			p.ID = id
			undo.push("page "+e.Slug, func(ctx context.Context) error {
				return im.host.DeletePost(ctx, id)
			})
			res.PagesCreated = append(res.PagesCreated, e.Slug)

		default:
			return fmt.Errorf("failed to look up page %s: %w", e.Slug, err)
		}
		res.PageIDs[e.Slug] = p.ID
	}
	return nil
}

func (im *Importer) importPosts(ctx context.Context, res *Result, undo *undoStack) error {
	groups := []struct {
		typ     platform.PostType
		entries []Entry
	}{
		{platform.PostTypeService, im.manifest.Services},
		{platform.PostTypeProject, im.manifest.Projects},
		{platform.PostTypeTestimonial, im.manifest.Testimonials},
	}

	for _, g := range groups {
		for i, e := range g.entries {
			id, err := im.host.InsertPost(ctx, im.post(g.typ, e, i))
			if err != nil {
				return fmt.Errorf("failed to create %s %q: %w", g.typ, e.Title, err)
			}
			undo.push(fmt.Sprintf("%s %d", g.typ, id), func(ctx context.Context) error {
				return im.host.DeletePost(ctx, id)
			})
			res.PostsInserted[g.typ]++
		}
	}
	return nil
}

func (im *Importer) importMenus(ctx context.Context, res *Result, undo *undoStack) error {
	if len(im.manifest.Menus) == 0 {
		return nil
	}
	locations, err := im.host.MenuLocations(ctx)
	if err != nil {
		return fmt.Errorf("failed to read menu locations: %w", err)
	}

	for _, def := range im.manifest.Menus {
		items := make([]platform.MenuItem, 0, len(def.Items))
		for i, it := range def.Items {
			item := platform.MenuItem{Title: it.Title, URL: it.URL, Position: i + 1}
			if it.PageSlug != "" {
				id, ok := res.PageIDs[it.PageSlug]
				if !ok {
					return fmt.Errorf("menu %q links page %q which was not imported", def.Name, it.PageSlug)
				}
				item.PageID = id
			}
			items = append(items, item)
		}

		menu, err := im.host.MenuByName(ctx, def.Name)
		switch {
		case err == nil:
			prev, err := im.host.MenuItems(ctx, menu.ID)
			if err != nil {
				return fmt.Errorf("failed to read menu %q: %w", def.Name, err)
			}
			id := menu.ID
			undo.push("menu items "+def.Name, func(ctx context.Context) error {
				return im.host.ReplaceMenuItems(ctx, id, prev)
			})
		case errors.Is(err, platform.ErrNotFound):
			menu, err = im.host.CreateMenu(ctx, def.Name)
			if err != nil {
				return fmt.Errorf("failed to create menu %q: %w", def.Name, err)
			}
			id := menu.ID
			undo.push("menu "+def.Name, func(ctx context.Context) error {
				return im.host.DeleteMenu(ctx, id)
			})
		default:
			return fmt.Errorf("failed to look up menu %q: %w", def.Name, err)
		}

		if err := im.host.ReplaceMenuItems(ctx, menu.ID, items); err != nil {
			return fmt.Errorf("failed to fill menu %q: %w", def.Name, err)
		}
		res.Menus[def.Name] = menu.ID

		if def.Location == "" {
			continue
		}
		if err := im.host.SetMenuLocation(ctx, def.Location, menu.ID); err != nil {
			return fmt.Errorf("failed to assign menu %q to %s: %w", def.Name, def.Location, err)
		}
		loc := def.Location
		if prevID, ok := locations[loc]; ok {
			undo.push("location "+loc, func(ctx context.Context) error {
				return im.host.SetMenuLocation(ctx, loc, prevID)
			})
		} else {
			undo.push("location "+loc, func(ctx context.Context) error {
				return im.host.ClearMenuLocation(ctx, loc)
			})
		}
	}
	return nil
}

func (im *Importer) importSettings(ctx context.Context, res *Result, undo *undoStack) error {
	current, err := im.host.ThemeMods(ctx)
	if err != nil {
		return fmt.Errorf("failed to read theme mods: %w", err)
	}

	keys := make([]string, 0, len(im.manifest.ThemeMods))
	for k := range im.manifest.ThemeMods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := im.host.SetThemeMod(ctx, k, im.manifest.ThemeMods[k]); err != nil {
			return fmt.Errorf("failed to set theme mod %s: %w", k, err)
		}
		if prev, ok := current[k]; ok {
			undo.push("mod "+k, func(ctx context.Context) error { return im.host.SetThemeMod(ctx, k, prev) })
		} else {
			undo.push("mod "+k, func(ctx context.Context) error { return im.host.DeleteThemeMod(ctx, k) })
		}
		res.ModsUpdated = append(res.ModsUpdated, k)
	}

	if im.manifest.FrontPage == "" {
		return nil
	}
	id, ok := res.PageIDs[im.manifest.FrontPage]
	if !ok {
		return fmt.Errorf("front page %q was not imported", im.manifest.FrontPage)
	}
	for _, opt := range []struct{ name, value string }{
		{platform.OptionShowOnFront, "page"},
		{platform.OptionPageOnFront, fmt.Sprintf("%d", id)},
	} {
		if err := im.setOption(ctx, opt.name, opt.value, undo); err != nil {
			return err
		}
	}
	res.FrontPageID = id
	return nil
}

func (im *Importer) setOption(ctx context.Context, name, value string, undo *undoStack) error {
	prev, existed, err := im.host.GetOption(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read option %s: %w", name, err)
	}
	if err := im.host.SetOption(ctx, name, value); err != nil {
		return fmt.Errorf("failed to set option %s: %w", name, err)
	}
	if existed {
		undo.push("option "+name, func(ctx context.Context) error { return im.host.SetOption(ctx, name, prev) })
	} else {
		undo.push("option "+name, func(ctx context.Context) error { return im.host.DeleteOption(ctx, name) })
	}
	return nil
}

func (im *Importer) post(typ platform.PostType, e Entry, i int) *platform.Post {
	excerpt := e.Excerpt
	if excerpt == "" {
		excerpt = im.excerpt(e.Content)
	}
	var meta map[string]string
	if len(e.Meta) > 0 {
		meta = make(map[string]string, len(e.Meta))
		for k, v := range e.Meta {
			meta[k] = v
		}
	}
	return &platform.Post{
		Type:      typ,
		Slug:      e.Slug,
		Title:     e.Title,
		Content:   e.Content,
		Excerpt:   excerpt,
		Status:    "publish",
		MenuOrder: i + 1,
		Meta:      meta,
	}
}

// excerpt strips markup and cuts at a word boundary.
func (im *Importer) excerpt(content string) string {
	text := html.UnescapeString(im.policy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)[:excerptLength]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, ",.;:") + "…"
}

func categorize(err error) transparency.ErrorCategory {
	cat := transparency.ClassifyError(err).Category
	if cat == transparency.ErrorCategoryUnknown {
		return transparency.ErrorCategoryTransport
	}
	return cat
}

func totalPosts(res *Result) int {
	n := 0
	for _, c := range res.PostsInserted {
		n += c
	}
	return n
}
