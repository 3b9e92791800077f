package theme

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"

	"github.com/microcosm-cc/bluemonday"
)

// Kind selects the sanitizer for a setting.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindColor    Kind = "color"
	KindURL      Kind = "url"  // absolute http(s)
	KindLink     Kind = "link" // absolute, site-relative or #anchor
	KindWidth    Kind = "width"
)

// Setting is one named customizer option.
type Setting struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Section string `json:"section"`
	Kind    Kind   `json:"kind"`
	Default string `json:"default"`
}

// ErrUnknownSetting is returned by Set for ids not in Settings().
var ErrUnknownSetting = errors.New("unknown customizer setting")

var settings = []Setting{
	{ID: "hero_title", Label: "Hero title", Section: "hero", Kind: KindText, Default: "Grow Your Business With Confidence"},
	{ID: "hero_subtitle", Label: "Hero subtitle", Section: "hero", Kind: KindTextarea, Default: "Strategy, design and development for companies that want to stand out."},
	{ID: "hero_cta_text", Label: "Hero button text", Section: "hero", Kind: KindText, Default: "Get a Free Quote"},
	{ID: "hero_cta_url", Label: "Hero button link", Section: "hero", Kind: KindLink, Default: "/contact"},

	{ID: "contact_email", Label: "Contact email", Section: "contact", Kind: KindEmail, Default: "hello@example.com"},
	{ID: "contact_phone", Label: "Contact phone", Section: "contact", Kind: KindPhone, Default: "+1 (555) 010-2030"},
	{ID: "contact_address", Label: "Address", Section: "contact", Kind: KindTextarea, Default: "100 Market Street, Suite 300, San Francisco, CA"},

	{ID: ModLogoURL, Label: "Logo URL", Section: "brand", Kind: KindURL, Default: ""},
	{ID: ModPrimaryColor, Label: "Primary color", Section: "brand", Kind: KindColor, Default: DefaultPrimaryColor},
	{ID: ModSecondaryColor, Label: "Secondary color", Section: "brand", Kind: KindColor, Default: DefaultSecondaryColor},

	{ID: ModContainerWidth, Label: "Container width", Section: "layout", Kind: KindWidth, Default: string(DefaultContainerWidth)},

	{ID: "social_facebook", Label: "Facebook", Section: "social", Kind: KindURL},
	{ID: "social_twitter", Label: "X / Twitter", Section: "social", Kind: KindURL},
	{ID: "social_linkedin", Label: "LinkedIn", Section: "social", Kind: KindURL},
	{ID: "social_instagram", Label: "Instagram", Section: "social", Kind: KindURL},

	{ID: "footer_text", Label: "Footer text", Section: "footer", Kind: KindText, Default: "All rights reserved."},
}

// Settings returns every customizer setting in display order.
func Settings() []Setting {
	return append([]Setting(nil), settings...)
}

// LookupSetting finds a setting by id.
func LookupSetting(id string) (Setting, bool) {
	for _, s := range settings {
		if s.ID == id {
			return s, true
		}
	}
	return Setting{}, false
}

// CustomizerHost is what the customizer needs from the platform.
type CustomizerHost interface {
	platform.Authorizer
	platform.OptionStore
}

// Customizer reads and writes customizer settings as theme mods.
type Customizer struct {
	host   CustomizerHost
	writer *Writer
	policy *bluemonday.Policy
}

// NewCustomizer creates a customizer. Container width writes are mirrored
// into the page builder through writer, which may be nil.
func NewCustomizer(host CustomizerHost, writer *Writer) *Customizer {
	return &Customizer{host: host, writer: writer, policy: bluemonday.StrictPolicy()}
}

// SetResult is the outcome of one Set.
type SetResult struct {
	Value    string
	Mirrored bool
	Warning  string
}

// ApplyDefaults writes the default of every setting that has no mod yet and
// returns the ids it wrote. Existing values are never overwritten.
func (c *Customizer) ApplyDefaults(ctx context.Context) ([]string, error) {
	if err := platform.Require(ctx, c.host, platform.CapEditThemeOptions); err != nil {
		return nil, err
	}
	mods, err := c.host.ThemeMods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme mods: %w", err)
	}

	var applied []string
	for _, s := range settings {
		if _, ok := mods[s.ID]; ok {
			continue
		}
		if err := c.host.SetThemeMod(ctx, s.ID, s.Default); err != nil {
			return applied, fmt.Errorf("failed to apply default for %s: %w", s.ID, err)
		}
		applied = append(applied, s.ID)
	}
	logging.Theme("Applied %d customizer defaults", len(applied))
	return applied, nil
}

// Get returns every setting's current value, defaults filling unset mods.
// Mods that are not customizer settings are included as stored.
func (c *Customizer) Get(ctx context.Context) (map[string]string, error) {
	mods, err := c.host.ThemeMods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme mods: %w", err)
	}
	out := make(map[string]string, len(settings))
	for k, v := range mods {
		out[k] = v
	}
	for _, s := range settings {
		if _, ok := out[s.ID]; !ok {
			out[s.ID] = s.Default
		}
	}
	return out, nil
}

// Set sanitizes and stores one setting. The container width is mirrored the
// same way Writer.Save mirrors it.
func (c *Customizer) Set(ctx context.Context, id, value string) (*SetResult, error) {
	s, ok := LookupSetting(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownSetting, id, strings.Join(settingIDs(), ", "))
	}
	if err := platform.Require(ctx, c.host, platform.CapEditThemeOptions); err != nil {
		return nil, err
	}
	clean := c.Sanitize(s, value)
	if err := c.host.SetThemeMod(ctx, id, clean); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", id, err)
	}
	res := &SetResult{Value: clean}
	if id == ModContainerWidth && c.writer != nil {
		var saved SaveResult
		c.writer.mirror(ctx, Options{ContainerWidth: Width(clean)}, &saved)
		res.Mirrored, res.Warning = saved.Mirrored, saved.Warning
	}
	logging.Theme("Customizer %s updated (mirrored=%v)", id, res.Mirrored)
	return res, nil
}

// Sanitize coerces a raw value for a setting. Invalid input yields the default.
func (c *Customizer) Sanitize(s Setting, raw string) string {
	raw = strings.TrimSpace(raw)
	switch s.Kind {
	case KindText:
		return strings.Join(strings.Fields(c.policy.Sanitize(raw)), " ")
	case KindTextarea:
		lines := strings.Split(c.policy.Sanitize(raw), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
		return strings.Join(lines, "\n")
	case KindEmail:
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != raw {
			return s.Default
		}
		return addr.Address
	case KindPhone:
		return sanitizePhone(raw)
	case KindColor:
		if v, ok := SanitizeHexColor(raw); ok {
			return v
		}
		return s.Default
	case KindURL:
		if v, ok := SanitizeURL(raw); ok {
			return v
		}
		return s.Default
	case KindLink:
		if (strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//")) || strings.HasPrefix(raw, "#") {
			return raw
		}
		if v, ok := SanitizeURL(raw); ok && v != "" {
			return v
		}
		return s.Default
	case KindWidth:
		w, _ := SanitizeWidth(raw)
		return string(w)
	}
	return s.Default
}

func sanitizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '+', r == '(', r == ')', r == '-', r == ' ', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func settingIDs() []string {
	ids := make([]string, 0, len(settings))
	for _, s := range settings {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}
