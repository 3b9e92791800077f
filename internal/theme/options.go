// Package theme persists the theme's customizer settings and the options the
// setup wizard collects. Input is sanitized the way the host does it: invalid
// values are coerced to a default, never rejected.
package theme

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Width is the content container width.
type Width string

const (
	Width1140 Width = "1140"
	Width1200 Width = "1200"
	Width1320 Width = "1320"
	WidthFull Width = "100%"
)

// Widths lists the valid container widths.
var Widths = []Width{Width1140, Width1200, Width1320, WidthFull}

// Theme mod keys written by Save.
const (
	ModLogoURL        = "logo_url"
	ModPrimaryColor   = "primary_color"
	ModSecondaryColor = "secondary_color"
	ModContainerWidth = "container_width"
)

// Defaults applied at activation and used when coercing bad input.
const (
	DefaultPrimaryColor   = "#1e40af"
	DefaultSecondaryColor = "#f59e0b"
	DefaultContainerWidth = Width1200
)

// Options are the settings the wizard's theme step collects.
type Options struct {
	LogoURL        string `json:"logo_url"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	ContainerWidth Width  `json:"container_width"`
}

// DefaultOptions returns the activation defaults.
func DefaultOptions() Options {
	return Options{
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		ContainerWidth: DefaultContainerWidth,
	}
}

// Sanitize returns a copy with every field valid, plus the names of the
// fields that had to be coerced.
func (o Options) Sanitize() (Options, []string) {
	var coerced []string
	out := o

	if v, ok := SanitizeURL(o.LogoURL); ok {
		out.LogoURL = v
	} else {
		coerced = append(coerced, ModLogoURL)
		out.LogoURL = ""
	}
	if v, ok := SanitizeHexColor(o.PrimaryColor); ok {
		out.PrimaryColor = v
	} else {
		coerced = append(coerced, ModPrimaryColor)
		out.PrimaryColor = DefaultPrimaryColor
	}
	if v, ok := SanitizeHexColor(o.SecondaryColor); ok {
		out.SecondaryColor = v
	} else {
		coerced = append(coerced, ModSecondaryColor)
		out.SecondaryColor = DefaultSecondaryColor
	}
	w, exact := SanitizeWidth(string(o.ContainerWidth))
	if !exact {
		coerced = append(coerced, ModContainerWidth)
	}
	out.ContainerWidth = w
	return out, coerced
}

// Mods renders the options as theme mods.
func (o Options) Mods() map[string]string {
	return map[string]string{
		ModLogoURL:        o.LogoURL,
		ModPrimaryColor:   o.PrimaryColor,
		ModSecondaryColor: o.SecondaryColor,
		ModContainerWidth: string(o.ContainerWidth),
	}
}

// OptionsFromMods reads options back from theme mods, filling gaps with defaults.
func OptionsFromMods(mods map[string]string) Options {
	o := DefaultOptions()
	if v, ok := mods[ModLogoURL]; ok {
		o.LogoURL = v
	}
	if v, ok := mods[ModPrimaryColor]; ok && v != "" {
		o.PrimaryColor = v
	}
	if v, ok := mods[ModSecondaryColor]; ok && v != "" {
		o.SecondaryColor = v
	}
	if v, ok := mods[ModContainerWidth]; ok && v != "" {
		o.ContainerWidth = Width(v)
	}
	return o
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// SanitizeHexColor accepts #rgb and #rrggbb (leading # optional) and returns
// the lower-cased color.
func SanitizeHexColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if !hexColor.MatchString(s) {
		return "", false
	}
	return strings.ToLower(s), true
}

// SanitizeURL accepts empty input or an absolute http(s) URL.
func SanitizeURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}

// SanitizeWidth maps input to a valid Width. exact is false when the value
// was coerced. Numeric input snaps to the nearest fixed width; anything else
// falls back to DefaultContainerWidth.
func SanitizeWidth(s string) (w Width, exact bool) {
	s = strings.TrimSpace(s)
	for _, valid := range Widths {
		if s == string(valid) {
			return valid, true
		}
	}
	if strings.EqualFold(s, "full") || s == "100" {
		return WidthFull, false
	}

	n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(s), "px"))
	if err != nil || n <= 0 {
		return DefaultContainerWidth, false
	}
	best := Width1140
	bestDist := -1
	for _, valid := range []Width{Width1140, Width1200, Width1320} {
		v, _ := strconv.Atoi(string(valid))
		d := v - n
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = valid, d
		}
	}
	return best, false
}
