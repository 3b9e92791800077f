// Package ui renders the terminal side of sitesetup: the interactive setup
// wizard and the tables and markdown the one-shot commands print.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette follows the theme's default brand colors.
var (
	Primary     = lipgloss.Color("#1e40af")
	Secondary   = lipgloss.Color("#f59e0b")
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#2e7d32")
	Warning     = lipgloss.Color("#f59e0b")

	lightForeground = lipgloss.Color("#101f38")
	lightMuted      = lipgloss.Color("#6b7280")
	darkForeground  = lipgloss.Color("#f2f2f2")
	darkMuted       = lipgloss.Color("#9ca3af")
	darkPrimary     = lipgloss.Color("#60a5fa")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{Foreground: lightForeground, Primary: Primary, Muted: lightMuted}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{Foreground: darkForeground, Primary: darkPrimary, Muted: darkMuted, IsDark: true}
}

// DetectTheme picks dark mode from COLORFGBG or SITESETUP_DARK_MODE=1 and
// defaults to light.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("SITESETUP_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components.
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Step    lipgloss.Style
	Current lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	Spinner lipgloss.Style
	Help    lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles creates styles for a theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),
		Step: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),
		Current: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(theme.Primary).
			Bold(true).
			Padding(0, 1),
		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(Secondary),
		Help: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true).
			MarginTop(1),
		Box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
