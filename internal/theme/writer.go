package theme

import (
	"context"
	"fmt"
	"time"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
)

// PageBuilderWidthOption is the page builder's own container width option.
const PageBuilderWidthOption = "elementor_container_width"

// WriterHost is what the writer needs from the platform.
type WriterHost interface {
	platform.Authorizer
	platform.OptionStore
	platform.PluginHost
}

// Writer saves the wizard's theme options.
type Writer struct {
	host            WriterHost
	pageBuilderFile string
}

// NewWriter creates a writer. pageBuilderFile is the registry file of the
// page builder whose container width is kept in sync; empty disables mirroring.
func NewWriter(host WriterHost, pageBuilderFile string) *Writer {
	return &Writer{host: host, pageBuilderFile: pageBuilderFile}
}

// SaveResult describes a successful save.
type SaveResult struct {
	Options  Options  `json:"options"`
	Coerced  []string `json:"coerced,omitempty"`
	Mirrored bool     `json:"mirrored"`
	Warning  string   `json:"warning,omitempty"`
}

// Save sanitizes opts and writes them as theme mods. When the page builder is
// active its container width option is updated too. A failed mirror write is
// not rolled back: the save succeeds and the result carries a warning.
func (w *Writer) Save(ctx context.Context, opts Options) (*SaveResult, error) {
	start := time.Now()
	clean, coerced := opts.Sanitize()
	if len(coerced) > 0 {
		logging.ThemeWarn("Coerced invalid theme options: %v", coerced)
	}

	if err := platform.Require(ctx, w.host, platform.CapEditThemeOptions); err != nil {
		return nil, err
	}

	mods := clean.Mods()
	keys := []string{ModLogoURL, ModPrimaryColor, ModSecondaryColor, ModContainerWidth}
	for _, k := range keys {
		if err := w.host.SetThemeMod(ctx, k, mods[k]); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", k, err)
		}
	}

	result := &SaveResult{Options: clean, Coerced: coerced}
	w.mirror(ctx, clean, result)

	logging.Theme("Theme options saved in %v (mirrored=%v)", time.Since(start), result.Mirrored)
	logging.Audit().OptionsSave(keys, result.Warning)
	return result, nil
}

func (w *Writer) mirror(ctx context.Context, clean Options, result *SaveResult) {
	if w.pageBuilderFile == "" {
		return
	}
	installed, err := w.host.InstalledPlugins(ctx)
	if err != nil {
		result.Warning = fmt.Sprintf("could not check the page builder: %v", err)
		logging.ThemeWarn("%s", result.Warning)
		return
	}
	if p, ok := installed[w.pageBuilderFile]; !ok || !p.Active {
		return
	}
	if err := w.host.SetOption(ctx, PageBuilderWidthOption, string(clean.ContainerWidth)); err != nil {
		result.Warning = fmt.Sprintf("theme options saved, but the page builder container width was not updated: %v", err)
		logging.ThemeWarn("%s", result.Warning)
		return
	}
	result.Mirrored = true
}

// Current reads the saved options back.
func (w *Writer) Current(ctx context.Context) (Options, error) {
	mods, err := w.host.ThemeMods(ctx)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read theme mods: %w", err)
	}
	return OptionsFromMods(mods), nil
}
