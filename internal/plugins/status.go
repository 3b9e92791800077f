package plugins

import (
	"context"
	"fmt"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"

	"github.com/hashicorp/go-version"
)

// Status is the derived state of one catalog plugin. Active implies Installed.
type Status struct {
	Installed bool   `json:"installed"`
	Active    bool   `json:"active"`
	Version   string `json:"version,omitempty"`
	Outdated  bool   `json:"outdated,omitempty"`
}

// Report is the result of one status check.
type Report struct {
	Statuses      map[string]Status `json:"statuses"`
	RequiredReady bool              `json:"required_ready"`
}

// Checker derives plugin statuses from the host registry.
type Checker struct {
	host    platform.PluginHost
	catalog Catalog
}

// NewChecker creates a checker over a catalog.
func NewChecker(host platform.PluginHost, catalog Catalog) *Checker {
	return &Checker{host: host, catalog: catalog}
}

// Catalog returns the checked catalog.
func (c *Checker) Catalog() Catalog {
	return c.catalog
}

// Check reads the registry once and derives a status per descriptor. A plugin
// missing from the registry is reported as not installed, not as an error.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryPlugins, "Check")
	defer timer.Stop()

	installed, err := c.host.InstalledPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin registry: %w", err)
	}
	return Derive(c.catalog, installed), nil
}

// Derive computes a report from a registry snapshot.
func Derive(catalog Catalog, installed map[string]platform.InstalledPlugin) *Report {
	report := &Report{
		Statuses:      make(map[string]Status, len(catalog)),
		RequiredReady: true,
	}
	for _, d := range catalog {
		var st Status
		if p, ok := installed[d.FileIdentifier]; ok {
			st = Status{
				Installed: true,
				Active:    p.Active,
				Version:   p.Version,
				Outdated:  outdated(p.Version, d.MinVersion),
			}
		}
		report.Statuses[d.Key] = st
		if d.Required && !st.Active {
			report.RequiredReady = false
		}
	}
	logging.PluginsDebug("Derived status for %d plugins, required_ready=%v", len(catalog), report.RequiredReady)
	return report
}

// outdated reports whether have < min. Unparseable versions are never outdated.
func outdated(have, min string) bool {
	if have == "" || min == "" {
		return false
	}
	hv, err := version.NewVersion(have)
	if err != nil {
		return false
	}
	mv, err := version.NewVersion(min)
	if err != nil {
		return false
	}
	return hv.LessThan(mv)
}
