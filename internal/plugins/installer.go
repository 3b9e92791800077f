package plugins

import (
	"context"
	"errors"
	"fmt"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/transparency"
)

// Outcome describes what a single install or activate call did.
type Outcome string

const (
	OutcomeInstalled        Outcome = "installed"
	OutcomeAlreadyInstalled Outcome = "already_installed"
	OutcomeActivated        Outcome = "activated"
	OutcomeAlreadyActive    Outcome = "already_active"
	OutcomeFailed           Outcome = "failed"
)

// Host is what the installer needs from the platform.
type Host interface {
	platform.Authorizer
	platform.PluginHost
}

// Installer installs and activates catalog plugins one at a time. Retries are
// left to the caller.
type Installer struct {
	host    Host
	catalog Catalog
	checker *Checker
}

// NewInstaller creates an installer over a catalog.
func NewInstaller(host Host, catalog Catalog) *Installer {
	return &Installer{
		host:    host,
		catalog: catalog,
		checker: NewChecker(host, catalog),
	}
}

// Checker returns the status checker sharing the installer's host and catalog.
func (in *Installer) Checker() *Checker {
	return in.checker
}

// Install downloads and unpacks the plugin for key. It never activates.
// Installing an already-installed plugin is a no-op.
func (in *Installer) Install(ctx context.Context, key string) (Outcome, error) {
	timer := logging.StartTimer(logging.CategoryPlugins, "Install:"+key)
	outcome, err := in.install(ctx, key)
	elapsed := timer.Stop()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		logging.PluginsWarn("Install %s failed: %v", key, err)
	} else {
		logging.Plugins("Install %s: %s", key, outcome)
	}
	logging.Audit().PluginInstall(key, elapsed.Milliseconds(), err == nil, errMsg)
	return outcome, err
}

func (in *Installer) install(ctx context.Context, key string) (Outcome, error) {
	fail := func(cat transparency.ErrorCategory, err error) (Outcome, error) {
		return OutcomeFailed, &InstallError{Key: key, Category: cat, Err: err}
	}

	if err := platform.Require(ctx, in.host, platform.CapInstallPlugins); err != nil {
		return fail(categorize(err), err)
	}

	d, ok := in.catalog.Lookup(key)
	if !ok {
		return fail(transparency.ErrorCategoryResolution, fmt.Errorf("unknown plugin %q", key))
	}

	installed, err := in.host.InstalledPlugins(ctx)
	if err != nil {
		return fail(transparency.ErrorCategoryTransport, err)
	}
	if _, ok := installed[d.FileIdentifier]; ok {
		return OutcomeAlreadyInstalled, nil
	}

	info, err := in.host.PluginInfo(ctx, d.Key)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return fail(transparency.ErrorCategoryResolution, fmt.Errorf("%s not found in the plugin directory", d.DisplayName))
		}
		return fail(categorize(err), err)
	}

	if err := in.host.InstallPlugin(ctx, info); err != nil {
		return fail(categorize(err), err)
	}
	return OutcomeInstalled, nil
}

// Activate flips an installed plugin to active. Activating an active plugin
// is a no-op.
func (in *Installer) Activate(ctx context.Context, file string) (Outcome, error) {
	outcome, err := in.activate(ctx, file)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		logging.PluginsWarn("Activate %s failed: %v", file, err)
	} else {
		logging.Plugins("Activate %s: %s", file, outcome)
	}
	logging.Audit().PluginActivate(file, err == nil, errMsg)
	return outcome, err
}

func (in *Installer) activate(ctx context.Context, file string) (Outcome, error) {
	fail := func(cat transparency.ErrorCategory, err error) (Outcome, error) {
		return OutcomeFailed, &ActivationError{File: file, Category: cat, Err: err}
	}

	if err := platform.Require(ctx, in.host, platform.CapActivatePlugins); err != nil {
		return fail(categorize(err), err)
	}
	if file == "" {
		return fail(transparency.ErrorCategoryResolution, errors.New("no plugin file given"))
	}

	installed, err := in.host.InstalledPlugins(ctx)
	if err != nil {
		return fail(transparency.ErrorCategoryTransport, err)
	}
	p, ok := installed[file]
	if !ok {
		return fail(transparency.ErrorCategoryResolution, fmt.Errorf("plugin %s is not installed", file))
	}
	if p.Active {
		return OutcomeAlreadyActive, nil
	}

	if err := in.host.ActivatePlugin(ctx, file); err != nil {
		return fail(categorize(err), err)
	}
	return OutcomeActivated, nil
}
