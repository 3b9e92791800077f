package main

import (
	"context"

	"sitesetup/cmd/sitesetup/ui"
	"sitesetup/internal/demo"
	"sitesetup/internal/plugins"
	"sitesetup/internal/theme"
	"sitesetup/internal/wizard"

	"github.com/spf13/cobra"
)

// wizardCmd runs the setup wizard in the terminal
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Walk the setup wizard: plugins, theme options, demo content",
	RunE:  runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	// interactive: no deadline
	return withAppFor(0, func(ctx context.Context, a *app) error {
		return ui.RunWizard(ctx, &wizardBackend{a: a})
	})
}

// wizardBackend adapts the app to the steps the terminal wizard drives.
type wizardBackend struct {
	a *app
}

func (b *wizardBackend) Catalog() plugins.Catalog { return b.a.catalog }

func (b *wizardBackend) Load(ctx context.Context) (*wizard.Wizard, *plugins.Report, error) {
	return b.a.wizard.Load(ctx)
}

func (b *wizardBackend) Refresh(ctx context.Context, w *wizard.Wizard) (*plugins.Report, error) {
	return b.a.wizard.Refresh(ctx, w)
}

func (b *wizardBackend) InstallRequired(ctx context.Context) (*plugins.BulkResult, error) {
	return b.a.installer.InstallRequired(ctx, b.a.bulkOptions())
}

func (b *wizardBackend) CurrentOptions(ctx context.Context) (theme.Options, error) {
	return b.a.writer.Current(ctx)
}

func (b *wizardBackend) SaveOptions(ctx context.Context, opts theme.Options) (*theme.SaveResult, error) {
	return b.a.writer.Save(ctx, opts)
}

func (b *wizardBackend) ImportDemo(ctx context.Context) (*demo.Result, error) {
	return b.a.importer.Import(ctx)
}

func (b *wizardBackend) Finish(ctx context.Context, imported bool) error {
	return b.a.wizard.Finish(ctx, imported)
}
