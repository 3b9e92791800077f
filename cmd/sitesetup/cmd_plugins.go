package main

import (
	"context"
	"fmt"
	"io"

	"sitesetup/cmd/sitesetup/ui"
	"sitesetup/internal/plugins"
	"sitesetup/internal/transparency"

	"github.com/spf13/cobra"
)

var bulkConcurrency int

// pluginsCmd groups the plugin commands
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Check, install and activate the recommended plugins",
}

var pluginsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every catalog plugin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			report, err := a.installer.Checker().Check(ctx)
			if err != nil {
				return explain(err)
			}
			printReport(cmd.OutOrStdout(), a.catalog, report)
			return nil
		})
	},
}

var pluginsInstallCmd = &cobra.Command{
	Use:   "install [slug]",
	Short: "Install one catalog plugin without activating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			outcome, err := a.installer.Install(ctx, args[0])
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
			return nil
		})
	},
}

var pluginsActivateCmd = &cobra.Command{
	Use:   "activate [slug|plugin-file]",
	Short: "Activate an installed plugin",
	Long: `Activates a plugin by catalog slug (e.g. "elementor") or by its
registry file (e.g. "elementor/elementor.php").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			file := args[0]
			if d, ok := a.catalog.Lookup(file); ok {
				file = d.FileIdentifier
			}
			outcome, err := a.installer.Activate(ctx, file)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", file, outcome)
			return nil
		})
	},
}

var pluginsInstallRequiredCmd = &cobra.Command{
	Use:   "install-required",
	Short: "Install and activate every required plugin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.installer.InstallRequired(ctx, bulkOpts(a))
			return printBulk(cmd.OutOrStdout(), a.catalog, res, err)
		})
	},
}

var pluginsInstallSelectedCmd = &cobra.Command{
	Use:   "install-selected [slug...]",
	Short: "Install and activate the named plugins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.installer.InstallMany(ctx, args, bulkOpts(a))
			return printBulk(cmd.OutOrStdout(), a.catalog, res, err)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{pluginsInstallRequiredCmd, pluginsInstallSelectedCmd} {
		c.Flags().IntVar(&bulkConcurrency, "concurrency", 0, "Plugins in flight at once (overrides bulk.concurrency)")
	}
	pluginsCmd.AddCommand(pluginsStatusCmd)
	pluginsCmd.AddCommand(pluginsInstallCmd)
	pluginsCmd.AddCommand(pluginsActivateCmd)
	pluginsCmd.AddCommand(pluginsInstallRequiredCmd)
	pluginsCmd.AddCommand(pluginsInstallSelectedCmd)
}

func bulkOpts(a *app) plugins.BulkOptions {
	opts := a.bulkOptions()
	if bulkConcurrency > 0 {
		opts.Concurrency = bulkConcurrency
	}
	return opts
}

func printReport(w io.Writer, catalog plugins.Catalog, report *plugins.Report) {
	styles := ui.DefaultStyles()
	fmt.Fprint(w, ui.PluginTable(catalog, report).View(styles))
	ready := styles.Error.Render("no")
	if report.RequiredReady {
		ready = styles.Success.Render("yes")
	}
	fmt.Fprintf(w, "Required plugins ready: %s\n", ready)
}

func printBulk(w io.Writer, catalog plugins.Catalog, res *plugins.BulkResult, err error) error {
	if res == nil {
		return explain(err)
	}
	styles := ui.DefaultStyles()
	fmt.Fprint(w, ui.BulkTable(res).View(styles))
	if res.Report != nil {
		printReport(w, catalog, res.Report)
	}
	if err != nil {
		return explain(err)
	}
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d plugins failed", n, len(res.Items))
	}
	return nil
}

// explain renders err with its category and suggested fixes.
func explain(err error) error {
	if err == nil {
		return nil
	}
	return transparency.ClassifyError(err)
}
