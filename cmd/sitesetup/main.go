// Command sitesetup runs the theme setup backend: the admin-ajax style HTTP
// server, the interactive setup wizard, and one-shot commands for plugins,
// theme options, demo content and contact submissions.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	cliUser    string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sitesetup",
	Short: "Theme setup backend: plugin installer, theme options, demo content, contact form",
	Long: `sitesetup configures a freshly activated theme.

It checks and installs the recommended plugins, saves the theme options the
setup wizard collects, imports demo pages, posts and menus, and stores contact
form submissions. "serve" exposes all of it as admin-ajax style endpoints;
"wizard" walks the same steps in the terminal.

Run without arguments to start the interactive wizard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runWizard,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sitesetup.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&cliUser, "user", "cli", "Administrator name recorded for CLI actions")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(contactCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
