package main

import (
	"context"
	"fmt"
	"sort"

	"sitesetup/internal/theme"

	"github.com/spf13/cobra"
)

var (
	themeLogo      string
	themePrimary   string
	themeSecondary string
	themeWidth     string
)

// themeCmd groups the theme option commands
var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Read and write theme options and customizer settings",
}

var themeActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Write customizer defaults for every setting that has no value yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			applied, err := a.customizer.ApplyDefaults(ctx)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d defaults\n", len(applied))
			for _, id := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			return nil
		})
	},
}

var themeGetCmd = &cobra.Command{
	Use:   "get [setting]",
	Short: "Print customizer settings (defaults fill unset values)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			values, err := a.customizer.Get(ctx)
			if err != nil {
				return explain(err)
			}
			if len(args) == 1 {
				v, ok := values[args[0]]
				if !ok {
					return fmt.Errorf("%w: %s", theme.ErrUnknownSetting, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", k, values[k])
			}
			return nil
		})
	},
}

var themeSetCmd = &cobra.Command{
	Use:   "set [setting] [value]",
	Short: "Sanitize and store one customizer setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.customizer.Set(ctx, args[0], args[1])
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			if res.Value != args[1] {
				fmt.Fprintf(out, "%s = %q (sanitized from %q)\n", args[0], res.Value, args[1])
			} else {
				fmt.Fprintf(out, "%s = %q\n", args[0], res.Value)
			}
			if res.Mirrored {
				fmt.Fprintln(out, "page builder container width updated")
			}
			if res.Warning != "" {
				fmt.Fprintf(out, "warning: %s\n", res.Warning)
			}
			return nil
		})
	},
}

var themeSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the wizard theme options (logo, colors, container width)",
	Long: `Saves the options the wizard's theme step collects. Flags that are not
given keep their current value. Invalid values are coerced to defaults.
When the page builder is active its container width is updated too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			opts, err := a.writer.Current(ctx)
			if err != nil {
				return explain(err)
			}
			f := cmd.Flags()
			if f.Changed("logo") {
				opts.LogoURL = themeLogo
			}
			if f.Changed("primary") {
				opts.PrimaryColor = themePrimary
			}
			if f.Changed("secondary") {
				opts.SecondaryColor = themeSecondary
			}
			if f.Changed("width") {
				opts.ContainerWidth = theme.Width(themeWidth)
			}

			res, err := a.writer.Save(ctx, opts)
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logo_url         %s\n", res.Options.LogoURL)
			fmt.Fprintf(out, "primary_color    %s\n", res.Options.PrimaryColor)
			fmt.Fprintf(out, "secondary_color  %s\n", res.Options.SecondaryColor)
			fmt.Fprintf(out, "container_width  %s\n", res.Options.ContainerWidth)
			if len(res.Coerced) > 0 {
				fmt.Fprintf(out, "coerced: %v\n", res.Coerced)
			}
			if res.Mirrored {
				fmt.Fprintln(out, "page builder container width updated")
			}
			if res.Warning != "" {
				fmt.Fprintf(out, "warning: %s\n", res.Warning)
			}
			return nil
		})
	},
}

func init() {
	themeSaveCmd.Flags().StringVar(&themeLogo, "logo", "", "Logo URL (http or https)")
	themeSaveCmd.Flags().StringVar(&themePrimary, "primary", "", "Primary color (#rrggbb)")
	themeSaveCmd.Flags().StringVar(&themeSecondary, "secondary", "", "Secondary color (#rrggbb)")
	themeSaveCmd.Flags().StringVar(&themeWidth, "width", "", "Container width: 1140, 1200, 1320 or 100%")

	themeCmd.AddCommand(themeActivateCmd)
	themeCmd.AddCommand(themeGetCmd)
	themeCmd.AddCommand(themeSetCmd)
	themeCmd.AddCommand(themeSaveCmd)
}
