package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"sitesetup/cmd/sitesetup/ui"
	"sitesetup/internal/store"

	"github.com/spf13/cobra"
)

var (
	contactStatus string
	contactLimit  int
	contactJSON   bool
)

// contactCmd groups the contact submission commands
var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Review contact form submissions",
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			subs, err := a.contact.List(ctx, contactStatus, contactLimit)
			if err != nil {
				return err
			}
			if contactJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(subs)
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No submissions")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.SubmissionTable(subs).View(ui.DefaultStyles()))
			return nil
		})
	},
}

var contactShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid submission id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			sub, err := a.store.GetSubmission(ctx, id)
			if err != nil {
				return err
			}
			out, err := ui.RenderMarkdown(ui.SubmissionMarkdown(*sub), 80)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var contactMarkCmd = &cobra.Command{
	Use:   "mark [id] [status]",
	Short: "Move a submission to new, read, replied or archived",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid submission id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.contact.MarkStatus(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submission %d marked %s\n", id, args[1])
			return nil
		})
	},
}

func init() {
	contactListCmd.Flags().StringVar(&contactStatus, "status", "", fmt.Sprintf("Only this status %v", store.ValidSubmissionStatuses))
	contactListCmd.Flags().IntVar(&contactLimit, "limit", 20, "Maximum rows")
	contactListCmd.Flags().BoolVar(&contactJSON, "json", false, "Print JSON")

	contactCmd.AddCommand(contactListCmd)
	contactCmd.AddCommand(contactShowCmd)
	contactCmd.AddCommand(contactMarkCmd)
}
