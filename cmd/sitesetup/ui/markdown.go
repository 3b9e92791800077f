package ui

import (
	"fmt"
	"sort"
	"strings"

	"sitesetup/internal/demo"
	"sitesetup/internal/store"
	"sitesetup/internal/wizard"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for the terminal. Output that is not a terminal
// gets the plain style.
func RenderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("auto"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render(md)
}

// SubmissionMarkdown formats one contact submission.
func SubmissionMarkdown(s store.SubmissionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Reference)
	fmt.Fprintf(&b, "*Received %s, status **%s***\n\n", s.SubmittedAt.Local().Format("Mon 2 Jan 2006 15:04"), s.Status)
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, row := range [][2]string{
		{"Name", s.Name},
		{"Email", s.Email},
		{"Phone", s.Phone},
		{"Company", s.Company},
		{"Service", s.Service},
		{"Budget", s.Budget},
		{"Timeline", s.Timeline},
		{"Newsletter", yesNo(s.Newsletter)},
	} {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], strings.ReplaceAll(row[1], "|", "\\|"))
	}
	b.WriteString("\n## Message\n\n")
	for _, line := range strings.Split(s.Message, "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	return b.String()
}

// CompletionMarkdown summarizes a finished wizard.
func CompletionMarkdown(flags wizard.Flags, res *demo.Result) string {
	var b strings.Builder
	b.WriteString("# Setup complete\n\n")
	if !flags.DemoImported || res == nil {
		b.WriteString("Demo content was skipped. Add your own pages from the dashboard.\n")
		return b.String()
	}

	b.WriteString("Demo content imported:\n\n")
	pages := append(append([]string(nil), res.PagesCreated...), res.PagesUpdated...)
	sort.Strings(pages)
	fmt.Fprintf(&b, "- **Pages:** %s\n", strings.Join(pages, ", "))
	total := 0
	for _, n := range res.PostsInserted {
		total += n
	}
	fmt.Fprintf(&b, "- **Sample posts:** %d\n", total)
	menus := make([]string, 0, len(res.Menus))
	for name := range res.Menus {
		menus = append(menus, name)
	}
	sort.Strings(menus)
	fmt.Fprintf(&b, "- **Menus:** %s\n", strings.Join(menus, ", "))
	fmt.Fprintf(&b, "- **Theme settings:** %d updated\n", len(res.ModsUpdated))
	return b.String()
}
