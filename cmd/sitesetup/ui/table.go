package ui

import (
	"strconv"
	"strings"

	"sitesetup/internal/plugins"
	"sitesetup/internal/store"

	"github.com/charmbracelet/lipgloss"
)

// SimpleTable renders static rows with aligned columns.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSimpleTable creates a table with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{Title: title, Headers: headers}
}

// AddRow adds a row. Cells beyond the header count are dropped.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table. An empty table renders nothing.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	// lipgloss Width includes padding
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	header := styles.Bold.Padding(0, 1)
	cell := styles.Body.Padding(0, 1)
	sep := styles.Muted

	writeRow := func(style lipgloss.Style, row []string) {
		for i := range widths {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			sb.WriteString(style.Width(widths[i]).Render(v))
			if i < len(widths)-1 {
				sb.WriteString(sep.Render("|"))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(header, t.Headers)
	sb.WriteString(sep.Render(strings.Repeat("-", total)) + "\n")
	for _, row := range t.Rows {
		writeRow(cell, row)
	}
	sb.WriteString("\n")
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// PluginTable lists every catalog plugin with its status.
func PluginTable(catalog plugins.Catalog, report *plugins.Report) *SimpleTable {
	t := NewSimpleTable("Plugins", []string{"Plugin", "Slug", "Required", "Installed", "Active", "Version"})
	for _, d := range catalog {
		st := report.Statuses[d.Key]
		ver := st.Version
		if st.Outdated {
			ver += " (outdated, needs " + d.MinVersion + ")"
		}
		t.AddRow(d.DisplayName, d.Key, yesNo(d.Required), yesNo(st.Installed), yesNo(st.Active), ver)
	}
	return t
}

// BulkTable lists the settled items of a bulk install.
func BulkTable(res *plugins.BulkResult) *SimpleTable {
	t := NewSimpleTable("Install results", []string{"Slug", "Outcome", "Message"})
	for _, it := range res.Items {
		t.AddRow(it.Key, string(it.Outcome), it.Message)
	}
	return t
}

// SubmissionTable lists contact submissions, newest first.
func SubmissionTable(subs []store.SubmissionRecord) *SimpleTable {
	t := NewSimpleTable("Contact submissions", []string{"ID", "Reference", "Received", "Name", "Email", "Service", "Status"})
	for _, s := range subs {
		t.AddRow(
			strconv.FormatInt(s.ID, 10),
			s.Reference,
			s.SubmittedAt.Local().Format("2006-01-02 15:04"),
			s.Name,
			s.Email,
			s.Service,
			s.Status,
		)
	}
	return t
}
