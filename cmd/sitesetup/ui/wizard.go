package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitesetup/internal/demo"
	"sitesetup/internal/plugins"
	"sitesetup/internal/theme"
	"sitesetup/internal/transparency"
	"sitesetup/internal/wizard"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Backend is what the terminal wizard drives.
type Backend interface {
	Catalog() plugins.Catalog
	Load(ctx context.Context) (*wizard.Wizard, *plugins.Report, error)
	Refresh(ctx context.Context, w *wizard.Wizard) (*plugins.Report, error)
	InstallRequired(ctx context.Context) (*plugins.BulkResult, error)
	CurrentOptions(ctx context.Context) (theme.Options, error)
	SaveOptions(ctx context.Context, opts theme.Options) (*theme.SaveResult, error)
	ImportDemo(ctx context.Context) (*demo.Result, error)
	Finish(ctx context.Context, imported bool) error
}

// RunWizard runs the interactive wizard until the user quits.
func RunWizard(ctx context.Context, b Backend) error {
	m := NewWizardModel(ctx, b, DefaultStyles())
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if wm, ok := final.(WizardModel); ok && wm.fatal != nil {
		return wm.fatal
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

type loadedMsg struct {
	w      *wizard.Wizard
	report *plugins.Report
	opts   theme.Options
	err    error
}

type reportMsg struct {
	report *plugins.Report
	err    error
}

type bulkMsg struct {
	res *plugins.BulkResult
	err error
}

type savedMsg struct {
	res *theme.SaveResult
	err error
}

type importedMsg struct {
	res *demo.Result
	err error
}

type skippedMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Option field order on the theme step.
const (
	fieldLogo = iota
	fieldPrimary
	fieldSecondary
	fieldWidth
	fieldCount
)

// WizardModel is the bubbletea model of the setup wizard.
type WizardModel struct {
	ctx     context.Context
	backend Backend
	styles  Styles

	wiz    *wizard.Wizard
	report *plugins.Report
	bulk   *plugins.BulkResult
	result *demo.Result

	spinner spinner.Model
	inputs  []textinput.Model
	focus   int

	imported bool

	busy   string
	notice string
	err    error
	fatal  error
	done   bool
}

// NewWizardModel creates the model. Init loads the wizard state.
func NewWizardModel(ctx context.Context, b Backend, styles Styles) WizardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	labels := [fieldCount]string{"Logo URL", "Primary color", "Secondary color", "Container width"}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("%-16s ", labels[i])
		ti.CharLimit = 200
		ti.Cursor.SetMode(cursor.CursorStatic)
		inputs[i] = ti
	}
	inputs[fieldWidth].Placeholder = "1140, 1200, 1320 or 100%"
	inputs[fieldPrimary].Placeholder = "#rrggbb"
	inputs[fieldSecondary].Placeholder = "#rrggbb"

	return WizardModel{ctx: ctx, backend: b, styles: styles, spinner: sp, inputs: inputs, busy: "Checking plugins"}
}

// Init implements tea.Model.
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m WizardModel) load() tea.Cmd {
	return func() tea.Msg {
		w, report, err := m.backend.Load(m.ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		opts, err := m.backend.CurrentOptions(m.ctx)
		return loadedMsg{w: w, report: report, opts: opts, err: err}
	}
}

// Update implements tea.Model.
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.busy = ""
		if msg.err != nil {
			m.fatal = msg.err
			return m, tea.Quit
		}
		m.wiz, m.report = msg.w, msg.report
		m.setOptions(msg.opts)
		return m, nil

	case reportMsg:
		m.busy = ""
		if m.fail(msg.err) {
			return m, nil
		}
		m.report = msg.report
		return m, nil

	case bulkMsg:
		m.busy = ""
		m.bulk = msg.res
		if msg.res != nil && msg.res.Report != nil {
			m.report = msg.res.Report
			m.wiz.SetPluginReport(msg.res.Report)
		}
		if m.fail(msg.err) {
			return m, nil
		}
		if n := msg.res.Failed(); n > 0 {
			m.err = hint(fmt.Sprintf("%d of %d plugins failed; press i to retry", n, len(msg.res.Items)))
			return m, nil
		}
		m.notice = "Required plugins installed and active."
		return m, nil

	case savedMsg:
		m.busy = ""
		if m.fail(msg.err) {
			return m, nil
		}
		m.wiz.MarkOptionsSaved()
		m.setOptions(msg.res.Options)
		m.notice = "Theme options saved."
		if msg.res.Warning != "" {
			m.notice += " Warning: " + msg.res.Warning
		}
		return m, nil

	case importedMsg:
		m.busy = ""
		m.result = msg.res
		if m.fail(msg.err) {
			return m, nil
		}
		m.imported = true
		m.apply(wizard.EventImportSucceeded)
		return m, nil

	case skippedMsg:
		m.busy = ""
		if m.fail(msg.err) {
			return m, nil
		}
		m.imported = false
		m.apply(wizard.EventSkipImport)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *WizardModel) fail(err error) bool {
	if err == nil {
		return false
	}
	m.err = err
	m.notice = ""
	return true
}

func (m *WizardModel) apply(ev wizard.Event) {
	if _, err := m.wiz.Apply(ev); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.notice = ""
	if m.wiz.State().CurrentStep == wizard.StepThemeOptions {
		m.focusField(0)
	}
}

func (m WizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.done = true
		return m, tea.Quit
	}
	if m.wiz == nil || m.busy != "" {
		return m, nil
	}

	step := m.wiz.State().CurrentStep
	if step == wizard.StepThemeOptions {
		return m.handleOptionsKey(msg)
	}

	switch msg.String() {
	case "q", "esc":
		m.done = true
		return m, tea.Quit
	}

	switch step {
	case wizard.StepPlugins:
		switch msg.String() {
		case "r":
			return m.start("Checking plugins", func() tea.Msg {
				r, err := m.backend.Refresh(m.ctx, m.wiz)
				return reportMsg{report: r, err: err}
			})
		case "i":
			return m.start("Installing required plugins", func() tea.Msg {
				res, err := m.backend.InstallRequired(m.ctx)
				return bulkMsg{res: res, err: err}
			})
		case "enter", "n":
			m.apply(wizard.EventNext)
		case "s":
			m.apply(wizard.EventSkipPlugins)
		}

	case wizard.StepContentImport:
		switch msg.String() {
		case "d":
			return m.start("Importing demo content", func() tea.Msg {
				res, err := m.backend.ImportDemo(m.ctx)
				if err == nil {
					err = m.backend.Finish(m.ctx, true)
				}
				return importedMsg{res: res, err: err}
			})
		case "s":
			return m.start("Finishing setup", func() tea.Msg {
				return skippedMsg{err: m.backend.Finish(m.ctx, false)}
			})
		case "b":
			m.apply(wizard.EventBack)
		}

	case wizard.StepComplete:
		if msg.String() == "r" {
			m.apply(wizard.EventRestart)
		}
	}
	return m, nil
}

func (m WizardModel) handleOptionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.done = true
		return m, tea.Quit
	case tea.KeyTab, tea.KeyDown:
		m.focusField((m.focus + 1) % fieldCount)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case tea.KeyCtrlS, tea.KeyEnter:
		opts := m.options()
		return m.start("Saving theme options", func() tea.Msg {
			res, err := m.backend.SaveOptions(m.ctx, opts)
			return savedMsg{res: res, err: err}
		})
	case tea.KeyCtrlN:
		m.apply(wizard.EventNext)
		return m, nil
	case tea.KeyCtrlB:
		m.apply(wizard.EventBack)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m WizardModel) start(what string, op func() tea.Msg) (tea.Model, tea.Cmd) {
	m.busy = what
	m.err = nil
	m.notice = ""
	return m, op
}

func (m *WizardModel) focusField(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *WizardModel) setOptions(o theme.Options) {
	m.inputs[fieldLogo].SetValue(o.LogoURL)
	m.inputs[fieldPrimary].SetValue(o.PrimaryColor)
	m.inputs[fieldSecondary].SetValue(o.SecondaryColor)
	m.inputs[fieldWidth].SetValue(string(o.ContainerWidth))
}

func (m WizardModel) options() theme.Options {
	return theme.Options{
		LogoURL:        m.inputs[fieldLogo].Value(),
		PrimaryColor:   m.inputs[fieldPrimary].Value(),
		SecondaryColor: m.inputs[fieldSecondary].Value(),
		ContainerWidth: theme.Width(m.inputs[fieldWidth].Value()),
	}
}

// =============================================================================
// VIEW
// =============================================================================

var stepOrder = []wizard.Step{wizard.StepPlugins, wizard.StepThemeOptions, wizard.StepContentImport, wizard.StepComplete}

var stepTitles = map[wizard.Step]string{
	wizard.StepPlugins:       "1 Plugins",
	wizard.StepThemeOptions:  "2 Theme options",
	wizard.StepContentImport: "3 Demo content",
	wizard.StepComplete:      "4 Done",
}

// View implements tea.Model.
func (m WizardModel) View() string {
	if m.done {
		return ""
	}
	s := m.styles
	var b strings.Builder
	b.WriteString(s.Title.Render("Theme setup"))
	b.WriteString("\n")

	if m.wiz == nil {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.busy)
		return b.String()
	}

	st := m.wiz.State()
	var tabs []string
	for _, step := range stepOrder {
		if step == st.CurrentStep {
			tabs = append(tabs, s.Current.Render(stepTitles[step]))
		} else {
			tabs = append(tabs, s.Step.Render(stepTitles[step]))
		}
	}
	b.WriteString(strings.Join(tabs, " "))
	b.WriteString("\n\n")

	switch st.CurrentStep {
	case wizard.StepPlugins:
		b.WriteString(m.pluginsView())
	case wizard.StepThemeOptions:
		b.WriteString(m.optionsView())
	case wizard.StepContentImport:
		b.WriteString(s.Body.Render("Import demo pages, sample services, projects and testimonials, and the primary and footer menus."))
		b.WriteString("\n")
		b.WriteString(s.Muted.Render("Existing pages with the same slug are updated. Sample posts are added again on every import."))
		b.WriteString("\n")
	case wizard.StepComplete:
		b.WriteString(m.completeView())
	}

	b.WriteString("\n")
	switch {
	case m.busy != "":
		fmt.Fprintf(&b, "%s %s...\n", m.spinner.View(), m.busy)
	case m.err != nil:
		b.WriteString(s.Error.Render(errorLine(m.err)))
		b.WriteString("\n")
	case m.notice != "":
		b.WriteString(s.Success.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(s.Help.Render(helpLine(st.CurrentStep, m.wiz.CanAdvance())))
	b.WriteString("\n")
	return b.String()
}

func (m WizardModel) pluginsView() string {
	if m.report == nil {
		return ""
	}
	out := PluginTable(m.backend.Catalog(), m.report).View(m.styles)
	if m.bulk != nil {
		out += BulkTable(m.bulk).View(m.styles)
	}
	if m.report.RequiredReady {
		out += m.styles.Success.Render("All required plugins are active.") + "\n"
	} else {
		out += m.styles.Warning.Render("Required plugins must be active to continue.") + "\n"
	}
	return out
}

func (m WizardModel) optionsView() string {
	var b strings.Builder
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if m.wiz.State().OptionsSaved {
		b.WriteString(m.styles.Muted.Render("Saved. Ctrl+N continues."))
		b.WriteString("\n")
	}
	return m.styles.Box.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m WizardModel) completeView() string {
	md := CompletionMarkdown(wizard.Flags{SetupComplete: true, DemoImported: m.imported}, m.result)
	out, err := RenderMarkdown(md, 72)
	if err != nil {
		return md
	}
	return out
}

func helpLine(step wizard.Step, canAdvance bool) string {
	switch step {
	case wizard.StepPlugins:
		if canAdvance {
			return "enter continue • r refresh • i install required • s skip • q quit"
		}
		return "i install required • r refresh • s skip • q quit"
	case wizard.StepThemeOptions:
		return "tab next field • enter save • ctrl+n continue • ctrl+b back • esc quit"
	case wizard.StepContentImport:
		return "d import demo content • s skip • b back • q quit"
	default:
		return "r start over • q quit"
	}
}

// hint is an error whose text is already meant for the user.
type hint string

func (h hint) Error() string { return string(h) }

func errorLine(err error) string {
	var h hint
	if errors.As(err, &h) {
		return h.Error()
	}
	var te *wizard.TransitionError
	if errors.As(err, &te) {
		if errors.Is(err, wizard.ErrStepLocked) {
			return "This step is not finished yet."
		}
		return err.Error()
	}
	ce := transparency.ClassifyError(err)
	msg := ce.UserMessage()
	if ce.Category.Retryable() {
		msg += " (retry with the same key)"
	}
	return msg
}
