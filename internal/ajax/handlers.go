package ajax

import (
	"context"
	"fmt"

	"sitesetup/internal/contact"
	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/plugins"
	"sitesetup/internal/theme"
	"sitesetup/internal/transparency"
	"sitesetup/internal/wizard"
)

// handlerFunc runs one action. A non-nil result returned with an error is
// sent as the partial result of a failed call.
type handlerFunc func(ctx context.Context, req *Request) (interface{}, error)

// route binds an action to the capability it requires.
type route struct {
	capability platform.Capability
	public     bool
	handle     handlerFunc
}

func (s *Server) dispatchTable() map[Action]route {
	return map[Action]route{
		ActionCheckPluginStatus:      {capability: platform.CapInstallPlugins, handle: s.checkPluginStatus},
		ActionInstallPlugin:          {capability: platform.CapInstallPlugins, handle: s.installPlugin},
		ActionActivatePlugin:         {capability: platform.CapActivatePlugins, handle: s.activatePlugin},
		ActionInstallRequiredPlugins: {capability: platform.CapInstallPlugins, handle: s.installRequired},
		ActionInstallSelectedPlugins: {capability: platform.CapInstallPlugins, handle: s.installSelected},
		ActionSaveThemeOptions:       {capability: platform.CapEditThemeOptions, handle: s.saveThemeOptions},
		ActionImportDemoContent:      {capability: platform.CapManageOptions, handle: s.importDemo},
		ActionSkipDemoImport:         {capability: platform.CapManageOptions, handle: s.skipImport},
		ActionWizardStatus:           {capability: platform.CapManageOptions, handle: s.wizardStatus},
		ActionWizardEvent:            {capability: platform.CapManageOptions, handle: s.wizardEvent},
		ActionSubmitContactForm:      {public: true, handle: s.submitContact},
	}
}

// =============================================================================
// PLUGINS
// =============================================================================

type statusData struct {
	*plugins.Report
	Plugins plugins.Catalog `json:"plugins"`
}

func (s *Server) checkPluginStatus(ctx context.Context, req *Request) (interface{}, error) {
	w, err := s.deps.Wizard.Session(ctx, req.User.Name, false)
	if err != nil {
		return nil, err
	}
	report, err := s.deps.Wizard.Refresh(ctx, w)
	if err != nil {
		return nil, err
	}
	return statusData{Report: report, Plugins: s.deps.Installer.Checker().Catalog()}, nil
}

func (s *Server) installPlugin(ctx context.Context, req *Request) (interface{}, error) {
	slug, err := requireField(req, "slug")
	if err != nil {
		return nil, err
	}
	outcome, err := s.deps.Installer.Install(ctx, slug)
	if err != nil {
		return nil, err
	}
	name := slug
	if d, ok := s.deps.Installer.Checker().Catalog().Lookup(slug); ok {
		name = d.DisplayName
	}
	if outcome == plugins.OutcomeAlreadyInstalled {
		return map[string]string{"message": name + " is already installed.", "outcome": string(outcome)}, nil
	}
	return map[string]string{"message": name + " installed successfully.", "outcome": string(outcome)}, nil
}

func (s *Server) activatePlugin(ctx context.Context, req *Request) (interface{}, error) {
	file, err := requireField(req, "plugin_file")
	if err != nil {
		return nil, err
	}
	outcome, err := s.deps.Installer.Activate(ctx, file)
	if err != nil {
		return nil, err
	}
	msg := "Plugin activated successfully."
	if outcome == plugins.OutcomeAlreadyActive {
		msg = "Plugin is already active."
	}
	return map[string]string{"message": msg, "outcome": string(outcome)}, nil
}

func (s *Server) installRequired(ctx context.Context, req *Request) (interface{}, error) {
	res, err := s.deps.Installer.InstallRequired(ctx, s.deps.Bulk)
	return s.bulkResponse(ctx, req, res, err)
}

func (s *Server) installSelected(ctx context.Context, req *Request) (interface{}, error) {
	slugs := req.Values("slugs")
	if len(slugs) == 0 {
		return nil, &fieldError{field: "slugs"}
	}
	res, err := s.deps.Installer.InstallMany(ctx, slugs, s.deps.Bulk)
	return s.bulkResponse(ctx, req, res, err)
}

// bulkFailure reports a settled bulk run in which some plugins failed.
type bulkFailure struct {
	failed, total int
}

func (e *bulkFailure) Error() string {
	return fmt.Sprintf("%d of %d plugins could not be installed and activated.", e.failed, e.total)
}

func (e *bulkFailure) ErrorCategory() transparency.ErrorCategory {
	return transparency.ErrorCategoryResolution
}

func (s *Server) bulkResponse(ctx context.Context, req *Request, res *plugins.BulkResult, err error) (interface{}, error) {
	if res == nil {
		return nil, err
	}
	if res.Report != nil {
		if w, serr := s.deps.Wizard.Session(ctx, req.User.Name, false); serr == nil {
			w.SetPluginReport(res.Report)
		}
	}
	if err != nil {
		return res, err
	}
	if n := res.Failed(); n > 0 {
		return res, &bulkFailure{failed: n, total: len(res.Items)}
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("%d plugins installed and activated.", len(res.Items)),
		"items":   res.Items,
		"report":  res.Report,
	}, nil
}

// =============================================================================
// THEME OPTIONS
// =============================================================================

func (s *Server) saveThemeOptions(ctx context.Context, req *Request) (interface{}, error) {
	opts := theme.Options{
		LogoURL:        req.Value("logo_url"),
		PrimaryColor:   req.Value("primary_color"),
		SecondaryColor: req.Value("secondary_color"),
		ContainerWidth: theme.Width(req.Value("container_width")),
	}
	res, err := s.deps.Writer.Save(ctx, opts)
	if err != nil {
		return nil, err
	}
	if w, serr := s.deps.Wizard.Session(ctx, req.User.Name, false); serr == nil {
		w.MarkOptionsSaved()
	} else {
		logging.HTTPWarn("[req:%s] options saved but wizard session unavailable: %v", req.RequestID, serr)
	}
	return map[string]interface{}{
		"message": "Theme options saved.",
		"options": res.Options,
		"coerced": res.Coerced,
		"warning": res.Warning,
	}, nil
}

// =============================================================================
// DEMO CONTENT
// =============================================================================

func (s *Server) importDemo(ctx context.Context, req *Request) (interface{}, error) {
	res, err := s.deps.Importer.Import(ctx)
	if err != nil {
		if res == nil {
			return nil, err
		}
		return res, err
	}
	if err := s.deps.Wizard.Finish(ctx, true); err != nil {
		return res, err
	}
	s.applyEvent(ctx, req, wizard.EventImportSucceeded)
	return map[string]interface{}{
		"message": "Demo content imported successfully.",
		"result":  res,
	}, nil
}

func (s *Server) skipImport(ctx context.Context, req *Request) (interface{}, error) {
	if err := s.deps.Wizard.Finish(ctx, false); err != nil {
		return nil, err
	}
	s.applyEvent(ctx, req, wizard.EventSkipImport)
	return message{Message: "Setup complete."}, nil
}

// applyEvent advances the user's session when it is at a step that accepts
// ev. The flags are already persisted, so a rejected move is only logged.
func (s *Server) applyEvent(ctx context.Context, req *Request, ev wizard.Event) {
	w, err := s.deps.Wizard.Session(ctx, req.User.Name, false)
	if err != nil {
		return
	}
	if _, err := w.Apply(ev); err != nil {
		logging.WizardDebug("[req:%s] session not advanced by %s: %v", req.RequestID, ev, err)
	}
}

// =============================================================================
// WIZARD
// =============================================================================

type wizardData struct {
	State      wizard.State    `json:"state"`
	Step       string          `json:"step"`
	CanAdvance bool            `json:"can_advance"`
	Flags      wizard.Flags    `json:"flags"`
	Report     *plugins.Report `json:"report,omitempty"`
}

func (s *Server) wizardStatus(ctx context.Context, req *Request) (interface{}, error) {
	w, err := s.deps.Wizard.Session(ctx, req.User.Name, req.Bool("fresh"))
	if err != nil {
		return nil, err
	}
	report, err := s.deps.Wizard.Refresh(ctx, w)
	if err != nil {
		return nil, err
	}
	return s.wizardData(ctx, w, report)
}

func (s *Server) wizardEvent(ctx context.Context, req *Request) (interface{}, error) {
	raw, err := requireField(req, "event")
	if err != nil {
		return nil, err
	}
	ev, err := wizard.ParseEvent(raw)
	if err != nil {
		return nil, &fieldError{field: "event", reason: fmt.Sprintf("Unknown wizard event %q.", raw)}
	}
	// Completion events are applied only by import_demo_content and
	// skip_demo_import, which also write the flags.
	if ev == wizard.EventImportSucceeded || ev == wizard.EventSkipImport {
		return nil, &fieldError{field: "event", reason: fmt.Sprintf("Event %q is applied by importing or skipping demo content.", raw)}
	}
	w, err := s.deps.Wizard.Session(ctx, req.User.Name, false)
	if err != nil {
		return nil, err
	}
	report, err := s.deps.Wizard.Refresh(ctx, w)
	if err != nil {
		return nil, err
	}
	if _, err := w.Apply(ev); err != nil {
		if data, derr := s.wizardData(ctx, w, report); derr == nil {
			return data, err
		}
		return nil, err
	}
	return s.wizardData(ctx, w, report)
}

func (s *Server) wizardData(ctx context.Context, w *wizard.Wizard, report *plugins.Report) (*wizardData, error) {
	flags, err := s.deps.Wizard.Flags(ctx)
	if err != nil {
		return nil, err
	}
	st := w.State()
	return &wizardData{
		State:      st,
		Step:       st.CurrentStep.String(),
		CanAdvance: w.CanAdvance(),
		Flags:      flags,
		Report:     report,
	}, nil
}

// =============================================================================
// CONTACT
// =============================================================================

func (s *Server) submitContact(ctx context.Context, req *Request) (interface{}, error) {
	sub, err := s.deps.Contact.Submit(ctx, contact.Form{
		Name:       req.Value("name"),
		Email:      req.Value("email"),
		Phone:      req.Value("phone"),
		Company:    req.Value("company"),
		Service:    req.Value("service"),
		Budget:     req.Value("budget"),
		Timeline:   req.Value("timeline"),
		Message:    req.Value("message"),
		Newsletter: req.Bool("newsletter"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"message":   "Thank you! Your message has been sent. We'll get back to you shortly.",
		"reference": sub.Reference,
	}, nil
}
