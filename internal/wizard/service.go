package wizard

import (
	"context"
	"fmt"
	"sync"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/plugins"
)

// Option names of the two flags that persist across sessions.
const (
	OptionSetupComplete = "sitesetup_setup_complete"
	OptionDemoImported  = "sitesetup_demo_imported"
)

// Flags are the persisted completion flags.
type Flags struct {
	SetupComplete bool `json:"setup_complete"`
	DemoImported  bool `json:"demo_imported"`
}

// Host is what the service needs from the platform.
type Host interface {
	platform.Authorizer
	platform.OptionStore
}

// Service creates wizard sessions and writes the completion flags.
type Service struct {
	host    Host
	checker *plugins.Checker

	mu       sync.Mutex
	sessions map[string]*Wizard
}

// NewService creates a wizard service.
func NewService(host Host, checker *plugins.Checker) *Service {
	return &Service{host: host, checker: checker, sessions: make(map[string]*Wizard)}
}

// Load starts a wizard the way a page load does: step 1, readiness from a
// live status check.
func (s *Service) Load(ctx context.Context) (*Wizard, *plugins.Report, error) {
	w := New()
	report, err := s.checker.Check(ctx)
	if err != nil {
		return w, nil, err
	}
	w.SetPluginReport(report)
	return w, report, nil
}

// Session returns the user's current wizard, loading a fresh one when the
// user has none or fresh is set.
func (s *Service) Session(ctx context.Context, user string, fresh bool) (*Wizard, error) {
	s.mu.Lock()
	w, ok := s.sessions[user]
	s.mu.Unlock()
	if ok && !fresh {
		return w, nil
	}

	w, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cur, ok := s.sessions[user]; ok && !fresh {
		// A concurrent first request stored its session while we loaded.
		s.mu.Unlock()
		return cur, nil
	}
	s.sessions[user] = w
	s.mu.Unlock()
	logging.WizardDebug("Started wizard session for %s (ready=%v)", user, w.State().RequiredPluginsReady)
	return w, nil
}

// Refresh re-runs the status check into w.
func (s *Service) Refresh(ctx context.Context, w *Wizard) (*plugins.Report, error) {
	report, err := s.checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	w.SetPluginReport(report)
	return report, nil
}

// Flags reads the persisted flags.
func (s *Service) Flags(ctx context.Context) (Flags, error) {
	var f Flags
	for _, opt := range []struct {
		name string
		dst  *bool
	}{
		{OptionSetupComplete, &f.SetupComplete},
		{OptionDemoImported, &f.DemoImported},
	} {
		v, ok, err := s.host.GetOption(ctx, opt.name)
		if err != nil {
			return Flags{}, fmt.Errorf("failed to read %s: %w", opt.name, err)
		}
		*opt.dst = ok && v == "1"
	}
	return f, nil
}

// Finish sets setup_complete, and demo_imported when imported is true. A
// skipped import never clears an earlier demo_imported.
func (s *Service) Finish(ctx context.Context, imported bool) error {
	if err := platform.Require(ctx, s.host, platform.CapManageOptions); err != nil {
		return err
	}
	if err := s.host.SetOption(ctx, OptionSetupComplete, "1"); err != nil {
		return fmt.Errorf("failed to set %s: %w", OptionSetupComplete, err)
	}
	if imported {
		if err := s.host.SetOption(ctx, OptionDemoImported, "1"); err != nil {
			return fmt.Errorf("failed to set %s: %w", OptionDemoImported, err)
		}
	}
	logging.Wizard("Setup complete (demo imported=%v)", imported)
	logging.Audit().WizardComplete(imported)
	return nil
}
