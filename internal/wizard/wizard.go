// Package wizard implements the four-step setup flow: Plugins, Theme Options,
// Content Import and Complete. Progress is not persisted; a fresh Wizard
// starts at the first step and learns plugin readiness from a live status
// check. Only the setup_complete and demo_imported flags outlive a session.
package wizard

import (
	"errors"
	"fmt"
	"sync"

	"sitesetup/internal/plugins"
	"sitesetup/internal/transparency"
)

// Step is a wizard screen.
type Step int

const (
	StepPlugins Step = iota + 1
	StepThemeOptions
	StepContentImport
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepPlugins:
		return "plugins"
	case StepThemeOptions:
		return "theme_options"
	case StepContentImport:
		return "content_import"
	case StepComplete:
		return "complete"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Event is a user action on the wizard.
type Event string

const (
	EventNext            Event = "next"
	EventBack            Event = "back"
	EventSkipPlugins     Event = "skip_plugins"
	EventSkipImport      Event = "skip_import"
	EventImportSucceeded Event = "import_succeeded"
	EventRestart         Event = "restart"
)

// Events lists every event.
func Events() []Event {
	return []Event{EventNext, EventBack, EventSkipPlugins, EventSkipImport, EventImportSucceeded, EventRestart}
}

// ParseEvent maps a wire name to an Event.
func ParseEvent(s string) (Event, error) {
	for _, e := range Events() {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, s)
}

var (
	// ErrStepLocked means the move exists but its gate is closed.
	ErrStepLocked = errors.New("step locked")

	// ErrInvalidTransition means the event does not apply to the current step.
	ErrInvalidTransition = errors.New("invalid transition")
)

// TransitionError reports a rejected event. The state is unchanged.
type TransitionError struct {
	From  Step
	Event Event
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s from %s", e.Err, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// ErrorCategory implements transparency.Categorized.
func (e *TransitionError) ErrorCategory() transparency.ErrorCategory {
	return transparency.ErrorCategoryValidation
}

// State is the wizard's session state.
type State struct {
	CurrentStep          Step `json:"current_step"`
	RequiredPluginsReady bool `json:"required_plugins_ready"`
	OptionsSaved         bool `json:"options_saved"`
}

// Wizard is one session of the setup flow. It is safe for concurrent use.
type Wizard struct {
	mu    sync.Mutex
	state State
}

// New returns a wizard on the plugins step with nothing ready.
func New() *Wizard {
	return &Wizard{state: State{CurrentStep: StepPlugins}}
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetPluginReport feeds a status check into the plugins gate.
func (w *Wizard) SetPluginReport(r *plugins.Report) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.RequiredPluginsReady = r != nil && r.RequiredReady
}

// MarkOptionsSaved records a successful theme options save.
func (w *Wizard) MarkOptionsSaved() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.OptionsSaved = true
}

// CanAdvance reports whether EventNext would succeed.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := next(w.state, EventNext)
	return err == nil
}

// Apply runs ev against the current step and returns the new state.
func (w *Wizard) Apply(ev Event) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	to, err := next(w.state, ev)
	if err != nil {
		return w.state, &TransitionError{From: w.state.CurrentStep, Event: ev, Err: err}
	}
	w.state.CurrentStep = to
	return w.state, nil
}

// next is the transition table.
func next(s State, ev Event) (Step, error) {
	switch s.CurrentStep {
	case StepPlugins:
		switch ev {
		case EventNext, EventSkipPlugins:
			if !s.RequiredPluginsReady {
				return 0, ErrStepLocked
			}
			return StepThemeOptions, nil
		}

	case StepThemeOptions:
		switch ev {
		case EventNext:
			if !s.OptionsSaved {
				return 0, ErrStepLocked
			}
			return StepContentImport, nil
		case EventBack:
			return StepPlugins, nil
		}

	case StepContentImport:
		switch ev {
		case EventImportSucceeded, EventSkipImport:
			return StepComplete, nil
		case EventBack:
			return StepThemeOptions, nil
		}

	case StepComplete:
		if ev == EventRestart {
			return StepPlugins, nil
		}
	}
	return 0, ErrInvalidTransition
}
