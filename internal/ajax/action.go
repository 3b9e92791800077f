// Package ajax serves the admin-ajax style endpoints the setup wizard and the
// public contact form post to. Every request names an Action; a dispatch
// table maps each Action to its capability and handler, and responses use the
// {"success": bool, "data": {...}} envelope.
package ajax

import (
	"errors"
	"fmt"
)

// Action is a request type accepted on POST /ajax.
type Action int

const (
	ActionCheckPluginStatus Action = iota + 1
	ActionInstallPlugin
	ActionActivatePlugin
	ActionInstallRequiredPlugins
	ActionInstallSelectedPlugins
	ActionSaveThemeOptions
	ActionImportDemoContent
	ActionSkipDemoImport
	ActionWizardStatus
	ActionWizardEvent
	ActionSubmitContactForm

	actionCount = iota
)

var actionNames = [actionCount + 1]string{
	ActionCheckPluginStatus:      "check_plugin_status",
	ActionInstallPlugin:          "install_plugin",
	ActionActivatePlugin:         "activate_plugin",
	ActionInstallRequiredPlugins: "install_required_plugins",
	ActionInstallSelectedPlugins: "install_selected_plugins",
	ActionSaveThemeOptions:       "save_theme_options",
	ActionImportDemoContent:      "import_demo_content",
	ActionSkipDemoImport:         "skip_demo_import",
	ActionWizardStatus:           "wizard_status",
	ActionWizardEvent:            "wizard_event",
	ActionSubmitContactForm:      "submit_contact_form",
}

// ErrUnknownAction is returned by ParseAction.
var ErrUnknownAction = errors.New("unknown action")

func (a Action) String() string {
	if a < 1 || int(a) > actionCount {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// AllActions lists every action in declaration order.
func AllActions() []Action {
	out := make([]Action, 0, actionCount)
	for a := Action(1); int(a) <= actionCount; a++ {
		out = append(out, a)
	}
	return out
}

// ParseAction maps the wire name to an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range AllActions() {
		if actionNames[a] == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownAction, s)
}
