package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of admin action being recorded
type AuditEventType string

const (
	// Plugin management
	AuditPluginInstall  AuditEventType = "plugin_install"
	AuditPluginActivate AuditEventType = "plugin_activate"
	AuditBulkInstall    AuditEventType = "bulk_install"

	// Site configuration
	AuditOptionsSave AuditEventType = "options_save"
	AuditDemoImport  AuditEventType = "demo_import"
	AuditWizardDone  AuditEventType = "wizard_complete"

	// Public surface
	AuditContactSubmit AuditEventType = "contact_submit"

	// Rejections
	AuditNonceReject      AuditEventType = "nonce_reject"
	AuditPermissionDenied AuditEventType = "permission_denied"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`     // Unix milliseconds
	EventType  AuditEventType         `json:"event"`  // What happened
	Category   string                 `json:"cat"`    // Log category
	RequestID  string                 `json:"req"`    // Request correlation
	User       string                 `json:"user"`   // Acting user, empty for public actions
	Target     string                 `json:"target"` // Plugin slug, option key, page slug...
	Action     string                 `json:"action"` // Ajax action name
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Line       string                 `json:"line"` // Pre-formatted grep-friendly summary
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events, optionally scoped to a request and user
type AuditLogger struct {
	requestID string
	user      string
	category  Category
}

// InitAudit opens the audit log. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	loggersMu.RLock()
	dir := logsDir
	loggersMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithRequest creates an audit logger scoped to one ajax request
func AuditWithRequest(requestID, user string, category Category) *AuditLogger {
	return &AuditLogger{
		requestID: requestID,
		user:      user,
		category:  category,
	}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}
	if event.User == "" {
		event.User = a.user
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	event.Line = formatLine(event)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// formatLine renders an event as key=value pairs for quick grepping
func formatLine(e AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ok=%v", e.EventType, e.Success)
	if e.User != "" {
		fmt.Fprintf(&b, " user=%s", quoteIfNeeded(e.User))
	}
	if e.Action != "" {
		fmt.Fprintf(&b, " action=%s", e.Action)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%s", quoteIfNeeded(e.Target))
	}
	if e.DurationMs > 0 {
		fmt.Fprintf(&b, " dur_ms=%d", e.DurationMs)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%s", quoteIfNeeded(e.Error))
	}
	return b.String()
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\n\"=") {
		return "\"" + escapeString(s) + "\""
	}
	return s
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)

	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// PluginInstall records an install attempt for one plugin
func (a *AuditLogger) PluginInstall(slug string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditPluginInstall,
		Category:   string(CategoryPlugins),
		Target:     slug,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Plugin install: %s (success=%v)", slug, success),
	})
}

// PluginActivate records an activation attempt
func (a *AuditLogger) PluginActivate(pluginFile string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditPluginActivate,
		Category:  string(CategoryPlugins),
		Target:    pluginFile,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Plugin activate: %s (success=%v)", pluginFile, success),
	})
}

// BulkInstall records the outcome of an install-many run
func (a *AuditLogger) BulkInstall(requested, failed int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditBulkInstall,
		Category:   string(CategoryPlugins),
		Success:    failed == 0,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"requested": requested, "failed": failed},
		Message:    fmt.Sprintf("Bulk install: %d requested, %d failed", requested, failed),
	})
}

// OptionsSave records a theme options write
func (a *AuditLogger) OptionsSave(keys []string, warning string) {
	a.Log(AuditEvent{
		EventType: AuditOptionsSave,
		Category:  string(CategoryTheme),
		Target:    strings.Join(keys, ","),
		Success:   true,
		Error:     warning,
		Message:   "Theme options saved",
	})
}

// DemoImport records a demo content import
func (a *AuditLogger) DemoImport(durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditDemoImport,
		Category:   string(CategoryDemo),
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Demo import (success=%v)", success),
	})
}

// WizardComplete records the setup_complete flag being set
func (a *AuditLogger) WizardComplete(imported bool) {
	a.Log(AuditEvent{
		EventType: AuditWizardDone,
		Category:  string(CategoryWizard),
		Success:   true,
		Fields:    map[string]interface{}{"demo_imported": imported},
		Message:   "Setup wizard completed",
	})
}

// ContactSubmit records a stored contact submission
func (a *AuditLogger) ContactSubmit(id int64, mailed bool) {
	a.Log(AuditEvent{
		EventType: AuditContactSubmit,
		Category:  string(CategoryContact),
		Target:    fmt.Sprintf("%d", id),
		Success:   true,
		Fields:    map[string]interface{}{"mailed": mailed},
		Message:   fmt.Sprintf("Contact submission %d stored", id),
	})
}

// NonceReject records a request with a missing or bad nonce
func (a *AuditLogger) NonceReject(action, reason string) {
	a.Log(AuditEvent{
		EventType: AuditNonceReject,
		Category:  string(CategoryHTTP),
		Action:    action,
		Success:   false,
		Error:     reason,
		Message:   fmt.Sprintf("Nonce rejected for %s", action),
	})
}

// PermissionDenied records a capability check failure
func (a *AuditLogger) PermissionDenied(action, capability string) {
	a.Log(AuditEvent{
		EventType: AuditPermissionDenied,
		Category:  string(CategoryHTTP),
		Action:    action,
		Target:    capability,
		Success:   false,
		Message:   fmt.Sprintf("Permission denied for %s (needs %s)", action, capability),
	})
}
