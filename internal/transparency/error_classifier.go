package transparency

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"sitesetup/internal/platform"
)

// ErrorCategory classifies errors for user guidance.
type ErrorCategory int

const (
	// ErrorCategoryPermission indicates a missing host capability.
	ErrorCategoryPermission ErrorCategory = iota

	// ErrorCategoryResolution indicates an identifier the host or directory does not know.
	ErrorCategoryResolution

	// ErrorCategoryTransport indicates a network, timeout or runtime failure.
	ErrorCategoryTransport

	// ErrorCategoryValidation indicates rejected user input.
	ErrorCategoryValidation

	// ErrorCategoryUnknown is the fallback for unclassified errors.
	ErrorCategoryUnknown
)

// Prefix returns the display prefix for this error category.
func (c ErrorCategory) Prefix() string {
	prefixes := []string{
		"[PERMISSION]",
		"[NOT FOUND]",
		"[TRANSPORT]",
		"[INVALID]",
		"[ERROR]",
	}
	if int(c) >= 0 && int(c) < len(prefixes) {
		return prefixes[c]
	}
	return "[ERROR]"
}

// String returns the category name.
func (c ErrorCategory) String() string {
	names := []string{
		"permission",
		"resolution",
		"transport",
		"validation",
		"unknown",
	}
	if int(c) >= 0 && int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}

// Fatal reports whether the request should be aborted rather than offered a retry.
func (c ErrorCategory) Fatal() bool {
	return c == ErrorCategoryPermission
}

// Retryable reports whether a manual retry may succeed without changing input.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case ErrorCategoryResolution, ErrorCategoryTransport, ErrorCategoryUnknown:
		return true
	}
	return false
}

// Categorized is implemented by errors that already know their category.
type Categorized interface {
	error
	ErrorCategory() ErrorCategory
}

// ClassifiedError wraps an error with classification and remediation.
type ClassifiedError struct {
	Original    error
	Category    ErrorCategory
	Summary     string
	Remediation []string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return ce.Format()
}

// Unwrap returns the original error for errors.Is/As compatibility.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Original
}

// Format returns a multi-line message with remediation, for the CLI.
func (ce *ClassifiedError) Format() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s\n\n", ce.Category.Prefix(), ce.Summary))
	sb.WriteString(fmt.Sprintf("Details: %s\n", ce.Original.Error()))

	if len(ce.Remediation) > 0 {
		sb.WriteString("\nSuggested fixes:\n")
		for _, r := range ce.Remediation {
			sb.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}

	return sb.String()
}

// UserMessage is the single line shown in a JSON error envelope. Transport
// and unknown failures get a generic message; the other categories carry the
// original text, which components write for end users.
func (ce *ClassifiedError) UserMessage() string {
	switch ce.Category {
	case ErrorCategoryTransport, ErrorCategoryUnknown:
		return ce.Summary + ". Please try again."
	default:
		return ce.Original.Error()
	}
}

// ClassifyError analyzes an error and returns a classified version.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var already *ClassifiedError
	if errors.As(err, &already) {
		return already
	}

	cat := categoryOf(err)
	return &ClassifiedError{
		Original:    err,
		Category:    cat,
		Summary:     summaries[cat],
		Remediation: GetRecoveryGuide(cat),
	}
}

var summaries = map[ErrorCategory]string{
	ErrorCategoryPermission: "You do not have permission to do this",
	ErrorCategoryResolution: "The requested item could not be found",
	ErrorCategoryTransport:  "The operation could not be completed",
	ErrorCategoryValidation: "Some fields are missing or invalid",
	ErrorCategoryUnknown:    "An unexpected error occurred",
}

func categoryOf(err error) ErrorCategory {
	var c Categorized
	if errors.As(err, &c) {
		return c.ErrorCategory()
	}

	switch {
	case errors.Is(err, platform.ErrForbidden):
		return ErrorCategoryPermission
	case errors.Is(err, platform.ErrNotFound):
		return ErrorCategoryResolution
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTransport
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorCategoryTransport
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "permission", "forbidden", "not allowed", "capability"):
		return ErrorCategoryPermission
	case containsAny(errStr, "not found", "unknown plugin", "no such plugin"):
		return ErrorCategoryResolution
	case containsAny(errStr, "connection", "network", "dial", "dns", "unreachable",
		"timeout", "timed out", "deadline", "status 5", "eof"):
		return ErrorCategoryTransport
	case containsAny(errStr, "required", "invalid", "malformed"):
		return ErrorCategoryValidation
	}
	return ErrorCategoryUnknown
}

// containsAny returns true if s contains any of the patterns.
func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// GetRecoveryGuide returns remediation steps for an error category.
func GetRecoveryGuide(category ErrorCategory) []string {
	guides := map[ErrorCategory][]string{
		ErrorCategoryPermission: {
			"Sign in as an administrator",
			"Check the token's role in auth.users",
		},
		ErrorCategoryResolution: {
			"Check the plugin slug or file identifier",
			"Run `sitesetup plugins status` to list known plugins",
		},
		ErrorCategoryTransport: {
			"Check connectivity to the plugin directory",
			"Try again in a few moments",
			"Raise platform.http_timeout or bulk.timeout",
		},
		ErrorCategoryValidation: {
			"Fill in the required fields and resubmit",
		},
	}

	if steps, ok := guides[category]; ok {
		return steps
	}
	return []string{"Check the logs under <data_dir>/logs for details"}
}
