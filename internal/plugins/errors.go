package plugins

import (
	"fmt"

	"sitesetup/internal/transparency"
)

// InstallError reports a failed install.
type InstallError struct {
	Key      string
	Category transparency.ErrorCategory
	Err      error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Key, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ErrorCategory implements transparency.Categorized.
func (e *InstallError) ErrorCategory() transparency.ErrorCategory { return e.Category }

// ActivationError reports a failed activation.
type ActivationError struct {
	File     string
	Category transparency.ErrorCategory
	Err      error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate %s: %v", e.File, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// ErrorCategory implements transparency.Categorized.
func (e *ActivationError) ErrorCategory() transparency.ErrorCategory { return e.Category }

// categorize picks the category for a host error.
func categorize(err error) transparency.ErrorCategory {
	cat := transparency.ClassifyError(err).Category
	if cat == transparency.ErrorCategoryUnknown || cat == transparency.ErrorCategoryValidation {
		return transparency.ErrorCategoryTransport
	}
	return cat
}
