package demo

import (
	"context"
	"fmt"

	"sitesetup/internal/logging"
)

type undoAction struct {
	name string
	fn   func(ctx context.Context) error
}

// undoStack collects compensating actions. A nil stack ignores pushes, which
// is how the default no-rollback import runs.
type undoStack struct {
	actions []undoAction
}

func (u *undoStack) push(name string, fn func(ctx context.Context) error) {
	if u == nil {
		return
	}
	u.actions = append(u.actions, undoAction{name: name, fn: fn})
}

func (u *undoStack) size() int {
	if u == nil {
		return 0
	}
	return len(u.actions)
}

// rollback runs every action in reverse order. It keeps going past failures
// and returns them all.
func (u *undoStack) rollback(ctx context.Context) []error {
	if u == nil {
		return nil
	}
	var errs []error
	for i := len(u.actions) - 1; i >= 0; i-- {
		a := u.actions[i]
		if err := a.fn(ctx); err != nil {
			logging.DemoError("Undo %s failed: %v", a.name, err)
			errs = append(errs, fmt.Errorf("undo %s: %w", a.name, err))
			continue
		}
		logging.DemoDebug("Undid %s", a.name)
	}
	u.actions = nil
	return errs
}
