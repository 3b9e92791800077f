package plugins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/transparency"

	"golang.org/x/sync/errgroup"
)

// BulkOptions bounds a bulk run.
type BulkOptions struct {
	Concurrency int           // tasks in flight at once; <1 means 1
	Timeout     time.Duration // per plugin; 0 means no per-task deadline
}

// ItemResult is the settled outcome of one plugin in a bulk run.
type ItemResult struct {
	Key      string                     `json:"key"`
	Outcome  Outcome                    `json:"outcome"`
	Message  string                     `json:"message,omitempty"`
	Category transparency.ErrorCategory `json:"-"`
	Err      error                      `json:"-"`
}

// BulkResult holds every item, in request order, and one status report taken
// after all items settled.
type BulkResult struct {
	Items  []ItemResult `json:"items"`
	Report *Report      `json:"report"`
}

// Failed counts items that did not end up active.
func (r *BulkResult) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// InstallRequired installs and activates every required catalog plugin.
func (in *Installer) InstallRequired(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	return in.InstallMany(ctx, in.catalog.RequiredKeys(), opts)
}

// InstallMany runs one install-then-activate task per key with at most
// opts.Concurrency in flight. Each task has its own deadline and a failure
// never cancels the others. Statuses are re-read exactly once, after every
// task has settled.
//
// The returned error is non-nil only when the caller lacks a capability
// (nothing ran) or the final status read failed (Items is still populated).
func (in *Installer) InstallMany(ctx context.Context, keys []string, opts BulkOptions) (*BulkResult, error) {
	for _, c := range []platform.Capability{platform.CapInstallPlugins, platform.CapActivatePlugins} {
		if err := platform.Require(ctx, in.host, c); err != nil {
			return nil, &InstallError{Key: "*", Category: categorize(err), Err: err}
		}
	}

	keys = dedupe(keys)
	start := time.Now()
	logging.Plugins("Bulk install of %d plugins (concurrency=%d, timeout=%v)", len(keys), opts.Concurrency, opts.Timeout)

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]ItemResult, len(keys))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, key := range keys {
		g.Go(func() error {
			taskCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			results[i] = in.installAndActivate(taskCtx, key)
			// Failures are recorded per item and must not cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{Items: results}
	failed := result.Failed()
	logging.Audit().BulkInstall(len(keys), failed, time.Since(start).Milliseconds())
	logging.Plugins("Bulk install settled: %d ok, %d failed", len(keys)-failed, failed)

	report, err := in.checker.Check(ctx)
	if err != nil {
		return result, fmt.Errorf("bulk install settled but status refresh failed: %w", err)
	}
	result.Report = report
	return result, nil
}

func (in *Installer) installAndActivate(ctx context.Context, key string) ItemResult {
	item := ItemResult{Key: key}
	failWith := func(err error) ItemResult {
		item.Outcome = OutcomeFailed
		item.Err = err
		item.Category = transparency.ClassifyError(err).Category
		if errors.Is(err, context.DeadlineExceeded) {
			item.Category = transparency.ErrorCategoryTransport
		}
		item.Message = err.Error()
		return item
	}

	d, ok := in.catalog.Lookup(key)
	if !ok {
		return failWith(&InstallError{Key: key, Category: transparency.ErrorCategoryResolution, Err: fmt.Errorf("unknown plugin %q", key)})
	}

	if _, err := in.Install(ctx, key); err != nil {
		return failWith(err)
	}
	outcome, err := in.Activate(ctx, d.FileIdentifier)
	if err != nil {
		return failWith(err)
	}
	item.Outcome = outcome
	item.Message = fmt.Sprintf("%s is active", d.DisplayName)
	return item
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
