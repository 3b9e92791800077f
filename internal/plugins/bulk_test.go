package plugins

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sitesetup/internal/platform"
	"sitesetup/internal/platform/platformtest"
	"sitesetup/internal/transparency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallRequiredActivatesAll(t *testing.T) {
	fake := newFakeWithDirectory()
	fake.SetPlugin(platform.InstalledPlugin{File: "b/b.php", Version: "1.0"}) // installed, inactive
	in := NewInstaller(fake, testCatalog())

	res, err := in.InstallRequired(platformtest.Admin(context.Background()), BulkOptions{Concurrency: 2, Timeout: time.Second})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "a", res.Items[0].Key)
	assert.Equal(t, OutcomeActivated, res.Items[0].Outcome)
	assert.Equal(t, "b", res.Items[1].Key)
	assert.Equal(t, OutcomeActivated, res.Items[1].Outcome)
	assert.Equal(t, 0, res.Failed())

	require.NotNil(t, res.Report)
	assert.True(t, res.Report.RequiredReady)
	assert.False(t, res.Report.Statuses["c"].Installed, "optional plugins are untouched")
	assert.Equal(t, 1, fake.Calls("InstallPlugin"), "b was already installed")
}

func TestInstallManyFailureDoesNotCancelSiblings(t *testing.T) {
	fake := newFakeWithDirectory()
	fake.Fail("InstallPlugin:a", errors.New("connection refused"))
	in := NewInstaller(fake, testCatalog())

	res, err := in.InstallMany(platformtest.Admin(context.Background()), []string{"a", "b", "c"}, BulkOptions{Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Items[0].Outcome)
	assert.Equal(t, transparency.ErrorCategoryTransport, res.Items[0].Category)
	assert.NotEmpty(t, res.Items[0].Message)
	assert.Equal(t, OutcomeActivated, res.Items[1].Outcome)
	assert.Equal(t, OutcomeActivated, res.Items[2].Outcome)
	assert.Equal(t, 1, res.Failed())

	// The single refresh reflects every settled task, including the failure.
	assert.False(t, res.Report.Statuses["a"].Installed)
	assert.True(t, res.Report.Statuses["b"].Active)
	assert.True(t, res.Report.Statuses["c"].Active)
	assert.False(t, res.Report.RequiredReady)
}

func TestInstallManyRespectsConcurrency(t *testing.T) {
	fake := newFakeWithDirectory()
	for _, k := range []string{"d", "e", "f"} {
		fake.Directory[k] = platform.InstalledPlugin{File: k + "/" + k + ".php", Version: "1.0"}
	}
	catalog := append(testCatalog(),
		Descriptor{Key: "d", FileIdentifier: "d/d.php"},
		Descriptor{Key: "e", FileIdentifier: "e/e.php"},
		Descriptor{Key: "f", FileIdentifier: "f/f.php"},
	)

	var mu sync.Mutex
	started := 0
	fake.OnInstall = func(ctx context.Context, slug string) error {
		mu.Lock()
		started++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	in := NewInstaller(fake, catalog)
	res, err := in.InstallMany(platformtest.Admin(context.Background()), []string{"a", "b", "c", "d", "e", "f"}, BulkOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed())
	assert.Equal(t, 6, started)
	assert.LessOrEqual(t, fake.MaxConcurrent, 2)
}

func TestInstallManyPerTaskTimeout(t *testing.T) {
	fake := newFakeWithDirectory()
	fake.OnInstall = func(ctx context.Context, slug string) error {
		if slug != "a" {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}
	in := NewInstaller(fake, testCatalog())

	res, err := in.InstallMany(platformtest.Admin(context.Background()), []string{"a", "b"}, BulkOptions{Concurrency: 2, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Items[0].Outcome)
	assert.ErrorIs(t, res.Items[0].Err, context.DeadlineExceeded)
	assert.Equal(t, transparency.ErrorCategoryTransport, res.Items[0].Category)
	assert.Equal(t, OutcomeActivated, res.Items[1].Outcome)
}

func TestInstallManyUnknownAndDuplicateKeys(t *testing.T) {
	fake := newFakeWithDirectory()
	in := NewInstaller(fake, testCatalog())

	res, err := in.InstallMany(platformtest.Admin(context.Background()), []string{"c", "nope", "c", ""}, BulkOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, OutcomeActivated, res.Items[0].Outcome)
	assert.Equal(t, OutcomeFailed, res.Items[1].Outcome)
	assert.Equal(t, transparency.ErrorCategoryResolution, res.Items[1].Category)
}

func TestInstallManyRequiresCapabilities(t *testing.T) {
	fake := newFakeWithDirectory()
	in := NewInstaller(fake, testCatalog())

	res, err := in.InstallRequired(platformtest.Editor(context.Background()), BulkOptions{Concurrency: 2})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, platform.ErrForbidden)
	assert.Equal(t, 0, fake.Calls("InstallPlugin"))
}

func TestInstallManyRefreshFailure(t *testing.T) {
	fake := newFakeWithDirectory()
	in := NewInstaller(fake, testCatalog())
	ctx := platformtest.Admin(context.Background())

	// Let the tasks run, then break the registry for the final refresh.
	fake.OnInstall = func(ctx context.Context, slug string) error { return nil }
	res, err := in.InstallMany(ctx, []string{"c"}, BulkOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php", Active: true})
	fake.Fail("InstalledPlugins", errors.New("database is locked"))
	res, err = in.InstallMany(ctx, []string{"a"}, BulkOptions{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Report)
	assert.Equal(t, OutcomeFailed, res.Items[0].Outcome)
}
