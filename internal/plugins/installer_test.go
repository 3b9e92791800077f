package plugins

import (
	"context"
	"errors"
	"testing"

	"sitesetup/internal/platform"
	"sitesetup/internal/platform/platformtest"
	"sitesetup/internal/transparency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeWithDirectory() *platformtest.Fake {
	fake := platformtest.New()
	for _, d := range testCatalog() {
		fake.Directory[d.Key] = platform.InstalledPlugin{File: d.FileIdentifier, Name: d.DisplayName, Version: "2.0"}
	}
	return fake
}

func TestInstallDoesNotActivate(t *testing.T) {
	fake := newFakeWithDirectory()
	in := NewInstaller(fake, testCatalog())
	ctx := platformtest.Admin(context.Background())

	outcome, err := in.Install(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)

	report, err := in.Checker().Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Installed: true, Version: "2.0"}, report.Statuses["a"])

	outcome, err = in.Install(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInstalled, outcome)
	assert.Equal(t, 1, fake.Calls("InstallPlugin"))
}

func TestInstallErrors(t *testing.T) {
	tests := []struct {
		name  string
		ctx   func() context.Context
		key   string
		setup func(*platformtest.Fake)
		want  transparency.ErrorCategory
	}{
		{
			name: "no permission",
			ctx:  func() context.Context { return platformtest.Editor(context.Background()) },
			key:  "a",
			want: transparency.ErrorCategoryPermission,
		},
		{
			name: "anonymous",
			ctx:  context.Background,
			key:  "a",
			want: transparency.ErrorCategoryPermission,
		},
		{
			name: "not in catalog",
			ctx:  func() context.Context { return platformtest.Admin(context.Background()) },
			key:  "hello-dolly",
			want: transparency.ErrorCategoryResolution,
		},
		{
			name:  "not in directory",
			ctx:   func() context.Context { return platformtest.Admin(context.Background()) },
			key:   "b",
			setup: func(f *platformtest.Fake) { delete(f.Directory, "b") },
			want:  transparency.ErrorCategoryResolution,
		},
		{
			name:  "download fails",
			ctx:   func() context.Context { return platformtest.Admin(context.Background()) },
			key:   "a",
			setup: func(f *platformtest.Fake) { f.Fail("InstallPlugin:a", errors.New("connection reset by peer")) },
			want:  transparency.ErrorCategoryTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeWithDirectory()
			if tt.setup != nil {
				tt.setup(fake)
			}
			in := NewInstaller(fake, testCatalog())

			outcome, err := in.Install(tt.ctx(), tt.key)
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			var ie *InstallError
			require.True(t, errors.As(err, &ie), "want *InstallError, got %T", err)
			assert.Equal(t, tt.want, ie.Category)
			assert.Equal(t, tt.want, transparency.ClassifyError(err).Category)

			installed, _ := fake.InstalledPlugins(context.Background())
			assert.Empty(t, installed, "failed install must leave the registry untouched")
		})
	}
}

func TestActivate(t *testing.T) {
	fake := newFakeWithDirectory()
	in := NewInstaller(fake, testCatalog())
	ctx := platformtest.Admin(context.Background())

	_, err := in.Activate(ctx, "a/a.php")
	var ae *ActivationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, transparency.ErrorCategoryResolution, ae.Category)

	fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php"})
	outcome, err := in.Activate(ctx, "a/a.php")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome)

	outcome, err = in.Activate(ctx, "a/a.php")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyActive, outcome)

	_, err = in.Activate(platformtest.Editor(context.Background()), "a/a.php")
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, transparency.ErrorCategoryPermission, ae.Category)
	assert.ErrorIs(t, err, platform.ErrForbidden)
}

// Required = [A inactive, B active]; activating A makes the set ready.
func TestActivateScenario(t *testing.T) {
	fake := newFakeWithDirectory()
	fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php", Version: "2.0"})
	fake.SetPlugin(platform.InstalledPlugin{File: "b/b.php", Version: "1.0", Active: true})
	in := NewInstaller(fake, testCatalog())
	ctx := platformtest.Admin(context.Background())

	report, err := in.Checker().Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.RequiredReady)

	_, err = in.Activate(ctx, "a/a.php")
	require.NoError(t, err)

	report, err = in.Checker().Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.RequiredReady)
}
