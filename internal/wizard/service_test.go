package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sitesetup/internal/platform"
	"sitesetup/internal/platform/platformtest"
	"sitesetup/internal/plugins"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// abCatalog has two required plugins, A and B.
func abCatalog() plugins.Catalog {
	return plugins.Catalog{
		{Key: "a", DisplayName: "A", FileIdentifier: "a/a.php", Required: true},
		{Key: "b", DisplayName: "B", FileIdentifier: "b/b.php", Required: true},
	}
}

func TestScenarioActivateThenAdvance(t *testing.T) {
	fake := platformtest.New()
	fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php"})
	fake.SetPlugin(platform.InstalledPlugin{File: "b/b.php", Active: true})

	installer := plugins.NewInstaller(fake, abCatalog())
	svc := NewService(fake, installer.Checker())
	ctx := platformtest.Admin(context.Background())

	w, report, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, report.RequiredReady)
	_, err = w.Apply(EventNext)
	require.ErrorIs(t, err, ErrStepLocked)

	_, err = installer.Activate(ctx, "a/a.php")
	require.NoError(t, err)

	report, err = svc.Refresh(ctx, w)
	require.NoError(t, err)
	assert.True(t, report.RequiredReady)

	st, err := w.Apply(EventNext)
	require.NoError(t, err)
	assert.Equal(t, StepThemeOptions, st.CurrentStep)
}

func TestDeactivationClosesGate(t *testing.T) {
	fake := platformtest.New()
	fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php", Active: true})
	fake.SetPlugin(platform.InstalledPlugin{File: "b/b.php", Active: true})
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))
	ctx := context.Background()

	w, _, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, w.CanAdvance())

	fake.Deactivate("b/b.php")
	_, err = svc.Refresh(ctx, w)
	require.NoError(t, err)
	assert.False(t, w.CanAdvance())
}

func TestLoadStartsFresh(t *testing.T) {
	fake := platformtest.New()
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))
	ctx := platformtest.Admin(context.Background())

	w, err := svc.Session(ctx, "admin", false)
	require.NoError(t, err)
	w.MarkOptionsSaved()

	same, err := svc.Session(ctx, "admin", false)
	require.NoError(t, err)
	assert.Same(t, w, same)

	reloaded, err := svc.Session(ctx, "admin", true)
	require.NoError(t, err)
	assert.NotSame(t, w, reloaded)
	assert.Equal(t, State{CurrentStep: StepPlugins}, reloaded.State(), "a reload forgets everything but live readiness")
}

func TestLoadRegistryFailure(t *testing.T) {
	fake := platformtest.New()
	fake.Fail("InstalledPlugins", errors.New("connection refused"))
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))

	w, report, err := svc.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.False(t, w.CanAdvance())

	_, err = svc.Session(context.Background(), "admin", false)
	assert.Error(t, err)
}

func TestFinishFlags(t *testing.T) {
	fake := platformtest.New()
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))
	ctx := platformtest.Admin(context.Background())

	f, err := svc.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, Flags{}, f)

	require.NoError(t, svc.Finish(ctx, true))
	f, err = svc.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, Flags{SetupComplete: true, DemoImported: true}, f)

	// Finishing again with a skipped import keeps demo_imported.
	require.NoError(t, svc.Finish(ctx, false))
	f, _ = svc.Flags(ctx)
	assert.True(t, f.DemoImported)
}

func TestFinishRequiresManageOptions(t *testing.T) {
	fake := platformtest.New()
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))

	err := svc.Finish(platformtest.Editor(context.Background()), false)
	assert.ErrorIs(t, err, platform.ErrForbidden)
	f, _ := svc.Flags(context.Background())
	assert.False(t, f.SetupComplete)
}

func TestConcurrentFirstSessionsShareOneWizard(t *testing.T) {
	fake := platformtest.New()
	svc := NewService(fake, plugins.NewChecker(fake, abCatalog()))
	ctx := platformtest.Admin(context.Background())

	const n = 8
	got := make([]*Wizard, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := svc.Session(ctx, "admin", false)
			if err == nil {
				got[i] = w
			}
		}(i)
	}
	wg.Wait()

	for i := range got {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i], "session %d", i)
	}

	got[3].MarkOptionsSaved()
	w, err := svc.Session(ctx, "admin", false)
	require.NoError(t, err)
	assert.True(t, w.State().OptionsSaved)

	fresh, err := svc.Session(ctx, "admin", true)
	require.NoError(t, err)
	assert.NotSame(t, w, fresh)
	assert.False(t, fresh.State().OptionsSaved)
}
