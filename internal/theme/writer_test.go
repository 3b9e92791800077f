package theme

import (
	"context"
	"errors"
	"testing"

	"sitesetup/internal/platform"
	"sitesetup/internal/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const builderFile = "elementor/elementor.php"

func TestSaveWritesModsWithoutPageBuilder(t *testing.T) {
	fake := platformtest.New()
	w := NewWriter(fake, builderFile)
	ctx := platformtest.Admin(context.Background())

	res, err := w.Save(ctx, Options{
		LogoURL:        "https://example.com/logo.svg",
		PrimaryColor:   "#112233",
		SecondaryColor: "#445566",
		ContainerWidth: Width1320,
	})
	require.NoError(t, err)
	assert.False(t, res.Mirrored)
	assert.Empty(t, res.Warning)

	mods, _ := fake.ThemeMods(ctx)
	assert.Equal(t, "#112233", mods[ModPrimaryColor])
	assert.Equal(t, "1320", mods[ModContainerWidth])

	_, ok, _ := fake.GetOption(ctx, PageBuilderWidthOption)
	assert.False(t, ok, "inactive page builder must not be touched")

	cur, err := w.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Options, cur)
}

func TestSaveMirrorsIntoActivePageBuilder(t *testing.T) {
	fake := platformtest.New()
	fake.SetPlugin(platform.InstalledPlugin{File: builderFile, Active: true})
	w := NewWriter(fake, builderFile)
	ctx := platformtest.Admin(context.Background())

	res, err := w.Save(ctx, Options{PrimaryColor: "#000", SecondaryColor: "#fff", ContainerWidth: WidthFull})
	require.NoError(t, err)
	assert.True(t, res.Mirrored)

	v, ok, _ := fake.GetOption(ctx, PageBuilderWidthOption)
	assert.True(t, ok)
	assert.Equal(t, "100%", v)
}

func TestSaveMirrorFailureIsAWarning(t *testing.T) {
	fake := platformtest.New()
	fake.SetPlugin(platform.InstalledPlugin{File: builderFile, Active: true})
	fake.Fail("SetOption:"+PageBuilderWidthOption, errors.New("disk full"))
	w := NewWriter(fake, builderFile)
	ctx := platformtest.Admin(context.Background())

	res, err := w.Save(ctx, Options{PrimaryColor: "#123456", SecondaryColor: "#654321", ContainerWidth: Width1140})
	require.NoError(t, err)
	assert.False(t, res.Mirrored)
	assert.Contains(t, res.Warning, "page builder")

	// No rollback: the theme mods stay written.
	mods, _ := fake.ThemeMods(ctx)
	assert.Equal(t, "1140", mods[ModContainerWidth])
}

func TestSaveRequiresCapability(t *testing.T) {
	fake := platformtest.New()
	w := NewWriter(fake, builderFile)

	_, err := w.Save(platformtest.Editor(context.Background()), DefaultOptions())
	assert.ErrorIs(t, err, platform.ErrForbidden)

	mods, _ := fake.ThemeMods(context.Background())
	assert.Empty(t, mods)
}

func TestSaveModWriteFailure(t *testing.T) {
	fake := platformtest.New()
	fake.Fail("SetThemeMod:"+ModSecondaryColor, errors.New("database is locked"))
	w := NewWriter(fake, builderFile)

	_, err := w.Save(platformtest.Admin(context.Background()), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ModSecondaryColor)
}
