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

func TestApplyDefaultsOnlyFillsUnset(t *testing.T) {
	fake := platformtest.New()
	c := NewCustomizer(fake, nil)
	ctx := platformtest.Admin(context.Background())

	require.NoError(t, fake.SetThemeMod(ctx, "hero_title", "Custom title"))

	applied, err := c.ApplyDefaults(ctx)
	require.NoError(t, err)
	assert.NotContains(t, applied, "hero_title")
	assert.Len(t, applied, len(Settings())-1)

	mods, _ := fake.ThemeMods(ctx)
	assert.Equal(t, "Custom title", mods["hero_title"])
	assert.Equal(t, DefaultPrimaryColor, mods[ModPrimaryColor])

	applied, err = c.ApplyDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied, "second activation changes nothing")
}

func TestCustomizerSetSanitizes(t *testing.T) {
	fake := platformtest.New()
	c := NewCustomizer(fake, nil)
	ctx := platformtest.Admin(context.Background())

	tests := []struct {
		id, in, want string
	}{
		{"hero_title", "  <b>Hello</b>   world ", "Hello world"},
		{"contact_email", "sales@example.com", "sales@example.com"},
		{"contact_email", "not-an-email", "hello@example.com"},
		{"contact_email", "Sales <sales@example.com>", "hello@example.com"},
		{"contact_phone", "+1 (555) 777-1234 ext<script>", "+1 (555) 777-1234"},
		{"primary_color", "#FFAA00", "#ffaa00"},
		{"primary_color", "orange", DefaultPrimaryColor},
		{"social_linkedin", "https://linkedin.com/company/acme", "https://linkedin.com/company/acme"},
		{"social_linkedin", "javascript:void(0)", ""},
		{"hero_cta_url", "/services", "/services"},
		{"hero_cta_url", "//evil.example", "/contact"},
		{"container_width", "1199", "1200"},
	}
	for _, tt := range tests {
		got, err := c.Set(ctx, tt.id, tt.in)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, got.Value, "Set(%s, %q)", tt.id, tt.in)
		assert.False(t, got.Mirrored)
	}

	vals, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1200", vals["container_width"])
	assert.Equal(t, "All rights reserved.", vals["footer_text"], "unset settings report defaults")
}

func TestCustomizerSetErrors(t *testing.T) {
	fake := platformtest.New()
	c := NewCustomizer(fake, nil)

	_, err := c.Set(platformtest.Admin(context.Background()), "nope", "x")
	assert.True(t, errors.Is(err, ErrUnknownSetting))

	_, err = c.Set(platformtest.Editor(context.Background()), "hero_title", "x")
	assert.ErrorIs(t, err, platform.ErrForbidden)

	_, err = c.ApplyDefaults(platformtest.Editor(context.Background()))
	assert.ErrorIs(t, err, platform.ErrForbidden)
}

func TestSettingsHaveUniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Settings() {
		assert.False(t, seen[s.ID], "duplicate setting %s", s.ID)
		seen[s.ID] = true
		_, ok := LookupSetting(s.ID)
		assert.True(t, ok)
	}
}

func TestCustomizerWidthMirrorsPageBuilder(t *testing.T) {
	fake := platformtest.New()
	fake.SetPlugin(platform.InstalledPlugin{File: builderFile, Name: "Elementor", Active: true})
	c := NewCustomizer(fake, NewWriter(fake, builderFile))
	ctx := platformtest.Admin(context.Background())

	res, err := c.Set(ctx, ModContainerWidth, "100%")
	require.NoError(t, err)
	assert.True(t, res.Mirrored)
	v, ok, err := fake.GetOption(ctx, PageBuilderWidthOption)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "100%", v)

	// other settings never touch the page builder
	res, err = c.Set(ctx, "footer_text", "Acme")
	require.NoError(t, err)
	assert.False(t, res.Mirrored)

	fake.Fail("SetOption:"+PageBuilderWidthOption, errors.New("disk full"))
	res, err = c.Set(ctx, ModContainerWidth, "1140")
	require.NoError(t, err, "a failed mirror does not fail the write")
	assert.False(t, res.Mirrored)
	assert.Contains(t, res.Warning, "disk full")
	mods, err := fake.ThemeMods(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1140", mods[ModContainerWidth])
}
