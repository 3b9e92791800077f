package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	require.NoError(t, m.Validate())

	slugs := make([]string, 0, len(m.Pages))
	for _, p := range m.Pages {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"home", "about", "services", "contact"}, slugs)
	assert.Len(t, m.Services, 3)
	assert.Len(t, m.Projects, 3)
	assert.Len(t, m.Testimonials, 3)
	require.Len(t, m.Menus, 2)
	assert.Equal(t, LocationPrimary, m.Menus[0].Location)
	assert.Equal(t, LocationFooter, m.Menus[1].Location)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manifest)
		want   string
	}{
		{"duplicate slug", func(m *Manifest) { m.Pages = append(m.Pages, m.Pages[0]) }, "duplicate page slug"},
		{"untitled post", func(m *Manifest) { m.Projects[0].Title = "" }, "has no title"},
		{"dangling link", func(m *Manifest) { m.Menus[1].Items[0].PageSlug = "team" }, "unknown page"},
		{"empty item", func(m *Manifest) { m.Menus[0].Items[0] = MenuItemSpec{Title: "x"} }, "links nowhere"},
		{"shared location", func(m *Manifest) { m.Menus[1].Location = LocationPrimary }, "assigned twice"},
		{"front page", func(m *Manifest) { m.FrontPage = "landing" }, "front page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultManifest()
			tt.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
