package local

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sitesetup/internal/platform"
	"sitesetup/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const elementorMain = `<?php
/**
 * Plugin Name: Elementor
 * Description: The page builder.
 * Version: 3.21.4
 */
`

// fakeDirectory serves plugin_information and package downloads for known slugs.
func fakeDirectory(t *testing.T, packages map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/plugins/info/1.2/", func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Query().Get("request[slug]")
		if _, ok := packages[slug]; !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Plugin not found."})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"slug":          slug,
			"name":          slug,
			"version":       "1.0",
			"download_link": srv.URL + "/download/" + slug + ".zip",
		})
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		slug := filepath.Base(r.URL.Path)
		slug = slug[:len(slug)-len(".zip")]
		w.Write(packages[slug])
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHost(t *testing.T, srv *httptest.Server) (*Host, string) {
	t.Helper()
	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pluginsDir := filepath.Join(t.TempDir(), "plugins")
	var dir *Directory
	if srv != nil {
		dir = NewDirectory(srv.URL, 5*time.Second, 1<<20)
	}
	return NewHost(st, dir, pluginsDir), pluginsDir
}

func TestHostInstallAndActivate(t *testing.T) {
	pkg := buildZip(t, map[string]string{
		"elementor/elementor.php":     elementorMain,
		"elementor/includes/boot.php": "<?php // Plugin Name: not top level",
		"elementor/readme.txt":        "=== Elementor ===",
	})
	srv := fakeDirectory(t, map[string][]byte{"elementor": pkg})
	host, pluginsDir := newTestHost(t, srv)
	ctx := context.Background()

	info, err := host.PluginInfo(ctx, "elementor")
	require.NoError(t, err)
	require.NoError(t, host.InstallPlugin(ctx, info))

	_, err = os.Stat(filepath.Join(pluginsDir, "elementor", "includes", "boot.php"))
	require.NoError(t, err)

	installed, err := host.InstalledPlugins(ctx)
	require.NoError(t, err)
	p, ok := installed["elementor/elementor.php"]
	require.True(t, ok, "registry: %v", installed)
	assert.Equal(t, "Elementor", p.Name)
	assert.Equal(t, "3.21.4", p.Version)
	assert.False(t, p.Active, "install must not activate")

	require.NoError(t, host.ActivatePlugin(ctx, "elementor/elementor.php"))
	require.NoError(t, host.ActivatePlugin(ctx, "elementor/elementor.php"), "activation is idempotent")
	installed, _ = host.InstalledPlugins(ctx)
	assert.True(t, installed["elementor/elementor.php"].Active)

	assert.ErrorIs(t, host.ActivatePlugin(ctx, "ghost/ghost.php"), platform.ErrNotFound)
}

func TestDirectoryUnknownSlug(t *testing.T) {
	srv := fakeDirectory(t, map[string][]byte{})
	host, _ := newTestHost(t, srv)

	_, err := host.PluginInfo(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestDirectoryDownloadLimit(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	defer srv.Close()

	d := NewDirectory(srv.URL, time.Second, 1024)
	_, err := d.Download(context.Background(), srv.URL+"/pkg.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download limit")

	d = NewDirectory(srv.URL, time.Second, 4096)
	data, err := d.Download(context.Background(), srv.URL+"/pkg.zip")
	require.NoError(t, err)
	assert.Len(t, data, 2048)
}

func TestUnpackRejectsTraversal(t *testing.T) {
	pkg := buildZip(t, map[string]string{"../evil.php": "<?php // Plugin Name: Evil"})
	_, _, err := Unpack(context.Background(), pkg, t.TempDir(), 0)
	require.Error(t, err)
}

func TestUnpackWithoutHeader(t *testing.T) {
	pkg := buildZip(t, map[string]string{"thing/thing.php": "<?php echo 1;"})
	_, _, err := Unpack(context.Background(), pkg, t.TempDir(), 0)
	require.Error(t, err)
}

func TestUnpackExtractionBudget(t *testing.T) {
	// Zeros compress well, so the package is far smaller than its contents.
	pkg := buildZip(t, map[string]string{
		"bomb/bomb.php":  "<?php\n/* Plugin Name: Bomb */",
		"bomb/zeros.bin": strings.Repeat("\x00", 64<<10),
	})
	require.Less(t, len(pkg), 4<<10)

	dir := t.TempDir()
	_, _, err := Unpack(context.Background(), pkg, dir, 16<<10)
	require.ErrorIs(t, err, ErrPackageTooLarge)
	_, statErr := os.Stat(filepath.Join(dir, "bomb", "zeros.bin"))
	assert.True(t, os.IsNotExist(statErr), "oversized entry is removed")

	file, _, err := Unpack(context.Background(), pkg, t.TempDir(), 128<<10)
	require.NoError(t, err)
	assert.Equal(t, "bomb/bomb.php", file)
}

func TestDirectoryExtractLimit(t *testing.T) {
	assert.Equal(t, int64(4096), NewDirectory("http://x", time.Second, 1024).ExtractLimit())
	assert.Zero(t, NewDirectory("http://x", time.Second, 0).ExtractLimit())
}

func TestUnpackPrefersFolderNamedFile(t *testing.T) {
	pkg := buildZip(t, map[string]string{
		"wordpress-seo/admin.php":  "<?php\n/* Plugin Name: Admin shim */",
		"wordpress-seo/wp-seo.php": "<?php\n/* Plugin Name: Yoast SEO\n * Version: 22.0 */",
	})
	file, hdr, err := Unpack(context.Background(), pkg, t.TempDir(), 0)
	require.NoError(t, err)
	// Neither file matches "<folder>.php", so the first sorted candidate with a header wins.
	assert.Equal(t, "wordpress-seo/admin.php", file)
	assert.Equal(t, "Admin shim", hdr.Name)
}

func TestUserCanFollowsRole(t *testing.T) {
	host, _ := newTestHost(t, nil)
	admin := platform.WithUser(context.Background(), platform.User{Name: "a", Role: platform.RoleAdministrator})
	sub := platform.WithUser(context.Background(), platform.User{Name: "s", Role: platform.RoleSubscriber})

	ok, err := host.UserCan(admin, platform.CapInstallPlugins)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = host.UserCan(sub, platform.CapInstallPlugins)
	assert.False(t, ok)

	ok, _ = host.UserCan(context.Background(), platform.CapManageOptions)
	assert.False(t, ok)
}
