package ajax

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sitesetup/internal/config"
	"sitesetup/internal/contact"
	"sitesetup/internal/demo"
	"sitesetup/internal/platform"
	"sitesetup/internal/platform/platformtest"
	"sitesetup/internal/plugins"
	"sitesetup/internal/store"
	"sitesetup/internal/theme"
	"sitesetup/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken  = "admin-token"
	editorToken = "editor-token"
)

type nopMailer struct {
	mu   sync.Mutex
	sent int
}

func (m *nopMailer) Send(ctx context.Context, msg contact.Message) error {
	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
	return nil
}

type harness struct {
	server  *Server
	router  http.Handler
	fake    *platformtest.Fake
	store   *store.LocalStore
	nonces  *NonceIssuer
	mailer  *nopMailer
	metrics *Metrics
}

// abCatalog has two required plugins, A and B, and one optional plugin C.
func abCatalog() plugins.Catalog {
	return plugins.Catalog{
		{Key: "a", DisplayName: "A", FileIdentifier: "a/a.php", Required: true},
		{Key: "b", DisplayName: "B", FileIdentifier: "b/b.php", Required: true},
		{Key: "c", DisplayName: "C", FileIdentifier: "c/c.php"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "sitesetup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fake := platformtest.New()
	fake.Directory["a"] = platform.InstalledPlugin{File: "a/a.php", Name: "A", Version: "1.0.0"}
	fake.Directory["b"] = platform.InstalledPlugin{File: "b/b.php", Name: "B", Version: "1.0.0"}
	fake.Directory["c"] = platform.InstalledPlugin{File: "c/c.php", Name: "C", Version: "1.0.0"}

	installer := plugins.NewInstaller(fake, abCatalog())
	mailer := &nopMailer{}
	nonces := NewNonceIssuer([]byte("test-secret"), time.Hour)
	auth, err := NewTokenAuth([]config.UserToken{
		{Name: "admin", Token: adminToken, Role: platform.RoleAdministrator},
		{Name: "editor", Token: editorToken, Role: platform.RoleEditor},
	})
	require.NoError(t, err)
	metrics := NewMetrics()

	srv := NewServer(Deps{
		Host:      fake,
		Installer: installer,
		Writer:    theme.NewWriter(fake, "a/a.php"),
		Importer:  demo.NewImporter(fake, nil),
		Contact:   contact.NewService(st, fake, mailer, "owner@example.com"),
		Wizard:    wizard.NewService(fake, installer.Checker()),
		Bulk:      plugins.BulkOptions{Concurrency: 2, Timeout: 5 * time.Second},
		Health:    st,
	}, nonces, auth, metrics)

	return &harness{server: srv, router: srv.Router(), fake: fake, store: st, nonces: nonces, mailer: mailer, metrics: metrics}
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (r reply) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Data))
}

type failure struct {
	Message  string               `json:"message"`
	Category string               `json:"category"`
	Retry    bool                 `json:"retry"`
	Fields   []contact.FieldError `json:"fields"`
}

// post signs the request with a nonce for user and sends it with token.
func (h *harness) post(t *testing.T, token, user string, action Action, form url.Values) (int, reply) {
	t.Helper()
	nonce, _, err := h.nonces.Issue(action, user)
	require.NoError(t, err)
	if form == nil {
		form = url.Values{}
	}
	form.Set("action", action.String())
	form.Set("nonce", nonce)
	return h.raw(t, token, form)
}

func (h *harness) raw(t *testing.T, token string, form url.Values) (int, reply) {
	t.Helper()
	return h.rawContext(t, context.Background(), token, form)
}

func (h *harness) rawContext(t *testing.T, ctx context.Context, token string, form url.Values) (int, reply) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ajax/", strings.NewReader(form.Encode())).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var out reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (h *harness) admin(t *testing.T, action Action, form url.Values) (int, reply) {
	return h.post(t, adminToken, "admin", action, form)
}

func (h *harness) wizardState(t *testing.T) wizardData {
	t.Helper()
	code, r := h.admin(t, ActionWizardStatus, nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, r.Success, string(r.Data))
	var d wizardData
	r.decode(t, &d)
	return d
}

func TestScenarioActivateRequiredThenAdvance(t *testing.T) {
	h := newHarness(t)
	h.fake.SetPlugin(platform.InstalledPlugin{File: "a/a.php", Name: "A", Version: "1.0.0"})
	h.fake.SetPlugin(platform.InstalledPlugin{File: "b/b.php", Name: "B", Version: "1.0.0", Active: true})

	_, r := h.admin(t, ActionCheckPluginStatus, nil)
	require.True(t, r.Success)
	var status struct {
		Statuses      map[string]plugins.Status `json:"statuses"`
		RequiredReady bool                      `json:"required_ready"`
	}
	r.decode(t, &status)
	assert.False(t, status.RequiredReady)
	assert.True(t, status.Statuses["a"].Installed)
	assert.False(t, status.Statuses["a"].Active)

	code, r := h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, r.Success)

	_, r = h.admin(t, ActionActivatePlugin, url.Values{"plugin_file": {"a/a.php"}})
	require.True(t, r.Success, string(r.Data))

	_, r = h.admin(t, ActionCheckPluginStatus, nil)
	r.decode(t, &status)
	assert.True(t, status.RequiredReady)

	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.True(t, r.Success, string(r.Data))
	var d wizardData
	r.decode(t, &d)
	assert.Equal(t, wizard.StepThemeOptions, d.State.CurrentStep)
	assert.Equal(t, "theme_options", d.Step)
}

func TestWizardWalkthrough(t *testing.T) {
	h := newHarness(t)

	_, r := h.admin(t, ActionInstallRequiredPlugins, nil)
	require.True(t, r.Success, string(r.Data))
	d := h.wizardState(t)
	assert.True(t, d.State.RequiredPluginsReady)

	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.True(t, r.Success, string(r.Data))

	// options not saved yet
	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.False(t, r.Success)

	_, r = h.admin(t, ActionSaveThemeOptions, url.Values{
		"primary_color":   {"#FF0000"},
		"secondary_color": {"nope"},
		"container_width": {"1320"},
	})
	require.True(t, r.Success, string(r.Data))
	var saved struct {
		Options theme.Options `json:"options"`
		Coerced []string      `json:"coerced"`
	}
	r.decode(t, &saved)
	assert.Equal(t, "#ff0000", saved.Options.PrimaryColor)
	assert.Equal(t, theme.DefaultSecondaryColor, saved.Options.SecondaryColor)
	assert.Contains(t, saved.Coerced, "secondary_color")

	width, ok, err := h.fake.GetOption(context.Background(), theme.PageBuilderWidthOption)
	require.NoError(t, err)
	assert.True(t, ok, "page builder is active so the width is mirrored")
	assert.Equal(t, "1320", width)

	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.True(t, r.Success, string(r.Data))

	_, r = h.admin(t, ActionImportDemoContent, nil)
	require.True(t, r.Success, string(r.Data))

	d = h.wizardState(t)
	assert.Equal(t, wizard.StepComplete, d.State.CurrentStep)
	assert.True(t, d.Flags.SetupComplete)
	assert.True(t, d.Flags.DemoImported)
	assert.Len(t, h.fake.Posts(platform.PostTypePage), 4)
}

func TestWizardEventCannotCompleteSetup(t *testing.T) {
	h := newHarness(t)

	_, r := h.admin(t, ActionInstallRequiredPlugins, nil)
	require.True(t, r.Success, string(r.Data))
	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.True(t, r.Success, string(r.Data))
	_, r = h.admin(t, ActionSaveThemeOptions, url.Values{"container_width": {"1200"}})
	require.True(t, r.Success, string(r.Data))
	_, r = h.admin(t, ActionWizardEvent, url.Values{"event": {"next"}})
	require.True(t, r.Success, string(r.Data))
	require.Equal(t, wizard.StepContentImport, h.wizardState(t).State.CurrentStep)

	for _, ev := range []string{"import_succeeded", "skip_import"} {
		t.Run(ev, func(t *testing.T) {
			code, r := h.admin(t, ActionWizardEvent, url.Values{"event": {ev}})
			assert.Equal(t, http.StatusOK, code)
			require.False(t, r.Success)
			var f failure
			r.decode(t, &f)
			assert.Equal(t, "validation", f.Category)
			assert.Contains(t, f.Message, ev)
		})
	}

	d := h.wizardState(t)
	assert.Equal(t, wizard.StepContentImport, d.State.CurrentStep)
	assert.False(t, d.Flags.SetupComplete)
	assert.False(t, d.Flags.DemoImported)
	assert.Empty(t, h.fake.Posts(platform.PostTypePage))
}

func TestInstallFinishesAfterClientLeaves(t *testing.T) {
	h := newHarness(t)
	clientCtx, leave := context.WithCancel(context.Background())
	defer leave()

	var opErr error
	h.fake.OnInstall = func(ctx context.Context, slug string) error {
		// The browser navigates away while the package is downloading.
		leave()
		opErr = ctx.Err()
		return opErr
	}

	nonce, _, err := h.nonces.Issue(ActionInstallPlugin, "admin")
	require.NoError(t, err)
	form := url.Values{"action": {ActionInstallPlugin.String()}, "nonce": {nonce}, "slug": {"c"}}
	_, r := h.rawContext(t, clientCtx, adminToken, form)

	assert.ErrorIs(t, clientCtx.Err(), context.Canceled)
	assert.NoError(t, opErr, "the operation context must not follow the connection")
	assert.True(t, r.Success, string(r.Data))
	installed, err := h.fake.InstalledPlugins(context.Background())
	require.NoError(t, err)
	assert.Contains(t, installed, "c/c.php")
}

func TestOperationTimeoutBoundsActions(t *testing.T) {
	h := newHarness(t)
	h.server.deps.OperationTimeout = time.Minute

	var deadline time.Time
	var hasDeadline bool
	h.fake.OnInstall = func(ctx context.Context, slug string) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	}
	_, r := h.admin(t, ActionInstallPlugin, url.Values{"slug": {"c"}})
	require.True(t, r.Success, string(r.Data))
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestSkipImportCompletesWithoutDemoFlag(t *testing.T) {
	h := newHarness(t)
	_, r := h.admin(t, ActionSkipDemoImport, nil)
	require.True(t, r.Success, string(r.Data))

	d := h.wizardState(t)
	assert.True(t, d.Flags.SetupComplete)
	assert.False(t, d.Flags.DemoImported)
}

func TestInstallPluginMessages(t *testing.T) {
	h := newHarness(t)

	_, r := h.admin(t, ActionInstallPlugin, url.Values{"slug": {"c"}})
	require.True(t, r.Success, string(r.Data))
	var m map[string]string
	r.decode(t, &m)
	assert.Equal(t, "C installed successfully.", m["message"])

	_, r = h.admin(t, ActionInstallPlugin, url.Values{"slug": {"c"}})
	r.decode(t, &m)
	assert.Equal(t, "C is already installed.", m["message"])

	code, r := h.admin(t, ActionInstallPlugin, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, r.Success)
	var f failure
	r.decode(t, &f)
	assert.Equal(t, "validation", f.Category)
	assert.Contains(t, f.Message, "slug")
}

func TestInstallFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail("InstallPlugin:c", errors.New("connection reset by peer"))

	code, r := h.admin(t, ActionInstallPlugin, url.Values{"slug": {"c"}})
	assert.Equal(t, http.StatusOK, code)
	require.False(t, r.Success)
	var f failure
	r.decode(t, &f)
	assert.Equal(t, "transport", f.Category)
	assert.True(t, f.Retry)
	assert.NotContains(t, f.Message, "connection reset", "transport details stay in the logs")
}

func TestBulkPartialFailure(t *testing.T) {
	h := newHarness(t)
	form := url.Values{"slugs[]": {"c", "missing"}}

	code, r := h.admin(t, ActionInstallSelectedPlugins, form)
	assert.Equal(t, http.StatusOK, code)
	require.False(t, r.Success)

	var body struct {
		failure
		Result plugins.BulkResult `json:"result"`
	}
	r.decode(t, &body)
	require.Len(t, body.Result.Items, 2)
	assert.Equal(t, plugins.OutcomeActivated, body.Result.Items[0].Outcome)
	assert.Equal(t, plugins.OutcomeFailed, body.Result.Items[1].Outcome)
	assert.True(t, body.Retry)

	installed, err := h.fake.InstalledPlugins(context.Background())
	require.NoError(t, err)
	assert.True(t, installed["c/c.php"].Active, "the successful item is kept")
}

func TestContactForm(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		success bool
		field   string
	}{
		{"empty name", url.Values{"email": {"jane@example.com"}, "message": {"Hello"}}, false, "name"},
		{"bad email", url.Values{"name": {"Jane Doe"}, "email": {"not-an-email"}, "message": {"Hello"}}, false, "email"},
		{"valid", url.Values{"name": {"Jane Doe"}, "email": {"jane@example.com"}, "message": {"Hello"}, "newsletter": {"on"}}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			code, r := h.post(t, "", "", ActionSubmitContactForm, tt.form)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.success, r.Success, string(r.Data))

			n, err := h.store.CountSubmissions(context.Background())
			require.NoError(t, err)
			if !tt.success {
				assert.Zero(t, n)
				var f failure
				r.decode(t, &f)
				assert.Equal(t, "validation", f.Category)
				require.NotEmpty(t, f.Fields)
				assert.Equal(t, tt.field, f.Fields[0].Field)
				return
			}
			assert.Equal(t, 1, n)
			rows, err := h.store.ListSubmissions(context.Background(), "", 10)
			require.NoError(t, err)
			assert.True(t, rows[0].Newsletter)
			assert.Equal(t, 1, h.mailer.sent)
		})
	}
}

func TestPermissionDeniedIs403(t *testing.T) {
	h := newHarness(t)
	for _, a := range []Action{ActionInstallPlugin, ActionActivatePlugin, ActionSaveThemeOptions, ActionImportDemoContent, ActionWizardStatus} {
		t.Run(a.String(), func(t *testing.T) {
			code, r := h.post(t, editorToken, "editor", a, url.Values{"slug": {"c"}, "plugin_file": {"c/c.php"}})
			assert.Equal(t, http.StatusForbidden, code)
			assert.False(t, r.Success)
			var f failure
			r.decode(t, &f)
			assert.Equal(t, "permission", f.Category)
			assert.False(t, f.Retry)
		})
	}
	assert.Empty(t, h.fake.Posts(platform.PostTypePage))
}

func TestAnonymousCannotUseAdminActions(t *testing.T) {
	h := newHarness(t)
	code, r := h.post(t, "", "", ActionInstallRequiredPlugins, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, r.Success)
	assert.Zero(t, h.fake.Calls("InstallPlugin"))
}

func TestNonceRejected(t *testing.T) {
	h := newHarness(t)
	otherAction, _, err := h.nonces.Issue(ActionInstallPlugin, "admin")
	require.NoError(t, err)
	otherUser, _, err := h.nonces.Issue(ActionActivatePlugin, "editor")
	require.NoError(t, err)

	for name, nonce := range map[string]string{"missing": "", "other action": otherAction, "other user": otherUser} {
		t.Run(name, func(t *testing.T) {
			form := url.Values{"action": {"activate_plugin"}, "nonce": {nonce}, "plugin_file": {"a/a.php"}}
			code, r := h.raw(t, adminToken, form)
			assert.Equal(t, http.StatusForbidden, code)
			assert.False(t, r.Success)
		})
	}
	assert.Zero(t, h.fake.Calls("ActivatePlugin"))
}

func TestBadRequests(t *testing.T) {
	h := newHarness(t)

	code, r := h.raw(t, adminToken, url.Values{"action": {"drop_tables"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, r.Success)

	code, r = h.raw(t, "wrong-token", url.Values{"action": {"wizard_status"}})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, r.Success)

	req := httptest.NewRequest(http.MethodPost, "/ajax/", strings.NewReader(`{"action":"wizard_status"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestNonceEndpoint(t *testing.T) {
	h := newHarness(t)
	get := func(token, action string) (int, reply) {
		req := httptest.NewRequest(http.MethodGet, "/ajax/nonce?action="+action, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		var out reply
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, r := get(adminToken, "install_plugin")
	require.Equal(t, http.StatusOK, code)
	var issued struct {
		Nonce string `json:"nonce"`
	}
	r.decode(t, &issued)
	require.NoError(t, h.nonces.Verify(issued.Nonce, ActionInstallPlugin, "admin"))

	code, r = get("", "submit_contact_form")
	require.Equal(t, http.StatusOK, code)
	r.decode(t, &issued)
	require.NoError(t, h.nonces.Verify(issued.Nonce, ActionSubmitContactForm, ""))

	code, _ = get("", "install_plugin")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = get(editorToken, "save_theme_options")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = get(adminToken, "bogus")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	_, r := h.admin(t, ActionCheckPluginStatus, nil)
	require.True(t, r.Success)
	h.post(t, editorToken, "editor", ActionInstallPlugin, url.Values{"slug": {"c"}})

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `sitesetup_ajax_requests_total{action="check_plugin_status",outcome="ok"} 1`)
	assert.Contains(t, text, `sitesetup_ajax_requests_total{action="install_plugin",outcome="forbidden"} 1`)
	assert.Contains(t, text, "sitesetup_ajax_request_duration_seconds_bucket")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
