package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
)

// Directory is a client for a WordPress.org style plugin directory API.
type Directory struct {
	baseURL string
	client  *http.Client
	limit   int64
}

// NewDirectory creates a directory client. limit caps package downloads in bytes.
func NewDirectory(baseURL string, timeout time.Duration, limit int64) *Directory {
	return &Directory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limit:   limit,
	}
}

// extractRatio bounds how far a package may expand relative to the download cap.
const extractRatio = 4

// ExtractLimit is the total size a downloaded package may expand to.
func (d *Directory) ExtractLimit() int64 {
	if d.limit <= 0 {
		return 0
	}
	return d.limit * extractRatio
}

type pluginInfoResponse struct {
	platform.PluginInfo
	Error string `json:"error"`
}

// Lookup fetches plugin metadata. Unknown slugs return platform.ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, slug string) (*platform.PluginInfo, error) {
	q := url.Values{}
	q.Set("action", "plugin_information")
	q.Set("request[slug]", slug)
	endpoint := d.baseURL + "/plugins/info/1.2/?" + q.Encode()

	logging.PluginsDebug("Directory lookup: %s", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plugin directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("plugin %q: %w", slug, platform.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plugin directory returned status %d", resp.StatusCode)
	}

	var body pluginInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	if body.Error != "" || body.Slug == "" {
		return nil, fmt.Errorf("plugin %q: %w", slug, platform.ErrNotFound)
	}
	if body.DownloadURL == "" {
		return nil, fmt.Errorf("plugin %q has no download link", slug)
	}
	return &body.PluginInfo, nil
}

// Download fetches a package, refusing bodies larger than the configured limit.
func (d *Directory) Download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("package download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("package download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.limit+1))
	if err != nil {
		return nil, fmt.Errorf("package download failed: %w", err)
	}
	if int64(len(data)) > d.limit {
		return nil, fmt.Errorf("package exceeds download limit of %d bytes", d.limit)
	}
	logging.PluginsDebug("Downloaded %d bytes from %s", len(data), link)
	return data, nil
}
