package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Target is a debuggable entity (page, worker, ...) exposed by the browser.
// Only ID is interpreted by this package.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type,omitempty"`
	Title                string `json:"title,omitempty"`
	URL                  string `json:"url,omitempty"`
	Description          string `json:"description,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
	FaviconURL           string `json:"faviconUrl,omitempty"`
	ParentID             string `json:"parentId,omitempty"`
}

// VersionInfo is the version metadata the browser reports about itself.
type VersionInfo map[string]string

// Browser returns the browser name and version, e.g. "Chrome/60.0.3112.78".
func (v VersionInfo) Browser() string { return v["Browser"] }

// ProtocolVersion returns the version of the remote debugging protocol.
func (v VersionInfo) ProtocolVersion() string { return v["Protocol-Version"] }

// UserAgent returns the default user agent of the browser.
func (v VersionInfo) UserAgent() string { return v["User-Agent"] }

// WebKitVersion returns the engine version string, which embeds the commit
// hash the browser was built from, e.g. "537.36 (@a1b2c3d4e5)".
func (v VersionInfo) WebKitVersion() string { return v["WebKit-Version"] }

// WebSocketDebuggerURL returns the browser-level websocket endpoint, if any.
func (v VersionInfo) WebSocketDebuggerURL() string { return v["webSocketDebuggerUrl"] }

// List returns the targets the browser currently exposes.
func (c *Client) List(ctx context.Context) ([]Target, error) {
	body, err := c.fetcher.fetch(ctx, c.baseURL+"/json/list")
	if err != nil {
		return nil, err
	}
	var targets []Target
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("parsing target list: %w", err)
	}
	return targets, nil
}

// New opens a new target. If rawURL isn't empty, the target navigates to it.
// The URL is appended to the query as it is, which is what browsers expect,
// except for "#" which is escaped so the fragment isn't cut from the request.
func (c *Client) New(ctx context.Context, rawURL string) (*Target, error) {
	endpoint := c.baseURL + "/json/new"
	if rawURL != "" {
		endpoint += "?" + strings.ReplaceAll(rawURL, "#", "%23")
	}
	body, err := c.fetcher.fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	target := &Target{}
	if err := json.Unmarshal(body, target); err != nil {
		return nil, fmt.Errorf("parsing new target: %w", err)
	}
	return target, nil
}

// Activate brings the target with the given id to the foreground.
func (c *Client) Activate(ctx context.Context, id string) error {
	_, err := c.fetcher.fetch(ctx, c.baseURL+"/json/activate/"+url.PathEscape(id))
	return err
}

// Close closes the target with the given id.
func (c *Client) Close(ctx context.Context, id string) error {
	_, err := c.fetcher.fetch(ctx, c.baseURL+"/json/close/"+url.PathEscape(id))
	return err
}

// Version returns the version metadata of the browser.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	body, err := c.fetcher.fetch(ctx, c.baseURL+"/json/version")
	if err != nil {
		return nil, err
	}
	info := VersionInfo{}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing version info: %w", err)
	}
	return info, nil
}
