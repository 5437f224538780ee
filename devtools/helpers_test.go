package devtools

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

// recordingServer is an httptest server that remembers the request URI of
// every request it handled.
type recordingServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

func (rs *recordingServer) record(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.URL.RequestURI())
		rs.mu.Unlock()
		h.ServeHTTP(w, r)
	})
}

func (rs *recordingServer) Requests() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.requests...)
}

// newBrowser starts a plain HTTP server standing in for the browser's remote
// debugging endpoint.
func newBrowser(t *testing.T, h http.Handler) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(rs.record(h))
	t.Cleanup(rs.Close)
	return rs
}

// newSchemaHost starts a TLS server standing in for both schema hosts.
func newSchemaHost(t *testing.T, h http.Handler) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewTLSServer(rs.record(h))
	t.Cleanup(rs.Close)
	return rs
}

// versionHandler serves /json/version with the given WebKit-Version.
func versionHandler(webKitVersion string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Browser": "Chrome/60.0.3112.78",
			"Protocol-Version": "1.2",
			"User-Agent": "Mozilla/5.0",
			"V8-Version": "6.0.286.44",
			"WebKit-Version": ` + strconv.Quote(webKitVersion) + `
		}`))
	})
	return mux
}

// browserConfig returns a config pointing to the given browser server.
func browserConfig(t *testing.T, browser *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(browser.URL)
	require.NoError(t, err)
	port, err := strconv.ParseInt(u.Port(), 10, 64)
	require.NoError(t, err)
	return Config{
		Host: null.StringFrom(u.Hostname()),
		Port: null.IntFrom(port),
	}
}

// newTestClient returns a client for browser whose schema hosts are both
// schemaHost. schemaHost may be nil.
func newTestClient(t *testing.T, browser, schemaHost *recordingServer, opts ...Option) *Client {
	t.Helper()
	conf := browserConfig(t, browser.Server)
	httpClient := http.DefaultClient
	if schemaHost != nil {
		conf.LegacySchemaHost = null.StringFrom(schemaHost.URL)
		conf.ModernSchemaHost = null.StringFrom(schemaHost.URL)
		httpClient = schemaHost.Client()
	}
	c, err := New(conf, append([]Option{WithHTTPClient(httpClient)}, opts...)...)
	require.NoError(t, err)
	return c
}

// unreachableConfig returns a config pointing to a port nothing listens on.
func unreachableConfig(t *testing.T) Config {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	conf := browserConfig(t, srv)
	srv.Close()
	return conf
}
