package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/liuxd6825/devtools/lib/testutils"
	"github.com/liuxd6825/devtools/log"
)

const remoteSchema = `{"version":{"major":"1","minor":"2"},"domains":[{"domain":"Remote","commands":[{"name":"ping","parameters":[{"name":"n","type":"integer"}]}],"experimental":true}]}`

const (
	modernHash     = "cfede9db1d154de0468cb0538479f34c0755a0f4"
	legacyPath     = "/blink/trunk/Source/devtools/protocol.json?p="
	modernPrefix   = "/chromium/src/+/"
	modernSuffix   = "/third_party/WebKit/Source/devtools/protocol.json?format=TEXT"
	legacyRevision = "202666"
)

// schemaHandler serves remoteSchema as plain JSON from the legacy location
// and base64 encoded from the modern one.
func schemaHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/blink/trunk/Source/devtools/protocol.json":
			_, _ = w.Write([]byte(remoteSchema))
		case r.URL.Query().Get("format") == "TEXT":
			// Wrapped like gitiles does it.
			enc := base64.StdEncoding.EncodeToString([]byte(remoteSchema))
			for len(enc) > 76 {
				_, _ = w.Write([]byte(enc[:76] + "\n"))
				enc = enc[76:]
			}
			_, _ = w.Write([]byte(enc + "\n"))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestProtocolResolution(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		webKitVersion string
		schema        http.Handler
		wantRequests  []string
		fromChrome    bool
	}{
		{
			name:          "legacy",
			webKitVersion: "537.36 (@" + legacyRevision + ")",
			schema:        schemaHandler(),
			wantRequests:  []string{legacyPath + legacyRevision},
			fromChrome:    true,
		},
		{
			name:          "legacy_leading_zeros",
			webKitVersion: "537.36 (@00123)",
			schema:        schemaHandler(),
			wantRequests:  []string{legacyPath + "00123"},
			fromChrome:    true,
		},
		{
			name:          "modern",
			webKitVersion: "537.36 (@" + modernHash + ")",
			schema:        schemaHandler(),
			wantRequests:  []string{modernPrefix + modernHash + modernSuffix},
			fromChrome:    true,
		},
		{
			name:          "modern_just_over_threshold",
			webKitVersion: "537.36 (@202667)",
			schema:        schemaHandler(),
			wantRequests:  []string{modernPrefix + "202667" + modernSuffix},
			fromChrome:    true,
		},
		{
			// Not a decimal number at all, so it never compares as lower
			// than the threshold.
			name:          "digits_then_letters",
			webKitVersion: "537.36 (@202666abc)",
			schema:        schemaHandler(),
			wantRequests:  []string{modernPrefix + "202666abc" + modernSuffix},
			fromChrome:    true,
		},
		{
			name:          "no_hash",
			webKitVersion: "537.36 (branch-heads/3112@{#697})",
			schema:        schemaHandler(),
		},
		{
			name:          "empty_version",
			webKitVersion: "",
			schema:        schemaHandler(),
		},
		{
			name:          "schema_not_found",
			webKitVersion: "537.36 (@" + modernHash + ")",
			schema:        http.NotFoundHandler(),
			wantRequests:  []string{modernPrefix + modernHash + modernSuffix},
		},
		{
			name:          "legacy_not_json",
			webKitVersion: "537.36 (@" + legacyRevision + ")",
			schema: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(remoteSchema))))
			}),
			wantRequests: []string{legacyPath + legacyRevision},
		},
		{
			name:          "modern_not_base64",
			webKitVersion: "537.36 (@" + modernHash + ")",
			schema: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(remoteSchema))
			}),
			wantRequests: []string{modernPrefix + modernHash + modernSuffix},
		},
		{
			name:          "modern_base64_not_json",
			webKitVersion: "537.36 (@" + modernHash + ")",
			schema: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte("<html></html>"))))
			}),
			wantRequests: []string{modernPrefix + modernHash + modernSuffix},
		},
		{
			name:          "schema_not_an_object",
			webKitVersion: "537.36 (@" + legacyRevision + ")",
			schema: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[{"domain":"Page"}]`))
			}),
			wantRequests: []string{legacyPath + legacyRevision},
		},
		{
			name:          "schema_null",
			webKitVersion: "537.36 (@" + legacyRevision + ")",
			schema: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`null`))
			}),
			wantRequests: []string{legacyPath + legacyRevision},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			browser := newBrowser(t, versionHandler(tc.webKitVersion))
			schemaHost := newSchemaHost(t, tc.schema)
			c := newTestClient(t, browser, schemaHost)

			p := c.Protocol(context.Background())
			require.NotNil(t, p)
			assert.Equal(t, []string{"/json/version"}, browser.Requests())
			assert.Equal(t, tc.wantRequests, schemaHost.Requests())
			assert.Equal(t, tc.fromChrome, p.FromChrome)

			if !tc.fromChrome {
				assert.Equal(t, FallbackProtocol(), p)
				return
			}
			descriptor, err := json.Marshal(p.Descriptor)
			require.NoError(t, err)
			assert.JSONEq(t, remoteSchema, string(descriptor))
		})
	}
}

func TestProtocolBrowserUnreachable(t *testing.T) {
	t.Parallel()

	c, err := New(unreachableConfig(t))
	require.NoError(t, err)

	p := c.Protocol(context.Background())
	assert.False(t, p.FromChrome)
	assert.Equal(t, FallbackProtocol(), p)
}

func TestProtocolBrowserErrors(t *testing.T) {
	t.Parallel()

	handlers := map[string]http.Handler{
		"status": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}),
		"malformed_json": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"WebKit-Version":`))
		}),
		"non_string_values": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"WebKit-Version":537}`))
		}),
	}
	for name, h := range handlers {
		name, h := name, h
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			browser := newBrowser(t, h)
			schemaHost := newSchemaHost(t, schemaHandler())
			c := newTestClient(t, browser, schemaHost)

			assert.Equal(t, FallbackProtocol(), c.Protocol(context.Background()))
			assert.Empty(t, schemaHost.Requests())
		})
	}
}

func TestProtocolCanceledContext(t *testing.T) {
	t.Parallel()

	browser := newBrowser(t, versionHandler("537.36 (@"+modernHash+")"))
	schemaHost := newSchemaHost(t, schemaHandler())
	c := newTestClient(t, browser, schemaHost)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, FallbackProtocol(), c.Protocol(ctx))
}

func TestProtocolIsNotShared(t *testing.T) {
	t.Parallel()

	browser := newBrowser(t, versionHandler("537.36 (@"+modernHash+")"))
	schemaHost := newSchemaHost(t, schemaHandler())
	c := newTestClient(t, browser, schemaHost)

	first := c.Protocol(context.Background())
	first.Descriptor["domains"] = nil
	second := c.Protocol(context.Background())
	assert.NotNil(t, second.Descriptor["domains"])
	assert.Len(t, schemaHost.Requests(), 2)

	fallback := FallbackProtocol()
	fallback.Descriptor["version"] = "changed"
	assert.NotEqual(t, "changed", FallbackProtocol().Descriptor["version"])
}

func TestFallbackProtocol(t *testing.T) {
	t.Parallel()

	p := FallbackProtocol()
	assert.False(t, p.FromChrome)
	assert.JSONEq(t, string(fallbackSchema), mustJSON(t, p.Descriptor))

	domains, ok := p.Descriptor["domains"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, domains)
}

func TestProtocolURL(t *testing.T) {
	t.Parallel()

	c, err := New(Config{})
	require.NoError(t, err)

	u, legacy := c.ProtocolURL("202666")
	assert.True(t, legacy)
	assert.Equal(t, "https://src.chromium.org/blink/trunk/Source/devtools/protocol.json?p=202666", u)

	u, legacy = c.ProtocolURL(modernHash)
	assert.False(t, legacy)
	assert.Equal(t, "https://chromium.googlesource.com/chromium/src/+/"+modernHash+
		"/third_party/WebKit/Source/devtools/protocol.json?format=TEXT", u)
}

func TestProtocolObservability(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		webKitVersion string
		source        string
		hash          string
		logContains   string
	}{
		{"legacy", "537.36 (@202666)", "legacy", "202666", "using legacy schema for revision 202666"},
		{"modern", "537.36 (@" + modernHash + ")", "modern", modernHash, "using modern schema"},
		{"no_hash", "537.36", "fallback", "", "no commit hash in WebKit-Version"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			lg, hook := testutils.NewLoggerWithHook(t)
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			browser := newBrowser(t, versionHandler(tc.webKitVersion))
			schemaHost := newSchemaHost(t, schemaHandler())
			c := newTestClient(t, browser, schemaHost,
				WithLogger(log.New(lg, nil)), WithTracerProvider(tp))

			c.Protocol(context.Background())

			entries := hook.Drain()
			assert.True(t, testutils.LogContains(entries, logrus.DebugLevel, tc.logContains))
			for _, e := range entries {
				assert.Contains(t, e.Data["category"], "devtools:")
			}

			var resolve sdktrace.ReadOnlySpan
			for _, s := range sr.Ended() {
				if s.Name() == "devtools.protocol" {
					resolve = s
				}
			}
			require.NotNil(t, resolve)
			attrs := map[attribute.Key]string{}
			for _, kv := range resolve.Attributes() {
				attrs[kv.Key] = kv.Value.AsString()
			}
			assert.Equal(t, tc.source, attrs["source"])
			assert.Equal(t, tc.hash, attrs["hash"])
		})
	}
}
