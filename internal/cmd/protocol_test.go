package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/devtools/devtools"
	"github.com/liuxd6825/devtools/internal/cmd/tests"
)

const testSchema = `{"version":{"major":"1","minor":"2"},"domains":[{"domain":"Page"},{"domain":"Runtime"}]}`

func TestProtocol(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		webKitVersion string
		fromChrome    bool
		domains       []string
	}{
		{
			name:          "modern revision",
			webKitVersion: "537.36 (@cfede9db1d154de0468cb0538479f34c0755a0f4)",
			fromChrome:    true,
			domains:       []string{"Page", "Runtime"},
		},
		{
			name:          "legacy revision",
			webKitVersion: "537.36 (@202000)",
			fromChrome:    true,
			domains:       []string{"Page", "Runtime"},
		},
		{
			name:          "no commit hash",
			webKitVersion: "537.36",
			fromChrome:    false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			browser := tests.NewFakeBrowser(t)
			browser.SetWebKitVersion(tc.webKitVersion)
			schemaHost := tests.NewSchemaHost(t, testSchema)

			ts := newBrowserTestState(t, browser, "protocol")
			ts.Env["DEVTOOLS_LEGACY_SCHEMA_HOST"] = schemaHost.URL
			ts.Env["DEVTOOLS_MODERN_SCHEMA_HOST"] = schemaHost.URL
			newRootCommand(ts.GlobalState).execute()

			res := gjson.Parse(ts.Stdout.String())
			assert.Equal(t, tc.fromChrome, res.Get("fromChrome").Bool())
			if tc.domains != nil {
				assert.Equal(t, "1", res.Get("version.major").String())
				var domains []string
				for _, d := range res.Get("domains").Array() {
					domains = append(domains, d.String())
				}
				assert.Equal(t, tc.domains, domains)
			} else {
				assert.NotEmpty(t, res.Get("domains").Array())
			}
		})
	}
}

func TestProtocolFallsBackWithoutBrowser(t *testing.T) {
	t.Parallel()

	host, port := unreachableAddr(t)
	ts := tests.NewGlobalTestState(t)
	ts.CmdArgs = []string{"devtools", "protocol", "--descriptor", "--host", host, "--port", port}
	newRootCommand(ts.GlobalState).execute()

	res := gjson.Parse(ts.Stdout.String())
	assert.False(t, res.Get("fromChrome").Bool())
	assert.Equal(t, len(devtools.FallbackProtocol().Descriptor["domains"].([]interface{})),
		len(res.Get("descriptor.domains").Array()))
}

func TestProtocolEmbedded(t *testing.T) {
	t.Parallel()

	ts := tests.NewGlobalTestState(t)
	ts.CmdArgs = []string{"devtools", "protocol", "--embedded", "--query", "fromChrome"}
	newRootCommand(ts.GlobalState).execute()

	assert.Equal(t, "false\n", ts.Stdout.String())
}

func TestProtocolOutFile(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	schemaHost := tests.NewSchemaHost(t, testSchema)

	ts := newBrowserTestState(t, browser, "protocol")
	out := filepath.Join(ts.Cwd, "protocol.json")
	ts.CmdArgs = append(ts.CmdArgs, "--out", out)
	ts.Env["DEVTOOLS_MODERN_SCHEMA_HOST"] = schemaHost.URL
	newRootCommand(ts.GlobalState).execute()

	data, err := afero.ReadFile(ts.FS, out)
	require.NoError(t, err)
	assert.JSONEq(t, testSchema, string(data))
	assert.True(t, gjson.Get(ts.Stdout.String(), "fromChrome").Bool())
}

func TestSummarizeProtocol(t *testing.T) {
	t.Parallel()

	summary := summarizeProtocol(&devtools.Protocol{
		FromChrome: true,
		Descriptor: map[string]interface{}{
			"domains": []interface{}{
				map[string]interface{}{"domain": "Page"},
				map[string]interface{}{"commands": []interface{}{}},
				"bogus",
			},
		},
	})
	assert.True(t, summary.FromChrome)
	assert.Nil(t, summary.Version)
	assert.Equal(t, []string{"Page"}, summary.Domains)

	empty := summarizeProtocol(&devtools.Protocol{Descriptor: map[string]interface{}{}})
	assert.Equal(t, []string{}, empty.Domains)
}
