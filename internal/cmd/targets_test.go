package cmd

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/devtools/errext/exitcodes"
	"github.com/liuxd6825/devtools/internal/cmd/tests"
	"github.com/liuxd6825/devtools/lib/testutils"
)

func newBrowserTestState(t *testing.T, browser *tests.FakeBrowser, args ...string) *tests.GlobalTestState {
	t.Helper()
	ts := tests.NewGlobalTestState(t)
	ts.CmdArgs = append(append([]string{"devtools"}, args...), browser.Args()...)
	return ts
}

// unreachableAddr returns the address of a server that was just closed.
func unreachableAddr(t *testing.T) (string, string) {
	t.Helper()
	srv := httptest.NewServer(nil)
	addr := srv.Listener.Addr().String()
	srv.Close()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return host, port
}

func TestList(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	ts := newBrowserTestState(t, browser, "list")
	newRootCommand(ts.GlobalState).execute()

	stdout := ts.Stdout.String()
	require.True(t, gjson.Valid(stdout), stdout)
	targets := gjson.Parse(stdout).Array()
	require.Len(t, targets, 1)
	assert.Equal(t, browser.Targets()[0].ID, targets[0].Get("id").String())
	assert.Equal(t, "page", targets[0].Get("type").String())
	assert.Equal(t, "about:blank", targets[0].Get("url").String())
	assert.Contains(t, targets[0].Get("webSocketDebuggerUrl").String(), "/devtools/page/")
	assert.Empty(t, ts.Stderr.String())
}

func TestListOutputFormats(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	id := browser.Targets()[0].ID

	testCases := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "query",
			args:     []string{"--query", "#.id"},
			expected: "[\n  \"" + id + "\"\n]\n",
		},
		{
			name:     "query single value",
			args:     []string{"--query", "0.url"},
			expected: "\"about:blank\"\n",
		},
		{
			name:     "yaml",
			args:     []string{"--format", "yaml", "--query", "#.type"},
			expected: "- page\n",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newBrowserTestState(t, browser, append([]string{"list"}, tc.args...)...)
			newRootCommand(ts.GlobalState).execute()
			assert.Equal(t, tc.expected, ts.Stdout.String())
		})
	}
}

func TestListOutputErrors(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)

	testCases := []struct {
		name    string
		args    []string
		wantLog string
	}{
		{
			name:    "query without match",
			args:    []string{"--query", "#.nope"},
			wantLog: `query "#.nope" didn't match anything in the result`,
		},
		{
			name:    "unsupported format",
			args:    []string{"--format", "toml"},
			wantLog: `unsupported output format "toml", use json or yaml`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newBrowserTestState(t, browser, append([]string{"list"}, tc.args...)...)
			ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
			newRootCommand(ts.GlobalState).execute()
			assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, tc.wantLog))
			assert.Empty(t, ts.Stdout.String())
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantURL string
	}{
		{name: "blank", wantURL: "about:blank"},
		{name: "with url", args: []string{"https://example.com/?a=1&b=2"}, wantURL: "https://example.com/?a=1&b=2"},
		{name: "with fragment", args: []string{"https://example.com/app#/settings"}, wantURL: "https://example.com/app#/settings"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			browser := tests.NewFakeBrowser(t)
			ts := newBrowserTestState(t, browser, append([]string{"new"}, tc.args...)...)
			newRootCommand(ts.GlobalState).execute()

			res := gjson.Parse(ts.Stdout.String())
			assert.Equal(t, tc.wantURL, res.Get("url").String())

			targets := browser.Targets()
			require.Len(t, targets, 2)
			assert.Equal(t, targets[1].ID, res.Get("id").String())
		})
	}
}

func TestActivate(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	id := browser.Targets()[0].ID

	ts := newBrowserTestState(t, browser, "activate", id)
	newRootCommand(ts.GlobalState).execute()

	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.InfoLevel, "Activated target "+id))
	assert.Empty(t, ts.Stdout.String())
}

func TestClose(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	id := browser.Targets()[0].ID

	ts := newBrowserTestState(t, browser, "close", id)
	newRootCommand(ts.GlobalState).execute()

	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.InfoLevel, "Closed target "+id))
	assert.Empty(t, browser.Targets())
}

func TestUnknownTarget(t *testing.T) {
	t.Parallel()

	for _, command := range []string{"activate", "close"} {
		command := command
		t.Run(command, func(t *testing.T) {
			t.Parallel()

			browser := tests.NewFakeBrowser(t)
			ts := newBrowserTestState(t, browser, command, "nope")
			ts.ExpectedExitCode = int(exitcodes.BrowserRequestFailed)
			newRootCommand(ts.GlobalState).execute()

			assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel,
				"the browser answered with status 404: No such target id: nope"))
			assert.Len(t, browser.Targets(), 1)
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	browser := tests.NewFakeBrowser(t)
	ts := newBrowserTestState(t, browser, "version")
	newRootCommand(ts.GlobalState).execute()

	res := gjson.Parse(ts.Stdout.String())
	assert.Equal(t, "HeadlessChrome/120.0.6099.109", res.Get("Browser").String())
	assert.Equal(t, "1.3", res.Get("Protocol-Version").String())
	assert.Equal(t, browser.WebKitVersion(), res.Get("WebKit-Version").String())
}

func TestBrowserUnreachable(t *testing.T) {
	t.Parallel()

	host, port := unreachableAddr(t)
	for _, args := range [][]string{{"list"}, {"new"}, {"activate", "x"}, {"close", "x"}, {"version"}} {
		args := args
		t.Run(args[0], func(t *testing.T) {
			t.Parallel()

			ts := tests.NewGlobalTestState(t)
			ts.CmdArgs = append(append([]string{"devtools"}, args...), "--host", host, "--port", port)
			ts.ExpectedExitCode = int(exitcodes.BrowserUnreachable)
			newRootCommand(ts.GlobalState).execute()

			entry := ts.LoggerHook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, "is the browser running with --remote-debugging-port="+port+" on "+host+"?", entry.Data["hint"])
		})
	}
}
