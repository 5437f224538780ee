package tests

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/liuxd6825/devtools/devtools"
)

// FakeBrowser serves the HTTP endpoints and the websocket debugger of a
// browser started with --remote-debugging-port.
type FakeBrowser struct {
	*httptest.Server

	mu            sync.Mutex
	webKitVersion string
	targets       []devtools.Target
	nextID        int
	wsWg          sync.WaitGroup
}

// NewFakeBrowser starts a FakeBrowser with a single blank page open. It is
// stopped when the test ends.
func NewFakeBrowser(tb testing.TB) *FakeBrowser {
	tb.Helper()

	b := &FakeBrowser{webKitVersion: "537.36 (@cfede9db1d154de0468cb0538479f34c0755a0f4)"}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", b.handleList)
	mux.HandleFunc("/json/new", b.handleNew)
	mux.HandleFunc("/json/activate/", b.handleActivate)
	mux.HandleFunc("/json/close/", b.handleClose)
	mux.HandleFunc("/json/version", b.handleVersion)
	mux.HandleFunc("/devtools/", b.handleWebSocket)
	b.Server = httptest.NewServer(mux)
	b.addTarget("about:blank")

	tb.Cleanup(func() {
		b.Close()
		b.wsWg.Wait()
	})
	return b
}

// Host returns the host the browser listens on.
func (b *FakeBrowser) Host() string {
	host, _, _ := net.SplitHostPort(b.Listener.Addr().String())
	return host
}

// Port returns the port the browser listens on.
func (b *FakeBrowser) Port() string {
	_, port, _ := net.SplitHostPort(b.Listener.Addr().String())
	return port
}

// Args returns the flags pointing the command at this browser.
func (b *FakeBrowser) Args() []string {
	return []string{"--host", b.Host(), "--port", b.Port()}
}

// WebKitVersion returns the WebKit-Version reported by /json/version.
func (b *FakeBrowser) WebKitVersion() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.webKitVersion
}

// SetWebKitVersion changes the WebKit-Version reported by /json/version.
func (b *FakeBrowser) SetWebKitVersion(v string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.webKitVersion = v
}

// Targets returns a copy of the targets currently open.
func (b *FakeBrowser) Targets() []devtools.Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]devtools.Target(nil), b.targets...)
}

func (b *FakeBrowser) wsURL(path string) string {
	return "ws://" + b.Listener.Addr().String() + path
}

func (b *FakeBrowser) addTarget(rawURL string) devtools.Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("%032X", b.nextID)
	t := devtools.Target{
		ID:                   id,
		Type:                 "page",
		Title:                rawURL,
		URL:                  rawURL,
		DevtoolsFrontendURL:  "/devtools/inspector.html?ws=" + strings.TrimPrefix(b.wsURL("/devtools/page/"+id), "ws://"),
		WebSocketDebuggerURL: b.wsURL("/devtools/page/" + id),
	}
	b.targets = append(b.targets, t)
	return t
}

func (b *FakeBrowser) findTarget(id string) int {
	for i, t := range b.targets {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *FakeBrowser) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, b.Targets())
}

func (b *FakeBrowser) handleNew(w http.ResponseWriter, r *http.Request) {
	rawURL, err := url.PathUnescape(r.URL.RawQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rawURL == "" {
		rawURL = "about:blank"
	}
	writeJSON(w, b.addTarget(rawURL))
}

func (b *FakeBrowser) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/json/activate/")
	b.mu.Lock()
	i := b.findTarget(id)
	b.mu.Unlock()
	if i < 0 {
		http.Error(w, "No such target id: "+id, http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("Target activated"))
}

func (b *FakeBrowser) handleClose(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/json/close/")
	b.mu.Lock()
	i := b.findTarget(id)
	if i >= 0 {
		b.targets = append(b.targets[:i], b.targets[i+1:]...)
	}
	b.mu.Unlock()
	if i < 0 {
		http.Error(w, "No such target id: "+id, http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("Target is closing"))
}

func (b *FakeBrowser) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"Browser":              "HeadlessChrome/120.0.6099.109",
		"Protocol-Version":     "1.3",
		"User-Agent":           "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0.6099.109",
		"V8-Version":           "12.0.267.8",
		"WebKit-Version":       b.WebKitVersion(),
		"webSocketDebuggerUrl": b.wsURL("/devtools/browser/4f1c9a0e-5d6b-4f27-9c0e-8b1f3d2a7e61"),
	})
}

type cdpRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// handleWebSocket answers Browser.getVersion, Target.getTargets and
// Page.navigate. Any other method fails like an unknown one does.
func (b *FakeBrowser) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	b.wsWg.Add(1)
	defer b.wsWg.Done()

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		var req cdpRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		resp := map[string]interface{}{"id": req.ID}
		switch req.Method {
		case "Browser.getVersion":
			resp["result"] = map[string]string{
				"protocolVersion": "1.3",
				"product":         "HeadlessChrome/120.0.6099.109",
				"revision":        "@cfede9db1d154de0468cb0538479f34c0755a0f4",
				"userAgent":       "Mozilla/5.0",
				"jsVersion":       "12.0.267.8",
			}
		case "Target.getTargets":
			infos := []map[string]interface{}{}
			for _, t := range b.Targets() {
				infos = append(infos, map[string]interface{}{
					"targetId": t.ID, "type": t.Type, "title": t.Title, "url": t.URL, "attached": false,
				})
			}
			resp["result"] = map[string]interface{}{"targetInfos": infos}
		case "Page.navigate":
			var params struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(req.Params, &params); err != nil || params.URL == "" {
				resp["error"] = map[string]interface{}{"code": -32602, "message": "Invalid parameters"}
				break
			}
			resp["result"] = map[string]string{"frameId": "F1", "loaderId": "L1"}
		default:
			resp["error"] = map[string]interface{}{
				"code":    -32601,
				"message": fmt.Sprintf("'%s' wasn't found", req.Method),
			}
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// NewSchemaHost serves protocol schemas the way both schema hosts do: plain
// JSON under the legacy path and base64 under the modern one.
func NewSchemaHost(tb testing.TB, schema string) *httptest.Server {
	tb.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/blink/trunk/Source/devtools/protocol.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(schema))
	})
	mux.HandleFunc("/chromium/src/+/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/third_party/WebKit/Source/devtools/protocol.json") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(schema))))
	})
	srv := httptest.NewServer(mux)
	tb.Cleanup(srv.Close)
	return srv
}
