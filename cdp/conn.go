// Package cdp implements a minimal Chrome DevTools Protocol session over the
// WebSocket endpoint of a browser or of one of its targets.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/browser"
	cdpexec "github.com/chromedp/cdproto/cdp"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/liuxd6825/devtools/log"
)

const (
	wsWriteBufferSize = 1 << 20
	handshakeTimeout  = 60 * time.Second
	closeTimeout      = 10 * time.Second
)

// ErrClosed is returned by calls on a closed connection, or pending when it
// closed.
var ErrClosed = errors.New("cdp connection closed")

// Conn is a CDP connection. Calls may be issued concurrently; responses are
// matched to calls by message id. Events are logged and otherwise dropped.
type Conn struct {
	wsURL  string
	conn   *websocket.Conn
	logger *log.Logger
	msgID  int64

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan *cdproto.Message
	closed    bool

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

var _ cdpexec.Executor = &Conn{}

// Dial opens a CDP connection to wsURL, usually the webSocketDebuggerUrl of
// the browser or of a target.
func Dial(ctx context.Context, wsURL string, logger *log.Logger) (*Conn, error) {
	wsd := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}

	conn, resp, err := wsd.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	logger.Debugf("cdp", "connected to %s", wsURL)

	c := &Conn{
		wsURL:   wsURL,
		conn:    conn,
		logger:  logger,
		pending: make(map[int64]chan *cdproto.Message),
		done:    make(chan struct{}),
	}
	go c.recvLoop()

	return c, nil
}

func (c *Conn) recvLoop() {
	defer func() {
		c.pendingMu.Lock()
		c.closed = true
		c.pendingMu.Unlock()
		close(c.done)
	}()

	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Errorf("cdp", "connection to %s closed unexpectedly: %s", c.wsURL, err)
			}
			c.readErr = err
			return
		}
		c.logger.Debugf("cdp:recv", "<- %s", buf)

		var msg cdproto.Message
		decoder := jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&decoder)
		if err := decoder.Error(); err != nil {
			c.logger.Errorf("cdp", "ignoring malformed incoming message: %s", err)
			continue
		}

		switch {
		case msg.ID != 0:
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
			if !ok {
				c.logger.Debugf("cdp", "ignoring response to unknown message id %d", msg.ID)
				continue
			}
			ch <- &msg
		case msg.Method != "":
			c.logger.Debugf("cdp:event", "%s", msg.Method)
		default:
			c.logger.Errorf("cdp", "ignoring malformed incoming message (missing id or method): %s", buf)
		}
	}
}

func (c *Conn) write(ctx context.Context, msg *cdproto.Message) error {
	var encoder jwriter.Writer
	msg.MarshalEasyJSON(&encoder)
	if encoder.Error != nil {
		return encoder.Error
	}
	buf, err := encoder.BuildBytes()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	c.logger.Debugf("cdp:send", "-> %s", buf)
	return c.conn.WriteMessage(websocket.TextMessage, buf)
}

func (c *Conn) closedErr() error {
	var closeErr *websocket.CloseError
	if c.readErr == nil || (errors.As(c.readErr, &closeErr) && closeErr.Code == websocket.CloseNormalClosure) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, c.readErr)
}

// Execute implements cdp.Executor from cdproto, so any cdproto command can
// be run with cdp.WithExecutor(ctx, conn). It blocks until the response
// arrives, the connection closes or ctx is done.
func (c *Conn) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
	}

	id := atomic.AddInt64(&c.msgID, 1)
	ch := make(chan *cdproto.Message, 1)
	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return c.closedErr()
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}
	if err := c.write(ctx, msg); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		switch {
		case resp.Error != nil:
			return resp.Error
		case res != nil && len(resp.Result) > 0:
			return easyjson.Unmarshal(resp.Result, res)
		}
		return nil
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call sends a raw method with raw JSON params, which may be empty, and
// returns the raw result.
func (c *Conn) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	var p easyjson.Marshaler
	if len(params) > 0 {
		if !json.Valid(params) {
			return nil, fmt.Errorf("params of %s are not valid JSON", method)
		}
		raw := easyjson.RawMessage(params)
		p = &raw
	}
	var res easyjson.RawMessage
	if err := c.Execute(ctx, method, p, &res); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(res), nil
}

// BrowserVersion is the reply to Browser.getVersion.
type BrowserVersion struct {
	ProtocolVersion string `json:"protocolVersion"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JSVersion       string `json:"jsVersion"`
}

// BrowserVersion runs Browser.getVersion.
func (c *Conn) BrowserVersion(ctx context.Context) (*BrowserVersion, error) {
	protocolVersion, product, revision, userAgent, jsVersion, err := browser.GetVersion().Do(cdpexec.WithExecutor(ctx, c))
	if err != nil {
		return nil, err
	}
	return &BrowserVersion{
		ProtocolVersion: protocolVersion,
		Product:         product,
		Revision:        revision,
		UserAgent:       userAgent,
		JSVersion:       jsVersion,
	}, nil
}

// Done is closed once the connection is closed, by either end.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close sends a normal closure frame and waits for the browser to
// acknowledge it before closing the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		select {
		case <-c.done:
			// Already closed by the browser.
			_ = c.conn.Close()
			return
		default:
		}

		c.writeMu.Lock()
		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout),
		)
		c.writeMu.Unlock()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}

		select {
		case <-c.done:
		case <-time.After(closeTimeout):
		}
		_ = c.conn.Close()
		<-c.done
	})
	return err
}
