package devtools

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/devtools/lib/consts"
	"github.com/liuxd6825/devtools/log"
)

const tracerName = "github.com/liuxd6825/devtools/devtools"

// Client talks to the remote debugging HTTP endpoint of a single browser.
//
// A Client holds no per-call state and is safe for concurrent use. It doesn't
// impose any timeout: every operation takes a context and stops when the
// context is done.
type Client struct {
	config  Config
	baseURL string
	fetcher *fetcher
	logger  *log.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request, both to the
// browser and to the schema hosts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.fetcher.client = hc
	}
}

// WithLogger sets the logger the client writes debug messages to.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTracerProvider sets the provider of the tracer used for the client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(consts.Version))
	}
}

// New returns a client for the browser described by conf. Unset fields of
// conf take their default values.
func New(conf Config, opts ...Option) (*Client, error) {
	conf = NewConfig().Apply(conf)
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid devtools config: %w", err)
	}

	c := &Client{
		config:  conf,
		baseURL: conf.BaseURL(),
		fetcher: &fetcher{
			client:  http.DefaultClient,
			maxSize: conf.MaxResponseSize.Int64,
		},
		tracer: noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetcher.logger = c.logger
	c.fetcher.tracer = c.tracer

	return c, nil
}

// Config returns the consolidated configuration of the client.
func (c *Client) Config() Config {
	return c.config
}
