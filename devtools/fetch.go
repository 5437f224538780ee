package devtools

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liuxd6825/devtools/log"
)

// ErrResponseTooLarge is returned when a response body exceeds the configured
// maximum response size.
var ErrResponseTooLarge = errors.New("response body too large")

// StatusError is returned when the remote end answers with anything but
// 200 OK. The body of such a response is the error payload.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error returns the raw response body.
func (e *StatusError) Error() string {
	return e.Body
}

const acceptEncoding = "gzip, deflate, br, zstd"

// Matches non-compliant io.Closer implementations (e.g. zstd.Decoder)
type ncloser interface {
	Close()
}

type readCloser struct {
	io.Reader
}

func (r readCloser) Close() error {
	switch v := r.Reader.(type) {
	case io.Closer:
		return v.Close()
	case ncloser:
		v.Close()
	}
	return nil
}

type fetcher struct {
	client  *http.Client
	maxSize int64
	logger  *log.Logger
	tracer  trace.Tracer
}

// fetch issues a single GET request for rawURL and returns the whole response
// body if the status is 200. Whether plain or encrypted HTTP is used depends
// only on the scheme of rawURL.
func (f *fetcher) fetch(ctx context.Context, rawURL string) (_ []byte, err error) {
	ctx, span := f.tracer.Start(ctx, "devtools.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", rawURL)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	// Set explicitly so that the transport doesn't decode gzip on its own
	// and every supported encoding goes through readBody.
	req.Header.Set("Accept-Encoding", acceptEncoding)

	f.logger.Debugf("devtools:fetch", "GET %s", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}
	f.logger.Debugf("devtools:fetch", "GET %s: %d, %d bytes", rawURL, resp.StatusCode, len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// readBody reads the decoded response body, failing once more than maxSize
// decoded bytes have been read.
func (f *fetcher) readBody(resp *http.Response) ([]byte, error) {
	rc, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	_, err = io.Copy(buf, io.LimitReader(rc, f.maxSize))
	tooLarge := false
	if err == nil {
		// A single byte past maxSize means the body doesn't fit.
		var extra [1]byte
		var n int
		n, err = io.ReadFull(rc, extra[:])
		tooLarge = n > 0
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if tooLarge {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, f.maxSize)
	}
	return buf.Bytes(), nil
}

// decodeBody transparently decompresses the body if it has a content-encoding
// we support. If not, it is returned as it is.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	var (
		decoder io.Reader
		err     error
	)
	contentEncoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch contentEncoding {
	case "", "identity":
		return readCloser{resp.Body}, nil
	case "deflate":
		decoder, err = zlib.NewReader(resp.Body)
	case "gzip":
		decoder, err = gzip.NewReader(resp.Body)
	case "zstd":
		var d *zstd.Decoder
		d, err = zstd.NewReader(resp.Body)
		if err == nil {
			decoder = d.IOReadCloser()
		}
	case "br":
		decoder = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s response body: %w", contentEncoding, err)
	}
	return readCloser{decoder}, nil
}
