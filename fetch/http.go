package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/stainfetch/iox"
	"github.com/pithecene-io/stainfetch/types"
)

// DefaultRequestTimeout bounds a single HTTP fetch attempt.
// Image servers under load can stall mid-body, so this covers the
// whole request, not just dialing.
const DefaultRequestTimeout = 360 * time.Second

// HTTPBackend fetches task bytes over HTTP(S) GET.
//
// Classification: 4xx maps to permanent-not-found, 5xx and
// connection/timeout errors to transient-network, destination write
// failures to permanent-io.
type HTTPBackend struct {
	client *http.Client
}

// NewHTTPBackend creates an HTTP backend with the default request timeout.
func NewHTTPBackend() *HTTPBackend {
	return NewHTTPBackendWithClient(&http.Client{Timeout: DefaultRequestTimeout})
}

// NewHTTPBackendWithClient creates an HTTP backend with a custom client.
// Used by tests and callers that tune timeouts or transports.
func NewHTTPBackendWithClient(client *http.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

// Name implements Backend.
func (b *HTTPBackend) Name() string { return "http" }

// Fetch implements Backend.
func (b *HTTPBackend) Fetch(ctx context.Context, task *types.ChannelTask) (int64, error) {
	if err := validateRemoteTask(task); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.SourceURL, nil)
	if err != nil {
		return 0, newError(ErrNotFound, "get", task.SourceURL, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		// Dial failures, resets and timeouts all surface here.
		return 0, newError(ErrTransient, "get", task.SourceURL, err)
	}
	defer iox.DiscardClose(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to body copy
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return 0, newError(ErrNotFound, "get", task.SourceURL,
			fmt.Errorf("status %d", resp.StatusCode))
	default:
		return 0, newError(ErrTransient, "get", task.SourceURL,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	body := &errTrackingReader{r: resp.Body}
	n, err := writeDest(task.DestPath, body)
	if err != nil {
		// A failed body read is a network problem, not a disk problem.
		if body.readErr != nil {
			return 0, newError(ErrTransient, "read", task.SourceURL, body.readErr)
		}
		return 0, err
	}
	return n, nil
}

// errTrackingReader remembers the first non-EOF read error so the
// caller can distinguish source-side from destination-side failures
// after io.Copy collapses them into one error value.
type errTrackingReader struct {
	r       io.Reader
	readErr error
}

func (t *errTrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.readErr == nil {
		t.readErr = err
	}
	return n, err
}
