// Package httpx is the thin transport layer beneath key retrieval and token
// flows. The rest of the module depends only on the Doer capability so tests
// and embedders can substitute their own client; the helpers here add the
// request-id header, bound response bodies, and JSON media-type checks.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
)

// Doer executes one HTTP request and blocks until the response or an error.
// *http.Client satisfies it. Deadlines are the Doer's responsibility; the
// core issues no retries and has no cancellation of its own beyond ctx.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds requests made by clients from NewClient.
const DefaultTimeout = 30 * time.Second

// Response bodies larger than this are truncated rather than read fully.
const maxResponseBody = 1 << 20

// ErrTransport indicates the request never produced a usable response
// (network failure, timeout, unreadable body).
var ErrTransport = errors.New("httpx: transport failure")

// StatusError is a non-success response from the downstream service. The
// body excerpt carries the downstream message for diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient returns an http.Client with the given timeout, or DefaultTimeout
// when zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

var jsonMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/json"),
}

// GetJSON issues a GET expecting a JSON document and returns the body.
func GetJSON(ctx context.Context, d Doer, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(d, req)
}

// PostForm issues an application/x-www-form-urlencoded POST and returns the
// JSON response body. clientID/clientSecret, when both set, are sent as HTTP
// basic credentials.
func PostForm(ctx context.Context, d Doer, rawURL string, form url.Values, clientID, clientSecret string, headers map[string]string) ([]byte, error) {
	encoded := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if clientID != "" && clientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(d, req)
}

func do(d Doer, req *http.Request) ([]byte, error) {
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := d.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, err := contenttype.ParseMediaType(ct); err != nil || !matchesJSON(mt) {
			return nil, fmt.Errorf("%w: unexpected content type %q", ErrTransport, ct)
		}
	}
	return body, nil
}

func matchesJSON(mt contenttype.MediaType) bool {
	for _, want := range jsonMediaTypes {
		if mt.Type == want.Type && mt.Subtype == want.Subtype {
			return true
		}
	}
	// application/foo+json style
	return mt.Type == "application" && strings.HasSuffix(mt.Subtype, "+json")
}

func excerpt(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
