// Package callback delivers progress/success/error HTTP notifications to
// caller-designated endpoints for one resolved object.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ASE-Bucure-ti/signbridge/pkg/store"
)

const defaultPostTimeout = 30 * time.Second

// StatusError reports that a callback endpoint was reached and answered with
// a non-2xx status, as distinct from a marshal/build/transport failure that
// never produced a response at all. Callers that only care about an endpoint
// refusing the notification (e.g. the progress callback, whose non-2xx is
// the one response that cancels local work) should errors.As for this type.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback: post to %s: unexpected status %d", e.URL, e.StatusCode)
}

// Timestamp formats t as ISO 8601 UTC with a Z suffix, the format used by
// every callback payload's timestamp field.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Client POSTs callback bodies with a fixed timeout and no retries.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client. A zero timeout falls back to the 30s default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultPostTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Post delivers payload as a JSON body to url. A non-2xx response is
// returned as *StatusError; every other failure (marshal, canonicalize,
// request build, transport) is an opaque error. The caller decides what
// each means for the object: only the progress callback's *StatusError
// cancels local work, everything else (including transport failures on any
// callback) is logged-not-fatal.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, payload interface{}) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("callback: marshal body: %w", err)
	}
	// Canonicalize (RFC 8785) so the embedded metadata is byte-for-byte
	// reproducible regardless of the caller's original key order or
	// whitespace.
	canonical, err := jcs.Transform(body)
	if err != nil {
		return fmt.Errorf("callback: canonicalize body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(canonical))
	if err != nil {
		return fmt.Errorf("callback: build request to %s: %w", store.Redact(url), err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: post to %s: %w", store.Redact(url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: store.Redact(url), StatusCode: resp.StatusCode}
	}
	return nil
}
