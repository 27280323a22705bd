package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultDownloadTimeout = 60 * time.Second
	defaultUploadTimeout   = 120 * time.Second
)

// httpBackend is the default http/https transport, the §4.7 contract: one-
// shot, fixed-per-request timeouts, non-2xx is a failure.
type httpBackend struct {
	downloadClient  *http.Client
	uploadClient    *http.Client
	downloadTimeout time.Duration
	uploadTimeout   time.Duration
}

// newHTTPBackend builds an httpBackend. A zero duration falls back to the
// §4.7 defaults (60s download, 120s upload).
func newHTTPBackend(downloadTimeout, uploadTimeout time.Duration) *httpBackend {
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &httpBackend{
		downloadClient:  &http.Client{Timeout: downloadTimeout},
		uploadClient:    &http.Client{Timeout: uploadTimeout},
		downloadTimeout: downloadTimeout,
		uploadTimeout:   uploadTimeout,
	}
}

func (b *httpBackend) Fetch(ctx context.Context, ref, method string, headers map[string]string) (io.ReadCloser, error) {
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("store: build download request for %s: %w", Redact(ref), err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: download %s: %w", Redact(ref), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("store: download %s returned status %d", Redact(ref), resp.StatusCode)
	}
	return resp.Body, nil
}

func (b *httpBackend) Put(ctx context.Context, ref, method, contentType string, headers map[string]string, body io.Reader) (*PutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.uploadTimeout)
	defer cancel()

	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, ref, body)
	if err != nil {
		return nil, fmt.Errorf("store: build upload request for %s: %w", Redact(ref), err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: upload %s: %w", Redact(ref), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("store: read upload response from %s: %w", Redact(ref), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("store: upload %s returned status %d", Redact(ref), resp.StatusCode)
	}

	return &PutResult{StatusCode: resp.StatusCode, ResponseBody: respBody}, nil
}
