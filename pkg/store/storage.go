// Package store abstracts the download/upload transport used by the
// pipeline engine behind a single Backend interface, selected by URL
// scheme: https (default), s3, and gs.
package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// PutResult captures what the upload transport observed.
type PutResult struct {
	StatusCode   int
	ResponseBody []byte
}

// Backend fetches and stores content addressed by a URL-like reference.
type Backend interface {
	// Fetch retrieves the content at ref using the given HTTP method (the
	// s3/gs backends ignore method, since object-storage reads have no
	// equivalent). The caller must Close the returned reader.
	Fetch(ctx context.Context, ref, method string, headers map[string]string) (io.ReadCloser, error)
	// Put uploads body to ref with the given HTTP method and Content-Type
	// (s3/gs backends ignore method).
	Put(ctx context.Context, ref, method, contentType string, headers map[string]string, body io.Reader) (*PutResult, error)
}

// maxResponseBodyBytes is the truncation limit applied to captured
// upload response bodies, per spec.
const maxResponseBodyBytes = 4 * 1024

// Router dispatches to a Backend by URL scheme.
type Router struct {
	http *httpBackend
	s3   Backend
	gs   Backend
}

// NewRouter builds a Router. s3Backend and gsBackend may be nil; a
// reference using one of those schemes then fails with a descriptive
// error instead of panicking, which lets a host run without cloud
// credentials configured. downloadTimeout/uploadTimeout configure the
// http/https backend only; a zero value falls back to the §4.7 defaults.
func NewRouter(s3Backend, gsBackend Backend, downloadTimeout, uploadTimeout time.Duration) *Router {
	return &Router{
		http: newHTTPBackend(downloadTimeout, uploadTimeout),
		s3:   s3Backend,
		gs:   gsBackend,
	}
}

func (r *Router) backendFor(ref string) (Backend, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("store: invalid reference %q: %w", ref, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "":
		return r.http, nil
	case "s3":
		if r.s3 == nil {
			return nil, fmt.Errorf("store: s3 backend not configured for %q", Redact(ref))
		}
		return r.s3, nil
	case "gs":
		if r.gs == nil {
			return nil, fmt.Errorf("store: gs backend not configured for %q", Redact(ref))
		}
		return r.gs, nil
	default:
		return nil, fmt.Errorf("store: unsupported scheme %q in %q", u.Scheme, Redact(ref))
	}
}

// Fetch dispatches to the backend selected by ref's scheme.
func (r *Router) Fetch(ctx context.Context, ref, method string, headers map[string]string) (io.ReadCloser, error) {
	b, err := r.backendFor(ref)
	if err != nil {
		return nil, err
	}
	return b.Fetch(ctx, ref, method, headers)
}

// Put dispatches to the backend selected by ref's scheme.
func (r *Router) Put(ctx context.Context, ref, method, contentType string, headers map[string]string, body io.Reader) (*PutResult, error) {
	b, err := r.backendFor(ref)
	if err != nil {
		return nil, err
	}
	return b.Put(ctx, ref, method, contentType, headers, body)
}

// Redact truncates a URL at its first "?" for safe logging, dropping
// query parameters that may carry signed-URL credentials or tokens.
func Redact(ref string) string {
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		return ref[:i]
	}
	return ref
}
