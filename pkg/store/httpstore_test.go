package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPBackendFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("document body"))
	}))
	defer srv.Close()

	b := newHTTPBackend(0, 0)
	rc, err := b.Fetch(context.Background(), srv.URL, "", nil)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "document body", string(data))
}

func TestHTTPBackendFetchNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := newHTTPBackend(0, 0)
	_, err := b.Fetch(context.Background(), srv.URL, "", nil)
	require.Error(t, err)
}

func TestHTTPBackendPutSetsContentTypeAndCapturesResponse(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "signed-bytes", string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"stored":true}`))
	}))
	defer srv.Close()

	b := newHTTPBackend(0, 0)
	result, err := b.Put(context.Background(), srv.URL, "", "application/pdf", nil, strings.NewReader("signed-bytes"))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", gotContentType)
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, `{"stored":true}`, string(result.ResponseBody))
}

func TestHTTPBackendPutNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := newHTTPBackend(0, 0)
	_, err := b.Put(context.Background(), srv.URL, "", "text/plain", nil, strings.NewReader("x"))
	require.Error(t, err)
}

func TestHTTPBackendPutTruncatesResponseBody(t *testing.T) {
	oversized := strings.Repeat("a", maxResponseBodyBytes+500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(oversized))
	}))
	defer srv.Close()

	b := newHTTPBackend(0, 0)
	result, err := b.Put(context.Background(), srv.URL, "", "text/plain", nil, strings.NewReader("x"))
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.ResponseBody), maxResponseBodyBytes)
}

func TestRedactTruncatesAtQuestionMark(t *testing.T) {
	require.Equal(t, "https://example.test/path", Redact("https://example.test/path?token=secret"))
	require.Equal(t, "https://example.test/path", Redact("https://example.test/path"))
}

func TestRouterRejectsUnconfiguredS3(t *testing.T) {
	r := NewRouter(nil, nil, 0, 0)
	_, err := r.Fetch(context.Background(), "s3://bucket/key", "", nil)
	require.Error(t, err)
}

func TestRouterDispatchesHTTPSByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := NewRouter(nil, nil, 0, 0)
	rc, err := r.Fetch(context.Background(), srv.URL, "", nil)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	require.Equal(t, "ok", string(data))
}
