package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// gcsBackend uploads/downloads gs://bucket/object references via the
// Google Cloud Storage client, using ambient application-default
// credentials.
type gcsBackend struct {
	client *storage.Client
}

// NewGCSBackend builds a Backend for the gs:// scheme using application
// default credentials.
func NewGCSBackend(ctx context.Context) (Backend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: create GCS client: %w", err)
	}
	return &gcsBackend{client: client}, nil
}

func parseGSRef(ref string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(ref, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("store: malformed gs reference %q, want gs://bucket/object", Redact(ref))
	}
	return parts[0], parts[1], nil
}

func (b *gcsBackend) Fetch(ctx context.Context, ref, _ string, _ map[string]string) (io.ReadCloser, error) {
	bucket, object, err := parseGSRef(ref)
	if err != nil {
		return nil, err
	}
	r, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: gs get %s: %w", Redact(ref), err)
	}
	return r, nil
}

func (b *gcsBackend) Put(ctx context.Context, ref, _, contentType string, _ map[string]string, body io.Reader) (*PutResult, error) {
	bucket, object, err := parseGSRef(ref)
	if err != nil {
		return nil, err
	}
	w := b.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("store: gs put %s: %w", Redact(ref), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("store: gs put %s: finalize: %w", Redact(ref), err)
	}
	return &PutResult{StatusCode: 200}, nil
}
