package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Backend uploads/downloads s3://bucket/key references via the AWS SDK,
// using ambient credential discovery (environment, shared config, IMDS).
type s3Backend struct {
	client *s3.Client
}

// NewS3Backend loads the default AWS config and returns a Backend for the
// s3:// scheme. Returns an error if no region/credentials can be resolved
// at all; individual object failures surface per-call instead.
func NewS3Backend(ctx context.Context) (Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load AWS config: %w", err)
	}
	return &s3Backend{client: s3.NewFromConfig(cfg)}, nil
}

func parseS3Ref(ref string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(ref, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("store: malformed s3 reference %q, want s3://bucket/key", Redact(ref))
	}
	return parts[0], parts[1], nil
}

func (b *s3Backend) Fetch(ctx context.Context, ref, _ string, _ map[string]string) (io.ReadCloser, error) {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("store: s3 get %s: %w", Redact(ref), err)
	}
	return out.Body, nil
}

func (b *s3Backend) Put(ctx context.Context, ref, _, contentType string, _ map[string]string, body io.Reader) (*PutResult, error) {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("store: s3 put %s: %w", Redact(ref), err)
	}
	return &PutResult{StatusCode: 200}, nil
}
