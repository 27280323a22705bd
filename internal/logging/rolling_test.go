package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingHandlerWritesNDJSONLine(t *testing.T) {
	dir := t.TempDir()
	h, err := NewRollingHandler(dir, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	logger := slog.New(h).With("requestId", "req-1")
	logger.Info("object signed", "objectId", "a")

	data, err := os.ReadFile(filepath.Join(dir, "host.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"requestId":"req-1"`)
	require.Contains(t, string(data), `"objectId":"a"`)
	require.True(t, bytes.HasSuffix(data, []byte("\n")))
}

func TestRollingHandlerRotatesPastMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	h, err := NewRollingHandler(dir, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()
	h.maxFileSize = 200

	logger := slog.New(h)
	for i := 0; i < 20; i++ {
		logger.Info("filler message padded out to push past the rotation threshold quickly")
	}

	_, err = os.Stat(filepath.Join(dir, "host.log.1"))
	require.NoError(t, err)
}

func TestRollingHandlerEnabledRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	h, err := NewRollingHandler(dir, slog.LevelWarn)
	require.NoError(t, err)
	defer h.Close()

	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestRollingHandlerWithGroupPrefixesKeys(t *testing.T) {
	dir := t.TempDir()
	h, err := NewRollingHandler(dir, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	logger := slog.New(h).WithGroup("pipeline")
	logger.Info("upload", "status", 200)

	data, err := os.ReadFile(filepath.Join(dir, "host.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"pipeline.status":200`)
}
