package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.ProtocolVersion)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Equal(t, int64(defaultMaxFrameBytes), cfg.MaxFrameBytes)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SIGNBRIDGE_LOG_LEVEL", "DEBUG")
	t.Setenv("SIGNBRIDGE_PROTOCOL_VERSION", "9.9")
	t.Setenv("SIGNBRIDGE_MAX_FRAME_BYTES", "2048")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "9.9", cfg.ProtocolVersion)
	require.Equal(t, int64(2048), cfg.MaxFrameBytes)
}

func TestLoadEnvIgnoresInvalidMaxFrameBytes(t *testing.T) {
	t.Setenv("SIGNBRIDGE_MAX_FRAME_BYTES", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, int64(defaultMaxFrameBytes), cfg.MaxFrameBytes)
}

func TestApplyFileOnlyOverridesParseableDurations(t *testing.T) {
	cfg := defaults()
	applyFile(&cfg, &fileOverlay{DownloadTimeout: "garbage", UploadTimeout: "90s"})
	require.Equal(t, defaultDownloadTimeout, cfg.DownloadTimeout)
	require.Equal(t, 90*time.Second, cfg.UploadTimeout)
}
