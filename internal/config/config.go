// Package config loads SignBridge's host configuration from environment
// variables, optionally overlaid with a YAML file at
// ~/.signbridge/config.yaml. Environment variables always take precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// Config holds the host's runtime configuration.
type Config struct {
	ProtocolVersion string
	LogDir          string
	LogLevel        string
	PKCS11Libraries []string
	MaxFrameBytes   int64
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
	CallbackTimeout time.Duration
}

const (
	defaultMaxFrameBytes   = 1 << 20
	defaultDownloadTimeout = 60 * time.Second
	defaultUploadTimeout   = 120 * time.Second
	defaultCallbackTimeout = 30 * time.Second
)

// fileOverlay is the shape of ~/.signbridge/config.yaml. Only the fields
// original_source/host/signbridge/config.py's file layer actually carried
// (PKCS#11 search paths and per-host timeout overrides) are supported here.
type fileOverlay struct {
	PKCS11Libraries []string `yaml:"pkcs11Libraries"`
	DownloadTimeout string   `yaml:"downloadTimeout"`
	UploadTimeout   string   `yaml:"uploadTimeout"`
	CallbackTimeout string   `yaml:"callbackTimeout"`
}

// Load builds a Config from defaults, then the YAML file if present, then
// environment variables (highest precedence).
func Load() (Config, error) {
	cfg := defaults()

	if overlay, err := loadFile(defaultConfigPath()); err == nil && overlay != nil {
		applyFile(&cfg, overlay)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		ProtocolVersion: wire.ProtocolVersion,
		LogDir:          filepath.Join(homeDir(), ".signbridge", "logs"),
		LogLevel:        "INFO",
		MaxFrameBytes:   defaultMaxFrameBytes,
		DownloadTimeout: defaultDownloadTimeout,
		UploadTimeout:   defaultUploadTimeout,
		CallbackTimeout: defaultCallbackTimeout,
	}
}

func defaultConfigPath() string {
	return filepath.Join(homeDir(), ".signbridge", "config.yaml")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return "."
}

func loadFile(path string) (*fileOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}
	return &overlay, nil
}

func applyFile(cfg *Config, overlay *fileOverlay) {
	if len(overlay.PKCS11Libraries) > 0 {
		cfg.PKCS11Libraries = overlay.PKCS11Libraries
	}
	if d, err := time.ParseDuration(overlay.DownloadTimeout); err == nil {
		cfg.DownloadTimeout = d
	}
	if d, err := time.ParseDuration(overlay.UploadTimeout); err == nil {
		cfg.UploadTimeout = d
	}
	if d, err := time.ParseDuration(overlay.CallbackTimeout); err == nil {
		cfg.CallbackTimeout = d
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIGNBRIDGE_PROTOCOL_VERSION"); v != "" {
		cfg.ProtocolVersion = v
	}
	if v := os.Getenv("SIGNBRIDGE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("SIGNBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGNBRIDGE_PKCS11_LIBRARIES"); v != "" {
		cfg.PKCS11Libraries = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("SIGNBRIDGE_MAX_FRAME_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFrameBytes = n
		}
	}
}
