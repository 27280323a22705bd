// Package logging provides a size-bounded, multi-file rolling slog.Handler
// that writes newline-delimited JSON diagnostics under the host's log
// directory.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultMaxFileBytes = 10 * 1024 * 1024
	defaultMaxBackups   = 5
	logFileName         = "host.log"
)

// RollingHandler is a slog.Handler that appends NDJSON lines to a file,
// rotating it to host.log.1, host.log.2, ... once it exceeds maxFileBytes.
// At most maxBackups rotated files are kept.
type RollingHandler struct {
	mu          *sync.Mutex
	file        **os.File
	size        *int64
	dir         string
	maxFileSize int64
	maxBackups  int
	level       slog.Leveler
	attrs       []slog.Attr
	groups      []string
}

// NewRollingHandler opens (or creates) dir/host.log and returns a handler
// writing to it. dir is created if missing.
func NewRollingHandler(dir string, level slog.Leveler) (*RollingHandler, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	f, size, err := openAppend(filepath.Join(dir, logFileName))
	if err != nil {
		return nil, err
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &RollingHandler{
		mu:          &sync.Mutex{},
		file:        &f,
		size:        &size,
		dir:         dir,
		maxFileSize: defaultMaxFileBytes,
		maxBackups:  defaultMaxBackups,
		level:       level,
	}, nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("logging: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("logging: stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}

func (h *RollingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *RollingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *RollingHandler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *RollingHandler) Handle(_ context.Context, record slog.Record) error {
	line, err := h.encode(record)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if *h.size+int64(len(line)) > h.maxFileSize {
		if err := h.rotate(); err != nil {
			return err
		}
	}
	n, err := (*h.file).Write(line)
	*h.size += int64(n)
	return err
}

func (h *RollingHandler) encode(record slog.Record) ([]byte, error) {
	entry := map[string]interface{}{
		"time":  record.Time.UTC().Format(time.RFC3339Nano),
		"level": record.Level.String(),
		"msg":   record.Message,
	}
	for _, a := range h.attrs {
		entry[a.Key] = a.Value.Any()
	}
	groupPrefix := joinGroups(h.groups)
	record.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if groupPrefix != "" {
			key = groupPrefix + "." + key
		}
		entry[key] = a.Value.Any()
		return true
	})
	line, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("logging: encode record: %w", err)
	}
	return append(line, '\n'), nil
}

func joinGroups(groups []string) string {
	out := ""
	for i, g := range groups {
		if i > 0 {
			out += "."
		}
		out += g
	}
	return out
}

// rotate closes the active file, shifts host.log.N -> host.log.N+1
// (dropping anything past maxBackups), and opens a fresh host.log. Caller
// must hold h.mu.
func (h *RollingHandler) rotate() error {
	if err := (*h.file).Close(); err != nil {
		return fmt.Errorf("logging: close for rotation: %w", err)
	}

	base := filepath.Join(h.dir, logFileName)
	for i := h.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", base, i)
		dst := fmt.Sprintf("%s.%d", base, i+1)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(base); err == nil {
		os.Rename(base, base+".1")
	}

	f, size, err := openAppend(base)
	if err != nil {
		return err
	}
	*h.file = f
	*h.size = size
	return nil
}

// Close releases the underlying file handle.
func (h *RollingHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return (*h.file).Close()
}
