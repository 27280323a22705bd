// Package pkcs11mgr loads vendor PKCS#11 shared libraries, enumerates
// slots across all of them, and hands out authenticated, serialized
// sessions to the signer.
package pkcs11mgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/miekg/pkcs11"
	"golang.org/x/time/rate"
)

// Errors returned by Manager operations.
var (
	ErrNoLibrariesLoaded = errors.New("pkcs11mgr: no vendor library could be loaded")
	ErrSlotNotFound      = errors.New("pkcs11mgr: slot not found")
	ErrLoginFailed       = errors.New("pkcs11mgr: login failed")
)

// SlotInfo describes one enumerated slot, tagged with the library that
// produced it so a session can be opened against the right context.
type SlotInfo struct {
	LibraryPath string
	SlotID      uint
	Label       string
}

// loadedLib pairs a live PKCS#11 context with the path it was loaded
// from, for diagnostics and session routing.
type loadedLib struct {
	path string
	ctx  *pkcs11.Ctx
}

// Manager owns the set of loaded vendor libraries and the slot cache.
// All public methods are safe for concurrent use; PKCS#11 calls for a
// given session are themselves serialized by the returned Session.
type Manager struct {
	log *slog.Logger

	mu    sync.RWMutex
	libs  []loadedLib
	slots []SlotInfo

	enumLimiter *rate.Limiter
	enumMu      sync.Mutex // single-flight guard for enumeration ticks
}

// NewManager loads every library path in libraryPaths independently. A
// library that fails to load emits a warning and is skipped; startup
// only aborts if none load at all.
func NewManager(log *slog.Logger, libraryPaths []string) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		log:         log,
		enumLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}

	for _, path := range libraryPaths {
		ctx := pkcs11.New(path)
		if ctx == nil {
			log.Warn("pkcs11mgr: failed to load vendor library", "path", path)
			continue
		}
		if err := ctx.Initialize(); err != nil {
			log.Warn("pkcs11mgr: failed to initialize vendor library", "path", path, "error", err)
			continue
		}
		m.libs = append(m.libs, loadedLib{path: path, ctx: ctx})
	}

	if len(m.libs) == 0 {
		return nil, ErrNoLibrariesLoaded
	}

	if err := m.enumerateSlots(); err != nil {
		log.Warn("pkcs11mgr: initial slot enumeration failed", "error", err)
	}

	return m, nil
}

// enumerateSlots merges slots from every loaded library, skipping (with a
// warning) any slot whose token cannot be read.
func (m *Manager) enumerateSlots() error {
	m.mu.Lock()
	libs := make([]loadedLib, len(m.libs))
	copy(libs, m.libs)
	m.mu.Unlock()

	var merged []SlotInfo
	for _, lib := range libs {
		slotIDs, err := lib.ctx.GetSlotList(true)
		if err != nil {
			m.log.Warn("pkcs11mgr: failed to list slots", "library", lib.path, "error", err)
			continue
		}
		for _, slotID := range slotIDs {
			info, err := lib.ctx.GetTokenInfo(slotID)
			if err != nil {
				m.log.Warn("pkcs11mgr: unreadable token, skipping", "library", lib.path, "slot", slotID, "error", err)
				continue
			}
			merged = append(merged, SlotInfo{LibraryPath: lib.path, SlotID: slotID, Label: info.Label})
		}
	}

	m.mu.Lock()
	m.slots = merged
	m.mu.Unlock()
	return nil
}

// Slots returns the last enumerated slot list.
func (m *Manager) Slots() []SlotInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SlotInfo, len(m.slots))
	copy(out, m.slots)
	return out
}

// RefreshSlots re-enumerates slots in the background, single-flight and
// rate-limited: a tick that arrives while a prior one is still running,
// or before the limiter allows it, is skipped rather than queued.
func (m *Manager) RefreshSlots(ctx context.Context) {
	if !m.enumLimiter.Allow() {
		return
	}
	if !m.enumMu.TryLock() {
		return
	}
	defer m.enumMu.Unlock()

	if err := m.enumerateSlots(); err != nil {
		m.log.Warn("pkcs11mgr: background slot re-enumeration failed", "error", err)
	}
}

func (m *Manager) ctxForSlot(slotID uint) (*pkcs11.Ctx, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.slots {
		if s.SlotID != slotID {
			continue
		}
		for _, lib := range m.libs {
			if lib.path == s.LibraryPath {
				return lib.ctx, true
			}
		}
	}
	return nil, false
}

// OpenSession opens an authenticated session against slotID. Sessions are
// single-threaded with respect to the token: all PKCS#11 calls for one
// session are serialized through the returned Session's mutex.
func (m *Manager) OpenSession(slotID uint, pin string) (*Session, error) {
	ctx, ok := m.ctxForSlot(slotID)
	if !ok {
		return nil, fmt.Errorf("%w: slot %d", ErrSlotNotFound, slotID)
	}

	handle, err := ctx.OpenSession(slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, fmt.Errorf("pkcs11mgr: open session on slot %d: %w", slotID, err)
	}

	if err := ctx.Login(handle, pkcs11.CKU_USER, pin); err != nil {
		_ = ctx.CloseSession(handle)
		return nil, fmt.Errorf("%w: slot %d: %v", ErrLoginFailed, slotID, err)
	}

	return &Session{ctx: ctx, handle: handle, slotID: slotID}, nil
}

// Close finalizes every loaded library. Safe to call once at shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, lib := range m.libs {
		if err := lib.ctx.Finalize(); err != nil && firstErr == nil {
			firstErr = err
		}
		lib.ctx.Destroy()
	}
	return firstErr
}

// Session is an authenticated, single-session handle onto one slot. All
// PKCS#11 calls through it are serialized by mu; it implements io.Closer
// so callers can defer session release with the ordinary Go idiom.
type Session struct {
	mu     sync.Mutex
	ctx    *pkcs11.Ctx
	handle pkcs11.SessionHandle
	slotID uint
}

// Ctx exposes the underlying PKCS#11 context for callers (certselect,
// signer) that need direct object/attribute/sign calls. Callers must hold
// no assumption of thread-safety beyond what Session.mu already the
// Session provides — use WithLock for multi-call sequences that must not
// interleave with another goroutine's use of this session.
func (s *Session) Ctx() *pkcs11.Ctx { return s.ctx }

// Handle returns the underlying PKCS#11 session handle.
func (s *Session) Handle() pkcs11.SessionHandle { return s.handle }

// SlotID returns the slot this session is open against.
func (s *Session) SlotID() uint { return s.slotID }

// WithLock serializes fn against any other caller of WithLock on this
// Session, enforcing the one-session-one-caller-at-a-time PKCS#11
// contract for a multi-call sequence (e.g. find-then-sign).
func (s *Session) WithLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Close logs out and closes the session. Does not finalize the library;
// call Manager.Close for that.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ctx.Logout(s.handle)
	return s.ctx.CloseSession(s.handle)
}
