// Package host is the composition root wiring the validator, resolver,
// content store, PKCS#11 manager, certificate selector, signer, callback
// client, and pipeline engine into one per-request call.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pipeline"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
	"github.com/ASE-Bucure-ti/signbridge/pkg/resolve"
	"github.com/ASE-Bucure-ti/signbridge/pkg/validate"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// Credentials names the token slot and PIN to authenticate against. The
// operator-facing control surface that collects these (a GUI token picker
// + PIN prompt) is an external collaborator; Host only consumes the result
// through this interface, which cmd/signbridge supplies.
type Credentials interface {
	SlotAndPIN(ctx context.Context) (slotID uint, pin string, err error)
}

// Host drives one request envelope end to end and owns the
// single-request-in-flight guard: a second concurrent HandleRequest call
// is rejected rather than queued or run concurrently.
type Host struct {
	validator   *validate.Validator
	pkcs11      *pkcs11mgr.Manager
	credentials Credentials
	pipeline    *pipeline.Engine
	log         *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

func NewHost(validator *validate.Validator, mgr *pkcs11mgr.Manager, creds Credentials, engine *pipeline.Engine, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		validator:   validator,
		pkcs11:      mgr,
		credentials: creds,
		pipeline:    engine,
		log:         log.With("component", "host"),
	}
}

// HandleRequest validates, resolves, signs, and delivers one request
// frame, returning the marshaled response envelope. It never returns an
// error: every failure mode is represented inside the response envelope
// itself, per the framed-I/O contract.
func (h *Host) HandleRequest(ctx context.Context, requestFrame []byte) []byte {
	if !h.acquire() {
		return h.requestLevelError("", wire.ErrBadRequest, "request already in flight")
	}
	defer h.release()

	env, reqErr := h.validator.Validate(requestFrame)
	if reqErr != nil {
		// A validation failure means env is nil: no requestId could be
		// read reliably (it may itself be the missing/malformed field).
		return h.requestLevelError("", reqErr.Code, reqErr.Message)
	}

	objects, err := resolve.Resolve(env)
	if err != nil {
		return h.requestLevelError(env.RequestID, wire.ErrBadRequest, err.Error())
	}

	sess, selection, credErr := h.openSession(ctx, env)
	if credErr != nil {
		resp := h.pipeline.Run(ctx, env, objects, nil, nil, &pipeline.Failure{Code: credErr.code, Message: credErr.message}, nil)
		return marshalResponse(resp, h.log)
	}
	if sess != nil {
		defer sess.Close()
	}

	resp := h.pipeline.Run(ctx, env, objects, sess, selection, nil, nil)
	return marshalResponse(resp, h.log)
}

type credentialError struct {
	code    wire.ErrorCode
	message string
}

// openSession authenticates against the token and selects the
// certificate/key named by the request's cert selector. A nil session and
// error returned together means the pipeline should run with every object
// failing the same way (no session ever opened), e.g. cert not found.
func (h *Host) openSession(ctx context.Context, env *wire.RequestEnvelope) (*pkcs11mgr.Session, *certselect.Selection, *credentialError) {
	slotID, pin, err := h.credentials.SlotAndPIN(ctx)
	if err != nil {
		return nil, nil, &credentialError{wire.ErrSignFailed, "no token credentials available: " + err.Error()}
	}

	sess, err := h.pkcs11.OpenSession(slotID, pin)
	if err != nil {
		return nil, nil, &credentialError{wire.ErrSignFailed, "token session: " + err.Error()}
	}

	selection, err := certselect.Select(sess, env.Cert.CertID, false)
	if err != nil {
		sess.Close()
		return nil, nil, &credentialError{wire.ErrCertNotFound, "certificate not found: " + err.Error()}
	}

	return sess, selection, nil
}

func (h *Host) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight {
		return false
	}
	h.inFlight = true
	return true
}

func (h *Host) release() {
	h.mu.Lock()
	h.inFlight = false
	h.mu.Unlock()
}

func (h *Host) requestLevelError(requestID string, code wire.ErrorCode, message string) []byte {
	resp := &wire.ResponseEnvelope{
		ProtocolVersion: wire.ProtocolVersion,
		RequestID:       requestID,
		Status:          "error",
		Results:         []wire.ObjectResult{},
		Errors:          []wire.RequestError{{Code: code, Message: message}},
	}
	return marshalResponse(resp, h.log)
}

func marshalResponse(resp *wire.ResponseEnvelope, log *slog.Logger) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to marshal response envelope", "error", err)
		return []byte(fmt.Sprintf(`{"protocolVersion":%q,"status":"error","errors":[{"code":"INTERNAL_ERROR","message":"response serialization failed"}]}`, wire.ProtocolVersion))
	}
	return data
}
