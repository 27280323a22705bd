// Package pipeline drives one request's resolved objects through
// download/acquire, sign, upload, and callback delivery, accumulating
// per-object results without letting one object's failure abort its
// siblings.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ASE-Bucure-ti/signbridge/pkg/callback"
	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
	"github.com/ASE-Bucure-ti/signbridge/pkg/signer"
	"github.com/ASE-Bucure-ti/signbridge/pkg/store"
	"github.com/ASE-Bucure-ti/signbridge/pkg/telemetry"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// CancelFunc reports whether the operator has requested cancellation of
// the in-flight request. It is polled once before each object.
type CancelFunc func() bool

// signFunc matches signer.Sign's signature. Engine calls it indirectly so
// tests can substitute a fake signer without a live PKCS#11 session.
type signFunc func(sess *pkcs11mgr.Session, selection *certselect.Selection, obj *wire.ResolvedObject, content []byte) (*signer.Result, error)

// Engine owns the per-request orchestration. A single Engine instance is
// reused across requests; it holds no per-request state itself.
type Engine struct {
	store     *store.Router
	callbacks *callback.Client
	telemetry *telemetry.Provider
	log       *slog.Logger
	sign      signFunc
}

func NewEngine(s *store.Router, c *callback.Client, t *telemetry.Provider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: s, callbacks: c, telemetry: t, log: log.With("component", "pipeline"), sign: signer.Sign}
}

type objectError struct {
	code    wire.ErrorCode
	message string
}

// Failure describes a reason every object in a request should fail before
// any PKCS#11 call is attempted, e.g. a credential or token-session error
// raised while opening the session. Its code and message are reported both
// on the per-object error callbacks and in the response envelope.
type Failure struct {
	Code    wire.ErrorCode
	Message string
}

// Run drives objects to completion in declaration order and composes the
// response envelope. preflight, when non-nil, fails every object with its
// code/message before any PKCS#11 call is attempted (sess/selection are
// then typically nil too, since no session was ever opened).
func (e *Engine) Run(ctx context.Context, env *wire.RequestEnvelope, objects []wire.ResolvedObject, sess *pkcs11mgr.Session, selection *certselect.Selection, preflight *Failure, cancel CancelFunc) *wire.ResponseEnvelope {
	start := time.Now()
	reqCtx, span := e.telemetry.StartRequestSpan(ctx, env.RequestID)
	defer span.End()

	results := make([]wire.ObjectResult, 0, len(objects))
	errs := make([]wire.RequestError, 0)

	cancelled := false
	for i := range objects {
		obj := objects[i]

		if !cancelled && cancel != nil && cancel() {
			cancelled = true
		}
		if cancelled {
			errs = append(errs, wire.RequestError{ID: obj.ID, Code: wire.ErrCancelledByUser, Message: "cancelled by operator"})
			e.postError(reqCtx, env, &obj, wire.ErrCancelledByUser, "cancelled by operator")
			continue
		}

		if preflight != nil {
			errs = append(errs, wire.RequestError{ID: obj.ID, Code: preflight.Code, Message: preflight.Message})
			e.postError(reqCtx, env, &obj, preflight.Code, preflight.Message)
			continue
		}

		if sess == nil || selection == nil {
			errs = append(errs, wire.RequestError{ID: obj.ID, Code: wire.ErrCertNotFound, Message: "no certificate selected"})
			e.postError(reqCtx, env, &obj, wire.ErrCertNotFound, "no certificate selected")
			continue
		}

		objCtx, objSpan := e.telemetry.StartObjectSpan(reqCtx, obj.ID)
		objStart := time.Now()
		result, objErr := e.runObject(objCtx, env, obj, sess, selection)
		e.telemetry.RecordObject(objCtx, string(obj.DataType), objErr != nil, time.Since(objStart))
		objSpan.End()

		if objErr != nil {
			errs = append(errs, wire.RequestError{ID: obj.ID, Code: objErr.code, Message: objErr.message})
			e.postError(reqCtx, env, &obj, objErr.code, objErr.message)
			continue
		}
		results = append(results, *result)
	}

	status := "ok"
	if len(errs) > 0 {
		status = "error"
		if len(results) > 0 {
			status = "partial"
		}
	}

	return &wire.ResponseEnvelope{
		ProtocolVersion: wire.ProtocolVersion,
		RequestID:       env.RequestID,
		Status:          status,
		Results:         results,
		Errors:          errs,
		Metadata:        env.Metadata,
		Metrics:         wire.Metrics{TotalMs: time.Since(start).Milliseconds()},
	}
}

// runObject performs the per-object sequence: progress(signing) → acquire
// → sign → progress(uploading) → upload → success callback.
func (e *Engine) runObject(ctx context.Context, env *wire.RequestEnvelope, obj wire.ResolvedObject, sess *pkcs11mgr.Session, selection *certselect.Selection) (*wire.ObjectResult, *objectError) {
	if err := e.postProgress(ctx, env, &obj, "signing", 10, "acquiring and signing content"); err != nil {
		var statusErr *callback.StatusError
		if errors.As(err, &statusErr) {
			return nil, &objectError{wire.ErrProgressEndpointFailed, err.Error()}
		}
		e.log.WarnContext(ctx, "progress callback delivery failed", "object_id", obj.ID, "error", err)
	}

	content, err := e.acquireContent(ctx, &obj)
	if err != nil {
		return nil, &objectError{wire.ErrDownloadFailed, err.Error()}
	}

	sigResult, err := e.sign(sess, selection, &obj, content)
	if err != nil {
		return nil, &objectError{wire.ErrSignFailed, err.Error()}
	}

	if err := e.postProgress(ctx, env, &obj, "uploading", 70, "uploading signed artifact"); err != nil {
		var statusErr *callback.StatusError
		if errors.As(err, &statusErr) {
			return nil, &objectError{wire.ErrProgressEndpointFailed, err.Error()}
		}
		e.log.WarnContext(ctx, "progress callback delivery failed", "object_id", obj.ID, "error", err)
	}

	uploadResult, err := e.upload(ctx, &obj, sigResult.Payload)
	if err != nil {
		return nil, &objectError{wire.ErrUploadFailed, err.Error()}
	}

	callbackResult := ""
	if err := e.postSuccess(ctx, env, &obj, uploadResult); err != nil {
		callbackResult = err.Error()
		e.log.WarnContext(ctx, "success callback delivery failed", "object_id", obj.ID, "error", err)
	}

	return &wire.ObjectResult{
		ID:             obj.ID,
		Status:         "ok",
		UploadResult:   *uploadResult,
		CallbackResult: callbackResult,
	}, nil
}

func (e *Engine) acquireContent(ctx context.Context, obj *wire.ResolvedObject) ([]byte, error) {
	if obj.DownloadURL == "" {
		return []byte(obj.InlineContent), nil
	}
	rc, err := e.store.Fetch(ctx, obj.DownloadURL, obj.DownloadMethod, obj.DownloadHeaders)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (e *Engine) upload(ctx context.Context, obj *wire.ResolvedObject, payload []byte) (*wire.UploadResult, error) {
	contentType := obj.SignedContentType.ContentTypeHeader()
	res, err := e.store.Put(ctx, obj.UploadURL, obj.UploadMethod, contentType, obj.UploadHeaders, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return &wire.UploadResult{StatusCode: res.StatusCode, ResponseBody: string(res.ResponseBody)}, nil
}

func (e *Engine) postProgress(ctx context.Context, env *wire.RequestEnvelope, obj *wire.ResolvedObject, status string, percent int, message string) error {
	if obj.ProgressURL == "" {
		return nil
	}
	body := wire.ProgressCallback{
		ObjectID:        obj.ID,
		RequestID:       env.RequestID,
		Status:          status,
		PercentComplete: percent,
		Message:         message,
		Metadata:        env.Metadata,
	}
	return e.callbacks.Post(ctx, obj.ProgressURL, obj.CallbackHeaders, body)
}

func (e *Engine) postSuccess(ctx context.Context, env *wire.RequestEnvelope, obj *wire.ResolvedObject, uploadResult *wire.UploadResult) error {
	body := wire.SuccessCallback{
		ObjectID:     obj.ID,
		RequestID:    env.RequestID,
		Status:       "completed",
		UploadResult: *uploadResult,
		Timestamp:    callback.Timestamp(time.Now()),
		Metadata:     env.Metadata,
	}
	return e.callbacks.Post(ctx, obj.OnSuccess, obj.CallbackHeaders, body)
}

func (e *Engine) postError(ctx context.Context, env *wire.RequestEnvelope, obj *wire.ResolvedObject, code wire.ErrorCode, message string) {
	body := wire.ErrorCallback{
		ObjectID:  obj.ID,
		RequestID: env.RequestID,
		Status:    "failed",
		Error:     wire.CallbackError{Code: code, Message: message},
		Timestamp: callback.Timestamp(time.Now()),
		Metadata:  env.Metadata,
	}
	if err := e.callbacks.Post(ctx, obj.OnError, obj.CallbackHeaders, body); err != nil {
		e.log.WarnContext(ctx, "error callback delivery failed", "object_id", obj.ID, "error", err)
	}
}
