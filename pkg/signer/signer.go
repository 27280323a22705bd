// Package signer produces a signature artifact for one resolved object,
// dispatched by wire.DataType, over an authenticated PKCS#11 session.
package signer

import (
	"fmt"

	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// Result is the signed artifact ready for upload.
type Result struct {
	Payload []byte
}

// Sign dispatches by obj.DataType, hashing and signing content through
// sess using selection's key. Any failure is the caller's to map to
// SIGN_FAILED / INTERNAL_ERROR per spec.
func Sign(sess *pkcs11mgr.Session, selection *certselect.Selection, obj *wire.ResolvedObject, content []byte) (*Result, error) {
	signer := newPKCS11Signer(sess, selection.KeyHandle, selection.Certificate)

	switch obj.DataType {
	case wire.DataTypeText:
		payload, err := signTextLike(sess, selection, content)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: []byte(base64Encode(payload))}, nil
	case wire.DataTypeJSON:
		canonical, err := canonicalizeJSON(content)
		if err != nil {
			return nil, fmt.Errorf("signer: canonicalize json: %w", err)
		}
		payload, err := signTextLike(sess, selection, canonical)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: []byte(base64Encode(payload))}, nil
	case wire.DataTypeBinary:
		payload, err := signTextLike(sess, selection, content)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: payload}, nil
	case wire.DataTypePDF:
		payload, err := signPDF(signer, selection, obj, content)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: payload}, nil
	case wire.DataTypeXML:
		payload, err := signXML(signer, selection, obj, content)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: payload}, nil
	default:
		return nil, fmt.Errorf("signer: unsupported data type %q", obj.DataType)
	}
}
