package signer

import (
	"encoding/base64"
	"fmt"

	"github.com/miekg/pkcs11"

	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
)

// signTextLike invokes the token's SHA256-with-RSA mechanism directly on
// content: CKM_SHA256_RSA_PKCS performs the hash-and-sign in one call, so
// the raw content (not a pre-computed digest) is what gets passed to Sign.
func signTextLike(sess *pkcs11mgr.Session, selection *certselect.Selection, content []byte) ([]byte, error) {
	var sig []byte
	err := sess.WithLock(func() error {
		ctx := sess.Ctx()
		handle := sess.Handle()
		mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_SHA256_RSA_PKCS, nil)}
		if err := ctx.SignInit(handle, mech, selection.KeyHandle); err != nil {
			return fmt.Errorf("signer: sign init: %w", err)
		}
		out, err := ctx.Sign(handle, content)
		if err != nil {
			return fmt.Errorf("signer: sign: %w", err)
		}
		sig = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
