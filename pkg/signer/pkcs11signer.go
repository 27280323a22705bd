package signer

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/miekg/pkcs11"

	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
)

// pkcs11Signer adapts an open PKCS#11 session and key handle to
// crypto.Signer, letting format-specific signers (pdfsign, the hand-rolled
// XMLDSig path) treat the hardware key like any in-memory one without the
// private key ever leaving the token.
type pkcs11Signer struct {
	sess   *pkcs11mgr.Session
	keyH   pkcs11.ObjectHandle
	pubKey crypto.PublicKey
}

// newPKCS11Signer wraps sess/keyH, reading the certificate's public key
// for crypto.Signer.Public().
func newPKCS11Signer(sess *pkcs11mgr.Session, keyH pkcs11.ObjectHandle, cert *x509.Certificate) *pkcs11Signer {
	return &pkcs11Signer{sess: sess, keyH: keyH, pubKey: cert.PublicKey}
}

func (s *pkcs11Signer) Public() crypto.PublicKey {
	return s.pubKey
}

// Sign signs digest (already hashed by the caller per opts.HashFunc()) by
// prepending the DER DigestInfo prefix for that hash and invoking the
// token's raw CKM_RSA_PKCS mechanism, so the token does not hash again.
// Only SHA-256 is supported. SignBridge's own text/json/binary path calls
// the token directly with CKM_SHA256_RSA_PKCS (see text.go); this
// adapter exists for third-party library integration (pdfsign, the XML
// path) that expect to drive a standard crypto.Signer with a pre-computed
// digest.
func (s *pkcs11Signer) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	prefix, err := digestInfoPrefix(opts.HashFunc())
	if err != nil {
		return nil, err
	}
	prefixed := append(append([]byte{}, prefix...), digest...)

	var sig []byte
	err = s.sess.WithLock(func() error {
		ctx := s.sess.Ctx()
		handle := s.sess.Handle()
		if err := ctx.SignInit(handle, []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}, s.keyH); err != nil {
			return fmt.Errorf("signer: sign init: %w", err)
		}
		out, err := ctx.Sign(handle, prefixed)
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

// digestInfoPrefix returns the DER DigestInfo prefix for h; the caller
// appends the raw digest bytes after this prefix before calling Sign.
func digestInfoPrefix(h crypto.Hash) ([]byte, error) {
	switch h {
	case crypto.SHA256:
		return []byte{
			0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65,
			0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
		}, nil
	default:
		return nil, fmt.Errorf("signer: unsupported hash algorithm %v", h)
	}
}
