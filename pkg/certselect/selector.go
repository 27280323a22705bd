// Package certselect matches a caller-supplied certId against the X.509
// certificates present on an open PKCS#11 session and locates the
// corresponding private key.
package certselect

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/miekg/pkcs11"

	"github.com/ASE-Bucure-ti/signbridge/pkg/pkcs11mgr"
)

// ErrCertNotFound is returned when no certificate (or no usable private
// key) matches certId.
var ErrCertNotFound = errors.New("certselect: certificate not found")

// legacySubstringMatchEnvVar gates the third, legacy tier of matching.
const legacySubstringMatchEnvVar = "SIGNBRIDGE_ALLOW_LEGACY_SERIAL_SUBSTRING_MATCH"

// Selection is the resolved certificate + key pair ready for signing.
type Selection struct {
	Certificate *x509.Certificate
	KeyHandle   pkcs11.ObjectHandle
	CertHandle  pkcs11.ObjectHandle
}

// nonRepudiationBit is the x509.KeyUsage flag for nonRepudiation (content
// commitment), tested as a mask against Certificate.KeyUsage.
const nonRepudiationBit = x509.KeyUsageContentCommitment

// Select matches certID against every X.509 certificate object on sess's
// token in three tiers — hex serial, SHA-1 thumbprint, legacy substring —
// and returns the first match together with its signing private key.
// requireNonRepudiation, when true, restricts matching to certificates
// carrying the nonRepudiation key-usage bit.
func Select(sess *pkcs11mgr.Session, certID string, requireNonRepudiation bool) (*Selection, error) {
	certs, err := findCertificates(sess)
	if err != nil {
		return nil, fmt.Errorf("certselect: enumerate certificates: %w", err)
	}
	if requireNonRepudiation {
		signing := certs[:0:0]
		for _, c := range certs {
			if c.parsed.KeyUsage&nonRepudiationBit != 0 {
				signing = append(signing, c)
			}
		}
		certs = signing
	}

	candidate := matchSerial(certs, certID)
	if candidate == nil {
		candidate = matchThumbprint(certs, certID)
	}
	if candidate == nil && legacySubstringMatchAllowed() {
		candidate = matchSerialSubstring(certs, certID)
	}
	if candidate == nil {
		return nil, ErrCertNotFound
	}

	keyHandle, err := findPrivateKey(sess, candidate.id)
	if err != nil {
		return nil, ErrCertNotFound
	}

	return &Selection{
		Certificate: candidate.parsed,
		KeyHandle:   keyHandle,
		CertHandle:  candidate.handle,
	}, nil
}

func legacySubstringMatchAllowed() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(legacySubstringMatchEnvVar)))
	return v == "1" || v == "true" || v == "yes"
}

type certRecord struct {
	handle pkcs11.ObjectHandle
	id     []byte
	parsed *x509.Certificate
}

func findCertificates(sess *pkcs11mgr.Session) ([]certRecord, error) {
	var out []certRecord
	err := sess.WithLock(func() error {
		ctx := sess.Ctx()
		handle := sess.Handle()

		template := []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
		}
		if err := ctx.FindObjectsInit(handle, template); err != nil {
			return fmt.Errorf("find objects init: %w", err)
		}
		defer ctx.FindObjectsFinal(handle)

		for {
			objs, _, err := ctx.FindObjects(handle, 16)
			if err != nil {
				return fmt.Errorf("find objects: %w", err)
			}
			if len(objs) == 0 {
				break
			}
			for _, obj := range objs {
				attrs, err := ctx.GetAttributeValue(handle, obj, []*pkcs11.Attribute{
					pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
					pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
				})
				if err != nil {
					continue
				}
				der := attrs[0].Value
				id := attrs[1].Value
				parsed, err := x509.ParseCertificate(der)
				if err != nil {
					continue
				}
				out = append(out, certRecord{handle: obj, id: id, parsed: parsed})
			}
		}
		return nil
	})
	return out, err
}

func matchSerial(certs []certRecord, certID string) *certRecord {
	wanted := strings.ToLower(strings.TrimSpace(certID))
	for i := range certs {
		serial := strings.ToLower(hex.EncodeToString(certs[i].parsed.SerialNumber.Bytes()))
		if serial == wanted {
			return &certs[i]
		}
	}
	return nil
}

func matchThumbprint(certs []certRecord, certID string) *certRecord {
	wanted := strings.ToLower(strings.TrimSpace(certID))
	if len(wanted) != sha1.Size*2 {
		return nil
	}
	for i := range certs {
		sum := sha1.Sum(certs[i].parsed.Raw)
		thumb := strings.ToLower(hex.EncodeToString(sum[:]))
		if thumb == wanted {
			return &certs[i]
		}
	}
	return nil
}

func matchSerialSubstring(certs []certRecord, certID string) *certRecord {
	wanted := strings.ToLower(strings.TrimSpace(certID))
	if wanted == "" {
		return nil
	}
	for i := range certs {
		serial := strings.ToLower(hex.EncodeToString(certs[i].parsed.SerialNumber.Bytes()))
		if strings.Contains(serial, wanted) {
			return &certs[i]
		}
	}
	return nil
}

// findPrivateKey locates the private key whose CKA_ID matches certID; if
// none matches, falls back to the first private key on the token.
func findPrivateKey(sess *pkcs11mgr.Session, certID []byte) (pkcs11.ObjectHandle, error) {
	var result pkcs11.ObjectHandle
	var found bool

	err := sess.WithLock(func() error {
		ctx := sess.Ctx()
		handle := sess.Handle()

		template := []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		}
		if err := ctx.FindObjectsInit(handle, template); err != nil {
			return fmt.Errorf("find objects init: %w", err)
		}
		defer ctx.FindObjectsFinal(handle)

		var firstKey pkcs11.ObjectHandle
		var haveFirst bool

		for {
			objs, _, err := ctx.FindObjects(handle, 16)
			if err != nil {
				return fmt.Errorf("find objects: %w", err)
			}
			if len(objs) == 0 {
				break
			}
			for _, obj := range objs {
				if !haveFirst {
					firstKey = obj
					haveFirst = true
				}
				attrs, err := ctx.GetAttributeValue(handle, obj, []*pkcs11.Attribute{
					pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
				})
				if err != nil {
					continue
				}
				if len(certID) > 0 && string(attrs[0].Value) == string(certID) {
					result = obj
					found = true
					return nil
				}
			}
		}

		if haveFirst {
			result = firstKey
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.New("certselect: no private key available")
	}
	return result, nil
}
