package signer

import (
	"github.com/gowebpki/jcs"
)

// canonicalizeJSON re-serializes content per RFC 8785 (JSON Canonicalization
// Scheme) so the `json` dataType always hashes the same bytes regardless of
// the caller's original key order or whitespace.
func canonicalizeJSON(content []byte) ([]byte, error) {
	return jcs.Transform(content)
}
