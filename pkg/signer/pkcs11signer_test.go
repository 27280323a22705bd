package signer

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestInfoPrefixSHA256(t *testing.T) {
	prefix, err := digestInfoPrefix(crypto.SHA256)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65,
		0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
	}, prefix)
}

func TestDigestInfoPrefixRejectsUnsupportedHash(t *testing.T) {
	_, err := digestInfoPrefix(crypto.SHA1)
	require.Error(t, err)
}

func TestDigestInfoPrefixConcatenatesWithDigest(t *testing.T) {
	prefix, err := digestInfoPrefix(crypto.SHA256)
	require.NoError(t, err)
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}
	prefixed := append(append([]byte{}, prefix...), digest...)
	require.Len(t, prefixed, len(prefix)+32)
	require.Equal(t, prefix, prefixed[:len(prefix)])
	require.Equal(t, digest, prefixed[len(prefix):])
}
