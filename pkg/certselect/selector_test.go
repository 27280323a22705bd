package certselect

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T, serial int64, usage x509.KeyUsage) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     usage,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	parsed, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return parsed
}

func TestMatchSerialExactCaseInsensitive(t *testing.T) {
	cert := selfSignedCert(t, 0xABCD, x509.KeyUsageDigitalSignature)
	certs := []certRecord{{parsed: cert}}

	hexSerial := cert.SerialNumber.Text(16)
	require.NotNil(t, matchSerial(certs, hexSerial))
	require.NotNil(t, matchSerial(certs, strings.ToUpper(hexSerial)))
}

func TestMatchSerialNoMatch(t *testing.T) {
	cert := selfSignedCert(t, 1, x509.KeyUsageDigitalSignature)
	certs := []certRecord{{parsed: cert}}
	require.Nil(t, matchSerial(certs, "deadbeef"))
}

func TestMatchThumbprintExact(t *testing.T) {
	cert := selfSignedCert(t, 2, x509.KeyUsageDigitalSignature)
	certs := []certRecord{{parsed: cert}}

	sum := shaSumHex(cert.Raw)
	match := matchThumbprint(certs, sum)
	require.NotNil(t, match)
}

func TestMatchThumbprintRejectsWrongLength(t *testing.T) {
	cert := selfSignedCert(t, 3, x509.KeyUsageDigitalSignature)
	certs := []certRecord{{parsed: cert}}
	require.Nil(t, matchThumbprint(certs, "ab"))
}

func TestMatchSerialSubstringLegacy(t *testing.T) {
	cert := selfSignedCert(t, 0xAABBCCDD, x509.KeyUsageDigitalSignature)
	certs := []certRecord{{parsed: cert}}

	hexSerial := cert.SerialNumber.Text(16)
	substr := hexSerial[1 : len(hexSerial)-1]
	if substr == "" {
		t.Skip("serial too short for a meaningful substring test")
	}
	match := matchSerialSubstring(certs, substr)
	require.NotNil(t, match)
}

func TestLegacySubstringMatchGatedByEnvVar(t *testing.T) {
	t.Setenv("SIGNBRIDGE_ALLOW_LEGACY_SERIAL_SUBSTRING_MATCH", "")
	require.False(t, legacySubstringMatchAllowed())

	t.Setenv("SIGNBRIDGE_ALLOW_LEGACY_SERIAL_SUBSTRING_MATCH", "true")
	require.True(t, legacySubstringMatchAllowed())
}

func TestNonRepudiationBitDetection(t *testing.T) {
	withBit := selfSignedCert(t, 4, x509.KeyUsageContentCommitment)
	withoutBit := selfSignedCert(t, 5, x509.KeyUsageDigitalSignature)

	require.NotZero(t, withBit.KeyUsage&nonRepudiationBit)
	require.Zero(t, withoutBit.KeyUsage&nonRepudiationBit)
}

func shaSumHex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
