package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ASE-Bucure-ti/signbridge/internal/version"
)

func TestRunVersionPrintsVersionAndExitsZero(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"signbridge", "--version"}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 0, code)
	require.Equal(t, version.Version+"\n", out.String())
	require.Empty(t, errOut.String())
}

func TestRunHelpPrintsUsageAndExitsZero(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"signbridge", "--help"}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "usage: signbridge")
}

func TestRunUnknownArgumentExitsTwo(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"signbridge", "--bogus"}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "unknown argument")
}

func TestRunWithoutPKCS11LibraryConfiguredFailsDuringWiring(t *testing.T) {
	t.Setenv("SIGNBRIDGE_LOG_DIR", t.TempDir())
	t.Setenv("SIGNBRIDGE_PKCS11_LIBRARIES", "")

	var out, errOut bytes.Buffer
	code := Run(nil, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "init pkcs11")
}
