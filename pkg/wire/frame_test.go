package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	require.NoError(t, w.WriteFrame([]byte(`{"hello":"world"}`)))
	require.NoError(t, w.WriteFrame([]byte(`{"second":true}`)))

	r := NewFrameReader(&buf)
	first, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, `{"hello":"world"}`, string(first))

	second, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, `{"second":true}`, string(second))

	_, err = r.ReadFrame()
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestFrameWriterRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	oversized := make([]byte, MaxFrameBytes+1)
	err := w.WriteFrame(oversized)
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestFrameReaderShortBodyIsProtocolViolation(t *testing.T) {
	var buf bytes.Buffer
	// Declare a body of 10 bytes but only write 3.
	w := NewFrameWriter(&buf)
	require.NoError(t, w.WriteFrame([]byte("abcdefghij")))
	truncated := buf.Bytes()[:4+3]

	r := NewFrameReader(bytes.NewReader(truncated))
	_, err := r.ReadFrame()
	require.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestFrameReaderShortPrefixIsStreamClosed(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte{0x01, 0x00}))
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, ErrStreamClosed)
}
