package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameBytes is the hard cap on a single frame's body, per spec.
const MaxFrameBytes = 1 << 20 // 1 MiB

// ErrStreamClosed indicates the peer disconnected in an orderly fashion
// (a short read on the 4-byte length prefix).
var ErrStreamClosed = errors.New("wire: stream closed by peer")

// ErrProtocolViolation indicates a short read on a frame body, or a frame
// whose declared length exceeds MaxFrameBytes.
var ErrProtocolViolation = errors.New("wire: protocol violation")

// FrameReader reads length-prefixed JSON frames from an underlying stream.
// It is not safe for concurrent use; the framing contract is strictly
// half-duplex per frame.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads one frame. A short read on the length prefix returns
// ErrStreamClosed. A short read on the body, or a declared length over
// MaxFrameBytes, returns ErrProtocolViolation.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrStreamClosed
		}
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d", ErrProtocolViolation, n, MaxFrameBytes)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	return body, nil
}

// FrameWriter writes length-prefixed JSON frames to an underlying stream.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one frame. body must not exceed MaxFrameBytes.
func (fw *FrameWriter) WriteFrame(body []byte) error {
	if len(body) > MaxFrameBytes {
		return fmt.Errorf("%w: frame length %d exceeds %d", ErrProtocolViolation, len(body), MaxFrameBytes)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(body)
	return err
}
