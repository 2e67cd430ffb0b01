package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMessageTooLarge is returned by ReadFrame when the encoded length
// prefix exceeds the configured maximum (spec.md §4.2, §8 property 1).
var ErrMessageTooLarge = errors.New("client message too large")

// ErrTruncatedFrame distinguishes a frame that ended mid-read (a short
// payload, or EOF after the length prefix but before a full payload)
// from a plain I/O error, per spec.md §4.2 ("Distinguishes premature EOF
// from I/O error in the error it surfaces").
var ErrTruncatedFrame = errors.New("unexpected EOF reading frame")

const lengthPrefixSize = 4

// FrameReader reads length-prefixed records from a handle, reusing a
// scratch buffer that grows to the next power of two whenever a record
// exceeds its current capacity — the same strategy as the original's
// sudo_pow2_roundup-based buffer reuse in logsrvd_journal.c.
type FrameReader struct {
	r       io.Reader
	maxSize uint32
	buf     []byte
}

// NewFrameReader creates a FrameReader that rejects any frame whose
// declared length exceeds maxSize.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{r: r, maxSize: maxSize}
}

// ReadFrame reads one length-prefixed record. It returns io.EOF,
// unwrapped, only when the stream ends cleanly at a frame boundary (zero
// bytes of the length prefix read). Any other truncation wraps
// ErrTruncatedFrame; oversize records return ErrMessageTooLarge.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	n, err := io.ReadFull(fr.r, lenBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading frame length: %w", ErrTruncatedFrame)
		}
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	msgLen := binary.BigEndian.Uint32(lenBuf[:])
	if msgLen > fr.maxSize {
		return nil, fmt.Errorf("%w: %d > %d: %w", ErrMessageTooLarge, msgLen, fr.maxSize, ErrProtocolViolation)
	}
	if msgLen == 0 {
		return nil, nil
	}

	if cap(fr.buf) < int(msgLen) {
		fr.buf = make([]byte, nextPowerOfTwo(msgLen))
	}
	payload := fr.buf[:msgLen]
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading frame payload: %w", ErrTruncatedFrame)
		}
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	// Return a copy: fr.buf is reused by the next call.
	out := make([]byte, msgLen)
	copy(out, payload)
	return out, nil
}

func nextPowerOfTwo(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// WriteFrame writes a 32-bit big-endian length prefix followed by
// payload. It fails if either part of the write does not complete.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing frame payload: %w", err)
		}
	}
	return nil
}
