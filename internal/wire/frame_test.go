package wire

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 17, 1000, 65536}
	for _, size := range sizes {
		payload := make([]byte, size)
		r := rand.New(rand.NewPCG(1, uint64(size)))
		for i := range payload {
			payload[i] = byte(r.Uint64())
		}

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame(size=%d): %v", size, err)
		}

		fr := NewFrameReader(&buf, 1<<20)
		got, err := fr.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(size=%d): %v", size, err)
		}
		if size == 0 {
			if len(got) != 0 {
				t.Fatalf("ReadFrame(size=0) = %v, want empty", got)
			}
			continue
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("ReadFrame(size=%d) roundtrip mismatch", size)
		}
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	payload := make([]byte, 100)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	fr := NewFrameReader(&buf, 50)
	_, err := fr.ReadFrame()
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("ReadFrame() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader(nil), 1<<20)
	_, err := fr.ReadFrame()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame() on empty stream = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello world")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := buf.Bytes()[:len(buf.Bytes())-3]

	fr := NewFrameReader(bytes.NewReader(truncated), 1<<20)
	_, err := fr.ReadFrame()
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("ReadFrame() error = %v, want ErrTruncatedFrame", err)
	}
}

func TestReadFrameScratchBufferReuseAcrossSizes(t *testing.T) {
	var buf bytes.Buffer
	small := bytes.Repeat([]byte("a"), 8)
	large := bytes.Repeat([]byte("b"), 5000)
	if err := WriteFrame(&buf, small); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, large); err != nil {
		t.Fatal(err)
	}

	fr := NewFrameReader(&buf, 1<<20)
	got1, err := fr.ReadFrame()
	if err != nil || !bytes.Equal(got1, small) {
		t.Fatalf("first ReadFrame = %v, %v", got1, err)
	}
	got2, err := fr.ReadFrame()
	if err != nil || !bytes.Equal(got2, large) {
		t.Fatalf("second ReadFrame mismatch, err=%v", err)
	}
}
