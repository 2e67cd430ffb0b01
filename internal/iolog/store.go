// Package iolog implements C5 (I/O-Log Store) and C6 (I/O-Log Seeker):
// the per-session directory tree of stream files, the timing file that
// serializes them, and the restart protocols — seek-mode for plain
// streams, rewrite-mode for compressed ones, which cannot support
// random access.
//
// Grounded on the original's logsrvd_local.c (store_iobuf, timing_file
// formatting in store_winsize/store_suspend, and io_log_seek/
// timing_file_rewrite on restart).
package iolog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

const numStreams = int(wire.StreamTiming) // 5: ttyin, ttyout, stdin, stdout, stderr

// Store owns one session's I/O-log directory tree: the always-plaintext
// timing file plus up to five lazily-opened, optionally compressed
// stream files.
type Store struct {
	dir string

	// SessionPath is dir relative to the configured I/O-log root; it is
	// what gets sent back to the client as the restart log-id (spec.md
	// §6: "Outbound messages").
	SessionPath string

	mode       fs.FileMode
	compressed bool

	streams [numStreams]*streamFile
	timing  *os.File
}

// streamFile is one payload-stream file, optionally wrapped in a zstd
// encoder for writing.
type streamFile struct {
	file *os.File
	enc  *zstd.Encoder
}

func (sf *streamFile) Write(p []byte) (int, error) {
	if sf.enc != nil {
		return sf.enc.Write(p)
	}
	return sf.file.Write(p)
}

func (sf *streamFile) Close() error {
	var err error
	if sf.enc != nil {
		err = sf.enc.Close()
	}
	if cerr := sf.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Create builds a fresh I/O-log directory tree under root at
// sessionPath (a template path the caller derives from user, host, and
// session identifiers, per spec.md §4.5) and opens the timing file.
// Stream files are opened lazily on first write.
func Create(root, sessionPath string, compressed bool, mode fs.FileMode) (*Store, error) {
	dir := filepath.Join(root, sessionPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create I/O-log directory %s: %w: %w", dir, ErrIO, err)
	}

	timing, err := os.OpenFile(filepath.Join(dir, "timing"), os.O_RDWR|os.O_CREATE|os.O_APPEND, mode)
	if err != nil {
		return nil, fmt.Errorf("create timing file: %w: %w", ErrIO, err)
	}

	return &Store{
		dir:         dir,
		SessionPath: sessionPath,
		mode:        mode,
		compressed:  compressed,
		timing:      timing,
	}, nil
}

func (s *Store) streamHandle(stream wire.Stream) (*streamFile, error) {
	if int(stream) < 0 || int(stream) >= numStreams {
		return nil, fmt.Errorf("stream index %d out of range: %w", stream, ErrIO)
	}
	if sf := s.streams[stream]; sf != nil {
		return sf, nil
	}

	f, err := os.OpenFile(filepath.Join(s.dir, stream.Name()), os.O_RDWR|os.O_CREATE|os.O_APPEND, s.mode)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w: %w", stream.Name(), ErrIO, err)
	}

	sf := &streamFile{file: f}
	if s.compressed {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s zstd encoder: %w: %w", stream.Name(), ErrIO, err)
		}
		sf.enc = enc
	}

	s.streams[stream] = sf
	return sf, nil
}

func (s *Store) writeTiming(line string) error {
	if _, err := s.timing.WriteString(line); err != nil {
		return fmt.Errorf("write timing file: %w: %w", ErrIO, err)
	}
	return nil
}

// WriteIOBuf implements the write path in spec.md §4.5: open the
// stream on first use, write the payload, write its timing record, and
// advance elapsed by delay. dropProbability wires the random-drop test
// facility (§4.5: "may terminate any I/O-buffer write with failure
// after step 5"); zero disables it.
func (s *Store) WriteIOBuf(elapsed *timeacct.Elapsed, dropProbability float64, stream wire.Stream, delay timeacct.Delay, payload []byte) error {
	sf, err := s.streamHandle(stream)
	if err != nil {
		return err
	}
	if _, err := sf.Write(payload); err != nil {
		return fmt.Errorf("write %s stream: %w: %w", stream.Name(), ErrIO, err)
	}

	line, err := formatIOBufRecord(int(stream), delay, len(payload))
	if err != nil {
		return err
	}
	if err := s.writeTiming(line); err != nil {
		return err
	}

	elapsed.Advance(delay)

	if RandomDrop(dropProbability) {
		return fmt.Errorf("%s stream: %w", stream.Name(), ErrDropped)
	}
	return nil
}

// WriteWinsize records a window-size change: a timing-only record, no
// stream payload (spec.md §4.5: "Window-size and suspend records
// produce only a timing record").
func (s *Store) WriteWinsize(elapsed *timeacct.Elapsed, delay timeacct.Delay, rows, cols uint32) error {
	line, err := formatWinsizeRecord(delay, rows, cols)
	if err != nil {
		return err
	}
	if err := s.writeTiming(line); err != nil {
		return err
	}
	elapsed.Advance(delay)
	return nil
}

// WriteSuspend records a suspend/resume signal: also timing-only.
func (s *Store) WriteSuspend(elapsed *timeacct.Elapsed, delay timeacct.Delay, signal string) error {
	line, err := formatSuspendRecord(delay, signal)
	if err != nil {
		return err
	}
	if err := s.writeTiming(line); err != nil {
		return err
	}
	elapsed.Advance(delay)
	return nil
}

// Seal sets the timing file's mode to the store's configured mode with
// every write bit cleared, the signal the restart path uses to detect
// an already-complete session (spec.md §4.5, "Session sealing").
func (s *Store) Seal() error {
	sealedMode := s.mode.Perm() &^ 0222
	if err := os.Chmod(filepath.Join(s.dir, "timing"), sealedMode); err != nil {
		return fmt.Errorf("seal timing file: %w: %w", ErrIO, err)
	}
	return nil
}

// Close releases every handle the store has opened: the timing file
// and any stream files touched so far.
func (s *Store) Close() error {
	var err error
	for _, sf := range s.streams {
		if sf == nil {
			continue
		}
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.timing.Close(); err == nil {
		err = cerr
	}
	return err
}
