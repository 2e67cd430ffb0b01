package iolog

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

// Open reopens an existing session's I/O-log directory for a restart
// (spec.md §4.6 step 1: "Open the session's directory and the log
// paths; fail with a specific error string if absent").
func Open(root, sessionPath string, compressed bool, mode fs.FileMode) (*Store, error) {
	dir := filepath.Join(root, sessionPath)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("open I/O-log directory %s: %w: %w", dir, ErrIO, err)
	}

	timing, err := os.OpenFile(filepath.Join(dir, "timing"), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open timing file: %w: %w", ErrIO, err)
	}

	return &Store{
		dir:         dir,
		SessionPath: sessionPath,
		mode:        mode,
		compressed:  compressed,
		timing:      timing,
	}, nil
}

// Restart resumes a previously interrupted session at target,
// advancing elapsed as it replays (C6). It dispatches to seek mode for
// plain streams or rewrite mode for compressed ones, which cannot
// support random access (spec.md §4.6 steps 2-5).
func (s *Store) Restart(elapsed *timeacct.Elapsed, target timeacct.Elapsed) (bool, error) {
	info, err := s.timing.Stat()
	if err != nil {
		return false, fmt.Errorf("stat timing file: %w: %w", ErrIO, err)
	}
	if info.Mode().Perm()&0200 == 0 {
		return false, ErrAlreadyComplete
	}

	if s.compressed {
		return s.rewriteMode(elapsed, target)
	}
	return s.seekMode(elapsed, target)
}

// readTimingLine reads one LF-terminated line from f starting at its
// current position, bounded by timingRecordMaxLen, and reports the
// number of bytes consumed including the newline. It returns io.EOF
// only when no bytes were read at all.
func readTimingLine(f *os.File) (string, int64, error) {
	var buf [timingRecordMaxLen]byte
	var n int
	for {
		if n >= len(buf) {
			return "", 0, fmt.Errorf("timing record exceeds scratch buffer: %w", ErrIO)
		}
		var b [1]byte
		read, err := f.Read(b[:])
		if read == 0 {
			if err == io.EOF {
				if n == 0 {
					return "", 0, io.EOF
				}
				return "", 0, fmt.Errorf("truncated timing record: %w", ErrIO)
			}
			return "", 0, fmt.Errorf("read timing file: %w: %w", ErrIO, err)
		}
		if b[0] == '\n' {
			return string(buf[:n]), int64(n + 1), nil
		}
		buf[n] = b[0]
		n++
	}
}

// streamHandleForRestart opens stream for read+write without O_APPEND,
// so its file position can be driven explicitly by seekMode.
func (s *Store) streamHandleForRestart(stream wire.Stream) (*streamFile, error) {
	if sf := s.streams[stream]; sf != nil {
		return sf, nil
	}
	f, err := os.OpenFile(filepath.Join(s.dir, stream.Name()), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s stream for restart: %w: %w", stream.Name(), ErrIO, err)
	}
	sf := &streamFile{file: f}
	s.streams[stream] = sf
	return sf, nil
}

// seekMode replays the timing file sequentially, advancing each
// referenced stream file's position by its record's payload length
// without reading its content, until elapsed equals target (spec.md
// §4.6 step 5). On success it truncates the timing file at the
// consumed boundary and repositions it for the next write — step 6's
// "position-preserving seek... transitioning direction."
func (s *Store) seekMode(elapsed *timeacct.Elapsed, target timeacct.Elapsed) (bool, error) {
	if _, err := s.timing.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind timing file: %w: %w", ErrIO, err)
	}

	var consumed int64
	for {
		line, n, err := readTimingLine(s.timing)
		if err != nil {
			if err == io.EOF {
				return false, fmt.Errorf("reached end of timing file before restart target: %w", ErrIO)
			}
			return false, err
		}
		consumed += n

		rec, err := parseTimingLine(line)
		if err != nil {
			return false, err
		}

		if rec.EventKind >= eventTTYIn && rec.EventKind <= eventStderr {
			stream := wire.Stream(rec.EventKind)
			sf, err := s.streamHandleForRestart(stream)
			if err != nil {
				return false, err
			}
			if _, err := sf.file.Seek(int64(rec.PayloadLen), io.SeekCurrent); err != nil {
				return false, fmt.Errorf("advance %s stream position: %w: %w", stream.Name(), ErrIO, err)
			}
		}

		elapsed.Advance(rec.Delay)

		switch elapsed.Cmp(target) {
		case 0:
			if err := s.timing.Truncate(consumed); err != nil {
				return false, fmt.Errorf("truncate timing file: %w: %w", ErrIO, err)
			}
			if _, err := s.timing.Seek(consumed, io.SeekStart); err != nil {
				return false, fmt.Errorf("reposition timing file: %w: %w", ErrIO, err)
			}
			return true, nil
		case 1:
			return false, ErrRestartOvershoot
		}
	}
}

// rewriteMode handles restart of a compressed session: compressed
// streams cannot support random access, so the only correct response
// is to decompress each touched stream sequentially from the start and
// recompress exactly the records up to target into fresh files, then
// swap them in (spec.md §4.6 step 4). Every one of the five streams
// gets a replacement, not just the ones referenced before target: a
// stream whose only records fall after target must still be emptied,
// or its stale post-target data would survive underneath the client's
// re-transmission once WriteIOBuf reopens it with O_APPEND. It is
// exclusive: it returns directly on completion, never falling through
// to seekMode.
func (s *Store) rewriteMode(elapsed *timeacct.Elapsed, target timeacct.Elapsed) (bool, error) {
	oldFiles := make(map[wire.Stream]*os.File)
	oldDecoders := make(map[wire.Stream]*zstd.Decoder)
	newFiles := make(map[wire.Stream]*os.File)
	newEncoders := make(map[wire.Stream]*zstd.Encoder)
	newPaths := make(map[wire.Stream]string)

	cleanup := func() {
		for _, enc := range newEncoders {
			enc.Close()
		}
		for _, f := range newFiles {
			f.Close()
		}
		for _, dec := range oldDecoders {
			dec.Close()
		}
		for _, f := range oldFiles {
			f.Close()
		}
	}
	abort := func(newTiming *os.File, err error) (bool, error) {
		cleanup()
		newTiming.Close()
		os.Remove(newTiming.Name())
		return false, err
	}

	if _, err := s.timing.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind timing file: %w: %w", ErrIO, err)
	}

	newTiming, err := os.CreateTemp(s.dir, "timing-rewrite-*")
	if err != nil {
		return false, fmt.Errorf("create rewritten timing file: %w: %w", ErrIO, err)
	}

	reached := false
	for !reached {
		line, _, err := readTimingLine(s.timing)
		if err != nil {
			if err == io.EOF {
				break
			}
			return abort(newTiming, err)
		}

		rec, err := parseTimingLine(line)
		if err != nil {
			return abort(newTiming, err)
		}

		if rec.EventKind >= eventTTYIn && rec.EventKind <= eventStderr {
			stream := wire.Stream(rec.EventKind)

			dec, ok := oldDecoders[stream]
			if !ok {
				f, err := os.Open(filepath.Join(s.dir, stream.Name()))
				if err != nil {
					return abort(newTiming, fmt.Errorf("open %s stream for replay: %w: %w", stream.Name(), ErrIO, err))
				}
				d, err := zstd.NewReader(f)
				if err != nil {
					f.Close()
					return abort(newTiming, fmt.Errorf("open %s zstd decoder: %w: %w", stream.Name(), ErrIO, err))
				}
				oldFiles[stream], oldDecoders[stream] = f, d
				dec = d
			}

			payload := make([]byte, rec.PayloadLen)
			if _, err := io.ReadFull(dec, payload); err != nil {
				return abort(newTiming, fmt.Errorf("replay %s stream: %w: %w", stream.Name(), ErrIO, err))
			}

			enc, ok := newEncoders[stream]
			if !ok {
				path := filepath.Join(s.dir, stream.Name()+".rewrite")
				f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.mode)
				if err != nil {
					return abort(newTiming, fmt.Errorf("create rewritten %s stream: %w: %w", stream.Name(), ErrIO, err))
				}
				e, err := zstd.NewWriter(f)
				if err != nil {
					f.Close()
					return abort(newTiming, fmt.Errorf("open %s zstd encoder: %w: %w", stream.Name(), ErrIO, err))
				}
				newFiles[stream], newEncoders[stream], newPaths[stream] = f, e, path
				enc = e
			}

			if _, err := enc.Write(payload); err != nil {
				return abort(newTiming, fmt.Errorf("rewrite %s stream: %w: %w", stream.Name(), ErrIO, err))
			}
		}

		if _, err := newTiming.WriteString(line + "\n"); err != nil {
			return abort(newTiming, fmt.Errorf("rewrite timing file: %w: %w", ErrIO, err))
		}

		elapsed.Advance(rec.Delay)

		switch elapsed.Cmp(target) {
		case 0:
			reached = true
		case 1:
			return abort(newTiming, ErrRestartOvershoot)
		}
	}

	if !reached {
		return abort(newTiming, fmt.Errorf("reached end of timing file before restart target: %w", ErrIO))
	}

	// Every stream not referenced by a record before target still needs
	// a fresh, empty replacement: its on-disk file (if any) holds only
	// unacked, post-target zstd data left over from the crash, and
	// WriteIOBuf reopens streams with O_APPEND — left untouched, that
	// stale data would survive under the client's re-transmission.
	for i := 0; i < numStreams; i++ {
		stream := wire.Stream(i)
		if _, ok := newPaths[stream]; ok {
			continue
		}
		origPath := filepath.Join(s.dir, stream.Name())
		if _, err := os.Stat(origPath); os.IsNotExist(err) {
			continue
		}
		path := filepath.Join(s.dir, stream.Name()+".rewrite")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.mode)
		if err != nil {
			return abort(newTiming, fmt.Errorf("create rewritten %s stream: %w: %w", stream.Name(), ErrIO, err))
		}
		newFiles[stream], newPaths[stream] = f, path
	}

	cleanup() // flush+close every new encoder/file and old decoder/file
	if err := newTiming.Close(); err != nil {
		return false, fmt.Errorf("close rewritten timing file: %w: %w", ErrIO, err)
	}

	for stream, path := range newPaths {
		if err := os.Rename(path, filepath.Join(s.dir, stream.Name())); err != nil {
			return false, fmt.Errorf("commit rewritten %s stream: %w: %w", stream.Name(), ErrIO, err)
		}
	}
	if err := os.Rename(newTiming.Name(), filepath.Join(s.dir, "timing")); err != nil {
		return false, fmt.Errorf("commit rewritten timing file: %w: %w", ErrIO, err)
	}

	if err := s.timing.Close(); err != nil {
		return false, fmt.Errorf("close stale timing handle: %w: %w", ErrIO, err)
	}
	timing, err := os.OpenFile(filepath.Join(s.dir, "timing"), os.O_RDWR|os.O_APPEND, s.mode)
	if err != nil {
		return false, fmt.Errorf("reopen timing file: %w: %w", ErrIO, err)
	}
	s.timing = timing
	s.streams = [numStreams]*streamFile{}

	return true, nil
}
