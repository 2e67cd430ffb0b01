// Package journal implements C3 (Journal Store) and C4 (Journal Seeker):
// creating, locking, appending to, rewinding, renaming, and reopening
// per-session journal files under <relay_dir>/incoming/ and outgoing/,
// and replaying a journal forward to a restart target.
//
// Grounded on the original's logsrvd_journal.c (journal_create,
// journal_finish, journal_seek, journal_restart) and adapted into the
// teacher's Go idiom (explicit *os.File, bufio.Writer for buffered
// appends, golang.org/x/sys/unix for the advisory lock the original
// gets from sudo_lock_file/fcntl).
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/relaysink/logsrvd/internal/wire"
)

const tempPattern = "relay-*"

// Journal is an open, per-session journal file: either still being
// captured under incoming/, or (after Finish) committed under
// outgoing/. It owns one underlying *os.File for its whole lifetime.
type Journal struct {
	file     *os.File
	w        *bufio.Writer
	relayDir string

	// Path is the journal's current on-disk path. It is always
	// reallocated (never mutated in place) when it changes — spec.md
	// §9 explicitly rejects the original's length-match overwrite
	// heuristic.
	Path string
}

// Create makes a new, empty, locked journal file under
// <relayDir>/incoming/ with a randomized name, and opens it read+write.
func Create(relayDir string) (*Journal, error) {
	incomingDir := filepath.Join(relayDir, "incoming")
	if err := os.MkdirAll(incomingDir, 0711); err != nil {
		return nil, fmt.Errorf("create incoming dir: %w: %w", ErrIO, err)
	}

	f, err := os.CreateTemp(incomingDir, tempPattern)
	if err != nil {
		if pathErr, ok := err.(*os.PathError); ok && pathErr.Err == unix.ENAMETOOLONG {
			return nil, fmt.Errorf("journal path too long: %w: %w", ErrIO, err)
		}
		return nil, fmt.Errorf("unable to create journal file: %w: %w", ErrIO, err)
	}
	path := f.Name()

	if err := f.Chmod(0600); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("chmod journal file: %w: %w", ErrIO, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %w", ErrLockContention, err)
	}

	return &Journal{
		file:     f,
		w:        bufio.NewWriter(f),
		relayDir: relayDir,
		Path:     path,
	}, nil
}

// Open reopens an existing incoming journal named by logID, which may
// carry a leading "hostname/" prefix that must be stripped (spec.md §6,
// "Restart identifier").
func Open(relayDir, logID string) (*Journal, error) {
	suffix := logID
	if idx := strings.IndexByte(logID, '/'); idx >= 0 {
		suffix = logID[idx+1:]
	}
	path := filepath.Join(relayDir, "incoming", suffix)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal file %s: %w: %w", path, ErrIO, err)
	}

	return &Journal{
		file:     f,
		w:        bufio.NewWriter(f),
		relayDir: relayDir,
		Path:     path,
	}, nil
}

// Write appends one framed record to the journal's buffered writer.
func (j *Journal) Write(payload []byte) error {
	if err := wire.WriteFrame(j.w, payload); err != nil {
		return fmt.Errorf("unable to write journal file: %w: %w", ErrIO, err)
	}
	return nil
}

// Flush pushes buffered writes to the underlying file without closing
// or committing it. Tests use this to simulate a connection that
// crashed mid-session, leaving the journal under incoming/ for a later
// restart.
func (j *Journal) Flush() error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("unable to write journal file: %w: %w", ErrIO, err)
	}
	return nil
}

// Finish flushes buffered writes, rewinds to offset zero, and commits
// the journal by renaming it from incoming/ to a freshly allocated name
// under outgoing/. The rename is the commit point (spec.md §3).
func (j *Journal) Finish() error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("unable to write journal file: %w: %w", ErrIO, err)
	}
	if _, err := j.file.Seek(0, 0); err != nil {
		return fmt.Errorf("unable to rewind journal file: %w: %w", ErrIO, err)
	}

	outgoingDir := filepath.Join(j.relayDir, "outgoing")
	if err := os.MkdirAll(outgoingDir, 0711); err != nil {
		return fmt.Errorf("create outgoing dir: %w: %w", ErrIO, err)
	}

	placeholder, err := os.CreateTemp(outgoingDir, tempPattern)
	if err != nil {
		return fmt.Errorf("unable to rename journal file: %w: %w", ErrIO, err)
	}
	outgoingPath := placeholder.Name()
	placeholder.Close()

	if err := os.Rename(j.Path, outgoingPath); err != nil {
		os.Remove(outgoingPath) // best-effort unlink of the placeholder
		return fmt.Errorf("unable to rename journal file %s -> %s: %w: %w", j.Path, outgoingPath, ErrIO, err)
	}

	j.Path = outgoingPath
	return nil
}

// Close releases the journal's file handle. Safe to call after Finish.
func (j *Journal) Close() error {
	return j.file.Close()
}

// Reader returns the journal's underlying file as a raw io.Reader for
// the seeker (C4), which must read directly off the descriptor rather
// than through a buffering reader so that the file position after a
// successful seek is exactly where the next write should resume.
func (j *Journal) Reader() *os.File { return j.file }
