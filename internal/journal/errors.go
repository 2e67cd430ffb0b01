package journal

import "errors"

// ErrLockContention is returned when the advisory write lock on a
// freshly created journal file cannot be acquired (spec.md §7,
// "contention").
var ErrLockContention = errors.New("unable to lock journal file")

// ErrRestartOvershoot is returned by Seek, with this exact text, when
// elapsed time strictly exceeds the restart target — spec.md §4.4 and
// the testable property in §8 both require this literal message.
var ErrRestartOvershoot = errors.New("invalid journal file, unable to restart")

// ErrIO marks an I/O failure (read/write/seek/rename/stat) on a journal
// file, per spec.md §7.
var ErrIO = errors.New("journal I/O failure")
