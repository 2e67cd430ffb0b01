package iolog

import "errors"

// ErrAlreadyComplete is returned by Restart, with this exact text, when
// the timing file's owner-write bit is already clear — spec.md §4.6
// step 2 and the testable properties in §8 both require this literal
// message.
var ErrAlreadyComplete = errors.New("log is already complete, cannot be restarted")

// ErrRestartOvershoot mirrors journal.ErrRestartOvershoot for the
// I/O-log seeker (spec.md §4.6: "Overshoot of the target during
// seeking is a corruption signal just as in C4").
var ErrRestartOvershoot = errors.New("invalid I/O-log timing file, unable to restart")

// ErrRecordOverflow is returned when a formatted timing record would
// not fit the bounded scratch buffer (spec.md §4.5 step 3: "reject
// overflow").
var ErrRecordOverflow = errors.New("timing record overflow")

// ErrIO marks an I/O failure opening, reading, writing, sealing, or
// renaming any file in a session's I/O-log directory tree.
var ErrIO = errors.New("I/O-log I/O failure")

// ErrDropped is returned by the write path when the random-drop test
// facility (spec.md §4.5: "may terminate any I/O-buffer write with
// failure ... to exercise restart paths") fires.
var ErrDropped = errors.New("I/O-log write randomly dropped")
