package iolog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaysink/logsrvd/internal/timeacct"
)

// Event kinds for timing records. 0..4 match wire.Stream's stream
// index (spec.md §3: "event_kind in 0..4 matches stream index");
// winsize and suspend extend the same numbering, matching the
// original's IO_EVENT_WINSIZE/IO_EVENT_SUSPEND constants.
const (
	eventTTYIn = iota
	eventTTYOut
	eventStdin
	eventStdout
	eventStderr
	eventWinsize
	eventSuspend
)

// timingRecordMaxLen bounds the scratch buffer a timing record is
// formatted into, mirroring the original's fixed-size snprintf buffer
// (spec.md §4.5 step 3: "into a bounded scratch buffer; reject
// overflow").
const timingRecordMaxLen = 1024

// formatIOBufRecord renders an I/O-buffer timing record: "<event_kind>
// <sec>.<nsec_9digit> <payload_len>\n".
func formatIOBufRecord(eventKind int, d timeacct.Delay, payloadLen int) (string, error) {
	line := fmt.Sprintf("%d %d.%09d %d\n", eventKind, d.Sec, d.Nsec, payloadLen)
	if len(line) > timingRecordMaxLen {
		return "", ErrRecordOverflow
	}
	return line, nil
}

// formatWinsizeRecord renders a window-size timing record: "<event_kind>
// <sec>.<nsec_9digit> <rows> <cols>\n".
func formatWinsizeRecord(d timeacct.Delay, rows, cols uint32) (string, error) {
	line := fmt.Sprintf("%d %d.%09d %d %d\n", eventWinsize, d.Sec, d.Nsec, rows, cols)
	if len(line) > timingRecordMaxLen {
		return "", ErrRecordOverflow
	}
	return line, nil
}

// formatSuspendRecord renders a suspend timing record: "<event_kind>
// <sec>.<nsec_9digit> <signal_name>\n".
func formatSuspendRecord(d timeacct.Delay, signal string) (string, error) {
	line := fmt.Sprintf("%d %d.%09d %s\n", eventSuspend, d.Sec, d.Nsec, signal)
	if len(line) > timingRecordMaxLen {
		return "", ErrRecordOverflow
	}
	return line, nil
}

// timingRecord is one parsed line of the timing file, covering all
// three record grammars in spec.md §3.
type timingRecord struct {
	EventKind  int
	Delay      timeacct.Delay
	PayloadLen int    // iobuf records only
	Rows, Cols uint32 // winsize records only
	Signal     string // suspend records only
}

// parseTimingLine parses one LF-stripped timing record line.
func parseTimingLine(line string) (timingRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return timingRecord{}, fmt.Errorf("malformed timing record %q: %w", line, ErrIO)
	}

	kind, err := strconv.Atoi(fields[0])
	if err != nil {
		return timingRecord{}, fmt.Errorf("malformed timing record %q: %w", line, ErrIO)
	}

	secStr, nsecStr, ok := strings.Cut(fields[1], ".")
	if !ok {
		return timingRecord{}, fmt.Errorf("malformed timing record %q: %w", line, ErrIO)
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return timingRecord{}, fmt.Errorf("malformed timing record %q: %w", line, ErrIO)
	}
	nsec, err := strconv.ParseInt(nsecStr, 10, 64)
	if err != nil {
		return timingRecord{}, fmt.Errorf("malformed timing record %q: %w", line, ErrIO)
	}

	rec := timingRecord{EventKind: kind, Delay: timeacct.Delay{Sec: sec, Nsec: nsec}}

	switch {
	case kind >= eventTTYIn && kind <= eventStderr:
		if len(fields) != 3 {
			return timingRecord{}, fmt.Errorf("malformed iobuf timing record %q: %w", line, ErrIO)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return timingRecord{}, fmt.Errorf("malformed iobuf timing record %q: %w", line, ErrIO)
		}
		rec.PayloadLen = n
	case kind == eventWinsize:
		if len(fields) != 4 {
			return timingRecord{}, fmt.Errorf("malformed winsize timing record %q: %w", line, ErrIO)
		}
		rows, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return timingRecord{}, fmt.Errorf("malformed winsize timing record %q: %w", line, ErrIO)
		}
		cols, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return timingRecord{}, fmt.Errorf("malformed winsize timing record %q: %w", line, ErrIO)
		}
		rec.Rows, rec.Cols = uint32(rows), uint32(cols)
	case kind == eventSuspend:
		if len(fields) != 3 {
			return timingRecord{}, fmt.Errorf("malformed suspend timing record %q: %w", line, ErrIO)
		}
		rec.Signal = fields[2]
	default:
		return timingRecord{}, fmt.Errorf("unrecognized timing event kind %d: %w", kind, ErrIO)
	}

	return rec, nil
}
