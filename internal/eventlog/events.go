// Package eventlog implements C7 (Event-Log Emitter): structured
// accept/reject/alert/exit records written to a session's administrative
// event log, including client-supplied key/value metadata.
//
// Grounded on the teacher's relay/audit package (AuditEvent, Formatter,
// Logger), generalized from network-ACL/auth events to the session
// lifecycle events spec.md §4.7 describes, plus the exit-outcome detail
// supplemented from the original's store_exit_local (SPEC_FULL.md §12
// item 4).
package eventlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

// Kind categorizes an event-log record.
type Kind string

const (
	KindAccept Kind = "accept"
	KindReject Kind = "reject"
	KindAlert  Kind = "alert"
	KindExit   Kind = "exit"
)

// ErrUnknownMetadataKind is returned when a client-supplied InfoValue
// carries a Kind other than the three recognized variants (spec.md
// §4.7: "Unknown variants are a failure").
var ErrUnknownMetadataKind = errors.New("unrecognized metadata value kind")

// ErrIO marks a failure writing or canonicalizing an event record.
var ErrIO = errors.New("event log I/O failure")

// ExitOutcome distinguishes a normal exit from one terminated by
// signal, optionally with a core dump (SPEC_FULL.md §12 item 4).
type ExitOutcome struct {
	ExitValue  int32
	Signal     string
	DumpedCore bool
}

// Event is one structured record in a session's event log.
type Event struct {
	Timestamp  time.Time
	Kind       Kind
	SessionID  string
	SubmitTime *timeacct.Elapsed // accept, reject
	AlertTime  *timeacct.Elapsed // alert
	Reason     string            // reject, alert
	Info       []wire.InfoEntry  // accept, reject, alert
	Exit       *ExitOutcome      // exit
}

// NewAccept builds an accept event record.
func NewAccept(sessionID string, submitTime timeacct.Elapsed, info []wire.InfoEntry) *Event {
	return &Event{
		Timestamp:  time.Now(),
		Kind:       KindAccept,
		SessionID:  sessionID,
		SubmitTime: &submitTime,
		Info:       info,
	}
}

// NewReject builds a reject event record.
func NewReject(sessionID string, submitTime timeacct.Elapsed, reason string, info []wire.InfoEntry) *Event {
	return &Event{
		Timestamp:  time.Now(),
		Kind:       KindReject,
		SessionID:  sessionID,
		SubmitTime: &submitTime,
		Reason:     reason,
		Info:       info,
	}
}

// NewAlert builds an alert event record.
func NewAlert(sessionID string, alertTime timeacct.Elapsed, reason string, info []wire.InfoEntry) *Event {
	return &Event{
		Timestamp: time.Now(),
		Kind:      KindAlert,
		SessionID: sessionID,
		AlertTime: &alertTime,
		Reason:    reason,
		Info:      info,
	}
}

// NewExit builds an exit event record.
func NewExit(sessionID string, outcome ExitOutcome) *Event {
	return &Event{
		Timestamp: time.Now(),
		Kind:      KindExit,
		SessionID: sessionID,
		Exit:      &outcome,
	}
}

// renderInfo turns client-supplied metadata into a JSON-ready map,
// rejecting any entry whose value kind is not one of the three
// recognized variants.
func renderInfo(entries []wire.InfoEntry) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		switch e.Value.Kind {
		case wire.ValueInt:
			out[e.Key] = e.Value.Int
		case wire.ValueString:
			out[e.Key] = e.Value.Str
		case wire.ValueStringList:
			out[e.Key] = e.Value.List
		default:
			return nil, fmt.Errorf("metadata key %q: %w", e.Key, ErrUnknownMetadataKind)
		}
	}
	return out, nil
}
