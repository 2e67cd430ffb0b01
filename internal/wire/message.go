// Package wire defines the client message variants exchanged over the
// logsrvd wire protocol, the value types client-supplied metadata can
// carry, and the length-prefixed framing used to persist and replay
// them (C2 in the logsrvd core design).
//
// The protocol-buffer codec itself is an external collaborator per the
// core's scope; Codec below is the seam a real generated-protobuf
// implementation would plug into. JSONCodec is the stand-in used by
// this module.
package wire

import "github.com/relaysink/logsrvd/internal/timeacct"

// Kind identifies a client message variant. There are exactly nine wire
// variants; eight of them (all but KindHello) have a dispatch-table slot
// (C8). KindHello precedes the dispatch switch in the original protocol
// and carries no sink-specific handler — see SPEC_FULL.md §12.
type Kind uint8

const (
	KindHello Kind = iota
	KindAccept
	KindReject
	KindExit
	KindRestart
	KindAlert
	KindIOBuf
	KindSuspend
	KindWinsize
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindAccept:
		return "accept"
	case KindReject:
		return "reject"
	case KindExit:
		return "exit"
	case KindRestart:
		return "restart"
	case KindAlert:
		return "alert"
	case KindIOBuf:
		return "iobuf"
	case KindSuspend:
		return "suspend"
	case KindWinsize:
		return "winsize"
	default:
		return "unknown"
	}
}

// Stream identifies one of the five I/O-buffer streams, or the timing
// file. The numeric values match the event_kind used in timing records
// (§3 of spec.md: "event_kind in 0..4 matches stream index").
type Stream int

const (
	StreamTTYIn Stream = iota
	StreamTTYOut
	StreamStdin
	StreamStdout
	StreamStderr
	StreamTiming
)

var streamNames = [...]string{"ttyin", "ttyout", "stdin", "stdout", "stderr", "timing"}

// Name returns the on-disk file name for the stream.
func (s Stream) Name() string {
	if s < 0 || int(s) >= len(streamNames) {
		return "unknown"
	}
	return streamNames[s]
}

// ValueKind identifies which variant of InfoValue is populated.
type ValueKind uint8

const (
	ValueInt ValueKind = iota
	ValueString
	ValueStringList
)

// InfoValue is a client-supplied metadata value. Exactly one field is
// meaningful, selected by Kind; an InfoValue whose Kind is none of the
// three recognized variants is a protocol violation (spec.md §4.7:
// "Unknown variants are a failure").
type InfoValue struct {
	Kind ValueKind
	Int  int64
	Str  string
	List []string
}

// InfoEntry is one client-supplied key/value metadata pair, as carried
// by AcceptMessage, RejectMessage, and AlertMessage.
type InfoEntry struct {
	Key   string
	Value InfoValue
}

// Message is implemented by every wire variant.
type Message interface {
	Kind() Kind
}

// HelloMessage carries no payload of interest to this core; it exists
// so the journal seeker can recognize and skip it (SPEC_FULL.md §12).
type HelloMessage struct{}

func (HelloMessage) Kind() Kind { return KindHello }

// AcceptMessage is the first message of an accepted session.
type AcceptMessage struct {
	SubmitTime   timeacct.Elapsed
	ExpectIOBufs bool
	Info         []InfoEntry
}

func (AcceptMessage) Kind() Kind { return KindAccept }

// RejectMessage is the first message of a rejected session.
type RejectMessage struct {
	SubmitTime timeacct.Elapsed
	Reason     string
	Info       []InfoEntry
}

func (RejectMessage) Kind() Kind { return KindReject }

// ExitMessage terminates a session, normally or via signal.
type ExitMessage struct {
	ExitValue  int32
	Signal     string
	DumpedCore bool
}

func (ExitMessage) Kind() Kind { return KindExit }

// RestartMessage asks the receiver to resume a previously interrupted
// session at ResumePoint.
type RestartMessage struct {
	LogID       string
	ResumePoint timeacct.Elapsed
}

func (RestartMessage) Kind() Kind { return KindRestart }

// AlertMessage reports an out-of-band policy event (e.g. a command
// killed for violating a time limit) with its own timestamp.
type AlertMessage struct {
	AlertTime timeacct.Elapsed
	Reason    string
	Info      []InfoEntry
}

func (AlertMessage) Kind() Kind { return KindAlert }

// IOBufMessage carries one chunk of captured terminal I/O.
type IOBufMessage struct {
	Stream Stream
	Delay  timeacct.Delay
	Data   []byte
}

func (IOBufMessage) Kind() Kind { return KindIOBuf }

// SuspendMessage reports that the command was suspended by a signal.
type SuspendMessage struct {
	Delay  timeacct.Delay
	Signal string
}

func (SuspendMessage) Kind() Kind { return KindSuspend }

// WinsizeMessage reports a terminal window-size change.
type WinsizeMessage struct {
	Delay timeacct.Delay
	Rows  uint32
	Cols  uint32
}

func (WinsizeMessage) Kind() Kind { return KindWinsize }

// Delay returns the message's delay field and whether it has one.
// Variants without a delay (hello, accept, reject, exit, restart, alert)
// do not advance elapsed time (spec.md §4.4).
func Delay(m Message) (timeacct.Delay, bool) {
	switch v := m.(type) {
	case IOBufMessage:
		return v.Delay, true
	case SuspendMessage:
		return v.Delay, true
	case WinsizeMessage:
		return v.Delay, true
	default:
		return timeacct.Delay{}, false
	}
}
