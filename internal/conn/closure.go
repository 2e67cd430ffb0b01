// Package conn implements C9 (Connection Closure): the per-connection
// state container tying together elapsed-time accounting, the selected
// sink's open handles, and the error slot the event loop reads on
// teardown.
//
// Grounded on spec.md §3's Connection Closure data model and adapted
// from the teacher's relay/session package (ClientSession's mutex-
// guarded counters, Manager's dual-index registry) generalized from
// network sessions to audit-log sessions.
package conn

import (
	"os"
	"sync"

	"github.com/relaysink/logsrvd/internal/eventlog"
	"github.com/relaysink/logsrvd/internal/iolog"
	"github.com/relaysink/logsrvd/internal/journal"
	"github.com/relaysink/logsrvd/internal/timeacct"
)

// SinkKind selects which concrete dispatch table a connection uses.
type SinkKind int

const (
	SinkLocal SinkKind = iota
	SinkJournal
)

func (k SinkKind) String() string {
	switch k {
	case SinkLocal:
		return "local"
	case SinkJournal:
		return "journal"
	default:
		return "unknown"
	}
}

// Closure is the per-connection aggregate spec.md §3 describes:
// elapsed_time, sink_kind, errstr, evlog, log_io, iolog handles,
// journal handle/path, and the event-loop's outbound-write
// registration (write_ev), which remains an opaque collaborator value
// since the event loop itself is out of this core's scope (spec.md §1).
type Closure struct {
	mu sync.Mutex

	// ID identifies this connection for registry lookups and as the
	// basis of the restart log-id sent back to the client.
	ID   string
	Sink SinkKind

	Elapsed timeacct.Elapsed
	err     error

	EvLog  *eventlog.Logger
	evFile *os.File

	LogIO bool
	IOLog *iolog.Store

	Journal     *journal.Journal
	JournalPath string

	// LogID is the identifier handed back to the client on first
	// accept so it can request a restart later (spec.md §6: "Outbound
	// messages"): the journal's file name under incoming/ for the
	// journal sink, or the I/O-log session path for the local sink.
	LogID string

	// WriteEvent is the event loop's outbound-write registration
	// handle; this core never dereferences it.
	WriteEvent any
}

// New creates an empty closure for a connection using sink.
func New(id string, sink SinkKind) *Closure {
	return &Closure{ID: id, Sink: sink}
}

// SetEventLog attaches the session's `log` file and formatter, taking
// ownership of f (closed by Close).
func (c *Closure) SetEventLog(f *os.File, formatter eventlog.Formatter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evFile = f
	c.EvLog = eventlog.NewLogger(formatter, f)
}

// Fail records err in the closure's error slot if one is not already
// set (spec.md §3: "set by any handler on failure; consumed by the
// event loop") and returns it unchanged, so handlers can `return
// c.Fail(err)`.
func (c *Closure) Fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	return err
}

// Err returns the first error recorded by Fail, or nil.
func (c *Closure) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases every handle the closure owns, on every exit path
// (spec.md: "Closure ... destroyed when the connection closes (all
// file handles released on every exit path)").
func (c *Closure) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.IOLog != nil {
		if cerr := c.IOLog.Close(); err == nil {
			err = cerr
		}
	}
	if c.Journal != nil {
		if cerr := c.Journal.Close(); err == nil {
			err = cerr
		}
	}
	if c.evFile != nil {
		if cerr := c.evFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
