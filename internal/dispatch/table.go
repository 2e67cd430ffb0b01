// Package dispatch implements C8 (Dispatch Switch): a per-connection
// table mapping each of the eight client-message variants with a
// dispatch slot to one sink-specific handler, plus the two concrete
// tables (local, journal) spec.md §4.8 names.
//
// Grounded on the original's struct client_message_switch
// (cms_local/cms_journal in logsrvd_local.c/logsrvd_journal.c).
package dispatch

import (
	"fmt"

	"github.com/relaysink/logsrvd/internal/conn"
	"github.com/relaysink/logsrvd/internal/wire"
)

// Handler processes one decoded inbound message for a connection,
// given its original serialized bytes (journal handlers persist these
// verbatim; local handlers ignore them).
type Handler func(c *conn.Closure, raw []byte, msg wire.Message) error

// Table holds exactly eight handler slots, one per client message
// variant with a dispatch slot (spec.md §4.8). wire.KindHello has no
// slot here, matching the original's eight-entry switch
// (SPEC_FULL.md §12 item 1).
type Table struct {
	Accept  Handler
	Reject  Handler
	Exit    Handler
	Restart Handler
	Alert   Handler
	IOBuf   Handler
	Suspend Handler
	Winsize Handler
}

// Dispatch invokes at most one handler for msg (spec.md §3 invariant:
// "The dispatch switch invokes at most one handler per inbound
// message"). wire.HelloMessage is recognized and silently skipped,
// since it precedes the dispatch switch in the original protocol and
// carries no sink-specific handler.
func (t *Table) Dispatch(c *conn.Closure, raw []byte, msg wire.Message) error {
	switch msg.(type) {
	case wire.HelloMessage:
		return nil
	case wire.AcceptMessage:
		return t.Accept(c, raw, msg)
	case wire.RejectMessage:
		return t.Reject(c, raw, msg)
	case wire.ExitMessage:
		return t.Exit(c, raw, msg)
	case wire.RestartMessage:
		return t.Restart(c, raw, msg)
	case wire.AlertMessage:
		return t.Alert(c, raw, msg)
	case wire.IOBufMessage:
		return t.IOBuf(c, raw, msg)
	case wire.SuspendMessage:
		return t.Suspend(c, raw, msg)
	case wire.WinsizeMessage:
		return t.Winsize(c, raw, msg)
	default:
		return fmt.Errorf("%w: no dispatch slot for %T", wire.ErrProtocolViolation, msg)
	}
}
