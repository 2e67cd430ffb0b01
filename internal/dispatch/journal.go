package dispatch

import (
	"fmt"
	"path/filepath"

	"github.com/relaysink/logsrvd/internal/conn"
	"github.com/relaysink/logsrvd/internal/journal"
	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

// JournalConfig wires the relay directory and the wire codec into the
// journal dispatch table's handlers (C3/C4 plus framed writes, C2).
type JournalConfig struct {
	RelayDir       string
	Codec          wire.Codec
	MaxMessageSize uint32
}

// NewJournalTable builds the journal (relay) sink's dispatch table:
// every variant's original serialized bytes are appended to the
// session's journal file verbatim; restart reopens and seeks it.
func NewJournalTable(cfg JournalConfig) *Table {
	return &Table{
		Accept:  journalOpenAndWrite(cfg),
		Reject:  journalOpenAndWrite(cfg),
		Exit:    journalExit(cfg),
		Restart: journalRestart(cfg),
		Alert:   journalWrite(cfg),
		IOBuf:   journalWrite(cfg),
		Suspend: journalWrite(cfg),
		Winsize: journalWrite(cfg),
	}
}

// journalOpenAndWrite handles accept/reject: the journal is created by
// whichever of the two arrives first (spec.md: "Journal: created by
// the first accept/reject").
func journalOpenAndWrite(cfg JournalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		if c.Journal == nil {
			j, err := journal.Create(cfg.RelayDir)
			if err != nil {
				return c.Fail(err)
			}
			c.Journal = j
			c.JournalPath = j.Path
			c.LogID = filepath.Base(j.Path)
		}
		if err := c.Journal.Write(raw); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

// journalWrite appends raw to an already-open journal and advances
// elapsed time for variants that carry a delay.
func journalWrite(cfg JournalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		if c.Journal == nil {
			return c.Fail(fmt.Errorf("no open journal for connection: %w", wire.ErrProtocolViolation))
		}
		if err := c.Journal.Write(raw); err != nil {
			return c.Fail(err)
		}
		if delay, ok := wire.Delay(msg); ok {
			c.Elapsed.Advance(delay)
		}
		return nil
	}
}

// journalExit appends the exit record, then commits the journal from
// incoming/ to outgoing/ — the move is the commit point (spec.md §3).
func journalExit(cfg JournalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		if c.Journal == nil {
			return c.Fail(fmt.Errorf("no open journal for connection: %w", wire.ErrProtocolViolation))
		}
		if err := c.Journal.Write(raw); err != nil {
			return c.Fail(err)
		}
		if err := c.Journal.Finish(); err != nil {
			return c.Fail(err)
		}
		c.JournalPath = c.Journal.Path
		return nil
	}
}

// journalRestart reopens the journal named by the restart message's
// log ID and seeks it to the resume point (C4), leaving the journal
// open and positioned for subsequent appends.
func journalRestart(cfg JournalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		restart, ok := msg.(wire.RestartMessage)
		if !ok {
			return c.Fail(fmt.Errorf("restart handler received %T: %w", msg, wire.ErrProtocolViolation))
		}

		if c.Journal != nil {
			c.Journal.Close()
		}

		j, err := journal.Open(cfg.RelayDir, restart.LogID)
		if err != nil {
			return c.Fail(err)
		}

		c.Elapsed = timeacct.Elapsed{}
		reached, err := journal.Seek(j, cfg.Codec, cfg.MaxMessageSize, &c.Elapsed, restart.ResumePoint)
		if err != nil {
			j.Close()
			return c.Fail(err)
		}
		if !reached {
			j.Close()
			return c.Fail(fmt.Errorf("restart target not reached: %w", wire.ErrProtocolViolation))
		}

		c.Journal = j
		c.JournalPath = j.Path
		c.LogID = filepath.Base(j.Path)
		return nil
	}
}
