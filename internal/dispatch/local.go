package dispatch

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/relaysink/logsrvd/internal/conn"
	"github.com/relaysink/logsrvd/internal/eventlog"
	"github.com/relaysink/logsrvd/internal/iolog"
	"github.com/relaysink/logsrvd/internal/wire"
)

// LocalConfig wires the I/O-log root and the shared administrative
// event log into the local dispatch table's handlers (C5/C6/C7).
type LocalConfig struct {
	IologRoot             string
	IologMode             fs.FileMode
	Compressed            bool
	RandomDropProbability float64
	EventLog              *eventlog.Logger
}

// NewLocalTable builds the local sink's dispatch table: handlers write
// I/O-log streams and timing records (C5), restart replays them (C6),
// and accept/reject/alert/exit emit event-log records (C7).
func NewLocalTable(cfg LocalConfig) *Table {
	return &Table{
		Accept:  localAccept(cfg),
		Reject:  localReject(cfg),
		Exit:    localExit(cfg),
		Restart: localRestart(cfg),
		Alert:   localAlert(cfg),
		IOBuf:   localIOBuf(cfg),
		Suspend: localSuspend(cfg),
		Winsize: localWinsize(cfg),
	}
}

// sessionPath derives the I/O-log directory's path from the session's
// user and submitting-host metadata (when present) plus the connection
// ID, mirroring the original's user/host/session-id path template
// (spec.md §4.5: "a template path derived from user, host, and session
// identifiers").
func sessionPath(connID string, info []wire.InfoEntry) string {
	user := lookupInfoString(info, "user", "unknown")
	host := lookupInfoString(info, "submithost", "unknown-host")
	return filepath.Join(host, user, connID)
}

func lookupInfoString(info []wire.InfoEntry, key, fallback string) string {
	for _, e := range info {
		if e.Key == key && e.Value.Kind == wire.ValueString && e.Value.Str != "" {
			return e.Value.Str
		}
	}
	return fallback
}

func localAccept(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		accept, ok := msg.(wire.AcceptMessage)
		if !ok {
			return c.Fail(fmt.Errorf("accept handler received %T: %w", msg, wire.ErrProtocolViolation))
		}

		c.LogIO = accept.ExpectIOBufs
		if accept.ExpectIOBufs {
			path := sessionPath(c.ID, accept.Info)
			store, err := iolog.Create(cfg.IologRoot, path, cfg.Compressed, cfg.IologMode)
			if err != nil {
				return c.Fail(err)
			}
			c.IOLog = store
			c.LogID = path
		}

		if err := cfg.EventLog.LogAccept(c.LogID, accept.SubmitTime, accept.Info); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localReject(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		reject, ok := msg.(wire.RejectMessage)
		if !ok {
			return c.Fail(fmt.Errorf("reject handler received %T: %w", msg, wire.ErrProtocolViolation))
		}
		if err := cfg.EventLog.LogReject(c.LogID, reject.SubmitTime, reject.Reason, reject.Info); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localAlert(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		alert, ok := msg.(wire.AlertMessage)
		if !ok {
			return c.Fail(fmt.Errorf("alert handler received %T: %w", msg, wire.ErrProtocolViolation))
		}
		if err := cfg.EventLog.LogAlert(c.LogID, alert.AlertTime, alert.Reason, alert.Info); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localExit(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		exit, ok := msg.(wire.ExitMessage)
		if !ok {
			return c.Fail(fmt.Errorf("exit handler received %T: %w", msg, wire.ErrProtocolViolation))
		}

		if c.IOLog != nil {
			if err := c.IOLog.Seal(); err != nil {
				return c.Fail(err)
			}
		}

		outcome := eventlog.ExitOutcome{ExitValue: exit.ExitValue, Signal: exit.Signal, DumpedCore: exit.DumpedCore}
		if err := cfg.EventLog.LogExit(c.LogID, outcome); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localRestart(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		restart, ok := msg.(wire.RestartMessage)
		if !ok {
			return c.Fail(fmt.Errorf("restart handler received %T: %w", msg, wire.ErrProtocolViolation))
		}

		store, err := iolog.Open(cfg.IologRoot, restart.LogID, cfg.Compressed, cfg.IologMode)
		if err != nil {
			return c.Fail(err)
		}

		reached, err := store.Restart(&c.Elapsed, restart.ResumePoint)
		if err != nil {
			store.Close()
			return c.Fail(err)
		}
		if !reached {
			store.Close()
			return c.Fail(fmt.Errorf("restart target not reached: %w", wire.ErrProtocolViolation))
		}

		c.IOLog = store
		c.LogIO = true
		c.LogID = restart.LogID
		return nil
	}
}

func localIOBuf(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		iobuf, ok := msg.(wire.IOBufMessage)
		if !ok {
			return c.Fail(fmt.Errorf("iobuf handler received %T: %w", msg, wire.ErrProtocolViolation))
		}
		if c.IOLog == nil {
			return c.Fail(fmt.Errorf("iobuf received with no open I/O-log: %w", wire.ErrProtocolViolation))
		}
		if err := c.IOLog.WriteIOBuf(&c.Elapsed, cfg.RandomDropProbability, iobuf.Stream, iobuf.Delay, iobuf.Data); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localSuspend(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		suspend, ok := msg.(wire.SuspendMessage)
		if !ok {
			return c.Fail(fmt.Errorf("suspend handler received %T: %w", msg, wire.ErrProtocolViolation))
		}
		if c.IOLog == nil {
			return c.Fail(fmt.Errorf("suspend received with no open I/O-log: %w", wire.ErrProtocolViolation))
		}
		if err := c.IOLog.WriteSuspend(&c.Elapsed, suspend.Delay, suspend.Signal); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}

func localWinsize(cfg LocalConfig) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		winsize, ok := msg.(wire.WinsizeMessage)
		if !ok {
			return c.Fail(fmt.Errorf("winsize handler received %T: %w", msg, wire.ErrProtocolViolation))
		}
		if c.IOLog == nil {
			return c.Fail(fmt.Errorf("winsize received with no open I/O-log: %w", wire.ErrProtocolViolation))
		}
		if err := c.IOLog.WriteWinsize(&c.Elapsed, winsize.Delay, winsize.Rows, winsize.Cols); err != nil {
			return c.Fail(err)
		}
		return nil
	}
}
