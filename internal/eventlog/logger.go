package eventlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

// Logger is a structured event-log writer for one session's `log`
// file, adapted from the teacher's audit.Logger.
type Logger struct {
	formatter Formatter
	output    io.Writer
	mu        sync.Mutex
}

// NewLogger creates a Logger writing through formatter to output.
func NewLogger(formatter Formatter, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{formatter: formatter, output: output}
}

// Log formats and appends event, serializing concurrent writers.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.formatter.Format(event)
	if err != nil {
		return err
	}
	if _, err := l.output.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event record: %w: %w", ErrIO, err)
	}
	return nil
}

// LogAccept is a convenience wrapper building and logging an accept event.
func (l *Logger) LogAccept(sessionID string, submitTime timeacct.Elapsed, info []wire.InfoEntry) error {
	return l.Log(NewAccept(sessionID, submitTime, info))
}

// LogReject is a convenience wrapper building and logging a reject event.
func (l *Logger) LogReject(sessionID string, submitTime timeacct.Elapsed, reason string, info []wire.InfoEntry) error {
	return l.Log(NewReject(sessionID, submitTime, reason, info))
}

// LogAlert is a convenience wrapper building and logging an alert event.
func (l *Logger) LogAlert(sessionID string, alertTime timeacct.Elapsed, reason string, info []wire.InfoEntry) error {
	return l.Log(NewAlert(sessionID, alertTime, reason, info))
}

// LogExit is a convenience wrapper building and logging an exit event.
func (l *Logger) LogExit(sessionID string, outcome ExitOutcome) error {
	return l.Log(NewExit(sessionID, outcome))
}

// Close closes the underlying output if it is a Closer.
func (l *Logger) Close() error {
	if closer, ok := l.output.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
