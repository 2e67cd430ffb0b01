package eventlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/kr/text"
)

// Formatter renders an Event for the event-log backend (spec.md §4.7:
// "The emitter calls into an event-log backend ... and does not itself
// manage log files").
type Formatter interface {
	Format(event *Event) ([]byte, error)
}

// jsonRecord is the wire shape JSONFormatter marshals before
// canonicalizing, matching the three timing-adjacent fields every
// event kind may carry.
type jsonRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  Kind           `json:"event_type"`
	SessionID  string         `json:"session_id,omitempty"`
	SubmitTime *elapsedJSON   `json:"submit_time,omitempty"`
	AlertTime  *elapsedJSON   `json:"alert_time,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Exit       *ExitOutcome   `json:"exit,omitempty"`
}

type elapsedJSON struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

// JSONFormatter renders events as RFC 8785 canonical JSON, so two
// receivers processing the same event produce byte-identical output
// (SPEC_FULL.md §11).
type JSONFormatter struct{}

func (JSONFormatter) Format(event *Event) ([]byte, error) {
	metadata, err := renderInfo(event.Info)
	if err != nil {
		return nil, err
	}

	rec := jsonRecord{
		Timestamp: event.Timestamp,
		EventType: event.Kind,
		SessionID: event.SessionID,
		Reason:    event.Reason,
		Metadata:  metadata,
		Exit:      event.Exit,
	}
	if event.SubmitTime != nil {
		rec.SubmitTime = &elapsedJSON{Sec: event.SubmitTime.Sec, Nsec: event.SubmitTime.Nsec}
	}
	if event.AlertTime != nil {
		rec.AlertTime = &elapsedJSON{Sec: event.AlertTime.Sec, Nsec: event.AlertTime.Nsec}
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal event record: %w: %w", ErrIO, err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize event record: %w: %w", ErrIO, err)
	}
	return canon, nil
}

// TextFormatter renders events as human-readable text, wrapping long
// reason strings the way the teacher's audit.TextFormatter renders
// individual fields.
type TextFormatter struct {
	// Width bounds wrapped reason lines; zero uses a sane default.
	Width int
}

func (f TextFormatter) Format(event *Event) ([]byte, error) {
	width := f.Width
	if width <= 0 {
		width = 78
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", event.Timestamp.Format(time.RFC3339), event.Kind)
	if event.SessionID != "" {
		fmt.Fprintf(&b, " session=%s", event.SessionID)
	}
	if event.SubmitTime != nil {
		fmt.Fprintf(&b, " submit_time=%d.%09d", event.SubmitTime.Sec, event.SubmitTime.Nsec)
	}
	if event.AlertTime != nil {
		fmt.Fprintf(&b, " alert_time=%d.%09d", event.AlertTime.Sec, event.AlertTime.Nsec)
	}
	if event.Exit != nil {
		if event.Exit.Signal != "" {
			fmt.Fprintf(&b, " signal=%s dumped_core=%t", event.Exit.Signal, event.Exit.DumpedCore)
		} else {
			fmt.Fprintf(&b, " exit_value=%d", event.Exit.ExitValue)
		}
	}
	if event.Reason != "" {
		b.WriteString("\n")
		b.WriteString(text.Wrap(fmt.Sprintf("reason: %s", event.Reason), width))
	}

	return []byte(b.String()), nil
}
