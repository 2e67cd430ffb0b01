package wire

import (
	"encoding/json"
	"fmt"
	"io"
)

// logIDEnvelope is the outbound counterpart to envelope: the only
// server-to-client message this core defines (spec.md §6, "Outbound
// messages" / fmt_log_id_message). Its wire shape is a collaborator
// concern, not part of the inbound Message variant set.
type logIDEnvelope struct {
	LogID string `json:"log_id"`
}

// WriteLogIDMessage frames and writes the log-id response sent to the
// client on first accept when I/O buffers are expected, carrying the
// journal file name or I/O-log path the client names on a later restart.
func WriteLogIDMessage(w io.Writer, logID string) error {
	payload, err := json.Marshal(logIDEnvelope{LogID: logID})
	if err != nil {
		return fmt.Errorf("encode log-id message: %w", err)
	}
	return WriteFrame(w, payload)
}
