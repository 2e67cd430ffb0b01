package wire

import (
	"encoding/json"
	"fmt"
)

// Codec turns decoded Message values into wire bytes and back. A real
// deployment would back this with the sudo log-server protocol buffer
// definitions; this module stands that codec up with JSON instead,
// since no generated protobuf package is available here (SPEC_FULL.md
// §14, Open Question 1). The core never depends on the wire format
// beyond this interface: the journal sink persists whatever bytes
// Encode produced, verbatim.
type Codec interface {
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

// envelope is the on-the-wire shape for JSONCodec: a type tag plus the
// variant's own JSON encoding.
type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Kind: m.Kind(), Payload: payload})
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", ErrUndecodable(err))
	}

	var m Message
	switch env.Kind {
	case KindHello:
		var v HelloMessage
		m = v
	case KindAccept:
		var v AcceptMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode accept message: %w", ErrUndecodable(err))
		}
		m = v
	case KindReject:
		var v RejectMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode reject message: %w", ErrUndecodable(err))
		}
		m = v
	case KindExit:
		var v ExitMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode exit message: %w", ErrUndecodable(err))
		}
		m = v
	case KindRestart:
		var v RestartMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode restart message: %w", ErrUndecodable(err))
		}
		m = v
	case KindAlert:
		var v AlertMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode alert message: %w", ErrUndecodable(err))
		}
		m = v
	case KindIOBuf:
		var v IOBufMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode iobuf message: %w", ErrUndecodable(err))
		}
		m = v
	case KindSuspend:
		var v SuspendMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode suspend message: %w", ErrUndecodable(err))
		}
		m = v
	case KindWinsize:
		var v WinsizeMessage
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode winsize message: %w", ErrUndecodable(err))
		}
		m = v
	default:
		return nil, fmt.Errorf("%w: unrecognized kind %d", ErrProtocolViolation, env.Kind)
	}
	return m, nil
}
