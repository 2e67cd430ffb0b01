package wire

import (
	"errors"
	"reflect"
	"testing"

	"github.com/relaysink/logsrvd/internal/timeacct"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	cases := []Message{
		HelloMessage{},
		AcceptMessage{
			SubmitTime:   timeacct.Elapsed{Sec: 100},
			ExpectIOBufs: true,
			Info: []InfoEntry{
				{Key: "user", Value: InfoValue{Kind: ValueString, Str: "alice"}},
				{Key: "argv", Value: InfoValue{Kind: ValueStringList, List: []string{"/bin/ls", "-l"}}},
				{Key: "rows", Value: InfoValue{Kind: ValueInt, Int: 24}},
			},
		},
		RejectMessage{SubmitTime: timeacct.Elapsed{Sec: 1}, Reason: "denied by policy"},
		ExitMessage{ExitValue: 1},
		ExitMessage{Signal: "KILL", DumpedCore: true},
		RestartMessage{LogID: "host/abcdef", ResumePoint: timeacct.Elapsed{Sec: 3, Nsec: 4}},
		AlertMessage{AlertTime: timeacct.Elapsed{Sec: 2}, Reason: "timeout"},
		IOBufMessage{Stream: StreamTTYOut, Delay: timeacct.Delay{Nsec: 500_000_000}, Data: []byte("hello\n")},
		SuspendMessage{Delay: timeacct.Delay{Sec: 1}, Signal: "TSTP"},
		WinsizeMessage{Delay: timeacct.Delay{Sec: 1}, Rows: 24, Cols: 80},
	}

	for _, msg := range cases {
		encoded, err := codec.Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%v): %v", msg, err)
		}
		decoded, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%v): %v", msg, err)
		}
		if !reflect.DeepEqual(decoded, msg) {
			t.Errorf("roundtrip mismatch: got %#v, want %#v", decoded, msg)
		}
	}
}

func TestJSONCodecDecodeUnknownKind(t *testing.T) {
	codec := JSONCodec{}
	_, err := codec.Decode([]byte(`{"kind": 99, "payload": null}`))
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("Decode() error = %v, want ErrProtocolViolation", err)
	}
}

func TestJSONCodecDecodeGarbage(t *testing.T) {
	codec := JSONCodec{}
	_, err := codec.Decode([]byte(`not json`))
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("Decode() error = %v, want ErrProtocolViolation", err)
	}
}
