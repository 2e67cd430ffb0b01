package dispatch

import (
	"testing"

	"github.com/relaysink/logsrvd/internal/conn"
	"github.com/relaysink/logsrvd/internal/wire"
)

func countingHandler(calls *int) Handler {
	return func(c *conn.Closure, raw []byte, msg wire.Message) error {
		*calls++
		return nil
	}
}

func TestDispatchRoutesToMatchingSlot(t *testing.T) {
	var acceptCalls, exitCalls int
	table := &Table{
		Accept:  countingHandler(&acceptCalls),
		Reject:  countingHandler(new(int)),
		Exit:    countingHandler(&exitCalls),
		Restart: countingHandler(new(int)),
		Alert:   countingHandler(new(int)),
		IOBuf:   countingHandler(new(int)),
		Suspend: countingHandler(new(int)),
		Winsize: countingHandler(new(int)),
	}

	c := conn.New("sess", conn.SinkLocal)
	if err := table.Dispatch(c, nil, wire.AcceptMessage{}); err != nil {
		t.Fatalf("Dispatch accept: %v", err)
	}
	if err := table.Dispatch(c, nil, wire.ExitMessage{}); err != nil {
		t.Fatalf("Dispatch exit: %v", err)
	}

	if acceptCalls != 1 {
		t.Errorf("accept handler called %d times, want 1", acceptCalls)
	}
	if exitCalls != 1 {
		t.Errorf("exit handler called %d times, want 1", exitCalls)
	}
}

func TestDispatchHelloHasNoSlot(t *testing.T) {
	table := &Table{
		Accept:  countingHandler(new(int)),
		Reject:  countingHandler(new(int)),
		Exit:    countingHandler(new(int)),
		Restart: countingHandler(new(int)),
		Alert:   countingHandler(new(int)),
		IOBuf:   countingHandler(new(int)),
		Suspend: countingHandler(new(int)),
		Winsize: countingHandler(new(int)),
	}

	c := conn.New("sess", conn.SinkLocal)
	if err := table.Dispatch(c, nil, wire.HelloMessage{}); err != nil {
		t.Fatalf("Dispatch hello should succeed with no handler invoked: %v", err)
	}
}
