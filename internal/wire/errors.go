package wire

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation marks an error as one of spec.md §7's "protocol
// violation" kind: oversize record, undecodable payload, unknown
// metadata variant, or restart overshoot.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrUndecodable wraps err so that errors.Is(_, ErrProtocolViolation)
// reports true, marking an unparsable wire payload.
func ErrUndecodable(err error) error {
	return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
}
