package journal

import (
	"errors"
	"fmt"
	"io"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

// Seek replays j forward from its current file position, decoding each
// framed record and advancing elapsed as records carrying a delay are
// consumed, until elapsed equals target exactly (C4).
//
// It returns true once elapsed == target; it returns false with
// ErrRestartOvershoot if elapsed ever strictly exceeds target, since
// that means the sender's cumulative delay disagrees with the stored
// journal — treated as corruption, not guessed at (spec.md §4.4). No
// record is ever executed during a seek, only counted: this doubles as
// a structural validation of the journal up to the restart point.
func Seek(j *Journal, codec wire.Codec, maxSize uint32, elapsed *timeacct.Elapsed, target timeacct.Elapsed) (bool, error) {
	fr := wire.NewFrameReader(j.Reader(), maxSize)

	for {
		payload, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, fmt.Errorf("unexpected EOF reading journal file: %w", ErrIO)
			}
			return false, fmt.Errorf("%w: %w", ErrIO, err)
		}

		msg, err := codec.Decode(payload)
		if err != nil {
			return false, err
		}

		if delay, ok := wire.Delay(msg); ok {
			elapsed.Advance(delay)
		}

		switch elapsed.Cmp(target) {
		case 0:
			return true, nil
		case 1:
			return false, ErrRestartOvershoot
		}
	}
}
