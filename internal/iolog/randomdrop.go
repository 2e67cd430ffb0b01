package iolog

import "math/rand/v2"

// RandomDrop reports whether an artificial write failure should be
// injected for this call, per probability (spec.md §4.5's random-drop
// facility, a test-harness-only knob for exercising restart paths).
// The production default, a probability of zero, never drops; no RNG
// library appears anywhere in the retrieved example pack for this
// purpose, so this uses math/rand/v2 directly.
func RandomDrop(probability float64) bool {
	if probability <= 0 {
		return false
	}
	return rand.Float64() < probability
}
