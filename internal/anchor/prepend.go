package anchor

import (
	"math"
	"slices"
)

// DetectPrepend returns how many items were added in front of old to make
// next, or 0 when the change is not a prepend. The old first item has to
// reappear at k > 0 and the rest of old has to fill next from there to the
// end; anything else, a reorder or an append, is not a prepend.
func DetectPrepend[K comparable](old, next []K) int {
	if k := DetectPrependWithAppend(old, next); k > 0 && len(next)-k == len(old) {
		return k
	}
	return 0
}

// DetectPrependWithAppend is DetectPrepend allowing more items after the old
// tail, as a list that gained history and new messages in one update has.
func DetectPrependWithAppend[K comparable](old, next []K) int {
	if len(old) == 0 || len(next) <= len(old) {
		return 0
	}
	k := slices.Index(next, old[0])
	if k <= 0 || len(next)-k < len(old) {
		return 0
	}
	if !slices.Equal(next[k:k+len(old)], old) {
		return 0
	}
	return k
}

// sanitizeMeasured turns a measurement result into ledger input. A result of
// the wrong length is discarded entirely; zero, negative and non-finite
// heights become NaN, i.e. unmeasured.
func sanitizeMeasured(heights []float64, want int) ([]float64, bool) {
	out := unmeasured(want)
	if len(heights) != want {
		return out, false
	}
	for i, h := range heights {
		if h > 0 && !math.IsInf(h, 0) {
			out[i] = h
		}
	}
	return out, true
}

func unmeasured(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
