// Package histogram computes the "gist" of a layer: a fixed-bucket
// distribution of its values used by the remote UI to pick threshold bounds.
package histogram

import (
	"errors"
	"fmt"
	"math"

	"mcmlview/pkg/dataset"
)

// DefaultBuckets is the bucket count used when none is configured.
const DefaultBuckets = 100

// ErrInvalidBuckets is returned for a bucket count below one.
var ErrInvalidBuckets = errors.New("bucket count must be positive")

// Gist is the distribution of one layer.
type Gist struct {
	Min, Max float64
	Counts   []uint64
	// Discarded counts values whose bucket index fell outside [0,n) or that
	// were NaN. Rounding at the maximum can push one value past the last bucket.
	Discarded uint64
}

// Total returns the number of values that landed in a bucket.
func (g Gist) Total() uint64 {
	var n uint64
	for _, c := range g.Counts {
		n += c
	}
	return n
}

// Compute scans the layer twice: once for its range, once to bucket values
// with width (max-min)/(n-1). A constant layer puts every value in bucket 0.
func Compute(m dataset.MatrixView, n int) (Gist, error) {
	if n < 1 {
		return Gist{}, fmt.Errorf("%w: %d", ErrInvalidBuckets, n)
	}

	vals := m.Values()
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		f := float64(v)
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}

	g := Gist{Min: lo, Max: hi, Counts: make([]uint64, n)}
	if lo > hi {
		// every value was NaN
		g.Min, g.Max = 0, 0
		g.Discarded = uint64(len(vals))
		return g, nil
	}

	step := (hi - lo) / float64(n-1)
	for _, v := range vals {
		f := float64(v)
		if math.IsNaN(f) {
			g.Discarded++
			continue
		}
		idx := 0
		if step > 0 && !math.IsInf(step, 0) {
			idx = int(math.Floor((f - lo) / step))
		}
		if idx < 0 || idx >= n {
			g.Discarded++
			continue
		}
		g.Counts[idx]++
	}
	return g, nil
}
