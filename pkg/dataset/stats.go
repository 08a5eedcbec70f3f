package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LayerStats summarizes the value distribution of one layer.
type LayerStats struct {
	Min, Max     float64
	Mean, StdDev float64
	// Sum is the total deposited quantity, in simulator units.
	Sum float64
	// NonZero counts cells that received any signal.
	NonZero int
}

// ComputeStats scans a layer once and summarizes it.
func ComputeStats(m MatrixView) LayerStats {
	vals := widen(m.Values())

	s := LayerStats{
		Min: floats.Min(vals),
		Max: floats.Max(vals),
		Sum: floats.Sum(vals),
	}
	if len(vals) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	} else {
		s.Mean = vals[0]
	}
	for _, v := range vals {
		if v != 0 {
			s.NonZero++
		}
	}
	return s
}

// SliceQuantiles returns the low and high empirical quantiles of plane z.
// It is used to derive a threshold window that shows most of a slice.
func SliceQuantiles(m MatrixView, z int, low, high float64) (lo, hi float32, err error) {
	if low < 0 || high > 1 || low > high {
		return 0, 0, fmt.Errorf("invalid quantile range [%v,%v]", low, high)
	}
	vals := widen(m.Plane(z))
	sort.Float64s(vals)
	lo = float32(stat.Quantile(low, stat.Empirical, vals, nil))
	hi = float32(stat.Quantile(high, stat.Empirical, vals, nil))
	return lo, hi, nil
}

func widen(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
