package domain

import (
	"fmt"
	"math"
	"slices"

	"github.com/beorn7/perks/quantile"
)

// Median strategy names accepted by NewMedianEstimator.
const (
	MedianExact  = "exact"
	MedianApprox = "approx"
)

// MedianEstimator computes the 50th percentile of a district's monthly counts.
type MedianEstimator interface {
	Median(values []int64) int64
}

// NewMedianEstimator returns the estimator registered under name.
// epsilon is only used by the approximate strategy.
func NewMedianEstimator(name string, epsilon float64) (MedianEstimator, error) {
	switch name {
	case MedianExact:
		return ExactMedian{}, nil
	case MedianApprox:
		if epsilon <= 0 || epsilon >= 0.5 {
			return nil, fmt.Errorf("median epsilon %g out of range (0, 0.5)", epsilon)
		}
		return ApproxMedian{Epsilon: epsilon}, nil
	default:
		return nil, fmt.Errorf("unknown median strategy %q", name)
	}
}

// ExactMedian sorts the values and returns the nearest-rank median,
// the lower middle element for even counts.
type ExactMedian struct{}

func (ExactMedian) Median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[nearestRank(len(sorted), 0.5)]
}

// ApproxMedian feeds the values through a targeted quantile stream.
// Inputs smaller than the stream's buffer are answered exactly; larger ones
// stay within Epsilon of the true rank.
type ApproxMedian struct {
	Epsilon float64
}

func (m ApproxMedian) Median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	stream := quantile.NewTargeted(map[float64]float64{0.5: m.Epsilon})
	for _, v := range values {
		stream.Insert(float64(v))
	}
	return int64(math.Round(stream.Query(0.5)))
}

// nearestRank returns the zero-based index of the q-th percentile in a
// sorted slice of length n.
func nearestRank(n int, q float64) int {
	i := int(math.Ceil(float64(n) * q))
	if i > 0 {
		i--
	}
	return i
}
