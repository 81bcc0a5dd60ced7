package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []int64
		expected int64
	}{
		{"three months", []int64{2, 5, 9}, 5},
		{"unsorted", []int64{9, 2, 5}, 5},
		{"single", []int64{7}, 7},
		{"even count takes lower middle", []int64{1, 2, 3, 4}, 2},
		{"duplicates", []int64{3, 3, 3, 10}, 3},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExactMedian{}.Median(tt.values))
		})
	}
}

func TestApproxMedian_MatchesExactOnSmallInputs(t *testing.T) {
	approx := ApproxMedian{Epsilon: 0.01}
	rng := rand.New(rand.NewPCG(1, 2))

	for n := 1; n <= 60; n++ {
		values := make([]int64, n)
		for i := range values {
			values[i] = rng.Int64N(500)
		}
		assert.Equal(t, ExactMedian{}.Median(values), approx.Median(values), "n=%d", n)
	}
}

func TestApproxMedian_BoundedErrorOnLargeInputs(t *testing.T) {
	const n = 20000
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i + 1)
	}
	rng := rand.New(rand.NewPCG(3, 4))
	rng.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })

	got := ApproxMedian{Epsilon: 0.01}.Median(values)

	assert.InDelta(t, n/2, got, 0.02*n)
}

func TestNewMedianEstimator(t *testing.T) {
	exact, err := NewMedianEstimator(MedianExact, 0)
	require.NoError(t, err)
	assert.IsType(t, ExactMedian{}, exact)

	approx, err := NewMedianEstimator(MedianApprox, 0.05)
	require.NoError(t, err)
	assert.Equal(t, ApproxMedian{Epsilon: 0.05}, approx)

	_, err = NewMedianEstimator(MedianApprox, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epsilon")

	_, err = NewMedianEstimator("mean", 0.01)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown median strategy")
}
