package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Run("errors on empty input", func(t *testing.T) {
		_, err := Summarize(nil)
		require.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("single sample", func(t *testing.T) {
		s, err := Summarize([]time.Duration{42 * time.Nanosecond})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), s.Total)
		assert.Equal(t, uint32(1), s.Valid)
		assert.Equal(t, 42.0, s.MeanNs)
		assert.Equal(t, 0.0, s.StdDevNs)
	})

	t.Run("no trimming below threshold", func(t *testing.T) {
		samples := make([]time.Duration, 19)
		for i := range samples {
			samples[i] = time.Duration(i+1) * time.Nanosecond
		}
		// Even an extreme outlier stays in a small set.
		samples[18] = time.Second

		s, err := Summarize(samples)
		require.NoError(t, err)
		assert.Equal(t, uint32(19), s.Total)
		assert.Equal(t, uint32(19), s.Valid)
	})

	t.Run("trims fifth and ninety-fifth percentiles", func(t *testing.T) {
		samples := make([]time.Duration, 100)
		for i := range samples {
			samples[i] = time.Duration(i+1) * time.Nanosecond
		}

		s, err := Summarize(samples)
		require.NoError(t, err)

		// Cut indices round(0.05*99)=5 and round(0.95*99)=94 keep the
		// closed interval 6ns..95ns, 90 samples.
		assert.Equal(t, uint32(100), s.Total)
		assert.Equal(t, uint32(90), s.Valid)
		assert.InDelta(t, 50.5, s.MeanNs, 1e-9)

		// Population stddev of 90 consecutive integers.
		want := math.Sqrt((90.0*90.0 - 1) / 12.0)
		assert.InDelta(t, want, s.StdDevNs, 1e-9)
	})

	t.Run("identical samples have zero deviation", func(t *testing.T) {
		samples := make([]time.Duration, 50)
		for i := range samples {
			samples[i] = 7 * time.Nanosecond
		}

		s, err := Summarize(samples)
		require.NoError(t, err)
		assert.Equal(t, 7.0, s.MeanNs)
		assert.Equal(t, 0.0, s.StdDevNs)
	})

	t.Run("bounded trimming", func(t *testing.T) {
		for _, n := range []int{20, 21, 99, 100, 2500, 10007} {
			samples := make([]time.Duration, n)
			for i := range samples {
				samples[i] = time.Duration(i*13+1) * time.Nanosecond
			}

			s, err := Summarize(samples)
			require.NoError(t, err)
			assert.LessOrEqual(t, s.Valid, s.Total, "n=%d", n)

			floor := uint32(n) - 2*uint32(math.Ceil(0.05*float64(n)))
			assert.GreaterOrEqual(t, s.Valid, floor, "n=%d", n)
			assert.GreaterOrEqual(t, s.Valid, uint32(1), "n=%d", n)
		}
	})
}

func TestCompare(t *testing.T) {
	t.Run("no history", func(t *testing.T) {
		c := Compare(Stats{MeanNs: 100}, nil)
		assert.Equal(t, NoHistory, c.Outcome)
	})

	t.Run("self comparison is unchanged", func(t *testing.T) {
		s := Stats{MeanNs: 123.4, StdDevNs: 5.6, Valid: 90, Total: 100}
		prev := s
		c := Compare(s, &prev)
		assert.Equal(t, Unchanged, c.Outcome)
	})

	t.Run("shift beyond two deviations is a change", func(t *testing.T) {
		prev := Stats{MeanNs: 100, StdDevNs: 5}
		c := Compare(Stats{MeanNs: 130, StdDevNs: 5}, &prev)
		require.Equal(t, Changed, c.Outcome)
		assert.InDelta(t, 30.0, c.DeltaPct, 1e-9)
	})

	t.Run("small shift is noise", func(t *testing.T) {
		prev := Stats{MeanNs: 100, StdDevNs: 5}
		c := Compare(Stats{MeanNs: 103, StdDevNs: 5}, &prev)
		assert.Equal(t, Unchanged, c.Outcome)
	})

	t.Run("gate is strict", func(t *testing.T) {
		prev := Stats{MeanNs: 100, StdDevNs: 5}
		c := Compare(Stats{MeanNs: 110, StdDevNs: 5}, &prev)
		assert.Equal(t, Unchanged, c.Outcome)
	})

	t.Run("improvement carries a negative delta", func(t *testing.T) {
		prev := Stats{MeanNs: 200, StdDevNs: 1}
		c := Compare(Stats{MeanNs: 150, StdDevNs: 1}, &prev)
		require.Equal(t, Changed, c.Outcome)
		assert.InDelta(t, -25.0, c.DeltaPct, 1e-9)
	})

	t.Run("zero baseline never reports", func(t *testing.T) {
		prev := Stats{MeanNs: 0, StdDevNs: 0}
		c := Compare(Stats{MeanNs: 50, StdDevNs: 1}, &prev)
		assert.Equal(t, Unchanged, c.Outcome)
	})
}
