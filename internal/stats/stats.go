// Package stats turns raw benchmark timings into trimmed summary
// statistics and decides whether two runs differ meaningfully.
package stats

import (
	"errors"
	"math"
	"slices"
	"time"
)

// trimThreshold is the minimum sample count for quantile trimming.
// Below it the 5th/95th cut indices are too coarse to be stable, so
// every sample counts as valid.
const trimThreshold = 20

// ErrNoSamples is returned when a benchmark produced no timings at all.
var ErrNoSamples = errors.New("no samples collected")

// Stats is the statistical summary of a single benchmark run.
type Stats struct {
	MeanNs   float64 // arithmetic mean of the valid samples
	StdDevNs float64 // population standard deviation of the valid samples
	Valid    uint32  // samples remaining after outlier trimming
	Total    uint32  // samples collected
}

// Summarize computes trimmed statistics from per-call durations.
//
// Samples are sorted and, when there are at least trimThreshold of them,
// everything outside the closed 5th..95th percentile interval is dropped
// as an outlier before the mean and deviation are taken. Cut indices use
// nearest-rank rounding on round(p * (n-1)).
func Summarize(samples []time.Duration) (Stats, error) {
	total := len(samples)
	if total == 0 {
		return Stats{}, ErrNoSamples
	}

	set := make([]float64, total)
	for i, d := range samples {
		set[i] = float64(d.Nanoseconds())
	}
	slices.Sort(set)

	valid := set
	if total >= trimThreshold {
		lo := int(math.Round(0.05 * float64(total-1)))
		hi := int(math.Round(0.95 * float64(total-1)))
		valid = set[lo : hi+1]
	}

	var sum float64
	for _, v := range valid {
		sum += v
	}
	mean := sum / float64(len(valid))

	var sumSq float64
	for _, v := range valid {
		d := v - mean
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / float64(len(valid)))

	return Stats{
		MeanNs:   mean,
		StdDevNs: stdDev,
		Valid:    uint32(len(valid)),
		Total:    uint32(total),
	}, nil
}

// Outcome classifies a run-to-run comparison.
type Outcome int

const (
	// NoHistory means there was no prior record to compare against.
	NoHistory Outcome = iota

	// Unchanged means the mean shift fell inside the significance gate.
	Unchanged

	// Changed means the mean shifted by more than two standard
	// deviations of the current run.
	Changed
)

// Comparison is the outcome of comparing a run against its history.
type Comparison struct {
	Outcome  Outcome
	DeltaPct float64 // signed percent change, set only when Changed
}

// Compare checks the current statistics against a prior run's record.
//
// A shift is only reported when the absolute mean difference exceeds two
// standard deviations of the current run; anything smaller is noise. The
// current run's deviation is used as the gate deliberately, so that a
// noisy present run cannot flag changes it has no power to detect.
func Compare(current Stats, previous *Stats) Comparison {
	if previous == nil {
		return Comparison{Outcome: NoHistory}
	}
	if previous.MeanNs <= 0 {
		// A percentage against a zero baseline is meaningless.
		return Comparison{Outcome: Unchanged}
	}

	diff := current.MeanNs - previous.MeanNs
	if math.Abs(diff) <= 2*current.StdDevNs {
		return Comparison{Outcome: Unchanged}
	}

	return Comparison{
		Outcome:  Changed,
		DeltaPct: diff / previous.MeanNs * 100,
	}
}
