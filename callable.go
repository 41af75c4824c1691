package brunch

import "time"

// callable is the sealed set of benchmark body shapes. Each
// implementation owns its own sampling loop so that per-iteration setup
// (seed copies, factory calls) stays outside the timed window.
type callable interface {
	sample(target uint32, timeout time.Duration) []time.Duration
}

// blackBox launders a value through a call the compiler cannot see
// into, so the benchmarked expression is never eliminated as dead code.
//
//go:noinline
func blackBox[T any](v T) T {
	return v
}

type zeroArg[R any] struct {
	fn func() R
}

func (c zeroArg[R]) sample(target uint32, timeout time.Duration) []time.Duration {
	samples := make([]time.Duration, 0, target)
	start := time.Now()
	for {
		t0 := time.Now()
		blackBox(c.fn())
		samples = append(samples, time.Since(t0))

		// Budget is checked between calls only; the first call always
		// completes even if it alone blows the timeout.
		if uint32(len(samples)) >= target || time.Since(start) > timeout {
			return samples
		}
	}
}

type seeded[T, R any] struct {
	seed T
	fn   func(T) R
}

func (c seeded[T, R]) sample(target uint32, timeout time.Duration) []time.Duration {
	samples := make([]time.Duration, 0, target)
	start := time.Now()
	for {
		seed := c.seed // fresh copy, outside the timed window

		t0 := time.Now()
		blackBox(c.fn(seed))
		samples = append(samples, time.Since(t0))

		if uint32(len(samples)) >= target || time.Since(start) > timeout {
			return samples
		}
	}
}

type seededWith[T, R any] struct {
	factory func() T
	fn      func(T) R
}

func (c seededWith[T, R]) sample(target uint32, timeout time.Duration) []time.Duration {
	samples := make([]time.Duration, 0, target)
	start := time.Now()
	for {
		seed := c.factory() // factory cost excluded from the timed window

		t0 := time.Now()
		blackBox(c.fn(seed))
		samples = append(samples, time.Since(t0))

		if uint32(len(samples)) >= target || time.Since(start) > timeout {
			return samples
		}
	}
}
