package brunch

import (
	"fmt"
	"strings"
	"time"
)

// Defaults: a benchmark stops after DefaultSamples samples or
// DefaultTimeout of wall-clock time, whichever comes first.
const (
	DefaultSamples = 2500
	DefaultTimeout = 10 * time.Second
)

// maxNameBytes caps the encoded length of a benchmark name; the history
// format keys records by name and has no business storing novellas.
const maxNameBytes = 65535

// Bench is a single benchmark definition. Construct with New, tweak the
// budget with WithSamples/WithTimeout, and attach the code under test
// with Run, RunSeeded, or RunSeededWith. The name doubles as the history
// key, so it should be unique across the suite and stable between runs;
// something like "pkg.Foo(10)" reads best in the report.
type Bench struct {
	name     string
	samples  uint32
	timeout  time.Duration
	callable callable
	spacer   bool
}

// New returns a benchmark with the default sample and timeout budget.
//
// The name is normalized: leading/trailing whitespace is trimmed and
// internal runs of whitespace collapse to single spaces. New panics if
// the normalized name is empty or longer than 65,535 bytes; both are
// suite construction bugs, not runtime conditions.
func New(name string) *Bench {
	name = normalizeName(name)
	if name == "" {
		panic("brunch: benchmark name is required")
	}
	if len(name) > maxNameBytes {
		panic(fmt.Sprintf("brunch: benchmark name exceeds %d bytes", maxNameBytes))
	}
	return &Bench{
		name:    name,
		samples: DefaultSamples,
		timeout: DefaultTimeout,
	}
}

// Spacer returns an entry that renders as a blank line in the report,
// useful for visually grouping related benchmarks. It carries no
// callable and produces no statistics.
func Spacer() *Bench {
	return &Bench{spacer: true}
}

// WithSamples overrides the sample target. Panics on zero.
func (b *Bench) WithSamples(n uint32) *Bench {
	if n == 0 {
		panic("brunch: sample target must be at least 1")
	}
	b.samples = n
	return b
}

// WithTimeout overrides the wall-clock budget. Panics on non-positive
// durations.
func (b *Bench) WithTimeout(d time.Duration) *Bench {
	if d <= 0 {
		panic("brunch: timeout must be positive")
	}
	b.timeout = d
	return b
}

// Name returns the normalized benchmark name.
func (b *Bench) Name() string { return b.name }

// IsSpacer reports whether this entry is a layout break.
func (b *Bench) IsSpacer() bool { return b.spacer }

// Run attaches a callback that needs no input. The result is routed
// through a black box so the work cannot be optimized away.
func Run[R any](b *Bench, fn func() R) *Bench {
	b.callable = zeroArg[R]{fn: fn}
	return b
}

// RunSeeded attaches a callback fed a fresh copy of seed on every call.
// The copy happens outside the timed window, so mutation inside the
// callback never leaks between iterations. Seeds whose copies share
// underlying storage (slices, maps, pointers) should use RunSeededWith
// with a factory instead.
func RunSeeded[T, R any](b *Bench, seed T, fn func(T) R) *Bench {
	b.callable = seeded[T, R]{seed: seed, fn: fn}
	return b
}

// RunSeededWith attaches a callback fed the result of factory on every
// call. The factory runs outside the timed window.
func RunSeededWith[T, R any](b *Bench, factory func() T, fn func(T) R) *Bench {
	b.callable = seededWith[T, R]{factory: factory, fn: fn}
	return b
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
