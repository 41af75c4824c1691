// Package brunch is a small statistical micro-benchmark runner. It
// times named callables under a sample/timeout budget, trims outliers,
// compares the result against the previous run, and prints an aligned
// summary table.
//
// A suite is just a list of benchmarks finished in one go:
//
//	var benches brunch.Benches
//	benches.Push(brunch.Run(brunch.New("fib(30)"), func() uint64 {
//		return fib(30)
//	}))
//	benches.Push(brunch.Spacer())
//	benches.Push(brunch.RunSeeded(brunch.New("double(13)"), 13, func(v int) int {
//		return v * 2
//	}))
//	if !benches.Finish() {
//		os.Exit(1)
//	}
//
// Run-to-run history is kept in a single "last run" file under the
// platform temp directory. BRUNCH_HISTORY overrides its location;
// NO_BRUNCH_HISTORY=1 disables it for the run. Setting BRUNCH_ARCHIVE
// to a sqlite path additionally appends every completed run there for
// later inspection with the brunch CLI.
package brunch

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/Blobfolio/brunch/internal/archive"
	"github.com/Blobfolio/brunch/internal/history"
	"github.com/Blobfolio/brunch/internal/render"
	"github.com/Blobfolio/brunch/internal/stats"
)

// ErrNoRun marks an entry that was pushed without a Run/RunSeeded/
// RunSeededWith call attached.
var ErrNoRun = errors.New("missing Run call")

var (
	warn = color.New(color.FgYellow, color.Bold)
	dim  = color.New(color.Faint)
)

// Benches is an ordered benchmark suite. Push entries (and spacers),
// then call Finish exactly once. The zero value is ready to use.
//
// Benchmarks run strictly one after another on the calling goroutine;
// running them concurrently would let them contend for cache and
// scheduler time and ruin the measurements.
type Benches struct {
	benches []*Bench
	out     io.Writer
}

// Push appends one benchmark to the suite.
func (bs *Benches) Push(b *Bench) {
	bs.benches = append(bs.benches, b)
}

// Extend appends benchmarks en masse.
func (bs *Benches) Extend(benches ...*Bench) {
	bs.benches = append(bs.benches, benches...)
}

// SetOutput redirects the report and warnings, which otherwise go to
// stderr.
func (bs *Benches) SetOutput(w io.Writer) {
	bs.out = w
}

// Finish runs every benchmark in insertion order, renders the summary
// table, and replaces the persisted last-run history with this run's
// statistics. It reports false when the suite was empty or any entry
// failed to produce a single sample; everything else — duplicate names,
// unreadable history, a failing save — degrades to a warning so one bad
// entry or an unwritable disk never hides the rest of the results.
func (bs *Benches) Finish() bool {
	out := bs.out
	// Progress dots are a terminal courtesy; leave them off when the
	// caller captures the output.
	progress := out == nil
	if out == nil {
		out = os.Stderr
	}

	if len(bs.benches) == 0 {
		warn.Fprintln(out, "Error: at least one benchmark is required.")
		return false
	}

	bs.warnDuplicates(out)

	if progress {
		dim.Fprintf(out, "Running %d benchmark(s) ", bs.countRunnable())
	}

	store := history.NewStore()
	prior, err := store.Load()
	if err != nil {
		warn.Fprintf(out, "Warning: history not loaded (%v); comparisons start fresh.\n", err)
	}

	table := render.NewTable()
	current := make(map[string]stats.Stats)
	failed := 0

	for _, b := range bs.benches {
		if b.spacer {
			table.AddSpacer()
			continue
		}
		if progress {
			dim.Fprint(out, ".")
		}
		if b.callable == nil {
			table.AddFailure(b.name, ErrNoRun)
			failed++
			continue
		}

		st, err := stats.Summarize(b.callable.sample(b.samples, b.timeout))
		if err != nil {
			table.AddFailure(b.name, err)
			failed++
			continue
		}

		var previous *stats.Stats
		if p, ok := prior[b.name]; ok {
			previous = &p
		}
		table.AddResult(b.name, st, stats.Compare(st, previous))

		// Writes key by name, so with duplicates the later entry wins.
		current[b.name] = st
	}

	if progress {
		dim.Fprintln(out, " done")
	}

	if err := table.Render(out); err != nil {
		warn.Fprintf(out, "Warning: report truncated (%v).\n", err)
	}

	if err := store.Save(current); err != nil {
		warn.Fprintf(out, "Warning: history not saved (%v).\n", err)
	}

	bs.archiveRun(out, current)

	return failed == 0
}

func (bs *Benches) countRunnable() int {
	n := 0
	for _, b := range bs.benches {
		if !b.spacer {
			n++
		}
	}
	return n
}

// warnDuplicates flags names reused across non-spacer entries, once per
// name. Duplicates still run, but they share one history record and the
// comparison column will make little sense for them.
func (bs *Benches) warnDuplicates(out io.Writer) {
	seen := make(map[string]int)
	for _, b := range bs.benches {
		if !b.spacer {
			seen[b.name]++
		}
	}
	for _, b := range bs.benches {
		if b.spacer || seen[b.name] < 2 {
			continue
		}
		warn.Fprintf(out, "Warning: duplicate benchmark name %q; the last run wins the history.\n", b.name)
		seen[b.name] = 0 // one warning per name
	}
}

// archiveRun appends the run to the sqlite archive when one is
// configured. Failures warn and move on, same as a failed history save.
func (bs *Benches) archiveRun(out io.Writer, current map[string]stats.Stats) {
	path := os.Getenv(archive.Env)
	if path == "" || len(current) == 0 {
		return
	}

	db, err := archive.Open(path)
	if err != nil {
		warn.Fprintf(out, "Warning: run not archived (%v).\n", err)
		return
	}
	defer db.Close()

	if _, err := db.RecordRun(time.Now(), current); err != nil {
		warn.Fprintf(out, "Warning: run not archived (%v).\n", err)
	}
}
