// Package render lays out benchmark results as an aligned terminal table.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/Blobfolio/brunch/internal/stats"
)

const gap = "    "

var (
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
	header = color.New(color.FgCyan, color.Bold)
	rule   = color.New(color.FgMagenta)
	worse  = color.New(color.FgRed)
	better = color.New(color.FgGreen)
	broken = color.New(color.FgYellow, color.Bold)
)

type rowKind int

const (
	rowCells rowKind = iota
	rowRule          // full-width dashed separator
	rowBlank         // spacer: an empty line
)

type row struct {
	kind  rowKind
	cells [4]string // name, mean, change, samples
	err   string    // set instead of cells[1:] for failed entries
}

// Table collects rendered rows and prints them with column widths
// computed across the whole set before any row is emitted.
type Table struct {
	rows      []row
	hasChange bool
}

// NewTable returns a table seeded with the column headings.
func NewTable() *Table {
	t := &Table{}
	t.rows = append(t.rows, row{cells: [4]string{
		header.Sprint("Method"),
		header.Sprint("Mean"),
		header.Sprint("Change"),
		header.Sprint("Samples"),
	}})
	t.rows = append(t.rows, row{kind: rowRule})
	return t
}

// AddResult appends a measured entry.
func (t *Table) AddResult(name string, st stats.Stats, cmp stats.Comparison) {
	if cmp.Outcome == stats.Changed {
		t.hasChange = true
	}
	t.rows = append(t.rows, row{cells: [4]string{
		formatName(name),
		formatMean(st.MeanNs),
		formatChange(cmp),
		formatSamples(st.Valid, st.Total),
	}})
}

// AddFailure appends an entry that produced no statistics. The error
// text takes the place of the numbers.
func (t *Table) AddFailure(name string, err error) {
	t.rows = append(t.rows, row{
		cells: [4]string{0: formatName(name)},
		err:   broken.Sprint(err.Error()),
	})
}

// AddSpacer appends a blank layout break.
func (t *Table) AddSpacer() {
	t.rows = append(t.rows, row{kind: rowBlank})
}

// Render writes the table. The Change column is dropped entirely when no
// entry has a significant change to report.
func (t *Table) Render(w io.Writer) error {
	cols := []int{0, 1, 2, 3}
	if !t.hasChange {
		cols = []int{0, 1, 3}
	}

	// Column widths across every row; blank spacer cells contribute
	// nothing but do not reset anything either.
	widths := make([]int, len(cols))
	for _, r := range t.rows {
		if r.kind != rowCells {
			continue
		}
		if r.err != "" {
			// Failure rows only occupy the name column.
			if cw := displayWidth(r.cells[0]); cw > widths[0] {
				widths[0] = cw
			}
			continue
		}
		for i, c := range cols {
			if cw := displayWidth(r.cells[c]); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	total := len(gap) * (len(cols) - 1)
	for _, cw := range widths {
		total += cw
	}
	ruleLine := rule.Sprint(strings.Repeat("-", total))

	for _, r := range t.rows {
		var err error
		switch r.kind {
		case rowRule:
			_, err = fmt.Fprintln(w, ruleLine)
		case rowBlank:
			_, err = fmt.Fprintln(w)
		default:
			if r.err != "" {
				_, err = fmt.Fprintf(w, "%s%s%s%s\n",
					r.cells[0], pad(widths[0]-displayWidth(r.cells[0])), gap, r.err)
				break
			}
			line := make([]string, 0, len(cols))
			for i, c := range cols {
				cell := r.cells[c]
				padding := pad(widths[i] - displayWidth(cell))
				if c == 0 {
					// Name column is left-aligned.
					line = append(line, cell+padding)
				} else {
					line = append(line, padding+cell)
				}
			}
			_, err = fmt.Fprintln(w, strings.TrimRight(strings.Join(line, gap), " "))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// formatMean scales a nanosecond mean to the largest unit that keeps the
// mantissa small, chosen independently per row.
func formatMean(ns float64) string {
	var unit string
	switch {
	case ns < 1_000:
		unit = "ns"
	case ns < 1_000_000:
		ns /= 1_000
		unit = "μs"
	case ns < 1_000_000_000:
		ns /= 1_000_000
		unit = "ms"
	default:
		ns /= 1_000_000_000
		unit = "s"
	}
	return bold.Sprintf("%s %s", humanize.FormatFloat("#,###.##", ns), unit)
}

// formatChange renders a significant delta signed and colored, or a dim
// placeholder when there is nothing to report.
func formatChange(cmp stats.Comparison) string {
	if cmp.Outcome != stats.Changed {
		return dim.Sprint("---")
	}
	c := worse
	if cmp.DeltaPct < 0 {
		c = better
	}
	return c.Sprintf("%+.2f%%", cmp.DeltaPct)
}

func formatSamples(valid, total uint32) string {
	return dim.Sprintf("%s/%s",
		humanize.Comma(int64(valid)), humanize.Comma(int64(total)))
}

// formatName dims the qualifying portion of a benchmark name, keeping
// the call itself bright: for "pkg.Foo(10)" the "pkg." dims; names
// without a qualifier dim entirely.
func formatName(name string) string {
	cut := strings.LastIndexByte(name, '(')
	if cut < 0 {
		cut = len(name)
	}
	if dot := strings.LastIndexByte(name[:cut], '.'); dot >= 0 {
		return dim.Sprint(name[:dot+1]) + name[dot+1:]
	}
	if cut < len(name) {
		return dim.Sprint(name[:cut]) + name[cut:]
	}
	return dim.Sprint(name)
}

// displayWidth measures the rendered width of a cell, counting
// double-width and zero-width characters properly and skipping ANSI
// escape sequences.
func displayWidth(s string) int {
	const (
		statePlain = iota
		stateEsc   // just saw ESC
		stateCSI   // inside a control sequence
	)

	w, state := 0, statePlain
	for _, r := range s {
		switch state {
		case stateEsc:
			if r == '[' {
				state = stateCSI
			} else {
				state = statePlain
			}
		case stateCSI:
			if r >= '@' && r <= '~' {
				state = statePlain
			}
		default:
			if r == '\x1b' {
				state = stateEsc
				continue
			}
			w += runewidth.RuneWidth(r)
		}
	}
	return w
}
