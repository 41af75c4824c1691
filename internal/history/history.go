// Package history persists the statistics of the most recently completed
// benchmark run, so the next run can report run-to-run changes.
package history

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Blobfolio/brunch/internal/stats"
)

// FileName is the default history file, placed in the platform temp
// directory unless EnvPath overrides the location.
const FileName = "__brunch.last"

// Recognized environment variables.
const (
	// EnvPath overrides the history file location.
	EnvPath = "BRUNCH_HISTORY"

	// EnvDisable suppresses history load and save for the run when its
	// value is exactly "1".
	EnvDisable = "NO_BRUNCH_HISTORY"
)

// Store reads and writes the single last-run record file. The zero value
// is not useful; construct with NewStore, which resolves the location
// from the environment once.
type Store struct {
	path     string
	disabled bool
}

// NewStore resolves the history location from the environment.
func NewStore() *Store {
	if os.Getenv(EnvDisable) == "1" {
		return &Store{disabled: true}
	}
	if p := os.Getenv(EnvPath); p != "" {
		return &Store{path: p}
	}
	return &Store{path: filepath.Join(os.TempDir(), FileName)}
}

// Enabled reports whether history is being kept this run.
func (s *Store) Enabled() bool { return !s.disabled }

// Path returns the resolved history file location, empty when disabled.
func (s *Store) Path() string { return s.path }

// Load reads the last-run records. It never fails the run: a missing or
// unreadable file yields an empty record set, and unparseable lines are
// skipped. A non-nil error is purely informational and should be
// surfaced as a warning alongside the (possibly partial) records.
func (s *Store) Load() (map[string]stats.Stats, error) {
	records := make(map[string]stats.Stats)
	if s.disabled {
		return records, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return records, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, st, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		records[name] = st
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read history: %w", err)
	}
	if skipped > 0 {
		return records, fmt.Errorf("skipped %d unparseable history line(s)", skipped)
	}
	return records, nil
}

// Save rewrites the history file with the given records, replacing any
// prior content. The write goes to a temp file first and is renamed into
// place so a crash mid-write cannot leave a half-written history.
func (s *Store) Save(records map[string]stats.Stats) error {
	if s.disabled {
		return nil
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for name, st := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			name,
			strconv.FormatFloat(st.MeanNs, 'g', -1, 64),
			strconv.FormatFloat(st.StdDevNs, 'g', -1, 64))
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// parseLine decodes one "name<TAB>mean<TAB>stddev" record. Records with
// missing fields, malformed numbers, or nonsensical values (negative,
// NaN, infinite) are rejected.
func parseLine(line string) (string, stats.Stats, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) != 3 {
		return "", stats.Stats{}, false
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", stats.Stats{}, false
	}

	mean, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", stats.Stats{}, false
	}
	stdDev, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", stats.Stats{}, false
	}
	if mean < 0 || stdDev < 0 ||
		math.IsNaN(mean) || math.IsInf(mean, 0) ||
		math.IsNaN(stdDev) || math.IsInf(stdDev, 0) {
		return "", stats.Stats{}, false
	}

	return name, stats.Stats{MeanNs: mean, StdDevNs: stdDev}, true
}
