package brunch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blobfolio/brunch/internal/archive"
	"github.com/Blobfolio/brunch/internal/history"
	"github.com/Blobfolio/brunch/internal/stats"
)

func suiteEnv(t *testing.T) string {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })

	path := filepath.Join(t.TempDir(), "bench.last")
	t.Setenv(history.EnvPath, path)
	t.Setenv(history.EnvDisable, "")
	t.Setenv(archive.Env, "")
	return path
}

func loadHistory(t *testing.T) map[string]stats.Stats {
	t.Helper()
	records, err := history.NewStore().Load()
	require.NoError(t, err)
	return records
}

func TestFinishBasic(t *testing.T) {
	suiteEnv(t)

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(Run(New("add(2,2)").WithSamples(100).WithTimeout(time.Second), func() int {
		return 2 + 2
	}))
	bs.Push(Spacer())
	bs.Push(RunSeeded(New("double(13)").WithSamples(50), 13, func(v int) int {
		return v * 2
	}))

	ok := bs.Finish()
	assert.True(t, ok)

	out := buf.String()
	assert.Contains(t, out, "add(2,2)")
	assert.Contains(t, out, "double(13)")
	assert.Contains(t, out, "Method")
	assert.NotContains(t, out, "Change", "first run has no history to compare against")

	records := loadHistory(t)
	require.Len(t, records, 2)
	assert.GreaterOrEqual(t, records["add(2,2)"].MeanNs, 0.0)
}

func TestFinishEmptySuite(t *testing.T) {
	suiteEnv(t)

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)

	assert.False(t, bs.Finish())
	assert.Contains(t, buf.String(), "at least one benchmark")
}

func TestFinishDuplicateNames(t *testing.T) {
	suiteEnv(t)

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Extend(
		Run(New("dup(1)").WithSamples(20), func() int {
			time.Sleep(time.Millisecond)
			return 1
		}),
		Run(New("dup(1)").WithSamples(20), func() int {
			return 1
		}),
	)

	ok := bs.Finish()
	assert.True(t, ok, "duplicates are a warning, not a failure")

	warnings := strings.Count(buf.String(), "duplicate benchmark name")
	assert.Equal(t, 1, warnings, "exactly one warning per duplicated name")
	assert.Equal(t, 2, strings.Count(buf.String(), "dup(1)")-warnings, "both entries render")

	records := loadHistory(t)
	require.Len(t, records, 1)
	// The second entry is instant; the first sleeps a millisecond per
	// call. The persisted record must belong to the later entry.
	assert.Less(t, records["dup(1)"].MeanNs, 500_000.0)
}

func TestFinishHistoryDisabled(t *testing.T) {
	path := suiteEnv(t)
	t.Setenv(history.EnvDisable, "1")

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(Run(New("foo(1)").WithSamples(30), func() int { return 1 }))

	require.True(t, bs.Finish())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "disabled history must not touch disk")
	assert.NotContains(t, buf.String(), "Change")
}

func TestFinishReportsChangeAgainstHistory(t *testing.T) {
	suiteEnv(t)

	// Seed a prior record so absurdly slow that the new run is a
	// guaranteed significant improvement.
	require.NoError(t, history.NewStore().Save(map[string]stats.Stats{
		"foo(1)": {MeanNs: 1e12, StdDevNs: 1},
	}))

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(Run(New("foo(1)").WithSamples(30), func() int { return 1 }))

	require.True(t, bs.Finish())

	out := buf.String()
	assert.Contains(t, out, "Change")
	// Nanoseconds against a seconds-scale baseline rounds to a full
	// -100.00% improvement.
	assert.Contains(t, out, "-100.00%")
}

func TestFinishCorruptHistoryWarns(t *testing.T) {
	path := suiteEnv(t)
	require.NoError(t, os.WriteFile(path, []byte("complete nonsense\n"), 0o644))

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(Run(New("foo(1)").WithSamples(30), func() int { return 1 }))

	assert.True(t, bs.Finish(), "corrupt history never fails the run")
	assert.Contains(t, buf.String(), "history not loaded")

	records := loadHistory(t)
	assert.Len(t, records, 1, "save still replaced the corrupt file")
}

func TestFinishEntryWithoutRun(t *testing.T) {
	suiteEnv(t)

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(New("forgotten(1)"))
	bs.Push(Run(New("fine(2)").WithSamples(30), func() int { return 1 }))

	assert.False(t, bs.Finish(), "an unproducing entry fails the suite")

	out := buf.String()
	assert.Contains(t, out, "forgotten(1)")
	assert.Contains(t, out, ErrNoRun.Error())
	assert.Contains(t, out, "fine(2)", "remaining entries still run")

	records := loadHistory(t)
	require.Len(t, records, 1)
	assert.Contains(t, records, "fine(2)")
}

func TestFinishArchivesRun(t *testing.T) {
	suiteEnv(t)
	dbPath := filepath.Join(t.TempDir(), "bench.db")
	t.Setenv(archive.Env, dbPath)

	var buf bytes.Buffer
	var bs Benches
	bs.SetOutput(&buf)
	bs.Push(Run(New("foo(1)").WithSamples(30), func() int { return 1 }))
	bs.Push(Run(New("bar(2)").WithSamples(30), func() int { return 2 }))

	require.True(t, bs.Finish())

	db, err := archive.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	count, err := db.CountResultsForRun(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
