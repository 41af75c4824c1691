// Package archive keeps an append-only sqlite log of completed
// benchmark runs, one row per run plus one per measured entry. It is
// opt-in via the BRUNCH_ARCHIVE environment variable and entirely
// supplemental: the last-run comparison works off the history file
// alone.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/Blobfolio/brunch/internal/stats"
)

// Env names the environment variable holding the archive database path.
// Unset means no archiving.
const Env = "BRUNCH_ARCHIVE"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_date TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date);

CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    mean_ns REAL NOT NULL,
    std_dev_ns REAL NOT NULL,
    valid INTEGER NOT NULL,
    total INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_name ON results(name);
`

type Run struct {
	ID      int64
	RunDate string
}

type Result struct {
	ID       int64
	RunID    int64
	Name     string
	MeanNs   float64
	StdDevNs float64
	Valid    int64
	Total    int64
}

type DB struct {
	*sql.DB
	path string
}

func (db *DB) Path() string {
	return db.path
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	dsn := dbPath
	if strings.Contains(dbPath, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{DB: sqlDB, path: dbPath}, nil
}

// RecordRun appends one run and all of its measured entries in a single
// transaction, returning the new run's id.
func (db *DB) RecordRun(when time.Time, results map[string]stats.Stats) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs (run_date) VALUES (?)`,
		when.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for name, st := range results {
		_, err := tx.Exec(`
			INSERT INTO results (run_id, name, mean_ns, std_dev_ns, valid, total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, name, st.MeanNs, st.StdDevNs, int64(st.Valid), int64(st.Total))
		if err != nil {
			return 0, fmt.Errorf("insert result %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT id, run_date FROM runs ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunDate); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (db *DB) GetResultsForRun(runID int64) ([]Result, error) {
	rows, err := db.Query(`
		SELECT id, run_id, name, mean_ns, std_dev_ns, valid, total
		FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.RunID, &r.Name, &r.MeanNs, &r.StdDevNs, &r.Valid, &r.Total); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (db *DB) CountResultsForRun(runID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM results WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// Trend returns the archived points for one benchmark name, newest
// first, capped at limit.
func (db *DB) Trend(name string, limit int) ([]struct {
	Run    Run
	Result Result
}, error) {
	query := `
		SELECT runs.id, runs.run_date,
		       results.id, results.run_id, results.name,
		       results.mean_ns, results.std_dev_ns, results.valid, results.total
		FROM results
		JOIN runs ON runs.id = results.run_id
		WHERE results.name = ?
		ORDER BY runs.id DESC`
	args := []interface{}{name}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []struct {
		Run    Run
		Result Result
	}
	for rows.Next() {
		var t struct {
			Run    Run
			Result Result
		}
		if err := rows.Scan(&t.Run.ID, &t.Run.RunDate,
			&t.Result.ID, &t.Result.RunID, &t.Result.Name,
			&t.Result.MeanNs, &t.Result.StdDevNs, &t.Result.Valid, &t.Result.Total); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (db *DB) DeleteRun(id int64) error {
	_, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return err
}
