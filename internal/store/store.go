// Package store persists analysis runs and their vector fields to SQLite.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flowfield/piv"
)

type Store struct {
	*sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS piv_runs (
			run_id            TEXT PRIMARY KEY,
			frame_a           TEXT,
			frame_b           TEXT,
			window_sizes      TEXT,
			overlaps          TEXT,
			iterations        BIGINT,
			dt                DOUBLE,
			scaling_factor    DOUBLE,
			grid_rows         BIGINT,
			grid_cols         BIGINT,
			flagged_cells     BIGINT,
			masked_cells      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS piv_vectors (
			run_id            TEXT,
			grid_row          BIGINT,
			grid_col          BIGINT,
			x                 DOUBLE,
			y                 DOUBLE,
			u                 DOUBLE,
			v                 DOUBLE,
			flagged           BOOLEAN,
			masked            BOOLEAN,
			FOREIGN KEY(run_id) REFERENCES piv_runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_piv_vectors_run ON piv_vectors(run_id);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db}, nil
}

// Run is one persisted analysis, without its vectors.
type Run struct {
	RunID        string
	FrameA       string
	FrameB       string
	WindowSizes  []int
	Overlaps     []int
	Iterations   int
	DT           float64
	Scaling      float64
	GridRows     int
	GridCols     int
	FlaggedCells int
	MaskedCells  int
}

// Vector is one grid cell of a persisted run.
type Vector struct {
	GridRow, GridCol int
	X, Y             float64
	U, V             float64
	Flagged          bool
	Masked           bool
}

// RecordRun stores a finished result with its settings provenance and
// returns the new run id.
func (s *Store) RecordRun(frameA, frameB string, settings piv.Settings, res *piv.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := s.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO piv_runs (
			run_id, frame_a, frame_b, window_sizes, overlaps, iterations,
			dt, scaling_factor, grid_rows, grid_cols, flagged_cells, masked_cells
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, frameA, frameB,
		intsToCSV(settings.WindowSizes[:settings.NumIterations]),
		intsToCSV(settings.Overlaps[:settings.NumIterations]),
		settings.NumIterations, settings.DT, settings.ScalingFactor,
		res.U.Rows, res.U.Cols, res.Flags.Count(), res.GridMask.Count(),
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO piv_vectors (run_id, grid_row, grid_col, x, y, u, v, flagged, masked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for r := 0; r < res.U.Rows; r++ {
		for c := 0; c < res.U.Cols; c++ {
			_, err = stmt.Exec(runID, r, c,
				res.X.At(r, c), res.Y.At(r, c),
				res.U.At(r, c), res.V.At(r, c),
				res.Flags.At(r, c), res.GridMask.At(r, c),
			)
			if err != nil {
				return "", err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Query(
		`SELECT run_id, frame_a, frame_b, window_sizes, overlaps, iterations,
			dt, scaling_factor, grid_rows, grid_cols, flagged_cells, masked_cells
		 FROM piv_runs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var windows, overlaps string
		if err := rows.Scan(
			&run.RunID, &run.FrameA, &run.FrameB, &windows, &overlaps,
			&run.Iterations, &run.DT, &run.Scaling,
			&run.GridRows, &run.GridCols, &run.FlaggedCells, &run.MaskedCells,
		); err != nil {
			return nil, err
		}
		if run.WindowSizes, err = csvToInts(windows); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.RunID, err)
		}
		if run.Overlaps, err = csvToInts(overlaps); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Vectors returns one run's grid cells in row-major order.
func (s *Store) Vectors(runID string) ([]Vector, error) {
	rows, err := s.Query(
		`SELECT grid_row, grid_col, x, y, u, v, flagged, masked
		 FROM piv_vectors WHERE run_id = ? ORDER BY grid_row, grid_col`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vecs []Vector
	for rows.Next() {
		var v Vector
		if err := rows.Scan(&v.GridRow, &v.GridCol, &v.X, &v.Y, &v.U, &v.V, &v.Flagged, &v.Masked); err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func intsToCSV(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func csvToInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad int list %q: %v", s, err)
		}
		vals[i] = v
	}
	return vals, nil
}
