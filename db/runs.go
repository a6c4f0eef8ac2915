package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run status values stored in the runs table.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// timeLayout matches SQLite's datetime() output so retention queries can
// compare created_at as text.
const timeLayout = "2006-01-02 15:04:05"

// ErrRunNotFound is returned by GetRun when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table: a single upscale invocation and
// its split statistics.
type RunRecord struct {
	ID             string // UUID, assigned by InsertRun when empty
	SourcePath     string
	GuidePath      string
	OutputPath     string
	SourceHeight   int
	SourceWidth    int
	SourceChannels int
	GuideHeight    int
	GuideWidth     int
	SplitMode      string // "rgb" or "lab"
	Iterations     int
	LearningRate   float64
	Device         string // Device the run executed on
	Attempts       int
	OutOfMemory    int
	Splits         int
	PreSplits      int
	Tiles          int
	MaxDepth       int
	PeakBytes      int64
	DurationMS     int64
	Status         string // RunStatusSuccess or RunStatusError
	ErrorMessage   string
	CreatedAt      time.Time // UTC, second resolution
}

const runColumns = `
	id, source_path, guide_path, output_path,
	source_height, source_width, source_channels, guide_height, guide_width,
	split_mode, iterations, learning_rate, device,
	attempts, out_of_memory, splits, pre_splits, tiles, max_depth,
	peak_bytes, duration_ms, status, error_message, created_at`

// InsertRun stores rec and returns its ID. A missing ID gets a new UUID and
// a zero CreatedAt is set to now.
func (d *Database) InsertRun(ctx context.Context, rec RunRecord) (string, error) {
	if rec.Status != RunStatusSuccess && rec.Status != RunStatusError {
		return "", fmt.Errorf("invalid run status %q", rec.Status)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return "", ErrClosed
	}

	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		rec.ID,
		rec.SourcePath,
		rec.GuidePath,
		rec.OutputPath,
		rec.SourceHeight,
		rec.SourceWidth,
		rec.SourceChannels,
		rec.GuideHeight,
		rec.GuideWidth,
		rec.SplitMode,
		rec.Iterations,
		rec.LearningRate,
		rec.Device,
		rec.Attempts,
		rec.OutOfMemory,
		rec.Splits,
		rec.PreSplits,
		rec.Tiles,
		rec.MaxDepth,
		rec.PeakBytes,
		rec.DurationMS,
		rec.Status,
		rec.ErrorMessage,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return rec.ID, nil
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (d *Database) GetRun(ctx context.Context, id string) (RunRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return RunRecord{}, ErrClosed
	}

	row := d.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return rec, nil
}

// RecentRuns returns up to limit runs, newest first. A non-positive limit
// defaults to 10.
func (d *Database) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, ErrClosed
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// CountRuns returns the number of stored runs with the given status, or all
// runs when status is empty.
func (d *Database) CountRuns(ctx context.Context, status string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return 0, ErrClosed
	}

	var n int
	var err error
	if status == "" {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	} else {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = ?`, status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var createdAt string
	err := row.Scan(
		&rec.ID,
		&rec.SourcePath,
		&rec.GuidePath,
		&rec.OutputPath,
		&rec.SourceHeight,
		&rec.SourceWidth,
		&rec.SourceChannels,
		&rec.GuideHeight,
		&rec.GuideWidth,
		&rec.SplitMode,
		&rec.Iterations,
		&rec.LearningRate,
		&rec.Device,
		&rec.Attempts,
		&rec.OutOfMemory,
		&rec.Splits,
		&rec.PreSplits,
		&rec.Tiles,
		&rec.MaxDepth,
		&rec.PeakBytes,
		&rec.DurationMS,
		&rec.Status,
		&rec.ErrorMessage,
		&createdAt,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return rec, nil
}
