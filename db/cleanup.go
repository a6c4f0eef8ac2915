package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports what a retention pass removed.
type CleanupResult struct {
	RunsDeleted int64
	Duration    time.Duration
}

// Cleanup deletes runs older than retentionDays and runs VACUUM to reclaim
// disk space. A retention of 0 removes every run created before now.
//
// Example:
//
//	result, err := history.Cleanup(ctx, 30)
//	if err != nil {
//	    logger.Warn("history cleanup failed", zap.Error(err))
//	}
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return result, ErrClosed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)
	res, err := d.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete expired runs: %w", err)
	}
	result.RunsDeleted, err = res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := ctx.Err(); err != nil {
		// Rows are gone; only the VACUUM was skipped.
		result.Duration = time.Since(start)
		return result, err
	}

	// VACUUM cannot run inside a transaction.
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
