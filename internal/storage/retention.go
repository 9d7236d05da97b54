package storage

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// RowPruner deletes detection records older than a cutoff.
type RowPruner interface {
	DeleteOlder(ctx context.Context, before time.Time) (int64, error)
}

// SweepResult summarises one retention pass.
type SweepResult struct {
	RemovedDirs []string
	RowsDeleted int64
}

// Cleanup removes date directories older than retentionDays. Directories
// whose names are not dates are left alone.
func (s *Store) Cleanup(retentionDays int, now time.Time) ([]string, error) {
	if retentionDays <= 0 {
		return nil, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	var removed []string
	var errs []error
	for _, kind := range []string{SnapshotsDir, ThumbnailsDir, ClipsDir} {
		base := filepath.Join(s.root, kind)
		entries, err := afero.ReadDir(s.fs, base)
		if err != nil {
			errs = append(errs, fileErr(err, base))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			day, err := time.ParseInLocation(dateLayout, entry.Name(), now.Location())
			if err != nil || !day.Before(cutoff) {
				continue
			}
			dir := filepath.Join(base, entry.Name())
			if err := s.fs.RemoveAll(dir); err != nil {
				errs = append(errs, fileErr(err, dir))
				continue
			}
			removed = append(removed, filepath.ToSlash(filepath.Join(kind, entry.Name())))
		}
	}

	if len(removed) > 0 {
		GetLogger().Info("removed expired media",
			logger.Int("directories", len(removed)),
			logger.Int("retention_days", retentionDays))
	}
	return removed, errors.Join(errs...)
}

// Sweep removes expired media and, when pruner is set, the matching rows.
func (s *Store) Sweep(ctx context.Context, retentionDays int, pruner RowPruner, now time.Time) (SweepResult, error) {
	var res SweepResult
	if retentionDays <= 0 {
		return res, nil
	}

	var errs []error
	if pruner != nil {
		n, err := pruner.DeleteOlder(ctx, now.AddDate(0, 0, -retentionDays))
		if err != nil {
			errs = append(errs, err)
		}
		res.RowsDeleted = n
	}

	dirs, err := s.Cleanup(retentionDays, now)
	res.RemovedDirs = dirs
	if err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

// RunRetention sweeps every interval until ctx is cancelled.
func (s *Store) RunRetention(ctx context.Context, interval time.Duration, retentionDays int, pruner RowPruner) {
	if interval <= 0 || retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			res, err := s.Sweep(ctx, retentionDays, pruner, now)
			if err != nil {
				GetLogger().Warn("retention sweep incomplete", logger.Error(err))
			}
			if res.RowsDeleted > 0 {
				GetLogger().Info("removed expired detections", logger.Int64("rows", res.RowsDeleted))
			}
		}
	}
}
