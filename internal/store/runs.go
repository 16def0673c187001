package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

// Migrate creates the bookkeeping tables the connector owns.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.Ensure(ctx, models.TableSyncRuns, &models.SyncRun{}); err != nil {
		return err
	}
	return s.Ensure(ctx, models.TableSyncLogs, &models.SyncLog{})
}

// CreateRun inserts a run record and fills in its id.
func (s *Store) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if err := s.db.WithContext(ctx).Table(s.Table(models.TableSyncRuns)).Create(run).Error; err != nil {
		return wrap("create run", err)
	}
	return nil
}

// SaveRun updates a run record.
func (s *Store) SaveRun(ctx context.Context, run *models.SyncRun) error {
	err := s.db.WithContext(ctx).Table(s.Table(models.TableSyncRuns)).
		Where("id = ?", run.ID).
		Select("finished_at", "status", "error", "stats").
		Updates(run).Error
	if err != nil {
		return wrap("save run", err)
	}
	return nil
}

// Run returns one run by id.
func (s *Store) Run(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).Table(s.Table(models.TableSyncRuns)).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncerr.Newf(syncerr.CodeNotFound, "get run", "run %s not found", id)
	}
	if err != nil {
		return nil, wrap("get run", err)
	}
	return &run, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).Table(s.Table(models.TableSyncRuns)).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, wrap("list runs", err)
	}
	return runs, nil
}

// WriteLogs appends log records.
func (s *Store) WriteLogs(ctx context.Context, logs []models.SyncLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Table(s.Table(models.TableSyncLogs)).CreateInBatches(logs, 50).Error; err != nil {
		return wrap("write logs", err)
	}
	return nil
}

// PruneLogs deletes log records older than cutoff.
func (s *Store) PruneLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Table(s.Table(models.TableSyncLogs)).
		Where("timestamp < ?", cutoff).
		Delete(&models.SyncLog{})
	if result.Error != nil {
		return 0, wrap("prune logs", result.Error)
	}
	return result.RowsAffected, nil
}
