package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/airweave-core/airweave-core/internal/core"
)

func (s *SQLite) CreateSync(ctx context.Context, sy core.Sync) (*core.Sync, error) {
	if sy.ID == "" {
		sy.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tableSyncs).Rows(goqu.Record{
		"id":                   sy.ID,
		"source_connection_id": sy.SourceConnectionID,
		"collection_id":        sy.CollectionID,
		"cron_schedule":        sy.CronSchedule,
		"next_scheduled_run":   sqlTimePtrValue(sy.NextScheduledRun),
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert sync query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create sync: %w", err)
	}

	return &sy, nil
}

func (s *SQLite) GetSync(ctx context.Context, id string) (*core.Sync, error) {
	query, _, err := s.goqu.From(s.tableSyncs).
		Select("id", "source_connection_id", "collection_id", "cron_schedule", "next_scheduled_run").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get sync query: %w", err)
	}

	var sy core.Sync
	var nextRun sqlTime
	err = s.db.QueryRowContext(ctx, query).Scan(&sy.ID, &sy.SourceConnectionID, &sy.CollectionID, &sy.CronSchedule, &nextRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync %s: %w", id, err)
	}
	sy.NextScheduledRun = nextRun.TimePtr()
	return &sy, nil
}

// ListDueSyncs returns every sync whose next_scheduled_run is non-null and
// at or before `before`, ordered so the oldest-due sync runs first.
func (s *SQLite) ListDueSyncs(ctx context.Context, before time.Time) ([]core.Sync, error) {
	query, _, err := s.goqu.From(s.tableSyncs).
		Select("id", "source_connection_id", "collection_id", "cron_schedule", "next_scheduled_run").
		Where(
			goqu.I("next_scheduled_run").IsNotNull(),
			goqu.I("next_scheduled_run").Lte(sqlTimeValue(before)),
		).
		Order(goqu.I("next_scheduled_run").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due syncs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list due syncs: %w", err)
	}
	defer rows.Close()

	var out []core.Sync
	for rows.Next() {
		var sy core.Sync
		var nextRun sqlTime
		if err := rows.Scan(&sy.ID, &sy.SourceConnectionID, &sy.CollectionID, &sy.CronSchedule, &nextRun); err != nil {
			return nil, fmt.Errorf("scan sync row: %w", err)
		}
		sy.NextScheduledRun = nextRun.TimePtr()
		out = append(out, sy)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateSyncSchedule(ctx context.Context, id string, next *time.Time) error {
	query, _, err := s.goqu.Update(s.tableSyncs).
		Set(goqu.Record{"next_scheduled_run": sqlTimePtrValue(next), "updated_at": goqu.L("datetime('now')")}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update sync schedule query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update sync %s schedule: %w", id, err)
	}
	return nil
}

func (s *SQLite) DeleteSync(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tableSyncs).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete sync query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete sync %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error) {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.Status == "" {
		job.Status = core.JobPending
	}

	query, _, err := s.goqu.Insert(s.tableSyncJobs).Rows(goqu.Record{
		"id":             job.ID,
		"sync_id":        job.SyncID,
		"status":         string(job.Status),
		"inserted_count": job.Counters.Inserted,
		"updated_count":  job.Counters.Updated,
		"deleted_count":  job.Counters.Deleted,
		"kept_count":     job.Counters.Kept,
		"skipped_count":  job.Counters.Skipped,
		"started_at":     sqlTimePtrValue(job.StartedAt),
		"completed_at":   sqlTimePtrValue(job.CompletedAt),
		"error":          job.Error,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert sync_job query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create sync_job: %w", err)
	}

	return &job, nil
}

func (s *SQLite) GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error) {
	query, _, err := s.goqu.From(s.tableSyncJobs).
		Select(syncJobColumns...).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get sync_job query: %w", err)
	}

	job, err := scanSyncJob(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync_job %s: %w", id, err)
	}
	return job, nil
}

func (s *SQLite) UpdateSyncJob(ctx context.Context, job core.SyncJob) error {
	query, _, err := s.goqu.Update(s.tableSyncJobs).Set(goqu.Record{
		"status":         string(job.Status),
		"inserted_count": job.Counters.Inserted,
		"updated_count":  job.Counters.Updated,
		"deleted_count":  job.Counters.Deleted,
		"kept_count":     job.Counters.Kept,
		"skipped_count":  job.Counters.Skipped,
		"started_at":     sqlTimePtrValue(job.StartedAt),
		"completed_at":   sqlTimePtrValue(job.CompletedAt),
		"error":          job.Error,
	}).Where(goqu.I("id").Eq(job.ID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update sync_job query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update sync_job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLite) ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query, _, err := s.goqu.From(s.tableSyncJobs).
		Select(syncJobColumns...).
		Where(goqu.I("sync_id").Eq(syncID)).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list sync_jobs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sync_jobs: %w", err)
	}
	defer rows.Close()

	var out []core.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync_job row: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

var syncJobColumns = []any{
	"id", "sync_id", "status", "inserted_count", "updated_count", "deleted_count",
	"kept_count", "skipped_count", "started_at", "completed_at", "error",
}

func scanSyncJob(row scannable) (*core.SyncJob, error) {
	var job core.SyncJob
	var status string
	var startedAt, completedAt sqlTime
	err := row.Scan(
		&job.ID, &job.SyncID, &status,
		&job.Counters.Inserted, &job.Counters.Updated, &job.Counters.Deleted,
		&job.Counters.Kept, &job.Counters.Skipped,
		&startedAt, &completedAt, &job.Error,
	)
	if err != nil {
		return nil, err
	}
	job.Status = core.JobStatus(status)
	job.StartedAt = startedAt.TimePtr()
	job.CompletedAt = completedAt.TimePtr()
	return &job, nil
}
