package postgres

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

func (p *Postgres) CreateSync(ctx context.Context, s core.Sync) (*core.Sync, error) {
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}

	query, _, err := p.goqu.Insert(p.tableSyncs).Rows(goqu.Record{
		"id":                   s.ID,
		"source_connection_id": s.SourceConnectionID,
		"collection_id":        s.CollectionID,
		"cron_schedule":        s.CronSchedule,
		"next_scheduled_run":   s.NextScheduledRun,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert sync query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create sync: %w", err)
	}

	return &s, nil
}

func (p *Postgres) GetSync(ctx context.Context, id string) (*core.Sync, error) {
	query, _, err := p.goqu.From(p.tableSyncs).
		Select("id", "source_connection_id", "collection_id", "cron_schedule", "next_scheduled_run").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get sync query: %w", err)
	}

	var s core.Sync
	err = p.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.SourceConnectionID, &s.CollectionID, &s.CronSchedule, &s.NextScheduledRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync %s: %w", id, err)
	}
	return &s, nil
}

// ListDueSyncs returns every sync whose next_scheduled_run is non-null and
// at or before `before`, ordered so the oldest-due sync runs first. The
// Scheduler (C12) calls this once per cron tick on the elected leader.
func (p *Postgres) ListDueSyncs(ctx context.Context, before time.Time) ([]core.Sync, error) {
	query, _, err := p.goqu.From(p.tableSyncs).
		Select("id", "source_connection_id", "collection_id", "cron_schedule", "next_scheduled_run").
		Where(
			goqu.I("next_scheduled_run").IsNotNull(),
			goqu.I("next_scheduled_run").Lte(before),
		).
		Order(goqu.I("next_scheduled_run").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due syncs query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list due syncs: %w", err)
	}
	defer rows.Close()

	var out []core.Sync
	for rows.Next() {
		var s core.Sync
		if err := rows.Scan(&s.ID, &s.SourceConnectionID, &s.CollectionID, &s.CronSchedule, &s.NextScheduledRun); err != nil {
			return nil, fmt.Errorf("scan sync row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateSyncSchedule(ctx context.Context, id string, next *time.Time) error {
	query, _, err := p.goqu.Update(p.tableSyncs).
		Set(goqu.Record{"next_scheduled_run": next, "updated_at": goqu.L("now()")}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update sync schedule query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update sync %s schedule: %w", id, err)
	}
	return nil
}

func (p *Postgres) DeleteSync(ctx context.Context, id string) error {
	query, _, err := p.goqu.Delete(p.tableSyncs).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete sync query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete sync %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error) {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.Status == "" {
		job.Status = core.JobPending
	}

	query, _, err := p.goqu.Insert(p.tableSyncJobs).Rows(goqu.Record{
		"id":             job.ID,
		"sync_id":        job.SyncID,
		"status":         string(job.Status),
		"inserted_count": job.Counters.Inserted,
		"updated_count":  job.Counters.Updated,
		"deleted_count":  job.Counters.Deleted,
		"kept_count":     job.Counters.Kept,
		"skipped_count":  job.Counters.Skipped,
		"started_at":     job.StartedAt,
		"completed_at":   job.CompletedAt,
		"error":          job.Error,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert sync_job query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create sync_job: %w", err)
	}

	return &job, nil
}

func (p *Postgres) GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error) {
	query, _, err := p.goqu.From(p.tableSyncJobs).
		Select(syncJobColumns...).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get sync_job query: %w", err)
	}

	job, err := scanSyncJob(p.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync_job %s: %w", id, err)
	}
	return job, nil
}

func (p *Postgres) UpdateSyncJob(ctx context.Context, job core.SyncJob) error {
	query, _, err := p.goqu.Update(p.tableSyncJobs).Set(goqu.Record{
		"status":         string(job.Status),
		"inserted_count": job.Counters.Inserted,
		"updated_count":  job.Counters.Updated,
		"deleted_count":  job.Counters.Deleted,
		"kept_count":     job.Counters.Kept,
		"skipped_count":  job.Counters.Skipped,
		"started_at":     job.StartedAt,
		"completed_at":   job.CompletedAt,
		"error":          job.Error,
	}).Where(goqu.I("id").Eq(job.ID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update sync_job query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update sync_job %s: %w", job.ID, err)
	}
	return nil
}

func (p *Postgres) ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query, _, err := p.goqu.From(p.tableSyncJobs).
		Select(syncJobColumns...).
		Where(goqu.I("sync_id").Eq(syncID)).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list sync_jobs query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
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
	err := row.Scan(
		&job.ID, &job.SyncID, &status,
		&job.Counters.Inserted, &job.Counters.Updated, &job.Counters.Deleted,
		&job.Counters.Kept, &job.Counters.Skipped,
		&job.StartedAt, &job.CompletedAt, &job.Error,
	)
	if err != nil {
		return nil, err
	}
	job.Status = core.JobStatus(status)
	return &job, nil
}
