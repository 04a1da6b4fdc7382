package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/airweave-core/airweave-core/internal/core"
)

// ListEntityHashes loads every reconciliation row for a sync in one query,
// the "in-job map[entityID]priorHash, loaded once" the Sync Runner (C9)
// diffs each incoming entity against.
func (p *Postgres) ListEntityHashes(ctx context.Context, syncID string) (map[string]core.EntityRecord, error) {
	query, _, err := p.goqu.From(p.tableEntities).
		Select("sync_id", "entity_id", "db_entity_id", "content_hash", "updated_at").
		Where(goqu.I("sync_id").Eq(syncID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list entity hashes query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entity hashes for sync %s: %w", syncID, err)
	}
	defer rows.Close()

	out := make(map[string]core.EntityRecord)
	for rows.Next() {
		var rec core.EntityRecord
		if err := rows.Scan(&rec.SyncID, &rec.EntityID, &rec.DBEntityID, &rec.ContentHash, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sync_entity row: %w", err)
		}
		out[rec.EntityID] = rec
	}
	return out, rows.Err()
}

// UpsertEntity records the content hash just embedded for one entity.
// Postgres has a native upsert (INSERT ... ON CONFLICT) but the teacher's
// goqu wiring never reaches for dialect-specific SQL elsewhere in the
// store package, so this follows the same update-then-fallback-insert
// shape UpdateSourceConnection already uses, keeping Postgres and SQLite
// on one code path.
func (p *Postgres) UpsertEntity(ctx context.Context, rec core.EntityRecord) error {
	updateQuery, _, err := p.goqu.Update(p.tableEntities).
		Set(goqu.Record{"db_entity_id": rec.DBEntityID, "content_hash": rec.ContentHash, "updated_at": goqu.L("now()")}).
		Where(goqu.I("sync_id").Eq(rec.SyncID), goqu.I("entity_id").Eq(rec.EntityID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update sync_entity query: %w", err)
	}

	res, err := p.db.ExecContext(ctx, updateQuery)
	if err != nil {
		return fmt.Errorf("update sync_entity %s/%s: %w", rec.SyncID, rec.EntityID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	insertQuery, _, err := p.goqu.Insert(p.tableEntities).Rows(goqu.Record{
		"sync_id":      rec.SyncID,
		"entity_id":    rec.EntityID,
		"db_entity_id": rec.DBEntityID,
		"content_hash": rec.ContentHash,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert sync_entity query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, insertQuery); err != nil {
		return fmt.Errorf("insert sync_entity %s/%s: %w", rec.SyncID, rec.EntityID, err)
	}
	return nil
}

func (p *Postgres) DeleteEntity(ctx context.Context, syncID, entityID string) error {
	query, _, err := p.goqu.Delete(p.tableEntities).
		Where(goqu.I("sync_id").Eq(syncID), goqu.I("entity_id").Eq(entityID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete sync_entity query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete sync_entity %s/%s: %w", syncID, entityID, err)
	}
	return nil
}

func (p *Postgres) DeleteEntitiesBySyncID(ctx context.Context, syncID string) error {
	query, _, err := p.goqu.Delete(p.tableEntities).Where(goqu.I("sync_id").Eq(syncID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete sync_entities query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete sync_entities for sync %s: %w", syncID, err)
	}
	return nil
}
