package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/oklog/ulid/v2"

	"github.com/airweave-core/airweave-core/internal/core"
)

func (s *SQLite) CreateOrganization(ctx context.Context, org core.Organization) (*core.Organization, error) {
	if org.ID == "" {
		org.ID = ulid.Make().String()
	}

	flags, err := json.Marshal(org.FeatureFlags)
	if err != nil {
		return nil, fmt.Errorf("marshal feature flags: %w", err)
	}

	query, _, err := s.goqu.Insert(s.tableOrganizations).Rows(goqu.Record{
		"id":            org.ID,
		"name":          org.Name,
		"feature_flags": flags,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert organization query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	return &org, nil
}

func (s *SQLite) GetOrganization(ctx context.Context, id string) (*core.Organization, error) {
	query, _, err := s.goqu.From(s.tableOrganizations).
		Select("id", "name", "feature_flags").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get organization query: %w", err)
	}

	var org core.Organization
	var flags []byte
	err = s.db.QueryRowContext(ctx, query).Scan(&org.ID, &org.Name, &flags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization %s: %w", id, err)
	}

	if err := json.Unmarshal(flags, &org.FeatureFlags); err != nil {
		return nil, fmt.Errorf("unmarshal feature flags: %w", err)
	}

	return &org, nil
}

func (s *SQLite) CreateCollection(ctx context.Context, col core.Collection) (*core.Collection, error) {
	if col.ID == "" {
		col.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tableCollections).Rows(goqu.Record{
		"id":              col.ID,
		"readable_id":     col.ReadableID,
		"name":            col.Name,
		"vector_size":     col.VectorSize,
		"organization_id": col.OrganizationID,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert collection query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &col, nil
}

func (s *SQLite) GetCollection(ctx context.Context, readableID string) (*core.Collection, error) {
	return s.getCollectionWhere(ctx, goqu.I("readable_id").Eq(readableID))
}

func (s *SQLite) GetCollectionByID(ctx context.Context, id string) (*core.Collection, error) {
	return s.getCollectionWhere(ctx, goqu.I("id").Eq(id))
}

func (s *SQLite) getCollectionWhere(ctx context.Context, cond exp.Expression) (*core.Collection, error) {
	query, _, err := s.goqu.From(s.tableCollections).
		Select("id", "readable_id", "name", "vector_size", "organization_id").
		Where(cond).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get collection query: %w", err)
	}

	var col core.Collection
	err = s.db.QueryRowContext(ctx, query).Scan(&col.ID, &col.ReadableID, &col.Name, &col.VectorSize, &col.OrganizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	return &col, nil
}
