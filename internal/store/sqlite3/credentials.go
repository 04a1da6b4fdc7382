package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/airweave-core/airweave-core/internal/core"
)

func (s *SQLite) CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error) {
	if cred.ID == "" {
		cred.ID = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tableCredentials).Rows(goqu.Record{
		"id":                     cred.ID,
		"organization_id":        cred.OrganizationID,
		"integration_short_name": cred.IntegrationShortName,
		"authentication_method":  string(cred.AuthenticationMethod),
		"oauth_type":             string(cred.OAuthType),
		"auth_config_class":      cred.AuthConfigClass,
		"encrypted_credentials":  cred.EncryptedCredentials,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert credential query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	return &cred, nil
}

func (s *SQLite) GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error) {
	query, _, err := s.goqu.From(s.tableCredentials).
		Select("id", "organization_id", "integration_short_name", "authentication_method", "oauth_type", "auth_config_class", "encrypted_credentials").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get credential query: %w", err)
	}

	var cred core.IntegrationCredential
	var authMethod, oauthType string
	err = s.db.QueryRowContext(ctx, query).Scan(
		&cred.ID, &cred.OrganizationID, &cred.IntegrationShortName,
		&authMethod, &oauthType, &cred.AuthConfigClass, &cred.EncryptedCredentials,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	cred.AuthenticationMethod = core.AuthMethod(authMethod)
	cred.OAuthType = core.OAuthType(oauthType)

	return &cred, nil
}

func (s *SQLite) UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error {
	query, _, err := s.goqu.Update(s.tableCredentials).
		Set(goqu.Record{"encrypted_credentials": encryptedCredentials, "updated_at": goqu.L("datetime('now')")}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update credential query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("update credential %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("credential %s not found", id)
	}
	return nil
}

func (s *SQLite) DeleteCredential(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tableCredentials).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete credential query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}
	return nil
}
