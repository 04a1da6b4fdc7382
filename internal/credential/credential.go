// Package credential implements the Credential Store (C1): encrypting,
// persisting, and retrieving per-connection secrets. It is a thin layer
// over internal/crypto and a Storer, kept separate so the encryption key
// never has to be threaded through store implementations.
package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/crypto"
	"github.com/airweave-core/airweave-core/internal/errkind"
)

// Storer is the persistence contract the Credential Store needs from the
// relational store. It only ever sees ciphertext.
type Storer interface {
	CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error)
	GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error)
	UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error
	DeleteCredential(ctx context.Context, id string) error
}

// Store encrypts/decrypts credential maps at the boundary and delegates
// persistence to a Storer.
type Store struct {
	storer Storer
	key    []byte
}

// New builds a Store. key must be exactly 32 bytes (see crypto.DeriveKey).
func New(storer Storer, key []byte) *Store {
	return &Store{storer: storer, key: key}
}

// Create encrypts the given credential map and persists it.
func (s *Store) Create(ctx context.Context, orgID, shortName string, method core.AuthMethod, oauthType core.OAuthType, creds map[string]any) (*core.IntegrationCredential, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, errkind.Wrap(errkind.Validation, "credential_marshal", err, "marshal credentials")
	}

	encrypted, err := crypto.Encrypt(string(plaintext), s.key)
	if err != nil {
		return nil, errkind.Wrap(errkind.ProviderError, "credential_encrypt", err, "encrypt credentials")
	}

	return s.storer.CreateCredential(ctx, core.IntegrationCredential{
		OrganizationID:       orgID,
		IntegrationShortName: shortName,
		AuthenticationMethod: method,
		OAuthType:            oauthType,
		EncryptedCredentials: encrypted,
	})
}

// Get decrypts and returns the credential map for the given credential id.
func (s *Store) Get(ctx context.Context, id string) (map[string]any, *core.IntegrationCredential, error) {
	row, err := s.storer.GetCredential(ctx, id)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.ProviderError, "credential_get", err, "get credential %s", id)
	}
	if row == nil {
		return nil, nil, errkind.New(errkind.NotFound, "credential_not_found", "credential %s not found", id)
	}

	plaintext, err := crypto.Decrypt(row.EncryptedCredentials, s.key)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.ProviderError, "credential_decrypt", err, "decrypt credential %s", id)
	}

	var creds map[string]any
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return nil, nil, errkind.Wrap(errkind.ProviderError, "credential_unmarshal", err, "unmarshal credential %s", id)
	}

	return creds, row, nil
}

// Update re-encrypts and replaces the stored credential map. Only valid for
// core.AuthDirect connections; callers enforce that rule (§4.1 Update).
func (s *Store) Update(ctx context.Context, id string, creds map[string]any) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return errkind.Wrap(errkind.Validation, "credential_marshal", err, "marshal credentials")
	}

	encrypted, err := crypto.Encrypt(string(plaintext), s.key)
	if err != nil {
		return errkind.Wrap(errkind.ProviderError, "credential_encrypt", err, "encrypt credentials")
	}

	if err := s.storer.UpdateCredentialBlob(ctx, id, encrypted); err != nil {
		return fmt.Errorf("update credential %s: %w", id, err)
	}
	return nil
}

// Delete removes the credential row. Called as step 3 of Source Connection
// deletion (§4.1).
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.storer.DeleteCredential(ctx, id); err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}
	return nil
}
