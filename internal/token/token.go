// Package token implements the Token Manager (C2): turning a stored
// credential into a bearer token a source driver can put on the wire,
// refreshing it when it is close to expiry or after a driver reports a
// 401, and coalescing concurrent refreshes for the same credential into
// a single exchange. The coalescing is grounded on the single-mutex
// cache in the teacher's CopilotTokenSource; here it is generalized to
// one mutex per credential id instead of one token source per process.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"golang.org/x/oauth2"
)

// expiryBuffer mirrors the teacher's copilotTokenExpiryBuffer: refresh
// ahead of the real deadline so a request never races an expiring token.
const expiryBuffer = 2 * time.Minute

// storedToken is the shape persisted inside a credential's encrypted
// JSON blob for OAuth-based auth methods.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds, 0 = non-expiring
}

// CredentialStore is the subset of credential.Store the Token Manager
// needs: read the decrypted map, and replace it after a refresh.
type CredentialStore interface {
	Get(ctx context.Context, id string) (map[string]any, *core.IntegrationCredential, error)
	Update(ctx context.Context, id string, creds map[string]any) error
}

// Endpoint carries the OAuth client configuration for one integration,
// looked up by short name. Direct- and provider-auth integrations have
// no entry and never reach the refresh path.
type Endpoint struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AuthURL      string
	Scopes       []string
}

// EndpointResolver looks up the OAuth endpoint configuration for an
// integration short name.
type EndpointResolver interface {
	Endpoint(shortName string) (Endpoint, bool)
}

// AuthProviderResolver delegates token retrieval to a Bring-Your-Own-Connector
// auth provider (core.AuthProvider) instead of refreshing locally. Used
// when a SourceConnection's ReadableAuthProviderID is set (§4.2).
type AuthProviderResolver interface {
	TokenFromProvider(ctx context.Context, readableProviderID string, authProviderConfig map[string]any) (string, error)
}

// Manager resolves a SourceConnection's credential into a usable bearer
// token, refreshing OAuth tokens transparently and coalescing concurrent
// refreshes of the same credential.
type Manager struct {
	creds     CredentialStore
	endpoints EndpointResolver
	providers AuthProviderResolver

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Manager. providers may be nil if no BYOC auth providers
// are registered.
func New(creds CredentialStore, endpoints EndpointResolver, providers AuthProviderResolver) *Manager {
	return &Manager{
		creds:     creds,
		endpoints: endpoints,
		providers: providers,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(credentialID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[credentialID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[credentialID] = l
	}
	return l
}

// GetValidToken returns a bearer token for the given source connection.
// For core.AuthDirect connections it returns "" (no bearer token applies;
// drivers read the credential map directly for API keys etc).
func (m *Manager) GetValidToken(ctx context.Context, sc core.SourceConnection) (string, error) {
	if sc.AuthMethod == core.AuthProvider {
		if m.providers == nil {
			return "", errkind.New(errkind.Validation, "token_no_provider_resolver", "source connection %s uses an auth provider but none is registered", sc.ID)
		}
		if sc.ReadableAuthProviderID == nil {
			return "", errkind.New(errkind.Validation, "token_missing_provider_id", "source connection %s has no auth provider id", sc.ID)
		}
		return m.providers.TokenFromProvider(ctx, *sc.ReadableAuthProviderID, sc.AuthProviderConfig)
	}

	if sc.CredentialID == nil {
		return "", errkind.New(errkind.Validation, "token_missing_credential", "source connection %s has no credential", sc.ID)
	}

	if sc.AuthMethod == core.AuthDirect {
		return "", nil
	}

	lock := m.lockFor(*sc.CredentialID)
	lock.Lock()
	defer lock.Unlock()

	return m.validOrRefreshLocked(ctx, *sc.CredentialID, sc.ShortName)
}

// RefreshOnUnauthorized forces a refresh of the credential's token,
// bypassing the expiry check, and returns the new token. Source drivers
// call this after receiving a 401 from the upstream API, in case the
// token was revoked early (§5 retry policy).
func (m *Manager) RefreshOnUnauthorized(ctx context.Context, credentialID, shortName string) (string, error) {
	lock := m.lockFor(credentialID)
	lock.Lock()
	defer lock.Unlock()

	return m.refreshLocked(ctx, credentialID, shortName)
}

// validOrRefreshLocked must be called with the credential's lock held.
func (m *Manager) validOrRefreshLocked(ctx context.Context, credentialID, shortName string) (string, error) {
	raw, _, err := m.creds.Get(ctx, credentialID)
	if err != nil {
		return "", fmt.Errorf("load credential %s: %w", credentialID, err)
	}

	tok, err := decodeToken(raw)
	if err != nil {
		return "", err
	}

	if tok.AccessToken != "" && (tok.ExpiresAt == 0 || time.Now().Before(time.Unix(tok.ExpiresAt, 0).Add(-expiryBuffer))) {
		return tok.AccessToken, nil
	}

	return m.refreshLocked(ctx, credentialID, shortName)
}

// refreshLocked must be called with the credential's lock held.
func (m *Manager) refreshLocked(ctx context.Context, credentialID, shortName string) (string, error) {
	raw, cred, err := m.creds.Get(ctx, credentialID)
	if err != nil {
		return "", fmt.Errorf("load credential %s: %w", credentialID, err)
	}

	tok, err := decodeToken(raw)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		// Access-token-only credentials (core.OAuthTypeAccessOnly) cannot be
		// refreshed; return what is stored and let the caller's retry policy
		// surface the eventual upstream 401 as an auth error.
		if tok.AccessToken == "" {
			return "", errkind.New(errkind.TokenRefresh, "token_no_access_token", "credential %s has no access token and no refresh token", credentialID)
		}
		return tok.AccessToken, nil
	}

	endpoint, ok := m.endpoints.Endpoint(shortName)
	if !ok {
		return "", errkind.New(errkind.Validation, "token_no_endpoint", "no oauth endpoint registered for %q", shortName)
	}

	cfg := oauth2.Config{
		ClientID:     endpoint.ClientID,
		ClientSecret: endpoint.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoint.AuthURL,
			TokenURL: endpoint.TokenURL,
		},
		Scopes: endpoint.Scopes,
	}

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return "", errkind.Wrap(errkind.TokenRefresh, "token_refresh_failed", err, "refresh token for %s", shortName)
	}

	newTok := storedToken{
		AccessToken: fresh.AccessToken,
		TokenType:   fresh.TokenType,
	}
	if !fresh.Expiry.IsZero() {
		newTok.ExpiresAt = fresh.Expiry.Unix()
	}

	// Rotating-refresh integrations (core.OAuthTypeRotatingRefresh, e.g. the
	// evernote driver) issue a new refresh token on every exchange and
	// invalidate the old one immediately; fall back to the existing refresh
	// token only when the provider didn't send a new one.
	if fresh.RefreshToken != "" {
		newTok.RefreshToken = fresh.RefreshToken
	} else {
		newTok.RefreshToken = tok.RefreshToken
	}

	merged := cloneMap(raw)
	merged["access_token"] = newTok.AccessToken
	merged["refresh_token"] = newTok.RefreshToken
	merged["token_type"] = newTok.TokenType
	merged["expires_at"] = newTok.ExpiresAt

	if err := m.creds.Update(ctx, credentialID, merged); err != nil {
		return "", errkind.Wrap(errkind.ProviderError, "token_persist_failed", err, "persist refreshed token for credential %s (integration %s, oauth_type %s)", credentialID, shortName, cred.OAuthType)
	}

	return newTok.AccessToken, nil
}

func decodeToken(raw map[string]any) (storedToken, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return storedToken{}, errkind.Wrap(errkind.ProviderError, "token_decode_marshal", err, "marshal credential map")
	}
	var tok storedToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return storedToken{}, errkind.Wrap(errkind.ProviderError, "token_decode_unmarshal", err, "unmarshal stored token")
	}
	return tok, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
