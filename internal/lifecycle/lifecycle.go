// Package lifecycle implements the Source Connection Lifecycle (C8): the
// state machine that turns a creation request into an authenticated,
// scheduled, periodically running Source Connection, and tears one down
// cleanly on delete. Generalized from the teacher's transactional,
// goqu-against-*sql.Tx wiring pattern (internal/store/postgres's
// per-call pattern, lifted here into a single atomic multi-step flow for
// the browser/BYOC creation path).
package lifecycle

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/credential"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/store"
	"github.com/airweave-core/airweave-core/internal/token"
)

// initSessionTTL is the browser-flow window spec.md §3 names: 30 minutes.
const initSessionTTL = 30 * time.Minute

// redirectSessionTTL is how long a proxy authorize URL stays valid.
const redirectSessionTTL = 24 * time.Hour

// Scheduler is the narrow slice of the Scheduler Interface (C12) the
// lifecycle manager needs: assign or remove a Sync's periodic trigger,
// and fire one run immediately.
type Scheduler interface {
	Schedule(ctx context.Context, syncID, cronExpr string) error
	Unschedule(ctx context.Context, syncID string) error
	TriggerNow(ctx context.Context, syncID string) (jobID string, err error)
}

// VectorStoreDeleter is the narrow slice of the Vector Store Adapter (C6)
// the lifecycle manager needs for connection teardown.
type VectorStoreDeleter interface {
	DeleteBySyncID(ctx context.Context, collectionID, syncID string) error
}

// OAuth1Endpoints resolves the three-leg handshake endpoints for a
// RequiresLegacyOAuth1a source, keyed by short name.
type OAuth1Endpoints interface {
	Endpoint(shortName string) (OAuth1Endpoint, bool)
}

// Manager owns Create, Update, Delete, HandleCallback, Run, and
// CancelJob — the full Source Connection Lifecycle.
type Manager struct {
	store       store.Store
	creds       *credential.Store
	registry    *registry.Registry
	tokens      *token.Manager
	endpoints   token.EndpointResolver
	oauth1      OAuth1Endpoints
	scheduler   Scheduler
	vectorStore VectorStoreDeleter
}

// New builds a Manager.
func New(
	s store.Store,
	creds *credential.Store,
	reg *registry.Registry,
	tokens *token.Manager,
	endpoints token.EndpointResolver,
	oauth1 OAuth1Endpoints,
	scheduler Scheduler,
	vectorStore VectorStoreDeleter,
) *Manager {
	return &Manager{
		store:       s,
		creds:       creds,
		registry:    reg,
		tokens:      tokens,
		endpoints:   endpoints,
		oauth1:      oauth1,
		scheduler:   scheduler,
		vectorStore: vectorStore,
	}
}

// Authentication is the tagged union of creation-time auth inputs
// (spec.md §4.1).
type Authentication struct {
	Direct       *DirectAuth
	OAuthToken   *OAuthTokenAuth
	OAuthBrowser *OAuthBrowserAuth
	AuthProvider *AuthProviderAuth
}

type DirectAuth struct {
	Credentials map[string]any
}

type OAuthTokenAuth struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

type OAuthBrowserAuth struct {
	ClientID       string
	ClientSecret   string
	ConsumerKey    string
	ConsumerSecret string
	RedirectURL    string
}

type AuthProviderAuth struct {
	ProviderReadableID string
	ProviderConfig     map[string]any
}

// CreateRequest is the Source Connection creation input.
type CreateRequest struct {
	OrganizationID       string
	Name                 string
	ShortName            string
	CollectionReadableID string
	Config               map[string]any
	CronSchedule         *string
	SyncImmediately      *bool
	Auth                 Authentication
}

// CreateResult is returned by Create. ProxyURL/ProxyExpiresAt are set
// only for browser/BYOC flows, where the caller must redirect the user.
type CreateResult struct {
	SourceConnection *core.SourceConnection
	ProxyURL         string
	ProxyExpiresAt   time.Time
}

func (r CreateRequest) resolveAuthMethod() (core.AuthMethod, bool) {
	switch {
	case r.Auth.Direct != nil:
		return core.AuthDirect, true
	case r.Auth.OAuthToken != nil:
		return core.AuthOAuthToken, true
	case r.Auth.OAuthBrowser != nil:
		if r.Auth.OAuthBrowser.ClientID != "" && r.Auth.OAuthBrowser.ClientSecret != "" {
			return core.AuthOAuthBYOC, true
		}
		return core.AuthOAuthBrowser, true
	case r.Auth.AuthProvider != nil:
		return core.AuthProvider, true
	default:
		return "", false
	}
}

// Create validates the request against the source's registry entry and
// either completes synchronously (direct/token/auth_provider) or starts
// a browser/BYOC flow and returns a proxy authorize URL.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	entry, ok := m.registry.Lookup(req.ShortName)
	if !ok {
		return nil, errkind.New(errkind.NotFound, "unknown_source", "lifecycle: unknown source %q", req.ShortName)
	}

	method, ok := req.resolveAuthMethod()
	if !ok {
		return nil, errkind.New(errkind.Validation, "missing_authentication", "lifecycle: no authentication variant supplied")
	}
	if entry.RequiresLegacyOAuth1a && method != core.AuthOAuthBrowser && method != core.AuthOAuthBYOC {
		return nil, errkind.New(errkind.Validation, "oauth1_requires_browser", "lifecycle: %s requires the OAuth 1.0a browser flow", req.ShortName)
	}
	if method == core.AuthOAuthBrowser && entryRequiresBYOC(entry) {
		return nil, errkind.New(errkind.Validation, "byoc_required", "lifecycle: %s requires bring-your-own-client credentials", req.ShortName)
	}
	if !methodAllowed(entry, method) {
		return nil, errkind.New(errkind.Validation, "unsupported_auth_method", "lifecycle: %s does not support %s", req.ShortName, method)
	}

	if req.Config != nil {
		if problems := entry.ConfigSchema.Validate(req.Config); problems != nil {
			return nil, errkind.New(errkind.Validation, "invalid_config", "lifecycle: invalid config: %v", problems)
		}
	}

	name := req.Name
	if name == "" {
		name = entry.Name + " Connection"
	}

	syncImmediately := true
	if method == core.AuthOAuthBrowser || method == core.AuthOAuthBYOC {
		syncImmediately = false
	}
	if req.SyncImmediately != nil {
		if *req.SyncImmediately && (method == core.AuthOAuthBrowser || method == core.AuthOAuthBYOC) {
			return nil, errkind.New(errkind.Validation, "sync_immediately_invalid", "lifecycle: sync_immediately cannot be true for a browser flow")
		}
		syncImmediately = *req.SyncImmediately
	}

	cron := req.CronSchedule
	if cron == nil && entry.SupportsContinuousCursor {
		c := dailyScheduleAtCurrentMinute()
		cron = &c
	}

	sc := core.SourceConnection{
		OrganizationID:       req.OrganizationID,
		CollectionReadableID: req.CollectionReadableID,
		ShortName:            req.ShortName,
		Name:                 name,
		AuthMethod:           method,
		State:                core.StateCreating,
		Config:               req.Config,
		CronSchedule:         cron,
	}

	switch method {
	case core.AuthDirect:
		return m.createDirect(ctx, entry, sc, *req.Auth.Direct, syncImmediately)
	case core.AuthOAuthToken:
		return m.createOAuthToken(ctx, entry, sc, *req.Auth.OAuthToken, syncImmediately)
	case core.AuthProvider:
		return m.createAuthProvider(ctx, sc, *req.Auth.AuthProvider, syncImmediately)
	case core.AuthOAuthBrowser, core.AuthOAuthBYOC:
		return m.createBrowserFlow(ctx, entry, sc, *req.Auth.OAuthBrowser)
	default:
		return nil, errkind.New(errkind.Validation, "unhandled_auth_method", "lifecycle: unhandled auth method %s", method)
	}
}

func (m *Manager) createDirect(ctx context.Context, entry registry.Entry, sc core.SourceConnection, auth DirectAuth, syncImmediately bool) (*CreateResult, error) {
	if problems := entry.CredentialSchema.Validate(auth.Credentials); problems != nil {
		return nil, errkind.New(errkind.Validation, "invalid_credentials", "lifecycle: invalid credentials: %v", problems)
	}

	cred, err := m.creds.Create(ctx, sc.OrganizationID, sc.ShortName, core.AuthDirect, core.OAuthTypeNone, auth.Credentials)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: persist direct credentials: %w", err)
	}

	return m.finishAuthenticatedCreate(ctx, sc, cred.ID, syncImmediately)
}

func (m *Manager) createOAuthToken(ctx context.Context, entry registry.Entry, sc core.SourceConnection, auth OAuthTokenAuth, syncImmediately bool) (*CreateResult, error) {
	creds := map[string]any{"access_token": auth.AccessToken}
	if auth.RefreshToken != "" {
		creds["refresh_token"] = auth.RefreshToken
	}
	if auth.ExpiresAt != nil {
		creds["expires_at"] = auth.ExpiresAt.Unix()
	}

	cred, err := m.creds.Create(ctx, sc.OrganizationID, sc.ShortName, core.AuthOAuthToken, entry.OAuthType, creds)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: persist oauth token credentials: %w", err)
	}

	return m.finishAuthenticatedCreate(ctx, sc, cred.ID, syncImmediately)
}

func (m *Manager) createAuthProvider(ctx context.Context, sc core.SourceConnection, auth AuthProviderAuth, syncImmediately bool) (*CreateResult, error) {
	sc.ReadableAuthProviderID = &auth.ProviderReadableID
	sc.AuthProviderConfig = auth.ProviderConfig
	if err := advance(&sc, EventAuthDirectOrToken); err != nil {
		return nil, err
	}
	sc.IsAuthenticated = true

	created, err := m.store.CreateSourceConnection(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: create source connection: %w", err)
	}

	if err := m.provision(ctx, created, syncImmediately); err != nil {
		return nil, err
	}
	return &CreateResult{SourceConnection: created}, nil
}

func (m *Manager) finishAuthenticatedCreate(ctx context.Context, sc core.SourceConnection, credentialID string, syncImmediately bool) (*CreateResult, error) {
	sc.CredentialID = &credentialID
	if err := advance(&sc, EventAuthDirectOrToken); err != nil {
		return nil, err
	}
	sc.IsAuthenticated = true

	created, err := m.store.CreateSourceConnection(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: create source connection: %w", err)
	}

	if err := m.provision(ctx, created, syncImmediately); err != nil {
		return nil, err
	}
	return &CreateResult{SourceConnection: created}, nil
}

// createBrowserFlow runs steps (a)-(f) of spec.md §4.1: shell connection,
// random state, provider authorize URL (with PKCE for OAuth2, a request
// token for OAuth1), a proxy redirect session, and the init session
// tying it all together.
func (m *Manager) createBrowserFlow(ctx context.Context, entry registry.Entry, sc core.SourceConnection, auth OAuthBrowserAuth) (*CreateResult, error) {
	if err := advance(&sc, EventStartBrowserFlow); err != nil {
		return nil, err
	}
	created, err := m.store.CreateSourceConnection(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: create shell source connection: %w", err)
	}

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: generate state: %w", err)
	}

	overrides := core.OAuthOverrides{
		ClientID:       auth.ClientID,
		ClientSecret:   auth.ClientSecret,
		ConsumerKey:    auth.ConsumerKey,
		ConsumerSecret: auth.ConsumerSecret,
		RedirectURL:    auth.RedirectURL,
	}

	var authorizeURL string
	if entry.RequiresLegacyOAuth1a {
		authorizeURL, overrides, err = m.startOAuth1(ctx, entry, overrides)
	} else {
		authorizeURL, overrides, err = m.startOAuth2(entry, overrides, state)
	}
	if err != nil {
		return nil, err
	}

	redirectCode, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: generate redirect code: %w", err)
	}
	redirectExpiry := time.Now().UTC().Add(redirectSessionTTL)
	if err := m.store.CreateRedirectSession(ctx, redirectCode, core.RedirectSession{
		Code:      redirectCode,
		URL:       authorizeURL,
		ExpiresAt: redirectExpiry,
	}); err != nil {
		return nil, fmt.Errorf("lifecycle: create redirect session: %w", err)
	}

	_, err = m.store.CreateInitSession(ctx, core.ConnectionInitSession{
		ID:             state, // the callback arrives with only the state; keying the row on it is how HandleCallback finds it anonymously
		OrganizationID: sc.OrganizationID,
		ShortName:      sc.ShortName,
		State:          state,
		Payload: map[string]any{
			"source_connection_id": created.ID,
		},
		Overrides: overrides,
		Status:    core.InitSessionPending,
		ExpiresAt: time.Now().UTC().Add(initSessionTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: create init session: %w", err)
	}

	proxyURL := "/source-connections/authorize/" + redirectCode
	return &CreateResult{SourceConnection: created, ProxyURL: proxyURL, ProxyExpiresAt: redirectExpiry}, nil
}

func (m *Manager) startOAuth2(entry registry.Entry, overrides core.OAuthOverrides, state string) (string, core.OAuthOverrides, error) {
	ep, ok := m.endpoints.Endpoint(entry.ShortName)
	if !ok {
		return "", overrides, errkind.New(errkind.ProviderError, "oauth_endpoint_missing", "lifecycle: no oauth endpoint configured for %s", entry.ShortName)
	}

	clientID := overrides.ClientID
	clientSecret := overrides.ClientSecret
	if clientID == "" {
		clientID = ep.ClientID
	}
	if clientSecret == "" {
		clientSecret = ep.ClientSecret
	}

	verifier, err := randomState()
	if err != nil {
		return "", overrides, fmt.Errorf("lifecycle: generate pkce verifier: %w", err)
	}
	overrides.CodeVerifier = verifier

	cfg := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: ep.AuthURL, TokenURL: ep.TokenURL},
		RedirectURL:  overrides.RedirectURL,
		Scopes:       ep.Scopes,
	}

	authorizeURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkceChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return authorizeURL, overrides, nil
}

func (m *Manager) startOAuth1(ctx context.Context, entry registry.Entry, overrides core.OAuthOverrides) (string, core.OAuthOverrides, error) {
	if m.oauth1 == nil {
		return "", overrides, errkind.New(errkind.ProviderError, "oauth1_not_configured", "lifecycle: no oauth1 endpoint resolver configured")
	}
	ep, ok := m.oauth1.Endpoint(entry.ShortName)
	if !ok {
		return "", overrides, errkind.New(errkind.ProviderError, "oauth1_endpoint_missing", "lifecycle: no oauth1 endpoint configured for %s", entry.ShortName)
	}
	if overrides.ConsumerKey != "" {
		ep.ConsumerKey = overrides.ConsumerKey
	}
	if overrides.ConsumerSecret != "" {
		ep.ConsumerSecret = overrides.ConsumerSecret
	}
	ep.CallbackURL = overrides.RedirectURL

	tempToken, tempSecret, authorizeURL, err := requestTemporaryToken(ctx, ep)
	if err != nil {
		return "", overrides, err
	}

	overrides.OAuth1Token = tempToken
	overrides.OAuth1TokenSecret = tempSecret
	return authorizeURL, overrides, nil
}

// HandleCallback completes a browser/BYOC flow (spec.md §4.1 "on
// callback"). It is reachable anonymously — lookup is by state alone.
func (m *Manager) HandleCallback(ctx context.Context, state, code string) error {
	session, err := m.lookupPendingSession(ctx, state)
	if err != nil {
		return err
	}

	scID, _ := session.Payload["source_connection_id"].(string)
	sc, err := m.store.GetSourceConnection(ctx, scID)
	if err != nil || sc == nil {
		return errkind.New(errkind.NotFound, "source_connection_not_found", "lifecycle: source connection %s not found", scID)
	}

	entry, ok := m.registry.Lookup(sc.ShortName)
	if !ok {
		return errkind.New(errkind.NotFound, "unknown_source", "lifecycle: unknown source %q", sc.ShortName)
	}

	var creds map[string]any
	var oauthType core.OAuthType
	if entry.RequiresLegacyOAuth1a {
		creds, err = m.exchangeOAuth1(ctx, entry, session, code)
		oauthType = entry.OAuthType
	} else {
		creds, err = m.exchangeOAuth2(ctx, entry, session, code)
		oauthType = entry.OAuthType
	}
	if err != nil {
		return errkind.Wrap(errkind.ProviderError, "oauth_exchange_failed", err, "lifecycle: exchange authorization for %s", sc.ShortName)
	}

	cred, err := m.creds.Create(ctx, sc.OrganizationID, sc.ShortName, sc.AuthMethod, oauthType, creds)
	if err != nil {
		return fmt.Errorf("lifecycle: persist exchanged credentials: %w", err)
	}

	sc.CredentialID = &cred.ID
	if err := advance(sc, EventCallbackSuccess); err != nil {
		return err
	}
	sc.IsAuthenticated = true
	updated, err := m.store.UpdateSourceConnection(ctx, *sc)
	if err != nil {
		return fmt.Errorf("lifecycle: mark source connection authenticated: %w", err)
	}

	if err := m.store.UpdateInitSessionStatus(ctx, session.ID, core.InitSessionCompleted, nil); err != nil {
		return fmt.Errorf("lifecycle: mark init session completed: %w", err)
	}

	return m.provision(ctx, updated, true)
}

func (m *Manager) lookupPendingSession(ctx context.Context, state string) (*core.ConnectionInitSession, error) {
	session, err := m.store.GetInitSession(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: get init session: %w", err)
	}
	if session == nil {
		return nil, errkind.New(errkind.NotFound, "init_session_not_found", "lifecycle: no pending session for state")
	}
	if session.Status != core.InitSessionPending {
		return nil, errkind.New(errkind.Conflict, "init_session_not_pending", "lifecycle: init session is %s, not pending", session.Status)
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		_ = m.store.UpdateInitSessionStatus(ctx, session.ID, core.InitSessionExpired, nil)
		return nil, errkind.New(errkind.Conflict, "init_session_expired", "lifecycle: init session expired")
	}
	return session, nil
}

func (m *Manager) exchangeOAuth2(ctx context.Context, entry registry.Entry, session *core.ConnectionInitSession, code string) (map[string]any, error) {
	ep, ok := m.endpoints.Endpoint(entry.ShortName)
	if !ok {
		return nil, fmt.Errorf("no oauth endpoint configured for %s", entry.ShortName)
	}

	clientID := session.Overrides.ClientID
	clientSecret := session.Overrides.ClientSecret
	if clientID == "" {
		clientID = ep.ClientID
	}
	if clientSecret == "" {
		clientSecret = ep.ClientSecret
	}

	cfg := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: ep.AuthURL, TokenURL: ep.TokenURL},
		RedirectURL:  session.Overrides.RedirectURL,
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", session.Overrides.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	creds := map[string]any{"access_token": tok.AccessToken}
	if tok.RefreshToken != "" {
		creds["refresh_token"] = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		creds["expires_at"] = tok.Expiry.Unix()
	}
	return creds, nil
}

func (m *Manager) exchangeOAuth1(ctx context.Context, entry registry.Entry, session *core.ConnectionInitSession, verifier string) (map[string]any, error) {
	ep, ok := m.oauth1.Endpoint(entry.ShortName)
	if !ok {
		return nil, fmt.Errorf("no oauth1 endpoint configured for %s", entry.ShortName)
	}
	if session.Overrides.ConsumerKey != "" {
		ep.ConsumerKey = session.Overrides.ConsumerKey
	}
	if session.Overrides.ConsumerSecret != "" {
		ep.ConsumerSecret = session.Overrides.ConsumerSecret
	}

	accessToken, accessSecret, err := exchangeAccessToken(ctx, ep, session.Overrides.OAuth1Token, session.Overrides.OAuth1TokenSecret, verifier)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"oauth_token":        accessToken,
		"oauth_token_secret": accessSecret,
	}, nil
}

// provision creates the Sync (and, if syncImmediately, a pending Sync
// Job), assigns the periodic schedule, and advances the Source
// Connection to Scheduled.
func (m *Manager) provision(ctx context.Context, sc *core.SourceConnection, syncImmediately bool) error {
	col, err := m.store.GetCollection(ctx, sc.CollectionReadableID)
	if err != nil || col == nil {
		return errkind.New(errkind.NotFound, "collection_not_found", "lifecycle: collection %s not found", sc.CollectionReadableID)
	}

	sync, err := m.store.CreateSync(ctx, core.Sync{
		SourceConnectionID: sc.ID,
		CollectionID:       col.ID,
		CronSchedule:       sc.CronSchedule,
	})
	if err != nil {
		return fmt.Errorf("lifecycle: create sync: %w", err)
	}

	sc.SyncID = &sync.ID
	if err := advance(sc, EventProvisioned); err != nil {
		return err
	}
	if _, err := m.store.UpdateSourceConnection(ctx, *sc); err != nil {
		return fmt.Errorf("lifecycle: mark source connection scheduled: %w", err)
	}

	if sc.CronSchedule != nil && m.scheduler != nil {
		if err := m.scheduler.Schedule(ctx, sync.ID, *sc.CronSchedule); err != nil {
			return fmt.Errorf("lifecycle: schedule sync: %w", err)
		}
	}

	if syncImmediately && m.scheduler != nil {
		if _, err := m.scheduler.TriggerNow(ctx, sync.ID); err != nil {
			return fmt.Errorf("lifecycle: trigger initial run: %w", err)
		}
	}

	return nil
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name         *string
	Config       map[string]any
	Credentials  map[string]any // only valid for core.AuthDirect
	CronSchedule *string
}

// Update applies a partial update, re-validating config against the
// source's schema and propagating a cron change to the Scheduler.
func (m *Manager) Update(ctx context.Context, id string, req UpdateRequest) (*core.SourceConnection, error) {
	sc, err := m.store.GetSourceConnection(ctx, id)
	if err != nil || sc == nil {
		return nil, errkind.New(errkind.NotFound, "source_connection_not_found", "lifecycle: source connection %s not found", id)
	}

	entry, ok := m.registry.Lookup(sc.ShortName)
	if !ok {
		return nil, errkind.New(errkind.NotFound, "unknown_source", "lifecycle: unknown source %q", sc.ShortName)
	}

	if req.Name != nil {
		sc.Name = *req.Name
	}

	if req.Config != nil {
		if problems := entry.ConfigSchema.Validate(req.Config); problems != nil {
			return nil, errkind.New(errkind.Validation, "invalid_config", "lifecycle: invalid config: %v", problems)
		}
		sc.Config = req.Config
	}

	if req.Credentials != nil {
		if sc.AuthMethod != core.AuthDirect {
			return nil, errkind.New(errkind.Validation, "credentials_update_not_allowed", "lifecycle: credentials may only be updated for direct-auth connections")
		}
		if problems := entry.CredentialSchema.Validate(req.Credentials); problems != nil {
			return nil, errkind.New(errkind.Validation, "invalid_credentials", "lifecycle: invalid credentials: %v", problems)
		}
		if sc.CredentialID == nil {
			return nil, errkind.New(errkind.Conflict, "no_credential", "lifecycle: source connection has no credential to update")
		}
		if err := m.creds.Update(ctx, *sc.CredentialID, req.Credentials); err != nil {
			return nil, fmt.Errorf("lifecycle: update credential: %w", err)
		}
	}

	if req.CronSchedule != nil {
		sc.CronSchedule = req.CronSchedule
		if sc.SyncID != nil && m.scheduler != nil {
			if err := m.scheduler.Schedule(ctx, *sc.SyncID, *req.CronSchedule); err != nil {
				return nil, fmt.Errorf("lifecycle: reschedule sync: %w", err)
			}
		}
	}

	return m.store.UpdateSourceConnection(ctx, *sc)
}

// Delete tears down a Source Connection best-effort, in order: vector
// store data, scheduled triggers, then the connection and credential
// rows. A C6/C12 failure is logged and does not abort the delete.
func (m *Manager) Delete(ctx context.Context, id string) error {
	sc, err := m.store.GetSourceConnection(ctx, id)
	if err != nil || sc == nil {
		return errkind.New(errkind.NotFound, "source_connection_not_found", "lifecycle: source connection %s not found", id)
	}
	// Scheduled and PendingAuth are the only states the diagram draws a
	// delete arrow from; every other state tears down the same way but
	// without a table entry to validate against.
	if sc.State == core.StateScheduled || sc.State == core.StatePendingAuth {
		_ = advance(sc, EventDelete)
	}

	if sc.SyncID != nil {
		if sync, err := m.store.GetSync(ctx, *sc.SyncID); err == nil && sync != nil {
			if m.vectorStore != nil {
				if err := m.vectorStore.DeleteBySyncID(ctx, sync.CollectionID, sync.ID); err != nil {
					slog.Warn("lifecycle: delete vector store data failed", "sync_id", sync.ID, "error", err)
				}
			}
		}
		if m.scheduler != nil {
			if err := m.scheduler.Unschedule(ctx, *sc.SyncID); err != nil {
				slog.Warn("lifecycle: unschedule sync failed", "sync_id", *sc.SyncID, "error", err)
			}
		}
		_ = m.store.DeleteEntitiesBySyncID(ctx, *sc.SyncID)
		_ = m.store.DeleteSync(ctx, *sc.SyncID)
	}

	if sc.CredentialID != nil {
		_ = m.creds.Delete(ctx, *sc.CredentialID)
	}

	return m.store.DeleteSourceConnection(ctx, id)
}

// Run triggers an immediate Sync Job for the Source Connection's Sync.
// The Source Connection moves to Running for the duration of the job;
// the Sync Runner (C9) reports completion back through RunFinished.
func (m *Manager) Run(ctx context.Context, id string) (string, error) {
	sc, err := m.store.GetSourceConnection(ctx, id)
	if err != nil || sc == nil {
		return "", errkind.New(errkind.NotFound, "source_connection_not_found", "lifecycle: source connection %s not found", id)
	}
	if sc.SyncID == nil {
		return "", errkind.New(errkind.Conflict, "no_sync", "lifecycle: source connection %s has no sync provisioned", id)
	}
	if err := advance(sc, EventRun); err != nil {
		return "", err
	}

	jobID, err := m.scheduler.TriggerNow(ctx, *sc.SyncID)
	if err != nil {
		return "", err
	}
	if _, err := m.store.UpdateSourceConnection(ctx, *sc); err != nil {
		return "", fmt.Errorf("lifecycle: mark source connection running: %w", err)
	}
	return jobID, nil
}

// RunFinished moves a Source Connection back to Scheduled once its Sync
// Job reaches a terminal status. A failed job does not revoke the
// connection (§4.1 failure semantics).
func (m *Manager) RunFinished(ctx context.Context, id string) error {
	sc, err := m.store.GetSourceConnection(ctx, id)
	if err != nil || sc == nil {
		return errkind.New(errkind.NotFound, "source_connection_not_found", "lifecycle: source connection %s not found", id)
	}
	if err := advance(sc, EventRunFinished); err != nil {
		return err
	}
	_, err = m.store.UpdateSourceConnection(ctx, *sc)
	return err
}

// CancelJob marks a running Sync Job cancelled.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	job, err := m.store.GetSyncJob(ctx, jobID)
	if err != nil || job == nil {
		return errkind.New(errkind.NotFound, "sync_job_not_found", "lifecycle: sync job %s not found", jobID)
	}
	if job.Status != core.JobRunning && job.Status != core.JobPending {
		return errkind.New(errkind.Conflict, "job_not_cancellable", "lifecycle: sync job %s is %s, not running or pending", jobID, job.Status)
	}
	job.Status = core.JobCancelled
	return m.store.UpdateSyncJob(ctx, *job)
}

func methodAllowed(entry registry.Entry, method core.AuthMethod) bool {
	if entry.AuthMethod == method {
		return true
	}
	if entry.AuthMethod == core.AuthOAuthBrowser && method == core.AuthOAuthBYOC {
		return true
	}
	return false
}

func entryRequiresBYOC(entry registry.Entry) bool {
	return entry.RequiresBYOC
}

// advance applies ev to sc's current state via the lifecycle table,
// mutating sc.State on success.
func advance(sc *core.SourceConnection, ev Event) error {
	next, ok := transition(sc.State, ev)
	if !ok {
		return errkind.New(errkind.Conflict, "illegal_transition", "lifecycle: no transition for event %s from state %s", ev, sc.State)
	}
	sc.State = next
	return nil
}

func dailyScheduleAtCurrentMinute() string {
	now := time.Now().UTC()
	return fmt.Sprintf("%d %d * * *", now.Minute(), now.Hour())
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
