package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/lifecycle"
)

type authRequest struct {
	Direct *struct {
		Credentials map[string]any `json:"credentials"`
	} `json:"direct"`
	OAuthToken *struct {
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		ExpiresAt    *time.Time `json:"expires_at"`
	} `json:"oauth_token"`
	OAuthBrowser *struct {
		ClientID       string `json:"client_id"`
		ClientSecret   string `json:"client_secret"`
		ConsumerKey    string `json:"consumer_key"`
		ConsumerSecret string `json:"consumer_secret"`
		RedirectURL    string `json:"redirect_url"`
	} `json:"oauth_browser"`
	AuthProvider *struct {
		ProviderReadableID string         `json:"provider_readable_id"`
		ProviderConfig     map[string]any `json:"provider_config"`
	} `json:"auth_provider"`
}

func (a authRequest) toAuthentication() lifecycle.Authentication {
	var auth lifecycle.Authentication
	if a.Direct != nil {
		auth.Direct = &lifecycle.DirectAuth{Credentials: a.Direct.Credentials}
	}
	if a.OAuthToken != nil {
		auth.OAuthToken = &lifecycle.OAuthTokenAuth{
			AccessToken:  a.OAuthToken.AccessToken,
			RefreshToken: a.OAuthToken.RefreshToken,
			ExpiresAt:    a.OAuthToken.ExpiresAt,
		}
	}
	if a.OAuthBrowser != nil {
		auth.OAuthBrowser = &lifecycle.OAuthBrowserAuth{
			ClientID:       a.OAuthBrowser.ClientID,
			ClientSecret:   a.OAuthBrowser.ClientSecret,
			ConsumerKey:    a.OAuthBrowser.ConsumerKey,
			ConsumerSecret: a.OAuthBrowser.ConsumerSecret,
			RedirectURL:    a.OAuthBrowser.RedirectURL,
		}
	}
	if a.AuthProvider != nil {
		auth.AuthProvider = &lifecycle.AuthProviderAuth{
			ProviderReadableID: a.AuthProvider.ProviderReadableID,
			ProviderConfig:     a.AuthProvider.ProviderConfig,
		}
	}
	return auth
}

type createSourceConnectionRequest struct {
	OrganizationID       string         `json:"organization_id"`
	Name                 string         `json:"name"`
	ShortName            string         `json:"short_name"`
	CollectionReadableID string         `json:"collection_readable_id"`
	Config               map[string]any `json:"config"`
	CronSchedule         *string        `json:"cron_schedule"`
	SyncImmediately      *bool          `json:"sync_immediately"`
	Auth                 authRequest    `json:"auth"`
}

// CreateSourceConnectionAPI handles POST /source-connections.
func (s *Server) CreateSourceConnectionAPI(w http.ResponseWriter, r *http.Request) {
	var req createSourceConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.lifecycle.Create(r.Context(), lifecycle.CreateRequest{
		OrganizationID:       req.OrganizationID,
		Name:                 req.Name,
		ShortName:            req.ShortName,
		CollectionReadableID: req.CollectionReadableID,
		Config:               req.Config,
		CronSchedule:         req.CronSchedule,
		SyncImmediately:      req.SyncImmediately,
		Auth:                 req.Auth.toAuthentication(),
	})
	if err != nil {
		httpResponseError(w, err)
		return
	}

	httpResponseJSON(w, result, http.StatusCreated)
}

// AuthorizeRedirectAPI handles GET /source-connections/authorize/{code},
// 302-redirecting to the provider authorize URL a browser/BYOC creation
// stored under code.
func (s *Server) AuthorizeRedirectAPI(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		httpResponse(w, "authorize code is required", http.StatusBadRequest)
		return
	}

	session, err := s.store.GetRedirectSession(r.Context(), code)
	if err != nil {
		httpResponseError(w, err)
		return
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		httpResponseError(w, errkind.New(errkind.NotFound, "authorize_code_expired", "authorize code has expired"))
		return
	}

	http.Redirect(w, r, session.URL, http.StatusFound)
}

// OAuthCallbackAPI handles GET /source-connections/callback?state=&code=.
// Anonymous: the state parameter alone identifies the pending init
// session (replays are rejected inside Manager.HandleCallback, which
// accepts only a pending session and marks it completed once the token
// exchange and credential write have succeeded).
func (s *Server) OAuthCallbackAPI(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" {
		httpResponse(w, "state is required", http.StatusBadRequest)
		return
	}

	if err := s.lifecycle.HandleCallback(r.Context(), state, code); err != nil {
		httpResponseError(w, err)
		return
	}

	httpResponse(w, "connection authenticated", http.StatusOK)
}

// RunSourceConnectionAPI handles POST /source-connections/{id}/run?force_full_sync=bool.
func (s *Server) RunSourceConnectionAPI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httpResponse(w, "source connection id is required", http.StatusBadRequest)
		return
	}

	// force_full_sync is accepted for wire compatibility; the Sync Runner
	// itself always performs a full catalog diff (spec.md §4.9) so there is
	// no partial-sync mode to select between.
	if _, err := strconv.ParseBool(r.URL.Query().Get("force_full_sync")); r.URL.Query().Has("force_full_sync") && err != nil {
		httpResponse(w, "force_full_sync must be a boolean", http.StatusBadRequest)
		return
	}

	jobID, err := s.lifecycle.Run(r.Context(), id)
	if err != nil {
		httpResponseError(w, err)
		return
	}

	httpResponseJSON(w, map[string]string{"job_id": jobID}, http.StatusAccepted)
}

// CancelJobAPI handles POST /source-connections/{id}/jobs/{job_id}/cancel.
func (s *Server) CancelJobAPI(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		httpResponse(w, "job id is required", http.StatusBadRequest)
		return
	}

	if err := s.lifecycle.CancelJob(r.Context(), jobID); err != nil {
		httpResponseError(w, err)
		return
	}

	httpResponse(w, "cancel signal sent", http.StatusOK)
}
