// Package httpapi implements the Inbound HTTP surface (spec.md §6):
// collection/source-connection creation, the OAuth authorize/callback
// redirect pair, run/cancel, and collection search — including its SSE
// streaming variant. Grounded on the teacher's internal/server package:
// same github.com/rakunlabs/ada router, same middleware stack, same
// httpResponse(JSON) helpers.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mforwardauth "github.com/rakunlabs/ada/middleware/forwardauth"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	"github.com/airweave-core/airweave-core/internal/config"
	"github.com/airweave-core/airweave-core/internal/lifecycle"
	"github.com/airweave-core/airweave-core/internal/search"
	"github.com/airweave-core/airweave-core/internal/store"
)

// Server wires the Source Connection Lifecycle, Search Pipeline, and
// persisted Collection store to HTTP handlers.
type Server struct {
	cfg        *config.Server
	store      store.Store
	lifecycle  *lifecycle.Manager
	searchFac  *search.Factory
	mux        *ada.Server
	adminToken string
}

// New builds a Server and registers every route, the way
// internal/server.New builds and registers the teacher's own router.
func New(serviceName string, cfg *config.Server, st store.Store, lm *lifecycle.Manager, sf *search.Factory) (*Server, error) {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(serviceName),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	s := &Server{
		cfg:        cfg,
		store:      st,
		lifecycle:  lm,
		searchFac:  sf,
		mux:        mux,
		adminToken: cfg.AdminToken,
	}

	if cfg.BasePath != "" {
		slog.Info("configuring server with base path", "base_path", cfg.BasePath)
	}

	baseGroup := mux.Group(cfg.BasePath)

	if cfg.ForwardAuth != nil {
		slog.Info("forward auth enabled", "url", cfg.ForwardAuth.Address)
		baseGroup.Use(mforwardauth.Middleware(mforwardauth.WithConfig(*cfg.ForwardAuth)))
	}

	baseGroup.POST("/collections", s.CreateCollectionAPI)

	baseGroup.POST("/source-connections", s.CreateSourceConnectionAPI)
	baseGroup.GET("/source-connections/authorize/{code}", s.AuthorizeRedirectAPI)
	baseGroup.GET("/source-connections/callback", s.OAuthCallbackAPI)
	baseGroup.POST("/source-connections/{id}/run", s.RunSourceConnectionAPI)
	baseGroup.POST("/source-connections/{id}/jobs/{job_id}/cancel", s.CancelJobAPI)

	baseGroup.POST("/collections/{readable_id}/search", s.SearchCollectionAPI)

	if s.adminToken != "" {
		settingsGroup := baseGroup.Group("/settings")
		settingsGroup.Use(s.adminAuthMiddleware())
		settingsGroup.GET("/health", s.HealthAPI)
	}

	return s, nil
}

// ServeHTTP lets Server be handed directly to http.Server / httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// adminAuthMiddleware protects /settings/* with a static bearer token,
// the same all-or-nothing check as the teacher's own adminAuthMiddleware.
func (s *Server) adminAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+s.adminToken {
				httpResponse(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HealthAPI handles GET /settings/health.
func (s *Server) HealthAPI(w http.ResponseWriter, r *http.Request) {
	httpResponse(w, "ok", http.StatusOK)
}
