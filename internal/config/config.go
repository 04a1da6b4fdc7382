// Package config loads the process configuration through rakunlabs/chu,
// grounded on the teacher's internal/config package: a single Config tree
// bound from YAML/env/consul/vault sources, with an AT_-style env prefix
// swapped for this module's own.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/alan"
	mforwardauth "github.com/rakunlabs/ada/middleware/forwardauth"
	"github.com/rakunlabs/chu"
	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
	"github.com/rakunlabs/tell"
)

// Config is the root of the process configuration tree.
type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server Server `cfg:"server"`
	Store  Store  `cfg:"store"`

	// Providers maps a short provider name (referenced from Collections'
	// embedding/chat/rerank preference lists, spec.md §6) to its backing
	// vendor configuration.
	Providers map[string]ProviderConfig `cfg:"providers"`

	// VectorStore selects and configures the single vector backend every
	// Collection is written to (spec.md §4.6).
	VectorStore VectorStoreConfig `cfg:"vector_store"`

	Download DownloadConfig `cfg:"download"`

	// OAuthEndpoints maps a source's short name to its OAuth2 endpoint,
	// resolved by token.EndpointResolver during a Source Connection's
	// authorize/refresh flow.
	OAuthEndpoints map[string]OAuthEndpointConfig `cfg:"oauth_endpoints"`

	// OAuth1Endpoints is OAuthEndpoints' counterpart for the handful of
	// sources (e.g. the legacy OAuth 1.0a ones) that predate OAuth2.
	OAuth1Endpoints map[string]OAuth1EndpointConfig `cfg:"oauth1_endpoints"`

	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

type Server struct {
	BasePath string `cfg:"base_path"`

	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`

	// ForwardAuth, if set, delegates authentication to an external
	// service in front of the API.
	ForwardAuth *mforwardauth.ForwardAuth `cfg:"forward_auth"`

	// AdminToken, if set, protects the settings/admin routes with bearer
	// token authentication. If unset those routes are disabled.
	AdminToken string `cfg:"admin_token" log:"-"`

	// UserHeader is the header populated by ForwardAuth carrying the
	// authenticated caller's identity, used as the access-control viewer
	// id for Search Pipeline queries (spec.md §4.12).
	UserHeader string `cfg:"user_header" default:"X-User"`

	// Alan, if set, enables distributed clustering via UDP peer
	// discovery so only one instance runs the Scheduler Interface's cron
	// loop (spec.md §4.9/§5).
	Alan *alan.Config `cfg:"alan"`
}

type Store struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`

	// EncryptionKey derives the AES-256-GCM key credential.Store uses to
	// encrypt IntegrationCredential blobs at rest (spec.md §4.2). Must be
	// set; there is no plaintext-credential fallback.
	EncryptionKey string `cfg:"encryption_key" log:"-"`
}

type StorePostgres struct {
	Datasource      string         `cfg:"datasource" log:"-"`
	Schema          string         `cfg:"schema"`
	TablePrefix     string         `cfg:"table_prefix"`
	MigrationsTable string         `cfg:"migrations_table"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`
}

type StoreSQLite struct {
	Datasource  string `cfg:"datasource"`
	TablePrefix string `cfg:"table_prefix"`
}

// ProviderConfig describes one named embedding/chat/rerank vendor.
type ProviderConfig struct {
	// Type selects the backing implementation: "openai", "anthropic",
	// "cohere", or "bm25".
	Type string `cfg:"type"`

	APIKey string `cfg:"api_key" log:"-"`
	// BaseURL overrides the provider's default endpoint; only "openai"
	// and "anthropic" honor it.
	BaseURL string `cfg:"base_url"`
	// Proxy routes this provider's outbound calls through an HTTP/SOCKS5
	// proxy; only "openai" and "anthropic" honor it.
	Proxy string `cfg:"proxy"`

	EmbeddingModel string `cfg:"embedding_model"`
	ChatModel      string `cfg:"chat_model"`
	RerankModel    string `cfg:"rerank_model"`

	// AvgDocLength seeds a "bm25" provider's corpus length normalization.
	// Ignored by every other Type.
	AvgDocLength float64 `cfg:"avg_doc_length" default:"512"`
}

type VectorStoreConfig struct {
	// Backend selects which of Qdrant/Milvus backs every Collection.
	Backend string        `cfg:"backend"`
	Qdrant  *QdrantConfig `cfg:"qdrant"`
	Milvus  *MilvusConfig `cfg:"milvus"`
}

type QdrantConfig struct {
	BaseURL string `cfg:"base_url"`
	APIKey  string `cfg:"api_key" log:"-"`
}

type MilvusConfig struct {
	Addr string `cfg:"addr"`
}

type DownloadConfig struct {
	Proxy    string `cfg:"proxy"`
	Insecure bool   `cfg:"insecure"`
	// MaxBytes caps a single downloaded file; zero means
	// download.DefaultMaxBytes.
	MaxBytes int64 `cfg:"max_bytes"`
}

type OAuthEndpointConfig struct {
	ClientID     string   `cfg:"client_id"`
	ClientSecret string   `cfg:"client_secret" log:"-"`
	TokenURL     string   `cfg:"token_url"`
	AuthURL      string   `cfg:"auth_url"`
	Scopes       []string `cfg:"scopes"`
}

type OAuth1EndpointConfig struct {
	RequestTokenURL string `cfg:"request_token_url"`
	AuthorizeURL    string `cfg:"authorize_url"`
	AccessTokenURL  string `cfg:"access_token_url"`
	ConsumerKey     string `cfg:"consumer_key"`
	ConsumerSecret  string `cfg:"consumer_secret" log:"-"`
	CallbackURL     string `cfg:"callback_url"`
}

// Load reads the configuration tree from path plus environment overrides
// (AIRWEAVE_-prefixed) and any configured consul/vault loaders, then
// applies the resolved log level before returning.
func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("AIRWEAVE_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
