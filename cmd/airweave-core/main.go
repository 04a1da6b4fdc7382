package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/airweave-core/airweave-core/internal/cluster"
	"github.com/airweave-core/airweave-core/internal/config"
	"github.com/airweave-core/airweave-core/internal/credential"
	"github.com/airweave-core/airweave-core/internal/crypto"
	"github.com/airweave-core/airweave-core/internal/download"
	"github.com/airweave-core/airweave-core/internal/httpapi"
	"github.com/airweave-core/airweave-core/internal/lifecycle"
	"github.com/airweave-core/airweave-core/internal/providers"
	"github.com/airweave-core/airweave-core/internal/providers/anthropic"
	"github.com/airweave-core/airweave-core/internal/providers/bm25"
	"github.com/airweave-core/airweave-core/internal/providers/cohere"
	"github.com/airweave-core/airweave-core/internal/providers/openai"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/scheduler"
	"github.com/airweave-core/airweave-core/internal/search"
	_ "github.com/airweave-core/airweave-core/internal/sources/all"
	"github.com/airweave-core/airweave-core/internal/store"
	"github.com/airweave-core/airweave-core/internal/syncrunner"
	"github.com/airweave-core/airweave-core/internal/token"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
	"github.com/airweave-core/airweave-core/internal/vectorstore/milvus"
	"github.com/airweave-core/airweave-core/internal/vectorstore/qdrantshim"
)

var (
	name    = "airweave-core"
	version = "v0.0.0"
)

func main() {
	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer st.Close()

	encKey, err := crypto.DeriveKey(cfg.Store.EncryptionKey)
	if err != nil {
		return fmt.Errorf("derive encryption key: %w", err)
	}
	creds := credential.New(st, encKey)

	tokens := token.New(creds, config.NewOAuthEndpointResolver(cfg.OAuthEndpoints), nil)

	embedder, sparseEmbedder, llm, reranker, err := buildProviders(cfg.Providers)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	vs, err := buildVectorStore(ctx, cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("build vector store: %w", err)
	}

	downloader, err := download.New(download.Config{
		Proxy:    cfg.Download.Proxy,
		Insecure: cfg.Download.Insecure,
		MaxBytes: cfg.Download.MaxBytes,
	})
	if err != nil {
		return fmt.Errorf("build downloader: %w", err)
	}

	cl, err := cluster.New(cfg.Server.Alan)
	if err != nil {
		return fmt.Errorf("build cluster: %w", err)
	}
	if cl != nil {
		go func() {
			if err := cl.Start(ctx); err != nil && ctx.Err() == nil {
				fmt.Println("cluster stopped:", err)
			}
		}()
	}

	// lifecycle.Manager and syncrunner.Runner refer to each other (the
	// runner notifies RunFinished; the manager schedules runs), so the
	// runner is built against a forwarding lifecycleRef whose target is
	// filled in once the Manager exists.
	lcRef := &lifecycleRef{}
	runner := syncrunner.New(syncrunner.Collaborators{
		Store:          st,
		Registry:       registry.Default,
		Credentials:    creds,
		Tokens:         tokens,
		VectorStore:    vs,
		Embedder:       embedder,
		SparseEmbedder: sparseEmbedder,
		Downloader:     downloader,
		Lifecycle:      lcRef,
	})

	sched := scheduler.New(st, runner, cl)

	lm := lifecycle.New(
		st,
		creds,
		registry.Default,
		tokens,
		config.NewOAuthEndpointResolver(cfg.OAuthEndpoints),
		config.NewOAuth1EndpointResolver(cfg.OAuth1Endpoints),
		sched,
		vs,
	)
	lcRef.m = lm

	go func() {
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			fmt.Println("scheduler stopped:", err)
		}
	}()

	searchFactory := search.NewFactory(search.Collaborators{
		Store:          st,
		Registry:       registry.Default,
		Credentials:    creds,
		Tokens:         tokens,
		VectorStore:    vs,
		Embedder:       embedder,
		SparseEmbedder: sparseEmbedder,
		Reranker:       reranker,
		LLM:            llm,
	})

	srv, err := httpapi.New(fmt.Sprintf("%s/%s", name, version), &cfg.Server, st, lm, searchFactory)
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Shutdown(context.WithoutCancel(ctx))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// lifecycleRef breaks the construction-order cycle between
// syncrunner.Runner (needs a LifecycleNotifier) and lifecycle.Manager
// (needs a scheduler.Scheduler, which needs the Runner): the Runner is
// built against this forwarding reference, and m is filled in once the
// Manager exists.
type lifecycleRef struct {
	m *lifecycle.Manager
}

func (l *lifecycleRef) RunFinished(ctx context.Context, sourceConnectionID string) error {
	return l.m.RunFinished(ctx, sourceConnectionID)
}

func buildStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	scfg := store.Config{}
	if cfg.Postgres != nil {
		scfg.Postgres = &store.PostgresConfig{
			Datasource:      cfg.Postgres.Datasource,
			Schema:          cfg.Postgres.Schema,
			TablePrefix:     cfg.Postgres.TablePrefix,
			MigrationsTable: cfg.Postgres.MigrationsTable,
		}
	}
	if cfg.SQLite != nil {
		scfg.SQLite = &store.SQLiteConfig{
			Datasource:  cfg.SQLite.Datasource,
			TablePrefix: cfg.SQLite.TablePrefix,
		}
	}
	return store.New(ctx, scfg)
}

// buildProviders resolves spec.md §6's provider-selection rule: an
// embedder is picked once at construction (no call-time fallback, since
// switching providers mid-Collection would change vector provenance),
// while chat and rerank wrap every configured candidate of their kind in
// a providers.FallbackLLM/FallbackReranker that retries the next one on
// call-time failure.
func buildProviders(cfgs map[string]config.ProviderConfig) (providers.Embedder, providers.SparseEmbedder, providers.LLM, providers.Reranker, error) {
	var embedder providers.Embedder
	var sparseEmbedder providers.SparseEmbedder
	var llmNames []string
	var llms []providers.LLM
	var rerankNames []string
	var rerankers []providers.Reranker

	for name, c := range cfgs {
		switch c.Type {
		case "openai":
			p, err := openai.New(c.APIKey, c.EmbeddingModel, c.ChatModel, c.BaseURL, c.Proxy)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			if embedder == nil && c.EmbeddingModel != "" {
				embedder = p
			}
			if c.ChatModel != "" {
				llmNames = append(llmNames, name)
				llms = append(llms, p)
			}
		case "anthropic":
			p, err := anthropic.New(c.APIKey, c.ChatModel, c.BaseURL, c.Proxy)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			llmNames = append(llmNames, name)
			llms = append(llms, p)
		case "cohere":
			p, err := cohere.New(c.APIKey, c.ChatModel, c.RerankModel)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			if c.ChatModel != "" {
				llmNames = append(llmNames, name)
				llms = append(llms, p)
			}
			if c.RerankModel != "" {
				rerankNames = append(rerankNames, name)
				rerankers = append(rerankers, p)
			}
		case "bm25":
			sparseEmbedder = bm25.New(c.AvgDocLength)
		default:
			return nil, nil, nil, nil, fmt.Errorf("provider %q: unknown type %q", name, c.Type)
		}
	}

	var llm providers.LLM
	if len(llms) > 0 {
		llm = providers.NewFallbackLLM(llmNames, llms)
	}
	var reranker providers.Reranker
	if len(rerankers) > 0 {
		reranker = providers.NewFallbackReranker(rerankNames, rerankers)
	}

	return embedder, sparseEmbedder, llm, reranker, nil
}

func buildVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "milvus":
		if cfg.Milvus == nil {
			return nil, fmt.Errorf("vector_store.backend is milvus but vector_store.milvus is unset")
		}
		return milvus.New(ctx, cfg.Milvus.Addr)
	default:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vector_store.backend is qdrant but vector_store.qdrant is unset")
		}
		return qdrantshim.New(cfg.Qdrant.BaseURL, cfg.Qdrant.APIKey)
	}
}
