package search

import (
	"context"
	"testing"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/registry"
)

// fakeStore implements store.Store with real logic only for the two
// methods Factory.Build actually calls; everything else is an unused stub.
type fakeStore struct {
	collection *core.Collection
	conns      []core.SourceConnection
}

func (f *fakeStore) CreateOrganization(ctx context.Context, org core.Organization) (*core.Organization, error) {
	return nil, nil
}
func (f *fakeStore) GetOrganization(ctx context.Context, id string) (*core.Organization, error) {
	return nil, nil
}
func (f *fakeStore) CreateCollection(ctx context.Context, col core.Collection) (*core.Collection, error) {
	return nil, nil
}
func (f *fakeStore) GetCollection(ctx context.Context, readableID string) (*core.Collection, error) {
	return f.collection, nil
}
func (f *fakeStore) GetCollectionByID(ctx context.Context, id string) (*core.Collection, error) {
	return f.collection, nil
}
func (f *fakeStore) CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error) {
	return nil, nil
}
func (f *fakeStore) GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error) {
	return nil, nil
}
func (f *fakeStore) UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error {
	return nil
}
func (f *fakeStore) DeleteCredential(ctx context.Context, id string) error { return nil }
func (f *fakeStore) CreateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) GetSourceConnection(ctx context.Context, id string) (*core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) ListSourceConnections(ctx context.Context, organizationID string) ([]core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) ListSourceConnectionsByCollection(ctx context.Context, collectionReadableID string) ([]core.SourceConnection, error) {
	return f.conns, nil
}
func (f *fakeStore) UpdateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSourceConnectionCursor(ctx context.Context, id string, cursor []byte) error {
	return nil
}
func (f *fakeStore) DeleteSourceConnection(ctx context.Context, id string) error { return nil }
func (f *fakeStore) CreateInitSession(ctx context.Context, s core.ConnectionInitSession) (*core.ConnectionInitSession, error) {
	return nil, nil
}
func (f *fakeStore) GetInitSession(ctx context.Context, id string) (*core.ConnectionInitSession, error) {
	return nil, nil
}
func (f *fakeStore) UpdateInitSessionStatus(ctx context.Context, id string, status core.InitSessionStatus, redirectSessionID *string) error {
	return nil
}
func (f *fakeStore) CreateRedirectSession(ctx context.Context, id string, s core.RedirectSession) error {
	return nil
}
func (f *fakeStore) GetRedirectSession(ctx context.Context, id string) (*core.RedirectSession, error) {
	return nil, nil
}
func (f *fakeStore) DeleteRedirectSession(ctx context.Context, id string) error { return nil }
func (f *fakeStore) CreateSync(ctx context.Context, s core.Sync) (*core.Sync, error) {
	return nil, nil
}
func (f *fakeStore) GetSync(ctx context.Context, id string) (*core.Sync, error) { return nil, nil }
func (f *fakeStore) ListDueSyncs(ctx context.Context, before time.Time) ([]core.Sync, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSyncSchedule(ctx context.Context, id string, next *time.Time) error {
	return nil
}
func (f *fakeStore) DeleteSync(ctx context.Context, id string) error { return nil }
func (f *fakeStore) CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error) {
	return nil, nil
}
func (f *fakeStore) GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSyncJob(ctx context.Context, job core.SyncJob) error { return nil }
func (f *fakeStore) ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error) {
	return nil, nil
}
func (f *fakeStore) ListEntityHashes(ctx context.Context, syncID string) (map[string]core.EntityRecord, error) {
	return nil, nil
}
func (f *fakeStore) UpsertEntity(ctx context.Context, rec core.EntityRecord) error { return nil }
func (f *fakeStore) DeleteEntity(ctx context.Context, syncID, entityID string) error { return nil }
func (f *fakeStore) DeleteEntitiesBySyncID(ctx context.Context, syncID string) error { return nil }
func (f *fakeStore) Close()                                                         {}

func TestBuildFailsWhenCollectionHasNoSources(t *testing.T) {
	factory := NewFactory(Collaborators{
		Store:    &fakeStore{collection: &core.Collection{ID: "col_1", ReadableID: "my-collection"}},
		Registry: registry.New(),
	})

	_, _, _, err := factory.Build(context.Background(), "req_1", Request{Query: "q", Limit: 10}, "my-collection")
	if !errkind.Is(err, errkind.Validation) {
		t.Fatalf("Build() error = %v, want a validation error", err)
	}
}

func TestBuildFailsValidationBeforeTouchingStore(t *testing.T) {
	factory := NewFactory(Collaborators{Store: &fakeStore{}, Registry: registry.New()})

	_, _, _, err := factory.Build(context.Background(), "req_1", Request{Query: ""}, "my-collection")
	if !errkind.Is(err, errkind.Validation) {
		t.Fatalf("Build() error = %v, want a validation error for empty query", err)
	}
}

func TestBuildFailsWhenExpandQueryRequestedWithoutLLM(t *testing.T) {
	factory := NewFactory(Collaborators{
		Store: &fakeStore{
			collection: &core.Collection{ID: "col_1", ReadableID: "my-collection"},
			conns:      []core.SourceConnection{{ShortName: "notion"}},
		},
		Registry: registry.New(),
	})

	_, _, _, err := factory.Build(context.Background(), "req_1", Request{Query: "q", Limit: 10, ExpandQuery: true}, "my-collection")
	if !errkind.Is(err, errkind.Validation) {
		t.Fatalf("Build() error = %v, want a validation error naming the missing LLM", err)
	}
}

func TestBuildIncludesRetrievalAndSkipsFederatedWhenNoFederatedSource(t *testing.T) {
	factory := NewFactory(Collaborators{
		Store: &fakeStore{
			collection: &core.Collection{ID: "col_1", ReadableID: "my-collection", VectorSize: 4},
			conns:      []core.SourceConnection{{ShortName: "notion"}},
		},
		Registry:    registry.New(),
		Embedder:    &fakeEmbedder{dims: 4},
		VectorStore: &fakeVectorStore{},
	})

	p, st, emitter, err := factory.Build(context.Background(), "req_1", Request{Query: "q", Limit: 10}, "my-collection")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.retrieval == nil {
		t.Error("expected Retrieval to be included for a vector-backed source")
	}
	if p.federated != nil {
		t.Error("expected FederatedSearch to be excluded with no federated source")
	}
	if len(st.Federated) != 0 {
		t.Errorf("Federated = %+v, want empty", st.Federated)
	}
	emitter.Close()
}
