package syncrunner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// fakeStore is a minimal in-memory store.Store good enough to drive one
// Runner.Run call without a database.
type fakeStore struct {
	mu sync.Mutex

	syncs       map[string]core.Sync
	sourceConns map[string]core.SourceConnection
	collections map[string]core.Collection
	syncJobs    map[string]core.SyncJob
	entities    map[string]core.EntityRecord // keyed by syncID+"/"+entityID

	cursors map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		syncs:       map[string]core.Sync{},
		sourceConns: map[string]core.SourceConnection{},
		collections: map[string]core.Collection{},
		syncJobs:    map[string]core.SyncJob{},
		entities:    map[string]core.EntityRecord{},
		cursors:     map[string][]byte{},
	}
}

func (f *fakeStore) CreateOrganization(ctx context.Context, org core.Organization) (*core.Organization, error) {
	return &org, nil
}
func (f *fakeStore) GetOrganization(ctx context.Context, id string) (*core.Organization, error) {
	return nil, nil
}
func (f *fakeStore) CreateCollection(ctx context.Context, col core.Collection) (*core.Collection, error) {
	return &col, nil
}
func (f *fakeStore) GetCollection(ctx context.Context, readableID string) (*core.Collection, error) {
	return nil, nil
}
func (f *fakeStore) GetCollectionByID(ctx context.Context, id string) (*core.Collection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
func (f *fakeStore) CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error) {
	return &cred, nil
}
func (f *fakeStore) GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error) {
	return nil, nil
}
func (f *fakeStore) UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error {
	return nil
}
func (f *fakeStore) DeleteCredential(ctx context.Context, id string) error { return nil }

func (f *fakeStore) CreateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	return &sc, nil
}
func (f *fakeStore) GetSourceConnection(ctx context.Context, id string) (*core.SourceConnection, error) {
	sc, ok := f.sourceConns[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}
func (f *fakeStore) ListSourceConnections(ctx context.Context, organizationID string) ([]core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) ListSourceConnectionsByCollection(ctx context.Context, collectionReadableID string) ([]core.SourceConnection, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	f.sourceConns[sc.ID] = sc
	return &sc, nil
}
func (f *fakeStore) UpdateSourceConnectionCursor(ctx context.Context, id string, cursor []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[id] = cursor
	return nil
}
func (f *fakeStore) DeleteSourceConnection(ctx context.Context, id string) error { return nil }

func (f *fakeStore) CreateInitSession(ctx context.Context, s core.ConnectionInitSession) (*core.ConnectionInitSession, error) {
	return &s, nil
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
	return &s, nil
}
func (f *fakeStore) GetSync(ctx context.Context, id string) (*core.Sync, error) {
	s, ok := f.syncs[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (f *fakeStore) ListDueSyncs(ctx context.Context, before time.Time) ([]core.Sync, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSyncSchedule(ctx context.Context, id string, next *time.Time) error {
	return nil
}
func (f *fakeStore) DeleteSync(ctx context.Context, id string) error { return nil }

func (f *fakeStore) CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error) {
	f.syncJobs[job.ID] = job
	return &job, nil
}
func (f *fakeStore) GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.syncJobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
func (f *fakeStore) UpdateSyncJob(ctx context.Context, job core.SyncJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncJobs[job.ID] = job
	return nil
}
func (f *fakeStore) ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error) {
	return nil, nil
}

func (f *fakeStore) ListEntityHashes(ctx context.Context, syncID string) (map[string]core.EntityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]core.EntityRecord)
	for _, rec := range f.entities {
		if rec.SyncID == syncID {
			out[rec.EntityID] = rec
		}
	}
	return out, nil
}
func (f *fakeStore) UpsertEntity(ctx context.Context, rec core.EntityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[rec.SyncID+"/"+rec.EntityID] = rec
	return nil
}
func (f *fakeStore) DeleteEntity(ctx context.Context, syncID, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entities, syncID+"/"+entityID)
	return nil
}
func (f *fakeStore) DeleteEntitiesBySyncID(ctx context.Context, syncID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, rec := range f.entities {
		if rec.SyncID == syncID {
			delete(f.entities, key)
		}
	}
	return nil
}

func (f *fakeStore) Close() {}

// fakeDriver streams a fixed set of batches over a channel the test controls.
type fakeDriver struct {
	batches []sources.Batch
	genErr  error
}

func (d *fakeDriver) Validate(ctx context.Context) error { return nil }

func (d *fakeDriver) GenerateEntities(ctx context.Context, cursor []byte) (<-chan sources.Batch, <-chan error) {
	entities := make(chan sources.Batch, len(d.batches))
	errs := make(chan error, 1)
	for _, b := range d.batches {
		entities <- b
	}
	close(entities)
	if d.genErr != nil {
		errs <- d.genErr
	}
	close(errs)
	return entities, errs
}

// fakeVectorStore records Upsert/BulkDelete/BulkDeleteByParentIDs calls.
type fakeVectorStore struct {
	mu sync.Mutex

	upserted      []core.Point
	bulkDeleted   []string
	parentDeleted []string
	setupCalled   bool
}

func (v *fakeVectorStore) SetupCollection(ctx context.Context, collectionID string, vectorSize int) error {
	v.setupCalled = true
	return nil
}
func (v *fakeVectorStore) Upsert(ctx context.Context, collectionID string, points []core.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upserted = append(v.upserted, points...)
	return nil
}
func (v *fakeVectorStore) DeleteByDBEntityID(ctx context.Context, collectionID, dbEntityID string) error {
	return nil
}
func (v *fakeVectorStore) DeleteBySyncID(ctx context.Context, collectionID, syncID string) error {
	return nil
}
func (v *fakeVectorStore) BulkDelete(ctx context.Context, collectionID, syncID string, entityIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bulkDeleted = append(v.bulkDeleted, entityIDs...)
	return nil
}
func (v *fakeVectorStore) BulkDeleteByParentIDs(ctx context.Context, collectionID, syncID string, parentIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.parentDeleted = append(v.parentDeleted, parentIDs...)
	return nil
}
func (v *fakeVectorStore) Search(ctx context.Context, collectionID string, requests []vectorstore.SearchRequest) ([][]vectorstore.Hit, error) {
	return nil, nil
}

// fakeEmbedder returns a deterministic fixed-size vector per text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int { return 3 }

// fakeLifecycle records RunFinished calls.
type fakeLifecycle struct {
	mu       sync.Mutex
	finished []string
}

func (l *fakeLifecycle) RunFinished(ctx context.Context, sourceConnectionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, sourceConnectionID)
	return nil
}

func entity(id, text string) core.Entity {
	return core.Entity{EntityID: id, Name: id, TextualRepresentation: text}
}

func setupRunner(t *testing.T, driver *fakeDriver) (*Runner, *fakeStore, *fakeVectorStore, *fakeLifecycle, core.Sync, core.SourceConnection) {
	t.Helper()

	reg := registry.New()
	reg.Register(registry.Entry{
		ShortName:  "fakesource",
		Name:       "Fake Source",
		AuthMethod: core.AuthDirect,
		New: func(creds map[string]any, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
			return driver, nil
		},
	})

	st := newFakeStore()
	col := core.Collection{ID: "col_1", ReadableID: "col-1", Name: "test", VectorSize: 3}
	st.collections[col.ID] = col

	sc := core.SourceConnection{
		ID:         "sc_1",
		ShortName:  "fakesource",
		AuthMethod: core.AuthDirect,
	}
	st.sourceConns[sc.ID] = sc

	sync := core.Sync{ID: "sync_1", SourceConnectionID: sc.ID, CollectionID: col.ID}
	st.syncs[sync.ID] = sync

	vs := &fakeVectorStore{}
	lc := &fakeLifecycle{}

	r := New(Collaborators{
		Store:       st,
		Registry:    reg,
		VectorStore: vs,
		Embedder:    fakeEmbedder{},
		Lifecycle:   lc,
	})

	return r, st, vs, lc, sync, sc
}

func TestRunInsertsNewEntities(t *testing.T) {
	driver := &fakeDriver{batches: []sources.Batch{
		{Entities: []core.Entity{entity("e1", "hello"), entity("e2", "world")}, Cursor: []byte(`{"page":1}`), Done: true},
	}}
	r, st, vs, lc, sync, sc := setupRunner(t, driver)

	job := core.SyncJob{ID: "job_1", SyncID: sync.ID, Status: core.JobRunning}
	st.syncJobs[job.ID] = job

	if err := r.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished := st.syncJobs[job.ID]
	if finished.Status != core.JobCompleted {
		t.Errorf("status = %s, want %s", finished.Status, core.JobCompleted)
	}
	if finished.Counters.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", finished.Counters.Inserted)
	}
	if finished.Counters.Updated != 0 || finished.Counters.Kept != 0 {
		t.Errorf("updated/kept = %d/%d, want 0/0", finished.Counters.Updated, finished.Counters.Kept)
	}
	if len(vs.upserted) != 2 {
		t.Errorf("upserted points = %d, want 2", len(vs.upserted))
	}
	if string(st.cursors[sc.ID]) != `{"page":1}` {
		t.Errorf("cursor = %s, want {\"page\":1}", st.cursors[sc.ID])
	}
	if len(lc.finished) != 1 || lc.finished[0] != sc.ID {
		t.Errorf("lifecycle notified = %v, want [%s]", lc.finished, sc.ID)
	}

	hashes, _ := st.ListEntityHashes(context.Background(), sync.ID)
	if len(hashes) != 2 {
		t.Errorf("tracked entity hashes = %d, want 2", len(hashes))
	}
}

func TestRunKeepsUnchangedEntityAndUpdatesChanged(t *testing.T) {
	driver := &fakeDriver{batches: []sources.Batch{
		{Entities: []core.Entity{entity("e1", "same text"), entity("e2", "changed text")}, Done: true},
	}}
	r, st, vs, _, sync, _ := setupRunner(t, driver)

	unchanged := entity("e1", "same text")
	changed := entity("e2", "old text")
	_ = st.UpsertEntity(context.Background(), core.EntityRecord{
		SyncID: sync.ID, EntityID: "e1", DBEntityID: "db-e1", ContentHash: core.ContentHash(unchanged),
	})
	_ = st.UpsertEntity(context.Background(), core.EntityRecord{
		SyncID: sync.ID, EntityID: "e2", DBEntityID: "db-e2", ContentHash: core.ContentHash(changed),
	})

	job := core.SyncJob{ID: "job_2", SyncID: sync.ID, Status: core.JobRunning}
	st.syncJobs[job.ID] = job

	if err := r.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished := st.syncJobs[job.ID]
	if finished.Counters.Inserted != 0 {
		t.Errorf("inserted = %d, want 0", finished.Counters.Inserted)
	}
	if finished.Counters.Updated != 1 {
		t.Errorf("updated = %d, want 1", finished.Counters.Updated)
	}
	if finished.Counters.Kept != 1 {
		t.Errorf("kept = %d, want 1", finished.Counters.Kept)
	}
	if len(vs.upserted) != 1 {
		t.Errorf("upserted points = %d, want 1 (only the changed entity should be re-embedded)", len(vs.upserted))
	}
}

func TestRunDeletesEntitiesMissingFromTheStream(t *testing.T) {
	driver := &fakeDriver{batches: []sources.Batch{
		{Entities: []core.Entity{entity("e1", "still here")}, Done: true},
	}}
	r, st, vs, _, sync, _ := setupRunner(t, driver)

	_ = st.UpsertEntity(context.Background(), core.EntityRecord{
		SyncID: sync.ID, EntityID: "e1", DBEntityID: "db-e1", ContentHash: core.ContentHash(entity("e1", "still here")),
	})
	_ = st.UpsertEntity(context.Background(), core.EntityRecord{
		SyncID: sync.ID, EntityID: "gone", DBEntityID: "db-gone", ContentHash: "stale-hash",
	})

	job := core.SyncJob{ID: "job_3", SyncID: sync.ID, Status: core.JobRunning}
	st.syncJobs[job.ID] = job

	if err := r.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished := st.syncJobs[job.ID]
	if finished.Counters.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", finished.Counters.Deleted)
	}
	if len(vs.bulkDeleted) != 1 || vs.bulkDeleted[0] != "gone" {
		t.Errorf("bulkDeleted = %v, want [gone]", vs.bulkDeleted)
	}
	if len(vs.parentDeleted) != 1 || vs.parentDeleted[0] != "gone" {
		t.Errorf("parentDeleted = %v, want [gone]", vs.parentDeleted)
	}

	hashes, _ := st.ListEntityHashes(context.Background(), sync.ID)
	if _, stillTracked := hashes["gone"]; stillTracked {
		t.Errorf("deleted entity's bookkeeping row should be dropped")
	}
}

func TestRunSkipsDeleteReconciliationWhenCancelled(t *testing.T) {
	driver := &fakeDriver{batches: []sources.Batch{
		{Entities: []core.Entity{entity("e1", "hello")}, Done: true},
	}}
	r, st, vs, _, sync, _ := setupRunner(t, driver)

	_ = st.UpsertEntity(context.Background(), core.EntityRecord{
		SyncID: sync.ID, EntityID: "gone", DBEntityID: "db-gone", ContentHash: "stale-hash",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := core.SyncJob{ID: "job_4", SyncID: sync.ID, Status: core.JobRunning}
	st.syncJobs[job.ID] = job

	if err := r.Run(ctx, job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished := st.syncJobs[job.ID]
	if finished.Status != core.JobCancelled {
		t.Errorf("status = %s, want %s", finished.Status, core.JobCancelled)
	}
	if finished.Counters.Deleted != 0 {
		t.Errorf("deleted = %d, want 0 (a cancelled run must not reconcile deletes off a partial stream)", finished.Counters.Deleted)
	}
	if len(vs.bulkDeleted) != 0 {
		t.Errorf("bulkDeleted = %v, want none", vs.bulkDeleted)
	}
}

func TestRunFailsWhenSourceConnectionMissing(t *testing.T) {
	driver := &fakeDriver{}
	r, st, _, _, sync, sc := setupRunner(t, driver)
	delete(st.sourceConns, sc.ID)

	job := core.SyncJob{ID: "job_5", SyncID: sync.ID, Status: core.JobRunning}
	st.syncJobs[job.ID] = job

	if err := r.Run(context.Background(), job); err == nil {
		t.Fatal("Run: expected error, got nil")
	}

	finished := st.syncJobs[job.ID]
	if finished.Status != core.JobFailed {
		t.Errorf("status = %s, want %s", finished.Status, core.JobFailed)
	}
	if finished.Error == "" {
		t.Error("expected job.Error to be set")
	}
}
