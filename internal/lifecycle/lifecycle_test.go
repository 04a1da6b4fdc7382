package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/credential"
	"github.com/airweave-core/airweave-core/internal/crypto"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
)

// fakeStore is an in-memory store.Store good enough to exercise the
// Manager's happy paths without a database.
type fakeStore struct {
	seq int64

	orgs         map[string]core.Organization
	collections  map[string]core.Collection
	credentials  map[string]core.IntegrationCredential
	sourceConns  map[string]core.SourceConnection
	initSessions map[string]core.ConnectionInitSession
	redirects    map[string]core.RedirectSession
	syncs        map[string]core.Sync
	syncJobs     map[string]core.SyncJob
	entities     map[string]core.EntityRecord // keyed by syncID+"/"+entityID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:         map[string]core.Organization{},
		collections:  map[string]core.Collection{},
		credentials:  map[string]core.IntegrationCredential{},
		sourceConns:  map[string]core.SourceConnection{},
		initSessions: map[string]core.ConnectionInitSession{},
		redirects:    map[string]core.RedirectSession{},
		syncs:        map[string]core.Sync{},
		syncJobs:     map[string]core.SyncJob{},
		entities:     map[string]core.EntityRecord{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	n := atomic.AddInt64(&f.seq, 1)
	return fmt.Sprintf("%s_%d", prefix, n)
}

func (f *fakeStore) CreateOrganization(ctx context.Context, org core.Organization) (*core.Organization, error) {
	if org.ID == "" {
		org.ID = f.nextID("org")
	}
	f.orgs[org.ID] = org
	return &org, nil
}
func (f *fakeStore) GetOrganization(ctx context.Context, id string) (*core.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, col core.Collection) (*core.Collection, error) {
	if col.ID == "" {
		col.ID = f.nextID("col")
	}
	f.collections[col.ReadableID] = col
	return &col, nil
}
func (f *fakeStore) GetCollection(ctx context.Context, readableID string) (*core.Collection, error) {
	c, ok := f.collections[readableID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
func (f *fakeStore) GetCollectionByID(ctx context.Context, id string) (*core.Collection, error) {
	for _, c := range f.collections {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error) {
	if cred.ID == "" {
		cred.ID = f.nextID("cred")
	}
	f.credentials[cred.ID] = cred
	return &cred, nil
}
func (f *fakeStore) GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error) {
	c, ok := f.credentials[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
func (f *fakeStore) UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error {
	c, ok := f.credentials[id]
	if !ok {
		return fmt.Errorf("credential %s not found", id)
	}
	c.EncryptedCredentials = encryptedCredentials
	f.credentials[id] = c
	return nil
}
func (f *fakeStore) DeleteCredential(ctx context.Context, id string) error {
	delete(f.credentials, id)
	return nil
}

func (f *fakeStore) CreateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	if sc.ID == "" {
		sc.ID = f.nextID("sc")
	}
	f.sourceConns[sc.ID] = sc
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
	var out []core.SourceConnection
	for _, sc := range f.sourceConns {
		if sc.OrganizationID == organizationID {
			out = append(out, sc)
		}
	}
	return out, nil
}
func (f *fakeStore) ListSourceConnectionsByCollection(ctx context.Context, collectionReadableID string) ([]core.SourceConnection, error) {
	var out []core.SourceConnection
	for _, sc := range f.sourceConns {
		if sc.CollectionReadableID == collectionReadableID {
			out = append(out, sc)
		}
	}
	return out, nil
}
func (f *fakeStore) UpdateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	f.sourceConns[sc.ID] = sc
	return &sc, nil
}
func (f *fakeStore) UpdateSourceConnectionCursor(ctx context.Context, id string, cursor []byte) error {
	sc, ok := f.sourceConns[id]
	if !ok {
		return fmt.Errorf("source connection %s not found", id)
	}
	sc.Cursor = cursor
	f.sourceConns[id] = sc
	return nil
}
func (f *fakeStore) DeleteSourceConnection(ctx context.Context, id string) error {
	delete(f.sourceConns, id)
	return nil
}

func (f *fakeStore) CreateInitSession(ctx context.Context, s core.ConnectionInitSession) (*core.ConnectionInitSession, error) {
	if s.ID == "" {
		s.ID = f.nextID("init")
	}
	f.initSessions[s.ID] = s
	return &s, nil
}
func (f *fakeStore) GetInitSession(ctx context.Context, id string) (*core.ConnectionInitSession, error) {
	s, ok := f.initSessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (f *fakeStore) UpdateInitSessionStatus(ctx context.Context, id string, status core.InitSessionStatus, redirectSessionID *string) error {
	s, ok := f.initSessions[id]
	if !ok {
		return fmt.Errorf("init session %s not found", id)
	}
	s.Status = status
	s.RedirectSessionID = redirectSessionID
	f.initSessions[id] = s
	return nil
}

func (f *fakeStore) CreateRedirectSession(ctx context.Context, id string, s core.RedirectSession) error {
	f.redirects[id] = s
	return nil
}
func (f *fakeStore) GetRedirectSession(ctx context.Context, id string) (*core.RedirectSession, error) {
	s, ok := f.redirects[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
func (f *fakeStore) DeleteRedirectSession(ctx context.Context, id string) error {
	delete(f.redirects, id)
	return nil
}

func (f *fakeStore) CreateSync(ctx context.Context, s core.Sync) (*core.Sync, error) {
	if s.ID == "" {
		s.ID = f.nextID("sync")
	}
	f.syncs[s.ID] = s
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
func (f *fakeStore) DeleteSync(ctx context.Context, id string) error {
	delete(f.syncs, id)
	return nil
}

func (f *fakeStore) CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error) {
	if job.ID == "" {
		job.ID = f.nextID("job")
	}
	f.syncJobs[job.ID] = job
	return &job, nil
}
func (f *fakeStore) GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error) {
	j, ok := f.syncJobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
func (f *fakeStore) UpdateSyncJob(ctx context.Context, job core.SyncJob) error {
	f.syncJobs[job.ID] = job
	return nil
}
func (f *fakeStore) ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error) {
	return nil, nil
}

func (f *fakeStore) ListEntityHashes(ctx context.Context, syncID string) (map[string]core.EntityRecord, error) {
	out := make(map[string]core.EntityRecord)
	for _, rec := range f.entities {
		if rec.SyncID == syncID {
			out[rec.EntityID] = rec
		}
	}
	return out, nil
}
func (f *fakeStore) UpsertEntity(ctx context.Context, rec core.EntityRecord) error {
	f.entities[rec.SyncID+"/"+rec.EntityID] = rec
	return nil
}
func (f *fakeStore) DeleteEntity(ctx context.Context, syncID, entityID string) error {
	delete(f.entities, syncID+"/"+entityID)
	return nil
}
func (f *fakeStore) DeleteEntitiesBySyncID(ctx context.Context, syncID string) error {
	for key, rec := range f.entities {
		if rec.SyncID == syncID {
			delete(f.entities, key)
		}
	}
	return nil
}

func (f *fakeStore) Close() {}

// fakeScheduler records Schedule/Unschedule/TriggerNow calls.
type fakeScheduler struct {
	scheduled   map[string]string
	unscheduled map[string]bool
	triggered   []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: map[string]string{}, unscheduled: map[string]bool{}}
}
func (s *fakeScheduler) Schedule(ctx context.Context, syncID, cronExpr string) error {
	s.scheduled[syncID] = cronExpr
	return nil
}
func (s *fakeScheduler) Unschedule(ctx context.Context, syncID string) error {
	s.unscheduled[syncID] = true
	return nil
}
func (s *fakeScheduler) TriggerNow(ctx context.Context, syncID string) (string, error) {
	s.triggered = append(s.triggered, syncID)
	return "job_1", nil
}

// fakeVectorStoreDeleter records DeleteBySyncID calls.
type fakeVectorStoreDeleter struct {
	deleted []string
}

func (v *fakeVectorStoreDeleter) DeleteBySyncID(ctx context.Context, collectionID, syncID string) error {
	v.deleted = append(v.deleted, syncID)
	return nil
}

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.DeriveKey("test-passphrase")
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	return key
}

func testRegistry(entry registry.Entry) *registry.Registry {
	reg := registry.New()
	reg.Register(entry)
	return reg
}

func directEntry() registry.Entry {
	return registry.Entry{
		ShortName:  "postgres",
		Name:       "Postgres",
		AuthMethod: core.AuthDirect,
		New:        nopFactory,
	}
}

func TestCreate_DirectAuthProvisionsSyncAndSchedules(t *testing.T) {
	st := newFakeStore()
	creds := credential.New(st, testKey(t))
	reg := testRegistry(directEntry())
	sched := newFakeScheduler()

	mgr := New(st, creds, reg, nil, nil, nil, sched, nil)

	col, err := st.CreateCollection(context.Background(), core.Collection{ReadableID: "coll_a", VectorSize: 1536})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	result, err := mgr.Create(context.Background(), CreateRequest{
		OrganizationID:       "org_1",
		ShortName:            "postgres",
		CollectionReadableID: col.ReadableID,
		Auth: Authentication{
			Direct: &DirectAuth{Credentials: map[string]any{"host": "localhost"}},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if result.SourceConnection.State != core.StateScheduled {
		t.Errorf("state = %s, want %s", result.SourceConnection.State, core.StateScheduled)
	}
	if !result.SourceConnection.IsAuthenticated {
		t.Errorf("IsAuthenticated = false, want true")
	}
	if result.SourceConnection.SyncID == nil {
		t.Fatalf("SyncID not set")
	}
	if len(sched.triggered) != 1 {
		t.Errorf("triggered = %v, want one trigger (sync_immediately defaults true for direct auth)", sched.triggered)
	}
}

func TestCreate_RejectsUnknownSource(t *testing.T) {
	st := newFakeStore()
	creds := credential.New(st, testKey(t))
	reg := registry.New()

	mgr := New(st, creds, reg, nil, nil, nil, nil, nil)

	_, err := mgr.Create(context.Background(), CreateRequest{
		ShortName: "does-not-exist",
		Auth:      Authentication{Direct: &DirectAuth{Credentials: map[string]any{}}},
	})
	if err == nil {
		t.Fatal("Create: want error for unknown source")
	}
}

func TestDelete_RemovesSyncCredentialAndConnection(t *testing.T) {
	st := newFakeStore()
	creds := credential.New(st, testKey(t))
	reg := testRegistry(directEntry())
	sched := newFakeScheduler()
	vs := &fakeVectorStoreDeleter{}

	mgr := New(st, creds, reg, nil, nil, nil, sched, vs)

	col, _ := st.CreateCollection(context.Background(), core.Collection{ReadableID: "coll_a", VectorSize: 1536})
	result, err := mgr.Create(context.Background(), CreateRequest{
		OrganizationID:       "org_1",
		ShortName:            "postgres",
		CollectionReadableID: col.ReadableID,
		Auth:                 Authentication{Direct: &DirectAuth{Credentials: map[string]any{"host": "localhost"}}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := mgr.Delete(context.Background(), result.SourceConnection.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := st.sourceConns[result.SourceConnection.ID]; ok {
		t.Errorf("source connection still present after delete")
	}
	if _, ok := st.credentials[*result.SourceConnection.CredentialID]; ok {
		t.Errorf("credential still present after delete")
	}
	if len(vs.deleted) != 1 {
		t.Errorf("vector store delete not called")
	}
	if !sched.unscheduled[*result.SourceConnection.SyncID] {
		t.Errorf("sync not unscheduled")
	}
}

func nopFactory(creds map[string]any, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	return nopDriver{}, nil
}

type nopDriver struct{}

func (nopDriver) Validate(ctx context.Context) error { return nil }

func (nopDriver) GenerateEntities(ctx context.Context, cursor []byte) (<-chan sources.Batch, <-chan error) {
	batches := make(chan sources.Batch)
	errs := make(chan error, 1)
	close(batches)
	close(errs)
	return batches, errs
}
