package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
)

type fakeStore struct {
	mu    sync.Mutex
	syncs map[string]*core.Sync
	jobs  []core.SyncJob
}

func newFakeStore(syncIDs ...string) *fakeStore {
	s := &fakeStore{syncs: make(map[string]*core.Sync)}
	for _, id := range syncIDs {
		s.syncs[id] = &core.Sync{ID: id}
	}
	return s
}

func (f *fakeStore) GetSync(_ context.Context, id string) (*core.Sync, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs[id], nil
}

func (f *fakeStore) CreateSyncJob(_ context.Context, job core.SyncJob) (*core.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ID = "job_" + job.SyncID
	f.jobs = append(f.jobs, job)
	return &job, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	ran  []core.SyncJob
	done chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: make(chan struct{}, 8)}
}

func (f *fakeRunner) Run(_ context.Context, job core.SyncJob) error {
	f.mu.Lock()
	f.ran = append(f.ran, job)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func TestTriggerNowCreatesJobAndRunsInBackground(t *testing.T) {
	store := newFakeStore("sync_1")
	runner := newFakeRunner()
	s := New(store, runner, nil)

	jobID, err := s.TriggerNow(context.Background(), "sync_1")
	if err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}
	if jobID != "job_sync_1" {
		t.Errorf("jobID = %q, want job_sync_1", jobID)
	}

	<-runner.done
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ran) != 1 || runner.ran[0].SyncID != "sync_1" {
		t.Errorf("ran = %+v, want one job for sync_1", runner.ran)
	}
}

func TestTriggerNowFailsForUnknownSync(t *testing.T) {
	s := New(newFakeStore(), newFakeRunner(), nil)

	if _, err := s.TriggerNow(context.Background(), "missing"); err == nil {
		t.Fatal("TriggerNow() error = nil, want an error for an unknown sync")
	}
}

func TestScheduleAndUnscheduleManageTheSpecSet(t *testing.T) {
	s := New(newFakeStore("sync_1"), newFakeRunner(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Schedule(context.Background(), "sync_1", "*/5 * * * *"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, ok := s.specs["sync_1"]; !ok {
		t.Error("specs missing sync_1 after Schedule")
	}

	if err := s.Unschedule(context.Background(), "sync_1"); err != nil {
		t.Fatalf("Unschedule() error = %v", err)
	}
	if _, ok := s.specs["sync_1"]; ok {
		t.Error("specs still has sync_1 after Unschedule")
	}
}

func TestUnscheduleOnUnknownSyncIsNoop(t *testing.T) {
	s := New(newFakeStore(), newFakeRunner(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Unschedule(context.Background(), "never-scheduled"); err != nil {
		t.Fatalf("Unschedule() error = %v, want nil", err)
	}
}
