// Package scheduler implements the Scheduler Interface (C12): cron-based
// triggering of Sync Jobs for the syncs that carry a CronSchedule, plus
// TriggerNow for on-demand runs. Because hardloop's cron runner does not
// support dynamic add/remove of jobs, the scheduler stops and recreates its
// internal cron runner whenever a sync is scheduled or unscheduled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/worldline-go/hardloop"

	"github.com/airweave-core/airweave-core/internal/cluster"
	"github.com/airweave-core/airweave-core/internal/core"
)

// cronRunner is satisfied by hardloop's unexported *cronJob type (returned
// by hardloop.NewCron), letting Scheduler hold one without naming it.
type cronRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// Store is the narrow slice of store.Store the scheduler needs.
type Store interface {
	GetSync(ctx context.Context, id string) (*core.Sync, error)
	CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error)
}

// Runner drives a single Sync Job to completion. *syncrunner.Runner
// satisfies this.
type Runner interface {
	Run(ctx context.Context, job core.SyncJob) error
}

// Scheduler manages cron-triggered Sync Jobs. One Scheduler is shared by
// the whole process; if cluster is non-nil, only the instance holding the
// distributed scheduler lock runs the cron loop.
type Scheduler struct {
	store   Store
	runner  Runner
	cluster *cluster.Cluster

	mu      sync.Mutex
	specs   map[string]string // syncID -> cron expression
	cron    cronRunner
	cancel  context.CancelFunc
	baseCtx context.Context
}

// New builds a Scheduler. cl may be nil to run as the sole leader with no
// distributed coordination.
func New(store Store, runner Runner, cl *cluster.Cluster) *Scheduler {
	return &Scheduler{
		store:   store,
		runner:  runner,
		cluster: cl,
		specs:   make(map[string]string),
	}
}

// Start loads no persisted schedule on its own — Schedule calls populate
// the cron set as Source Connections are provisioned — and begins the
// leader-election loop (or runs immediately, single-instance). Call once
// during process startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx = ctx

	if s.cluster != nil {
		go s.runLockLoop(ctx)
		return nil
	}

	return s.reload()
}

// runLockLoop attempts to acquire the scheduler lock. While held, the cron
// runner is active; on loss (context cancellation) it is stopped and the
// lock released.
func (s *Scheduler) runLockLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slog.Info("scheduler: attempting to acquire leader lock")
		if err := s.cluster.LockScheduler(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("scheduler: failed to acquire lock, retrying", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		slog.Info("scheduler: acquired leader lock, starting cron runner")
		s.mu.Lock()
		if err := s.reload(); err != nil {
			slog.Error("scheduler: failed to start cron runner", "error", err)
		}
		s.mu.Unlock()

		<-ctx.Done()

		slog.Info("scheduler: releasing leader lock")
		s.Stop()
		s.cluster.UnlockScheduler() //nolint:errcheck
		return
	}
}

// Schedule sets or replaces the cron expression driving syncID and rebuilds
// the cron runner.
func (s *Scheduler) Schedule(ctx context.Context, syncID, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs[syncID] = cronExpr
	return s.reload()
}

// Unschedule removes syncID from the cron set and rebuilds the cron
// runner. Safe to call for a syncID that was never scheduled.
func (s *Scheduler) Unschedule(ctx context.Context, syncID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.specs, syncID)
	return s.reload()
}

// TriggerNow creates a pending Sync Job for syncID and runs it in the
// background, returning the job's ID immediately. The job's terminal
// status is recorded by Runner.Run, which also notifies the Lifecycle
// Manager of completion.
func (s *Scheduler) TriggerNow(ctx context.Context, syncID string) (string, error) {
	return s.runJob(ctx, syncID)
}

func (s *Scheduler) runJob(ctx context.Context, syncID string) (string, error) {
	sync, err := s.store.GetSync(ctx, syncID)
	if err != nil {
		return "", fmt.Errorf("scheduler: get sync %s: %w", syncID, err)
	}
	if sync == nil {
		return "", fmt.Errorf("scheduler: sync %s not found", syncID)
	}

	job, err := s.store.CreateSyncJob(ctx, core.SyncJob{
		SyncID: syncID,
		Status: core.JobPending,
	})
	if err != nil {
		return "", fmt.Errorf("scheduler: create sync job: %w", err)
	}

	// Detach from ctx's cancellation (an HTTP request or one cron tick)
	// while carrying its values forward; the job outlives both.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.runner.Run(runCtx, *job); err != nil {
			slog.Error("scheduler: sync job failed", "sync_id", syncID, "job_id", job.ID, "error", err)
		}
	}()

	return job.ID, nil
}

// Stop stops the cron runner. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// reload rebuilds the cron runner from the current schedule set. Must be
// called with s.mu held.
func (s *Scheduler) reload() error {
	s.stopLocked()

	if s.baseCtx == nil || len(s.specs) == 0 {
		return nil
	}

	crons := make([]hardloop.Cron, 0, len(s.specs))
	for syncID, spec := range s.specs {
		id := syncID
		crons = append(crons, hardloop.Cron{
			Name:  fmt.Sprintf("sync-%s", id),
			Specs: []string{spec},
			Func:  s.makeCronFunc(id),
		})
	}

	cronJob, err := hardloop.NewCron(crons...)
	if err != nil {
		return fmt.Errorf("scheduler: create cron runner: %w", err)
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.cron = cronJob

	if err := cronJob.Start(ctx); err != nil {
		cancel()
		s.cancel = nil
		s.cron = nil
		return fmt.Errorf("scheduler: start cron runner: %w", err)
	}

	slog.Info("scheduler: started cron runner", "count", len(crons))
	return nil
}

// makeCronFunc returns the function hardloop calls on each tick for
// syncID. Failures are logged and swallowed so one bad tick doesn't stop
// the whole cron loop.
func (s *Scheduler) makeCronFunc(syncID string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		slog.Info("scheduler: cron triggered", "sync_id", syncID)
		if _, err := s.runJob(ctx, syncID); err != nil {
			slog.Error("scheduler: cron trigger failed", "sync_id", syncID, "error", err)
		}
		return nil
	}
}
