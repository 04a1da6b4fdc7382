// Package cluster provides distributed coordination for multiple
// airweave-core instances using the alan UDP peer discovery library. A
// single lock name serializes cron-scheduler leadership across instances
// so only one process runs the Scheduler Interface's cron loop at a time.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/rakunlabs/alan"
)

// lockScheduler is the distributed lock name guarding scheduler leadership.
const lockScheduler = "sync-scheduler"

// Cluster wraps an alan instance with airweave-core's distributed
// coordination needs.
type Cluster struct {
	alan *alan.Alan
}

// New creates a Cluster from an alan configuration. Returns nil, nil if cfg
// is nil, which callers treat as "clustering disabled, run as sole leader".
func New(cfg *alan.Config) (*Cluster, error) {
	if cfg == nil {
		return nil, nil
	}

	a, err := alan.New(*cfg)
	if err != nil {
		return nil, fmt.Errorf("create alan instance: %w", err)
	}

	return &Cluster{alan: a}, nil
}

// Start begins the alan peer discovery system in the background. Start
// blocks until ctx is cancelled; run it in a goroutine.
func (c *Cluster) Start(ctx context.Context) error {
	c.alan.OnPeerJoin(func(addr *net.UDPAddr) {
		slog.Info("cluster peer joined", "addr", addr.String())
	})
	c.alan.OnPeerLeave(func(addr *net.UDPAddr) {
		slog.Info("cluster peer left", "addr", addr.String())
	})

	return c.alan.Start(ctx, func(_ context.Context, msg alan.Message) {
		slog.Debug("cluster: unsolicited message ignored", "from", msg.Addr)
	})
}

// Stop gracefully leaves the cluster.
func (c *Cluster) Stop() error {
	return c.alan.Stop()
}

// LockScheduler acquires the distributed lock for the cron scheduler.
// Blocks until the lock is acquired or ctx is cancelled.
func (c *Cluster) LockScheduler(ctx context.Context) error {
	return c.alan.Lock(ctx, lockScheduler)
}

// UnlockScheduler releases the distributed lock for the cron scheduler.
func (c *Cluster) UnlockScheduler() error {
	return c.alan.Unlock(lockScheduler)
}

// Ready returns a channel that is closed once alan's peer discovery is up.
func (c *Cluster) Ready() <-chan struct{} {
	return c.alan.Ready()
}
