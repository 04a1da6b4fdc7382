// Package syncrunner implements the Sync Runner (C9): the component that
// drives one Sync Job end to end — resolving the Source Connection and its
// driver, streaming entities, reconciling them against previously embedded
// content, and upserting/deleting points in the Vector Store Adapter.
package syncrunner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/credential"
	"github.com/airweave-core/airweave-core/internal/download"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/providers"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/store"
	"github.com/airweave-core/airweave-core/internal/token"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// action classifies how the runner handles one incoming entity against its
// prior content hash, per spec.md §4.9 step 4.
type action int

const (
	actionInsert action = iota
	actionUpdate
	actionKeep
)

// LifecycleNotifier is the narrow view of internal/lifecycle.Manager the
// runner needs: flipping the Source Connection back to StateScheduled once
// a run ends, successfully or not.
type LifecycleNotifier interface {
	RunFinished(ctx context.Context, sourceConnectionID string) error
}

// Collaborators are the dependencies one Runner shares across every job it
// executes.
type Collaborators struct {
	Store          store.Store
	Registry       *registry.Registry
	Credentials    *credential.Store
	Tokens         *token.Manager
	VectorStore    vectorstore.Store
	Embedder       providers.Embedder
	SparseEmbedder providers.SparseEmbedder // nil: no "bm25" field is populated
	Downloader     *download.Downloader
	Lifecycle      LifecycleNotifier
}

// Runner drives Sync Jobs. One Runner is shared by every job a process
// executes; Run itself holds no per-job state beyond its local variables,
// so concurrent jobs on distinct syncs are safe.
type Runner struct {
	store          store.Store
	registry       *registry.Registry
	credentials    *credential.Store
	tokens         *token.Manager
	vectorStore    vectorstore.Store
	embedder       providers.Embedder
	sparseEmbedder providers.SparseEmbedder
	downloader     *download.Downloader
	lifecycle      LifecycleNotifier
}

// New builds a Runner.
func New(c Collaborators) *Runner {
	return &Runner{
		store:          c.Store,
		registry:       c.Registry,
		credentials:    c.Credentials,
		tokens:         c.Tokens,
		vectorStore:    c.VectorStore,
		embedder:       c.Embedder,
		sparseEmbedder: c.SparseEmbedder,
		downloader:     c.Downloader,
		lifecycle:      c.Lifecycle,
	}
}

// Run drives job to completion: resolves its Source Connection and driver,
// streams entities, reconciles and embeds them, persists the cursor, and
// records terminal counters/status on the job. The returned error is also
// recorded on job.Error; callers only need to check it to decide whether to
// log, not to decide whether job state was persisted — Run always persists
// a terminal status unless ctx is cancelled before the job even starts.
func (r *Runner) Run(ctx context.Context, job core.SyncJob) error {
	sync, err := r.store.GetSync(ctx, job.SyncID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("load sync %s: %w", job.SyncID, err))
	}
	if sync == nil {
		return r.fail(ctx, job, errkind.New(errkind.NotFound, "sync_not_found", "sync %s not found", job.SyncID))
	}

	sc, err := r.store.GetSourceConnection(ctx, sync.SourceConnectionID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("load source_connection %s: %w", sync.SourceConnectionID, err))
	}
	if sc == nil {
		return r.fail(ctx, job, errkind.New(errkind.NotFound, "source_connection_not_found", "source_connection %s not found", sync.SourceConnectionID))
	}

	entry, ok := r.registry.Lookup(sc.ShortName)
	if !ok {
		return r.fail(ctx, job, errkind.New(errkind.NotFound, "source_not_registered", "source %q not registered", sc.ShortName))
	}

	driver, tok, err := r.buildDriver(ctx, entry, *sc)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("build driver for %s: %w", sc.ID, err))
	}

	col, err := r.store.GetCollectionByID(ctx, sync.CollectionID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("load collection %s: %w", sync.CollectionID, err))
	}
	if col == nil {
		return r.fail(ctx, job, errkind.New(errkind.NotFound, "collection_not_found", "collection %s not found", sync.CollectionID))
	}
	if err := r.vectorStore.SetupCollection(ctx, col.ID, col.VectorSize); err != nil {
		return r.fail(ctx, job, fmt.Errorf("setup collection %s: %w", col.ID, err))
	}

	priorHashes, err := r.store.ListEntityHashes(ctx, sync.ID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("load entity hashes for sync %s: %w", sync.ID, err))
	}

	tmpDir, err := os.MkdirTemp("", "airweave-sync-"+job.ID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	counters := core.JobCounters{}
	seen := make(map[string]bool, len(priorHashes))
	var lastCursor []byte

	entities, errs := driver.GenerateEntities(ctx, sc.Cursor)

streamLoop:
	for entities != nil || errs != nil {
		select {
		case <-ctx.Done():
			break streamLoop
		case batch, ok := <-entities:
			if !ok {
				entities = nil
				continue
			}
			if r.jobCancelled(ctx, job.ID) {
				break streamLoop
			}

			points, err := r.processBatch(ctx, tok, *sc, sync.ID, job.ID, tmpDir, batch.Entities, priorHashes, seen, &counters)
			if err != nil {
				return r.fail(ctx, job, err)
			}
			if len(points) > 0 {
				if err := r.vectorStore.Upsert(ctx, col.ID, points); err != nil {
					return r.fail(ctx, job, fmt.Errorf("upsert %d points: %w", len(points), err))
				}
			}
			if batch.Cursor != nil {
				lastCursor = batch.Cursor
			}
			if batch.Done {
				entities = nil
			}
		case genErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if genErr != nil {
				return r.fail(ctx, job, fmt.Errorf("generate entities: %w", genErr))
			}
		}
	}

	cancelled := r.jobCancelled(ctx, job.ID) || ctx.Err() != nil

	if !cancelled {
		if err := r.reconcileDeletes(ctx, sync.ID, col.ID, priorHashes, seen, &counters); err != nil {
			return r.fail(ctx, job, err)
		}
	}

	if lastCursor != nil {
		if err := r.store.UpdateSourceConnectionCursor(ctx, sc.ID, lastCursor); err != nil {
			return r.fail(ctx, job, fmt.Errorf("persist cursor: %w", err))
		}
	}

	if cancelled {
		return r.finish(ctx, job, core.JobCancelled, counters, "")
	}
	return r.finish(ctx, job, core.JobCompleted, counters, "")
}

// processBatch reconciles and embeds one page of entities, returning the
// vector points to upsert. It mutates seen and counters as it goes.
func (r *Runner) processBatch(
	ctx context.Context,
	tok sources.TokenGetter,
	sc core.SourceConnection,
	syncID, jobID, tmpDir string,
	batch []core.Entity,
	priorHashes map[string]core.EntityRecord,
	seen map[string]bool,
	counters *core.JobCounters,
) ([]core.Point, error) {
	points := make([]core.Point, 0, len(batch))

	for _, e := range batch {
		if err := ctx.Err(); err != nil {
			return points, nil
		}

		seen[e.EntityID] = true
		hash := core.ContentHash(e)

		prior, existed := priorHashes[e.EntityID]
		var act action
		var dbEntityID string
		switch {
		case !existed:
			act = actionInsert
			dbEntityID = uuid.New().String()
		case prior.ContentHash != hash:
			act = actionUpdate
			dbEntityID = prior.DBEntityID
		default:
			act = actionKeep
			dbEntityID = prior.DBEntityID
		}

		if act == actionKeep {
			counters.Kept++
			continue
		}

		point, skip, err := r.embed(ctx, tok, sc, syncID, jobID, tmpDir, dbEntityID, e)
		if err != nil {
			return nil, err
		}
		if skip {
			counters.Skipped++
			continue
		}

		if err := r.store.UpsertEntity(ctx, core.EntityRecord{
			SyncID:      syncID,
			EntityID:    e.EntityID,
			DBEntityID:  dbEntityID,
			ContentHash: hash,
		}); err != nil {
			return nil, fmt.Errorf("persist entity hash %s: %w", e.EntityID, err)
		}

		if act == actionInsert {
			counters.Inserted++
		} else {
			counters.Updated++
		}
		points = append(points, point)
	}

	return points, nil
}

// embed downloads file content (if any), requests dense/sparse vectors,
// and builds the vector store Point for one entity. skip is true when the
// entity was intentionally dropped (oversize file) rather than failed.
func (r *Runner) embed(
	ctx context.Context,
	tok sources.TokenGetter,
	sc core.SourceConnection,
	syncID, jobID, tmpDir, dbEntityID string,
	e core.Entity,
) (core.Point, bool, error) {
	text := e.TextualRepresentation

	if e.IsFile() && r.downloader != nil {
		if err := r.downloader.Fetch(ctx, tmpDir, e.File, tok); err != nil {
			if errkind.Is(err, errkind.Skipped) {
				slog.Warn("skipping oversize file entity", "entity_id", e.EntityID, "error", err)
				return core.Point{}, true, nil
			}
			return core.Point{}, false, fmt.Errorf("download entity %s: %w", e.EntityID, err)
		}
		if e.File.LocalPath != "" {
			defer os.Remove(e.File.LocalPath)
		}
		if text == "" {
			text = e.Name
		}
	}
	if text == "" {
		text = e.Name
	}

	dense, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return core.Point{}, false, fmt.Errorf("embed entity %s: %w", e.EntityID, err)
	}
	if len(dense) != 1 {
		return core.Point{}, false, fmt.Errorf("embed entity %s: expected 1 vector, got %d", e.EntityID, len(dense))
	}

	var sparse map[uint32]float32
	if r.sparseEmbedder != nil {
		sparseVecs, err := r.sparseEmbedder.EmbedSparse(ctx, []string{text})
		if err != nil {
			return core.Point{}, false, fmt.Errorf("sparse embed entity %s: %w", e.EntityID, err)
		}
		if len(sparseVecs) == 1 {
			sparse = sparseVecs[0]
		}
	}

	pointID, err := vectorstore.PointID(dbEntityID, e.EntityID)
	if err != nil {
		return core.Point{}, false, fmt.Errorf("compute point id for entity %s: %w", e.EntityID, err)
	}

	return core.Point{
		ID:           pointID,
		DenseVector:  dense[0],
		SparseVector: sparse,
		Payload: map[string]any{
			"entity_id":     e.EntityID,
			"db_entity_id":  dbEntityID,
			"sync_id":       syncID,
			"sync_job_id":   jobID,
			"source_name":   sc.ShortName,
			"name":          e.Name,
			"breadcrumbs":   e.Breadcrumbs,
			"created_at":    e.CreatedAt,
			"updated_at":    e.UpdatedAt,
		},
	}, false, nil
}

// reconcileDeletes bulk-deletes every previously-seen entity this run
// didn't encounter again, and the (potential) children of any deleted
// parent, then drops their bookkeeping rows.
func (r *Runner) reconcileDeletes(
	ctx context.Context,
	syncID, collectionID string,
	priorHashes map[string]core.EntityRecord,
	seen map[string]bool,
	counters *core.JobCounters,
) error {
	var deletedIDs []string
	for id := range priorHashes {
		if !seen[id] {
			deletedIDs = append(deletedIDs, id)
		}
	}
	if len(deletedIDs) == 0 {
		return nil
	}

	if err := r.vectorStore.BulkDelete(ctx, collectionID, syncID, deletedIDs); err != nil {
		return fmt.Errorf("bulk delete %d entities: %w", len(deletedIDs), err)
	}
	// A deleted entity may itself have been a parent (e.g. a Confluence
	// page); its children's breadcrumbs reference it regardless of
	// whether the children were re-emitted this run.
	if err := r.vectorStore.BulkDeleteByParentIDs(ctx, collectionID, syncID, deletedIDs); err != nil {
		return fmt.Errorf("bulk delete by parent ids: %w", err)
	}

	for _, id := range deletedIDs {
		if err := r.store.DeleteEntity(ctx, syncID, id); err != nil {
			return fmt.Errorf("delete entity record %s: %w", id, err)
		}
	}
	counters.Deleted += len(deletedIDs)
	return nil
}

// buildDriver resolves credentials/token access and constructs the Source
// Driver bound to this connection, per §4.3/§4.4.
func (r *Runner) buildDriver(ctx context.Context, entry registry.Entry, sc core.SourceConnection) (sources.Driver, sources.TokenGetter, error) {
	var creds map[string]any
	if sc.CredentialID != nil {
		var err error
		creds, _, err = r.credentials.Get(ctx, *sc.CredentialID)
		if err != nil {
			return nil, nil, fmt.Errorf("load credential: %w", err)
		}
	}

	var tok sources.TokenGetter
	if sc.AuthMethod != core.AuthDirect {
		tok = &connectionTokenGetter{tokens: r.tokens, sc: sc}
	}

	driver, err := entry.New(creds, sc.Config, tok)
	if err != nil {
		return nil, nil, fmt.Errorf("construct driver: %w", err)
	}
	return driver, tok, nil
}

// jobCancelled polls the job's current persisted status. Called between
// batches (and relied on to short-circuit the stream loop) rather than
// between every entity, since it costs a round trip to the store.
func (r *Runner) jobCancelled(ctx context.Context, jobID string) bool {
	current, err := r.store.GetSyncJob(ctx, jobID)
	if err != nil || current == nil {
		return false
	}
	return current.Status == core.JobCancelled
}

func (r *Runner) fail(ctx context.Context, job core.SyncJob, cause error) error {
	_ = r.finish(ctx, job, core.JobFailed, job.Counters, cause.Error())
	return cause
}

func (r *Runner) finish(ctx context.Context, job core.SyncJob, status core.JobStatus, counters core.JobCounters, errMsg string) error {
	job.Status = status
	job.Counters = counters
	job.Error = errMsg
	if err := r.store.UpdateSyncJob(ctx, job); err != nil {
		return fmt.Errorf("persist terminal job status: %w", err)
	}

	if r.lifecycle != nil {
		sync, err := r.store.GetSync(ctx, job.SyncID)
		if err == nil && sync != nil {
			if err := r.lifecycle.RunFinished(ctx, sync.SourceConnectionID); err != nil {
				slog.Error("notify lifecycle of run completion", "sync_id", sync.ID, "error", err)
			}
		}
	}
	return nil
}

// connectionTokenGetter adapts the Token Manager to the narrow
// sources.TokenGetter contract one Source Connection's driver sees.
type connectionTokenGetter struct {
	tokens *token.Manager
	sc     core.SourceConnection
}

func (t *connectionTokenGetter) Token(ctx context.Context) (string, error) {
	return t.tokens.GetValidToken(ctx, t.sc)
}

func (t *connectionTokenGetter) RefreshOnUnauthorized(ctx context.Context) (string, error) {
	if t.sc.CredentialID == nil {
		return t.tokens.GetValidToken(ctx, t.sc)
	}
	return t.tokens.RefreshOnUnauthorized(ctx, *t.sc.CredentialID, t.sc.ShortName)
}
