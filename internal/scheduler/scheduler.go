// Package scheduler orders and executes pushes to the target system for a
// batch of artifacts, honoring dependencies, isolating per-item failures and
// producing one result per input artifact.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/b2b-migrator/internal/graph"
	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/target"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// DefaultWorkers bounds the number of concurrent pushes within a wave.
const DefaultWorkers = 4

// DefaultPushTimeout is the per-item timeout for a single push. A timeout
// fails only the item it fired for.
const DefaultPushTimeout = 60 * time.Second

// Pusher performs the type-routed creation call. *target.Client implements it.
type Pusher interface {
	Create(ctx context.Context, accessToken string, record *types.CanonicalRecord) (*target.CreateResult, error)
}

// TokenSource yields a valid bearer token for the batch. *target.TokenCache
// implements it.
type TokenSource interface {
	Get(ctx context.Context, creds target.Credentials) (*target.Token, error)
}

// Options configures a Scheduler.
type Options struct {
	Workers     int
	PushTimeout time.Duration
}

// Scheduler executes migration batches.
type Scheduler struct {
	lifecycle   *ledger.Lifecycle
	pusher      Pusher
	tokens      TokenSource
	workers     int
	pushTimeout time.Duration
}

// New creates a scheduler over the given lifecycle, pusher and token source.
func New(lifecycle *ledger.Lifecycle, pusher Pusher, tokens TokenSource, opts *Options) *Scheduler {
	s := &Scheduler{
		lifecycle:   lifecycle,
		pusher:      pusher,
		tokens:      tokens,
		workers:     DefaultWorkers,
		pushTimeout: DefaultPushTimeout,
	}
	if opts != nil {
		if opts.Workers > 0 {
			s.workers = opts.Workers
		}
		if opts.PushTimeout > 0 {
			s.pushTimeout = opts.PushTimeout
		}
	}
	return s
}

// MigrateBatch migrates a batch of artifacts. Per-item failures are captured
// in the returned summary and never abort siblings; the returned error is
// reserved for batch-wide failures (authentication, storage), which leave all
// not-yet-attempted artifacts pending.
func (s *Scheduler) MigrateBatch(ctx context.Context, artifacts []types.Artifact, creds target.Credentials, force bool) (*types.BatchSummary, error) {
	results := make(map[uuid.UUID]*types.MigrationResult, len(artifacts))
	var mu sync.Mutex

	setResult := func(r *types.MigrationResult) {
		mu.Lock()
		results[r.ArtifactID] = r
		mu.Unlock()
	}

	// Phase 1: eligibility. Already-migrated artifacts replay their cached
	// outcome unless the caller forces a re-push; anything not pending with
	// a canonical record is rejected without touching the ledger.
	var eligible []types.Artifact
	for _, artifact := range artifacts {
		switch {
		case artifact.Status == types.StatusMigrated && !force:
			noop, err := s.noOpResult(ctx, artifact)
			if err != nil {
				return s.assemble(artifacts, results), err
			}
			setResult(noop)
		case artifact.Migratable(), force && artifact.Status == types.StatusMigrated && artifact.TransformedData != nil:
			eligible = append(eligible, artifact)
		default:
			invalid := &ledger.InvalidStateError{ArtifactID: artifact.ID, Status: artifact.Status, Operation: "migrate"}
			setResult(&types.MigrationResult{
				ArtifactID: artifact.ID,
				OriginalID: artifact.OriginalID,
				Type:       artifact.Type,
				Status:     types.ResultFailed,
				Error:      invalid.Error(),
			})
		}
	}

	byID := make(map[uuid.UUID]types.Artifact, len(eligible))
	items := make([]graph.Item, 0, len(eligible))
	for _, artifact := range eligible {
		byID[artifact.ID] = artifact
		record := *artifact.TransformedData
		if record.OriginalID == "" {
			record.OriginalID = artifact.OriginalID
		}
		items = append(items, graph.Item{ArtifactID: artifact.ID, Record: &record})
	}

	// Phase 2: dependency graph and ordering.
	g, err := graph.Build(ctx, items, s.lifecycle.Store())
	if err != nil {
		return s.assemble(artifacts, results), err
	}
	plan := g.Plan()

	failed := make(map[uuid.UUID]bool)
	for id, planErr := range plan.Excluded {
		artifact := byID[id]
		if _, recordErr := s.lifecycle.RecordFailure(ctx, id, planErr.Error()); recordErr != nil {
			return s.assemble(artifacts, results), recordErr
		}
		failed[id] = true
		setResult(&types.MigrationResult{
			ArtifactID: id,
			OriginalID: artifact.OriginalID,
			Type:       artifact.Type,
			Status:     types.ResultFailed,
			Error:      planErr.Error(),
		})
	}

	order := plan.Order()
	if len(order) == 0 {
		return s.assemble(artifacts, results), nil
	}

	// Phase 3: one token for the whole batch. A failure here aborts every
	// remaining push but leaves the artifacts pending for a later retry.
	token, err := s.tokens.Get(ctx, creds)
	if err != nil {
		for _, id := range order {
			artifact := byID[id]
			setResult(&types.MigrationResult{
				ArtifactID: id,
				OriginalID: artifact.OriginalID,
				Type:       artifact.Type,
				Status:     types.ResultSkipped,
				Error:      fmt.Sprintf("batch aborted: %v", err),
			})
		}
		return s.assemble(artifacts, results), err
	}

	// Phase 4: push wave by wave. A wave's items are independent of each
	// other, so they run concurrently on a bounded pool; the next wave is
	// not released until the whole wave settled, since its items may depend
	// on this wave's outcomes.
	for _, wave := range plan.Waves {
		eg, waveCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.workers)

		for _, id := range wave {
			artifactID := id
			eg.Go(func() error {
				return s.pushOne(waveCtx, g, byID[artifactID], token, failed, &mu, results)
			})
		}
		if err := eg.Wait(); err != nil {
			return s.assemble(artifacts, results), err
		}
	}

	return s.assemble(artifacts, results), nil
}

// pushOne migrates a single artifact, short-circuiting when one of its
// prerequisites already failed in this batch. Returned errors are storage
// failures only; push rejections become failed results.
func (s *Scheduler) pushOne(ctx context.Context, g *graph.Graph, artifact types.Artifact, token *target.Token, failed map[uuid.UUID]bool, mu *sync.Mutex, results map[uuid.UUID]*types.MigrationResult) error {
	markFailed := func(message string) error {
		if _, err := s.lifecycle.RecordFailure(ctx, artifact.ID, message); err != nil {
			return err
		}
		mu.Lock()
		failed[artifact.ID] = true
		results[artifact.ID] = &types.MigrationResult{
			ArtifactID: artifact.ID,
			OriginalID: artifact.OriginalID,
			Type:       artifact.Type,
			Status:     types.ResultFailed,
			Error:      message,
		}
		mu.Unlock()
		return nil
	}

	// Short-circuit: the prerequisite never became available on the target.
	mu.Lock()
	var failedDep uuid.UUID
	var depFailed bool
	for _, dep := range g.DirectDeps(artifact.ID) {
		if failed[dep] {
			failedDep, depFailed = dep, true
			break
		}
	}
	mu.Unlock()
	if depFailed {
		unresolved := &graph.UnresolvedRefError{
			OriginalID: artifact.OriginalID,
			Refs:       []types.EntityRef{{OriginalID: g.OriginalID(failedDep)}},
		}
		return markFailed(unresolved.Error())
	}

	record := artifact.TransformedData
	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	created, err := s.pusher.Create(pushCtx, token.AccessToken, record)
	if err != nil {
		return markFailed(err.Error())
	}

	if _, err := s.lifecycle.RecordSuccess(ctx, artifact.ID, created.RemoteID, created.Response); err != nil {
		return err
	}
	mu.Lock()
	results[artifact.ID] = &types.MigrationResult{
		ArtifactID: artifact.ID,
		OriginalID: artifact.OriginalID,
		Type:       artifact.Type,
		Status:     types.ResultSuccess,
		RemoteID:   created.RemoteID,
	}
	mu.Unlock()
	return nil
}

// noOpResult replays the cached outcome of an already-migrated artifact
// without re-pushing or appending a new attempt.
func (s *Scheduler) noOpResult(ctx context.Context, artifact types.Artifact) (*types.MigrationResult, error) {
	result := &types.MigrationResult{
		ArtifactID: artifact.ID,
		OriginalID: artifact.OriginalID,
		Type:       artifact.Type,
		Status:     types.ResultSuccess,
		RemoteID:   artifact.RemoteID,
		NoOp:       true,
	}
	attempt, err := s.lifecycle.Store().LatestAttempt(ctx, artifact.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest attempt: %w", err)
	}
	if attempt != nil && attempt.Status == types.AttemptFailed {
		result.Status = types.ResultFailed
		result.RemoteID = ""
		result.Error = attempt.ErrorMessage
	}
	return result, nil
}

// assemble converts the result map into the summary, one entry per input
// artifact in input order. Artifacts with no recorded outcome were never
// reached (the batch aborted first) and report as skipped.
func (s *Scheduler) assemble(artifacts []types.Artifact, results map[uuid.UUID]*types.MigrationResult) *types.BatchSummary {
	summary := &types.BatchSummary{Results: make([]types.MigrationResult, 0, len(artifacts))}
	for _, artifact := range artifacts {
		if r, ok := results[artifact.ID]; ok {
			summary.Results = append(summary.Results, *r)
			continue
		}
		summary.Results = append(summary.Results, types.MigrationResult{
			ArtifactID: artifact.ID,
			OriginalID: artifact.OriginalID,
			Type:       artifact.Type,
			Status:     types.ResultSkipped,
			Error:      "not attempted",
		})
	}
	summary.Tally()
	return summary
}
