// Package pipeline provides the high-level orchestration for the migration process.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/b2b-migrator/internal/extraction"
	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/scheduler"
	"github.com/jonathan/b2b-migrator/internal/target"
	"github.com/jonathan/b2b-migrator/internal/transform"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// Step and category names for progress events and persisted audit context.
const (
	StepExtraction     = "extraction"
	StepTransformation = "transformation"
	StepMigration      = "migration"

	CategoryExtraction     = "extraction"
	CategoryTransformation = "transformation"
	CategoryMigration      = "migration"
)

// ProgressEvent represents a progress update during pipeline execution.
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs.
type ProgressCallback func(event ProgressEvent)

// Options holds configuration for the orchestrator.
type Options struct {
	Workers    int
	OnProgress ProgressCallback
}

// Orchestrator composes extraction, transformation and migration over a
// shared ledger. It is a thin layer: every real decision lives in the
// transformer, the graph, or the scheduler.
type Orchestrator struct {
	lifecycle *ledger.Lifecycle
	scheduler *scheduler.Scheduler
	workers   int
	onEvent   ProgressCallback
}

// New creates an orchestrator.
func New(lifecycle *ledger.Lifecycle, sched *scheduler.Scheduler, opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = scheduler.DefaultWorkers
	}
	return &Orchestrator{
		lifecycle: lifecycle,
		scheduler: sched,
		workers:   workers,
		onEvent:   opts.OnProgress,
	}
}

func (o *Orchestrator) emit(step, category, message string, content any) {
	if o.onEvent != nil {
		o.onEvent(ProgressEvent{Step: step, Category: category, Message: message, Content: content})
	}
}

// Extract ingests a raw source-system export and waits for all produced
// artifacts to be persisted.
func (o *Orchestrator) Extract(ctx context.Context, method string, exportJSON []byte) (*types.ExtractionJob, error) {
	job, err := extraction.Start(ctx, o.lifecycle.Store(), method, exportJSON)
	if err != nil {
		return nil, err
	}
	waitErr := job.Wait(ctx)

	record, err := o.lifecycle.Store().GetJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction job: %w", err)
	}
	if record == nil {
		return nil, &ledger.NotFoundError{Kind: "extraction job", ID: job.ID}
	}

	o.emit(StepExtraction, CategoryExtraction,
		fmt.Sprintf("Extraction %s: %d artifacts (%s)", record.Status, record.ArtifactCount, method), record)
	return record, waitErr
}

// TransformOne transforms a single artifact into its canonical record. A
// transformation failure is recorded on the artifact, not returned as an
// error; errors are reserved for unknown artifacts, invalid lifecycle
// states, and storage failures.
func (o *Orchestrator) TransformOne(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	artifact, err := o.lifecycle.Store().GetArtifact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	if artifact == nil {
		return nil, &ledger.NotFoundError{Kind: "artifact", ID: id}
	}
	return o.transformArtifact(ctx, artifact)
}

func (o *Orchestrator) transformArtifact(ctx context.Context, artifact *types.Artifact) (*types.Artifact, error) {
	record, transformErr := transform.Transform(artifact.Type, artifact.OriginalData)
	if transformErr != nil {
		updated, err := o.lifecycle.MarkTransformFailed(ctx, artifact.ID, transformErr.Error())
		if err != nil {
			return nil, err
		}
		o.emit(StepTransformation, CategoryTransformation,
			fmt.Sprintf("Transformation failed for %s: %v", artifact.OriginalID, transformErr), nil)
		return updated, nil
	}

	// The artifact's source id is authoritative; some documents omit their
	// own id field.
	if record.OriginalID == "" {
		record.OriginalID = artifact.OriginalID
	}

	updated, err := o.lifecycle.MarkTransformed(ctx, artifact.ID, record)
	if err != nil {
		return nil, err
	}
	o.emit(StepTransformation, CategoryTransformation,
		fmt.Sprintf("Transformed %s %s (%d references)", artifact.Type, artifact.OriginalID, len(record.References)), nil)
	return updated, nil
}

// TransformAll transforms every artifact with status new. Transformation is
// embarrassingly parallel: no shared state, no ordering.
func (o *Orchestrator) TransformAll(ctx context.Context) (*types.TransformSummary, error) {
	artifacts, err := o.lifecycle.Store().ListArtifactsByStatus(ctx, types.StatusNew)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	summary := &types.TransformSummary{}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)

	for i := range artifacts {
		artifact := artifacts[i]
		eg.Go(func() error {
			updated, err := o.transformArtifact(egCtx, &artifact)
			if err != nil {
				return err
			}

			result := types.TransformResult{
				ArtifactID: artifact.ID,
				OriginalID: artifact.OriginalID,
				Type:       artifact.Type,
				Status:     types.ResultSuccess,
			}
			if updated.Status == types.StatusError {
				result.Status = types.ResultFailed
				result.Error = updated.ErrorMessage
			}
			mu.Lock()
			summary.Results = append(summary.Results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	summary.Attempted = len(summary.Results)
	for _, r := range summary.Results {
		if r.Status == types.ResultSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	o.emit(StepTransformation, CategoryTransformation,
		fmt.Sprintf("Transformed %d artifacts: %d succeeded, %d failed", summary.Attempted, summary.Succeeded, summary.Failed), summary)
	return summary, nil
}

// MigrateOne migrates a single artifact as a singleton batch.
func (o *Orchestrator) MigrateOne(ctx context.Context, id uuid.UUID, creds target.Credentials, force bool) (*types.BatchSummary, error) {
	artifact, err := o.lifecycle.Store().GetArtifact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	if artifact == nil {
		return nil, &ledger.NotFoundError{Kind: "artifact", ID: id}
	}
	return o.migrateBatch(ctx, []types.Artifact{*artifact}, creds, force)
}

// MigrateAll migrates every pending artifact as one scheduler batch. With
// force, already-migrated artifacts join the batch and are pushed again.
func (o *Orchestrator) MigrateAll(ctx context.Context, creds target.Credentials, force bool) (*types.BatchSummary, error) {
	artifacts, err := o.lifecycle.Store().ListArtifactsByStatus(ctx, types.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending artifacts: %w", err)
	}
	if force {
		migrated, err := o.lifecycle.Store().ListArtifactsByStatus(ctx, types.StatusMigrated)
		if err != nil {
			return nil, fmt.Errorf("failed to list migrated artifacts: %w", err)
		}
		artifacts = append(artifacts, migrated...)
	}
	return o.migrateBatch(ctx, artifacts, creds, force)
}

func (o *Orchestrator) migrateBatch(ctx context.Context, artifacts []types.Artifact, creds target.Credentials, force bool) (*types.BatchSummary, error) {
	started := time.Now()
	summary, err := o.scheduler.MigrateBatch(ctx, artifacts, creds, force)
	if err != nil && summary != nil {
		summary.BatchError = err.Error()
	}

	message := fmt.Sprintf("Migrated batch of %d in %s: %d succeeded, %d failed, %d skipped",
		len(artifacts), time.Since(started).Round(time.Millisecond), summary.Succeeded, summary.Failed, summary.Skipped)
	o.emit(StepMigration, CategoryMigration, message, summary)
	return summary, err
}

// Reject is the operator rejection of a failed artifact; it re-enters the
// pipeline as new.
func (o *Orchestrator) Reject(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	return o.lifecycle.Reject(ctx, id)
}

// ForceRemigrate resets a migrated artifact to new so it can be transformed
// and migrated again.
func (o *Orchestrator) ForceRemigrate(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	return o.lifecycle.ForceReset(ctx, id)
}
