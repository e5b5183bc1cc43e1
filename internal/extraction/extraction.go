// Package extraction ingests source-system exports into the artifact ledger.
//
// The legacy source system fired extraction off without awaiting it; here the
// asynchrony is explicit: Start returns a Job handle the caller can await,
// with the ExtractionJob's status field as the externally visible progress
// signal.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/schemas"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// Item is one exported artifact tuple from the source system.
type Item struct {
	OriginalID string          `json:"original_id"`
	Type       string          `json:"type"`
	Document   json.RawMessage `json:"document"`
}

// Export is the wire shape of a full source-system export.
type Export struct {
	Artifacts []Item         `json:"artifacts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Job is the handle for an in-flight extraction.
type Job struct {
	ID uuid.UUID

	done chan struct{}
	err  error
}

// Wait blocks until the extraction finished or the context is done. It
// returns the extraction's terminal error, if any.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start validates a raw export, creates the extraction job record, and
// persists all produced artifacts asynchronously. Validation and job
// creation happen before Start returns; artifact persistence happens behind
// the returned handle.
func Start(ctx context.Context, store ledger.Store, method string, exportJSON []byte) (*Job, error) {
	if err := schemas.ValidateExport(exportJSON); err != nil {
		return nil, fmt.Errorf("export rejected: %w", err)
	}

	var export Export
	if err := json.Unmarshal(exportJSON, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	jobRecord := &types.ExtractionJob{
		ID:        uuid.New(),
		Method:    method,
		Status:    types.JobInProgress,
		Timestamp: time.Now(),
		Metadata:  export.Metadata,
	}
	if err := store.CreateJob(ctx, jobRecord); err != nil {
		return nil, fmt.Errorf("failed to create extraction job: %w", err)
	}

	job := &Job{ID: jobRecord.ID, done: make(chan struct{})}
	go func() {
		defer close(job.done)
		job.err = persist(ctx, store, jobRecord, export.Artifacts)
	}()
	return job, nil
}

// persist writes all artifacts with status new, then finalizes the job.
func persist(ctx context.Context, store ledger.Store, job *types.ExtractionJob, items []Item) error {
	count := 0
	var persistErr error

	for _, item := range items {
		artifactType, err := types.ParseArtifactType(item.Type)
		if err != nil {
			// The type set is closed; anything foreign is carried as other
			// and handled by the passthrough transform.
			artifactType = types.TypeOther
		}

		now := time.Now()
		artifact := &types.Artifact{
			ID:              uuid.New(),
			OriginalID:      item.OriginalID,
			Type:            artifactType,
			Status:          types.StatusNew,
			OriginalData:    item.Document,
			ExtractionJobID: job.ID,
			CreatedAt:       now,
			LastModified:    now,
		}
		if err := store.CreateArtifact(ctx, artifact); err != nil {
			persistErr = fmt.Errorf("failed to persist artifact %s: %w", item.OriginalID, err)
			break
		}
		count++
	}

	job.ArtifactCount = count
	if persistErr != nil {
		job.Status = types.JobFailed
		if job.Metadata == nil {
			job.Metadata = map[string]any{}
		}
		job.Metadata["error"] = persistErr.Error()
	} else {
		job.Status = types.JobCompleted
	}

	if err := store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to finalize extraction job: %w", err)
	}
	return persistErr
}
