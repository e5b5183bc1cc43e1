// Package ledger provides the artifact lifecycle state machine and the audit
// ledger it operates against. Storage is an injected capability so the
// scheduler and lifecycle logic stay storage-agnostic.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// Store is the persistence capability for artifacts, extraction jobs and the
// append-only migration attempt ledger. Lookups for missing records return
// (nil, nil); errors are reserved for storage failures.
type Store interface {
	CreateArtifact(ctx context.Context, artifact *types.Artifact) error
	GetArtifact(ctx context.Context, id uuid.UUID) (*types.Artifact, error)
	ListArtifacts(ctx context.Context) ([]types.Artifact, error)
	ListArtifactsByStatus(ctx context.Context, status types.ArtifactStatus) ([]types.Artifact, error)
	ListArtifactsByJob(ctx context.Context, jobID uuid.UUID) ([]types.Artifact, error)
	UpdateArtifact(ctx context.Context, artifact *types.Artifact) error

	AppendAttempt(ctx context.Context, attempt *types.MigrationAttempt) error
	LatestAttempt(ctx context.Context, artifactID uuid.UUID) (*types.MigrationAttempt, error)
	ListAttempts(ctx context.Context, artifactID uuid.UUID) ([]types.MigrationAttempt, error)

	CreateJob(ctx context.Context, job *types.ExtractionJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*types.ExtractionJob, error)
	UpdateJob(ctx context.Context, job *types.ExtractionJob) error

	// IsMigrated reports whether any artifact with the given source-system id
	// has already been migrated. The dependency graph uses it to satisfy
	// references pointing outside the current batch.
	IsMigrated(ctx context.Context, originalID string) (bool, error)
}

// InvalidStateError indicates an operation attempted on an artifact in the
// wrong lifecycle state. The operation never mutates state.
type InvalidStateError struct {
	ArtifactID uuid.UUID
	Status     types.ArtifactStatus
	Operation  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s: artifact %s is %s", e.Operation, e.ArtifactID, e.Status)
}

// NotFoundError indicates a record that does not exist in the ledger.
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
