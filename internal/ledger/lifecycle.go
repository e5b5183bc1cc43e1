package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// Lifecycle enforces the artifact state machine over a Store:
//
//	new → pending → {migrated, error}
//	error → new (operator reject, clears transformed data)
//	migrated → new (operator forced re-migration, clears remote id)
//
// Invalid transitions return *InvalidStateError without mutating the ledger
// or appending an attempt.
type Lifecycle struct {
	store Store

	// now is swappable for tests.
	now func() time.Time
}

// NewLifecycle creates a lifecycle over the given store.
func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store, now: time.Now}
}

// Store exposes the underlying store for read paths.
func (l *Lifecycle) Store() Store {
	return l.store
}

// load fetches an artifact or returns *NotFoundError.
func (l *Lifecycle) load(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	artifact, err := l.store.GetArtifact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	if artifact == nil {
		return nil, &NotFoundError{Kind: "artifact", ID: id}
	}
	return artifact, nil
}

// MarkTransformed records a successful transformation: the artifact moves to
// pending and carries the new canonical record. Re-transformation of a
// pending artifact replaces the record wholesale.
func (l *Lifecycle) MarkTransformed(ctx context.Context, id uuid.UUID, record *types.CanonicalRecord) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusNew && artifact.Status != types.StatusPending {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "transform"}
	}

	artifact.Status = types.StatusPending
	artifact.TransformedData = record
	artifact.ErrorMessage = ""
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist transformation: %w", err)
	}
	return artifact, nil
}

// MarkTransformFailed records a transformation failure.
func (l *Lifecycle) MarkTransformFailed(ctx context.Context, id uuid.UUID, message string) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusNew && artifact.Status != types.StatusPending {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "transform"}
	}

	artifact.Status = types.StatusError
	artifact.ErrorMessage = message
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist transformation failure: %w", err)
	}
	return artifact, nil
}

// RecordSuccess records a successful push: the artifact becomes migrated with
// its assigned remote id, and one success attempt is appended to the ledger.
// A forced re-push of an already-migrated artifact is also recorded here.
func (l *Lifecycle) RecordSuccess(ctx context.Context, id uuid.UUID, remoteID string, response json.RawMessage) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusPending && artifact.Status != types.StatusMigrated {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "migrate"}
	}

	artifact.Status = types.StatusMigrated
	artifact.RemoteID = remoteID
	artifact.ErrorMessage = ""
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist migration success: %w", err)
	}

	attempt := &types.MigrationAttempt{
		ID:             uuid.New(),
		ArtifactID:     id,
		Timestamp:      l.now(),
		Status:         types.AttemptSuccess,
		RemoteResponse: response,
	}
	if err := l.store.AppendAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to append attempt: %w", err)
	}
	return artifact, nil
}

// RecordFailure records a failed push, unresolved reference, or cycle
// exclusion: the artifact becomes error and one failed attempt is appended.
func (l *Lifecycle) RecordFailure(ctx context.Context, id uuid.UUID, message string) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusPending && artifact.Status != types.StatusMigrated {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "migrate"}
	}

	artifact.Status = types.StatusError
	artifact.ErrorMessage = message
	// The remote id projects the latest attempt; a failed attempt clears it.
	artifact.RemoteID = ""
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist migration failure: %w", err)
	}

	attempt := &types.MigrationAttempt{
		ID:           uuid.New(),
		ArtifactID:   id,
		Timestamp:    l.now(),
		Status:       types.AttemptFailed,
		ErrorMessage: message,
	}
	if err := l.store.AppendAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to append attempt: %w", err)
	}
	return artifact, nil
}

// Reject is the operator rejection of a failed artifact: it re-enters the
// cycle as new, with transformed data and any stale remote state cleared.
func (l *Lifecycle) Reject(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusError {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "reject"}
	}

	artifact.Status = types.StatusNew
	artifact.TransformedData = nil
	artifact.RemoteID = ""
	artifact.ErrorMessage = ""
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist rejection: %w", err)
	}
	return artifact, nil
}

// ForceReset sends a migrated artifact back to new for re-migration,
// clearing its remote id. The canonical record stays; re-transformation will
// replace it before the next migration attempt.
func (l *Lifecycle) ForceReset(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	artifact, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact.Status != types.StatusMigrated {
		return nil, &InvalidStateError{ArtifactID: id, Status: artifact.Status, Operation: "force re-migration"}
	}

	artifact.Status = types.StatusNew
	artifact.RemoteID = ""
	artifact.LastModified = l.now()
	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist reset: %w", err)
	}
	return artifact, nil
}
