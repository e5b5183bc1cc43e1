package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/types"
)

func newArtifact(t *testing.T, store Store, status types.ArtifactStatus) *types.Artifact {
	t.Helper()
	artifact := &types.Artifact{
		ID:              uuid.New(),
		OriginalID:      "TP-001",
		Type:            types.TypeTradingPartner,
		Status:          status,
		OriginalData:    json.RawMessage(`{"TradingPartner":[{"ID":["TP-001"]}]}`),
		ExtractionJobID: uuid.New(),
		CreatedAt:       time.Now(),
		LastModified:    time.Now(),
	}
	if status != types.StatusNew {
		artifact.TransformedData = &types.CanonicalRecord{
			OriginalID: "TP-001",
			Type:       types.TypeTradingPartner,
			Payload:    map[string]any{},
			References: []types.EntityRef{},
		}
	}
	require.NoError(t, store.CreateArtifact(context.Background(), artifact))
	return artifact
}

func TestLifecycle_TransformSuccess(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusNew)

	record := &types.CanonicalRecord{OriginalID: "TP-001", Type: types.TypeTradingPartner, Payload: map[string]any{}, References: []types.EntityRef{}}
	updated, err := lifecycle.MarkTransformed(context.Background(), artifact.ID, record)
	require.NoError(t, err)

	assert.Equal(t, types.StatusPending, updated.Status)
	require.NotNil(t, updated.TransformedData)
	assert.Equal(t, "TP-001", updated.TransformedData.OriginalID)
}

func TestLifecycle_TransformFailure(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusNew)

	updated, err := lifecycle.MarkTransformFailed(context.Background(), artifact.ID, "discriminator section missing")
	require.NoError(t, err)

	assert.Equal(t, types.StatusError, updated.Status)
	assert.Equal(t, "discriminator section missing", updated.ErrorMessage)
}

func TestLifecycle_TransformMigratedArtifactRejected(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusMigrated)

	_, err := lifecycle.MarkTransformed(context.Background(), artifact.ID, &types.CanonicalRecord{})

	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, types.StatusMigrated, invalid.Status)

	// No mutation happened.
	stored, err := store.GetArtifact(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMigrated, stored.Status)
}

func TestLifecycle_RecordSuccess(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	updated, err := lifecycle.RecordSuccess(context.Background(), artifact.ID, "remote-7", json.RawMessage(`{"id":"remote-7"}`))
	require.NoError(t, err)
	assert.Equal(t, types.StatusMigrated, updated.Status)
	assert.Equal(t, "remote-7", updated.RemoteID)

	attempts, err := store.ListAttempts(context.Background(), artifact.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, types.AttemptSuccess, attempts[0].Status)
	assert.Contains(t, string(attempts[0].RemoteResponse), "remote-7")
}

func TestLifecycle_RecordFailureClearsRemoteID(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	_, err := lifecycle.RecordSuccess(context.Background(), artifact.ID, "remote-7", nil)
	require.NoError(t, err)

	// Forced re-push that fails: remote id must not survive a failed latest attempt.
	updated, err := lifecycle.RecordFailure(context.Background(), artifact.ID, "target rejected")
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, updated.Status)
	assert.Empty(t, updated.RemoteID)

	attempts, err := store.ListAttempts(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2, "attempts are append-only history")
}

func TestLifecycle_MigrateNewArtifactIsInvalid(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusNew)

	_, err := lifecycle.RecordSuccess(context.Background(), artifact.ID, "r", nil)
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	attempts, listErr := store.ListAttempts(context.Background(), artifact.ID)
	require.NoError(t, listErr)
	assert.Empty(t, attempts, "invalid transitions must not append attempts")
}

func TestLifecycle_Reject(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	_, err := lifecycle.RecordFailure(context.Background(), artifact.ID, "push failed")
	require.NoError(t, err)

	updated, err := lifecycle.Reject(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, updated.Status)
	assert.Nil(t, updated.TransformedData, "rejection clears the canonical record")
	assert.Empty(t, updated.ErrorMessage)
}

func TestLifecycle_RejectOnlyFromError(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	_, err := lifecycle.Reject(context.Background(), artifact.ID)
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestLifecycle_ForceReset(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	_, err := lifecycle.RecordSuccess(context.Background(), artifact.ID, "remote-1", nil)
	require.NoError(t, err)

	updated, err := lifecycle.ForceReset(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, updated.Status)
	assert.Empty(t, updated.RemoteID)
	assert.NotNil(t, updated.TransformedData, "reset keeps the canonical record for re-transform")
}

func TestLifecycle_UnknownArtifact(t *testing.T) {
	lifecycle := NewLifecycle(NewMemoryStore())

	_, err := lifecycle.MarkTransformed(context.Background(), uuid.New(), &types.CanonicalRecord{})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "artifact", notFound.Kind)
}

func TestMemoryStore_IsMigrated(t *testing.T) {
	store := NewMemoryStore()
	lifecycle := NewLifecycle(store)
	artifact := newArtifact(t, store, types.StatusPending)

	migrated, err := store.IsMigrated(context.Background(), "TP-001")
	require.NoError(t, err)
	assert.False(t, migrated)

	_, err = lifecycle.RecordSuccess(context.Background(), artifact.ID, "remote-1", nil)
	require.NoError(t, err)

	migrated, err = store.IsMigrated(context.Background(), "TP-001")
	require.NoError(t, err)
	assert.True(t, migrated)
}

func TestMemoryStore_CopiesOnRead(t *testing.T) {
	store := NewMemoryStore()
	artifact := newArtifact(t, store, types.StatusPending)

	loaded, err := store.GetArtifact(context.Background(), artifact.ID)
	require.NoError(t, err)
	loaded.Status = types.StatusMigrated
	loaded.TransformedData.Payload["mutated"] = true

	reloaded, err := store.GetArtifact(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, reloaded.Status)
}
