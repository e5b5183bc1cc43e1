package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/types"
)

const sampleExport = `{
	"artifacts": [
		{"original_id": "TP-1", "type": "trading_partner", "document": {"TradingPartner": [{"ID": ["TP-1"]}]}},
		{"original_id": "EP-1", "type": "endpoint", "document": {"Endpoint": [{"ID": ["EP-1"]}]}},
		{"original_id": "X-1", "type": "mailbox", "document": {"Mailbox": [{"ID": ["X-1"]}]}}
	],
	"metadata": {"source_version": "5.2"}
}`

func TestStart_PersistsArtifactsAndCompletesJob(t *testing.T) {
	store := ledger.NewMemoryStore()

	job, err := Start(context.Background(), store, "file_upload", []byte(sampleExport))
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background()))

	stored, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.JobCompleted, stored.Status)
	assert.Equal(t, 3, stored.ArtifactCount)
	assert.Equal(t, "file_upload", stored.Method)
	assert.Equal(t, "5.2", stored.Metadata["source_version"])

	artifacts, err := store.ListArtifactsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	for _, artifact := range artifacts {
		assert.Equal(t, types.StatusNew, artifact.Status)
		assert.NotEmpty(t, artifact.OriginalData)
	}
}

func TestStart_UnknownTypeFallsBackToOther(t *testing.T) {
	store := ledger.NewMemoryStore()

	job, err := Start(context.Background(), store, "file_upload", []byte(sampleExport))
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background()))

	artifacts, err := store.ListArtifactsByJob(context.Background(), job.ID)
	require.NoError(t, err)

	var foreign *types.Artifact
	for i := range artifacts {
		if artifacts[i].OriginalID == "X-1" {
			foreign = &artifacts[i]
		}
	}
	require.NotNil(t, foreign)
	assert.Equal(t, types.TypeOther, foreign.Type)
}

func TestStart_RejectsMalformedExport(t *testing.T) {
	store := ledger.NewMemoryStore()

	_, err := Start(context.Background(), store, "file_upload", []byte(`{"artifacts": [{"type": "endpoint"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export rejected")
}

func TestStart_EmptyExport(t *testing.T) {
	store := ledger.NewMemoryStore()

	job, err := Start(context.Background(), store, "api", []byte(`{"artifacts": []}`))
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background()))

	stored, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, stored.Status)
	assert.Equal(t, 0, stored.ArtifactCount)
}

func TestJob_WaitHonorsContext(t *testing.T) {
	job := &Job{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := job.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
