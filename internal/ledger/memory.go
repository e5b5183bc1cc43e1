package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// MemoryStore is an in-memory Store used by tests and by CLI runs without a
// configured database. All methods copy records on the way in and out so
// callers never alias ledger state.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[uuid.UUID]types.Artifact
	attempts  map[uuid.UUID][]types.MigrationAttempt
	jobs      map[uuid.UUID]types.ExtractionJob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[uuid.UUID]types.Artifact),
		attempts:  make(map[uuid.UUID][]types.MigrationAttempt),
		jobs:      make(map[uuid.UUID]types.ExtractionJob),
	}
}

// CreateArtifact stores a new artifact.
func (s *MemoryStore) CreateArtifact(_ context.Context, artifact *types.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.ID] = copyArtifact(artifact)
	return nil
}

// GetArtifact returns an artifact by id, or (nil, nil) when absent.
func (s *MemoryStore) GetArtifact(_ context.Context, id uuid.UUID) (*types.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, nil
	}
	out := copyArtifact(&artifact)
	return &out, nil
}

// ListArtifacts returns every artifact, ordered by ascending id.
func (s *MemoryStore) ListArtifacts(_ context.Context) ([]types.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(types.Artifact) bool { return true }), nil
}

// ListArtifactsByStatus returns every artifact in the given status.
func (s *MemoryStore) ListArtifactsByStatus(_ context.Context, status types.ArtifactStatus) ([]types.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(a types.Artifact) bool { return a.Status == status }), nil
}

// ListArtifactsByJob returns every artifact produced by an extraction job.
func (s *MemoryStore) ListArtifactsByJob(_ context.Context, jobID uuid.UUID) ([]types.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(a types.Artifact) bool { return a.ExtractionJobID == jobID }), nil
}

func (s *MemoryStore) listLocked(keep func(types.Artifact) bool) []types.Artifact {
	var out []types.Artifact
	for _, artifact := range s.artifacts {
		if keep(artifact) {
			out = append(out, copyArtifact(&artifact))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// UpdateArtifact replaces a stored artifact.
func (s *MemoryStore) UpdateArtifact(_ context.Context, artifact *types.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[artifact.ID]; !ok {
		return &NotFoundError{Kind: "artifact", ID: artifact.ID}
	}
	s.artifacts[artifact.ID] = copyArtifact(artifact)
	return nil
}

// AppendAttempt appends to the audit ledger. Attempts are never updated.
func (s *MemoryStore) AppendAttempt(_ context.Context, attempt *types.MigrationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ArtifactID] = append(s.attempts[attempt.ArtifactID], *attempt)
	return nil
}

// LatestAttempt returns the most recent attempt for an artifact, or (nil, nil).
func (s *MemoryStore) LatestAttempt(_ context.Context, artifactID uuid.UUID) (*types.MigrationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.attempts[artifactID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

// ListAttempts returns the full attempt history for an artifact, oldest first.
func (s *MemoryStore) ListAttempts(_ context.Context, artifactID uuid.UUID) ([]types.MigrationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.attempts[artifactID]
	out := make([]types.MigrationAttempt, len(history))
	copy(out, history)
	return out, nil
}

// CreateJob stores a new extraction job.
func (s *MemoryStore) CreateJob(_ context.Context, job *types.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// GetJob returns an extraction job by id, or (nil, nil).
func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*types.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// UpdateJob replaces a stored extraction job.
func (s *MemoryStore) UpdateJob(_ context.Context, job *types.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return &NotFoundError{Kind: "extraction job", ID: job.ID}
	}
	s.jobs[job.ID] = *job
	return nil
}

// IsMigrated reports whether any artifact with the given source-system id is
// currently migrated.
func (s *MemoryStore) IsMigrated(_ context.Context, originalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, artifact := range s.artifacts {
		if artifact.OriginalID == originalID && artifact.Status == types.StatusMigrated {
			return true, nil
		}
	}
	return false, nil
}

func copyArtifact(artifact *types.Artifact) types.Artifact {
	out := *artifact
	if artifact.TransformedData != nil {
		record := *artifact.TransformedData
		record.References = append([]types.EntityRef(nil), artifact.TransformedData.References...)
		if artifact.TransformedData.Payload != nil {
			record.Payload = make(map[string]any, len(artifact.TransformedData.Payload))
			for k, v := range artifact.TransformedData.Payload {
				record.Payload[k] = v
			}
		}
		out.TransformedData = &record
	}
	return out
}
