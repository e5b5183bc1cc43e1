package types

import "github.com/google/uuid"

// ResultStatus classifies the outcome of one artifact within a batch.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	// ResultSkipped marks artifacts whose push never started because the
	// batch aborted first (for example on an authentication failure).
	// Skipped artifacts keep their prior status and may be retried.
	ResultSkipped ResultStatus = "skipped"
)

// MigrationResult is the per-artifact outcome of a scheduler batch.
type MigrationResult struct {
	ArtifactID uuid.UUID    `json:"artifact_id"`
	OriginalID string       `json:"original_id"`
	Type       ArtifactType `json:"type"`
	Status     ResultStatus `json:"status"`
	RemoteID   string       `json:"remote_id,omitempty"`
	Error      string       `json:"error,omitempty"`
	// NoOp is true when the artifact was already migrated and the cached
	// attempt outcome was returned without a new push.
	NoOp bool `json:"no_op,omitempty"`
}

// BatchSummary aggregates a batch of migration results for operator visibility.
type BatchSummary struct {
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Results   []MigrationResult `json:"results"`
	// BatchError is set when a batch-wide failure (authentication) aborted
	// the run; per-item failures never populate it.
	BatchError string `json:"batch_error,omitempty"`
}

// Tally recomputes the aggregate counters from Results.
func (s *BatchSummary) Tally() {
	s.Attempted, s.Succeeded, s.Failed, s.Skipped = 0, 0, 0, 0
	for _, r := range s.Results {
		switch r.Status {
		case ResultSuccess:
			s.Succeeded++
		case ResultFailed:
			s.Failed++
		case ResultSkipped:
			s.Skipped++
		}
		if !r.NoOp && r.Status != ResultSkipped {
			s.Attempted++
		}
	}
}

// TransformResult is the per-artifact outcome of a transformation pass.
type TransformResult struct {
	ArtifactID uuid.UUID    `json:"artifact_id"`
	OriginalID string       `json:"original_id"`
	Type       ArtifactType `json:"type"`
	Status     ResultStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// TransformSummary aggregates a transformation pass.
type TransformSummary struct {
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []TransformResult `json:"results"`
}
