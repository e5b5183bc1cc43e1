package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an extraction job.
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ExtractionJob records one extraction run against the source system.
// It is created at extraction start and finalized once every produced
// artifact is persisted, or the extraction itself fails.
type ExtractionJob struct {
	ID            uuid.UUID      `json:"id"`
	Method        string         `json:"method"`
	Status        JobStatus      `json:"status"`
	ArtifactCount int            `json:"artifact_count"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
