package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the outcome of a single migration attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// MigrationAttempt is an append-only audit record of one push to the target
// system. Attempts are never updated or deleted; the owning artifact's
// status and remote id are a projection of the most recent attempt.
type MigrationAttempt struct {
	ID             uuid.UUID       `json:"id"`
	ArtifactID     uuid.UUID       `json:"artifact_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Status         AttemptStatus   `json:"status"`
	RemoteResponse json.RawMessage `json:"remote_response,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}
