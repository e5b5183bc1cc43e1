package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// *DB implements ledger.Store. Lookups for missing records return (nil, nil);
// errors are reserved for storage failures.

const artifactColumns = `id, original_id, type, status, original_data, transformed_data,
	 remote_id, error_message, extraction_job_id, created_at, last_modified`

// CreateArtifact persists a new artifact
func (db *DB) CreateArtifact(ctx context.Context, artifact *types.Artifact) error {
	transformed, err := marshalRecord(artifact.TransformedData)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		artifact.ID, artifact.OriginalID, artifact.Type, artifact.Status,
		[]byte(artifact.OriginalData), transformed,
		artifact.RemoteID, artifact.ErrorMessage, artifact.ExtractionJobID,
		artifact.CreatedAt, artifact.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves an artifact by its UUID
func (db *DB) GetArtifact(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id)

	artifact, err := scanArtifact(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return artifact, nil
}

// ListArtifacts retrieves every artifact in the ledger
func (db *DB) ListArtifacts(ctx context.Context) ([]types.Artifact, error) {
	return db.listArtifacts(ctx,
		`SELECT `+artifactColumns+` FROM artifacts ORDER BY id`)
}

// ListArtifactsByStatus retrieves artifacts in the given lifecycle state
func (db *DB) ListArtifactsByStatus(ctx context.Context, status types.ArtifactStatus) ([]types.Artifact, error) {
	return db.listArtifacts(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE status = $1 ORDER BY id`, status)
}

// ListArtifactsByJob retrieves artifacts produced by one extraction job
func (db *DB) ListArtifactsByJob(ctx context.Context, jobID uuid.UUID) ([]types.Artifact, error) {
	return db.listArtifacts(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE extraction_job_id = $1 ORDER BY id`, jobID)
}

func (db *DB) listArtifacts(ctx context.Context, query string, args ...any) ([]types.Artifact, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []types.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, *artifact)
	}
	return artifacts, rows.Err()
}

// UpdateArtifact overwrites an artifact's mutable fields
func (db *DB) UpdateArtifact(ctx context.Context, artifact *types.Artifact) error {
	transformed, err := marshalRecord(artifact.TransformedData)
	if err != nil {
		return err
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE artifacts
		 SET status = $2, transformed_data = $3, remote_id = $4,
		     error_message = $5, last_modified = $6
		 WHERE id = $1`,
		artifact.ID, artifact.Status, transformed,
		artifact.RemoteID, artifact.ErrorMessage, artifact.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("artifact not found: %s", artifact.ID)
	}
	return nil
}

// AppendAttempt records one migration attempt. Attempts are never updated.
func (db *DB) AppendAttempt(ctx context.Context, attempt *types.MigrationAttempt) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO migration_attempts (id, artifact_id, timestamp, status, remote_response, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.ID, attempt.ArtifactID, attempt.Timestamp, attempt.Status,
		[]byte(attempt.RemoteResponse), attempt.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to append attempt: %w", err)
	}
	return nil
}

// LatestAttempt retrieves the most recent attempt for an artifact
func (db *DB) LatestAttempt(ctx context.Context, artifactID uuid.UUID) (*types.MigrationAttempt, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, artifact_id, timestamp, status, remote_response, error_message
		 FROM migration_attempts WHERE artifact_id = $1
		 ORDER BY timestamp DESC, id DESC LIMIT 1`, artifactID)

	attempt, err := scanAttempt(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest attempt: %w", err)
	}
	return attempt, nil
}

// ListAttempts retrieves every attempt for an artifact, oldest first
func (db *DB) ListAttempts(ctx context.Context, artifactID uuid.UUID) ([]types.MigrationAttempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, artifact_id, timestamp, status, remote_response, error_message
		 FROM migration_attempts WHERE artifact_id = $1
		 ORDER BY timestamp ASC, id ASC`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []types.MigrationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

// CreateJob persists a new extraction job
func (db *DB) CreateJob(ctx context.Context, job *types.ExtractionJob) error {
	metadata, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, method, status, artifact_count, timestamp, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Method, job.Status, job.ArtifactCount, job.Timestamp, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves an extraction job by ID
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.ExtractionJob, error) {
	var job types.ExtractionJob
	var metadata []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, method, status, artifact_count, timestamp, metadata
		 FROM extraction_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Method, &job.Status, &job.ArtifactCount, &job.Timestamp, &metadata)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job metadata: %w", err)
		}
	}
	return &job, nil
}

// UpdateJob overwrites a job's status, count and metadata
func (db *DB) UpdateJob(ctx context.Context, job *types.ExtractionJob) error {
	metadata, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE extraction_jobs
		 SET status = $2, artifact_count = $3, metadata = $4
		 WHERE id = $1`,
		job.ID, job.Status, job.ArtifactCount, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("extraction job not found: %s", job.ID)
	}
	return nil
}

// IsMigrated reports whether any artifact with the given source-system id has
// already been migrated
func (db *DB) IsMigrated(ctx context.Context, originalID string) (bool, error) {
	var migrated bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM artifacts WHERE original_id = $1 AND status = 'migrated'
		 )`, originalID,
	).Scan(&migrated)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return migrated, nil
}

func scanArtifact(row pgx.Row) (*types.Artifact, error) {
	var artifact types.Artifact
	var original, transformed []byte

	err := row.Scan(
		&artifact.ID, &artifact.OriginalID, &artifact.Type, &artifact.Status,
		&original, &transformed,
		&artifact.RemoteID, &artifact.ErrorMessage, &artifact.ExtractionJobID,
		&artifact.CreatedAt, &artifact.LastModified,
	)
	if err != nil {
		return nil, err
	}

	artifact.OriginalData = json.RawMessage(original)
	if len(transformed) > 0 {
		var record types.CanonicalRecord
		if err := json.Unmarshal(transformed, &record); err != nil {
			return nil, fmt.Errorf("failed to decode canonical record: %w", err)
		}
		artifact.TransformedData = &record
	}
	return &artifact, nil
}

func scanAttempt(row pgx.Row) (*types.MigrationAttempt, error) {
	var attempt types.MigrationAttempt
	var response []byte

	err := row.Scan(
		&attempt.ID, &attempt.ArtifactID, &attempt.Timestamp,
		&attempt.Status, &response, &attempt.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	attempt.RemoteResponse = json.RawMessage(response)
	return &attempt, nil
}

func marshalRecord(record *types.CanonicalRecord) ([]byte, error) {
	if record == nil {
		return nil, nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical record: %w", err)
	}
	return data, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}
	return data, nil
}
