// Package types provides type definitions for structured data used throughout the b2b-migrator system.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArtifactType identifies what kind of configuration object an artifact is.
// The set is closed; anything the source system exports that does not match
// one of the known kinds is carried as TypeOther.
type ArtifactType string

const (
	TypeTradingPartner ArtifactType = "trading_partner"
	TypeChannel        ArtifactType = "channel"
	TypeCertificate    ArtifactType = "certificate"
	TypeMap            ArtifactType = "map"
	TypeEndpoint       ArtifactType = "endpoint"
	TypeSchema         ArtifactType = "schema"
	TypeOther          ArtifactType = "other"
)

// AllArtifactTypes lists every recognized artifact type.
var AllArtifactTypes = []ArtifactType{
	TypeTradingPartner,
	TypeChannel,
	TypeCertificate,
	TypeMap,
	TypeEndpoint,
	TypeSchema,
	TypeOther,
}

// ParseArtifactType converts a string to an ArtifactType.
// Unrecognized values return an error rather than silently mapping to TypeOther;
// callers that want the fallback behavior must opt in explicitly.
func ParseArtifactType(s string) (ArtifactType, error) {
	for _, t := range AllArtifactTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown artifact type: %q", s)
}

// IsValid reports whether t is one of the recognized artifact types.
func (t ArtifactType) IsValid() bool {
	for _, known := range AllArtifactTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ArtifactStatus is the lifecycle state of an artifact.
type ArtifactStatus string

const (
	StatusNew      ArtifactStatus = "new"
	StatusPending  ArtifactStatus = "pending"
	StatusMigrated ArtifactStatus = "migrated"
	StatusError    ArtifactStatus = "error"
)

// Artifact is a single unit of configuration moving through the migration pipeline.
type Artifact struct {
	ID              uuid.UUID        `json:"id"`
	OriginalID      string           `json:"original_id"`
	Type            ArtifactType     `json:"type"`
	Status          ArtifactStatus   `json:"status"`
	OriginalData    json.RawMessage  `json:"original_data,omitempty"`
	TransformedData *CanonicalRecord `json:"transformed_data,omitempty"`
	RemoteID        string           `json:"remote_id,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ExtractionJobID uuid.UUID        `json:"extraction_job_id"`
	CreatedAt       time.Time        `json:"created_at"`
	LastModified    time.Time        `json:"last_modified"`
}

// Migratable reports whether the artifact satisfies the preconditions for a
// migration attempt: status pending and a canonical record present.
func (a *Artifact) Migratable() bool {
	return a.Status == StatusPending && a.TransformedData != nil
}
