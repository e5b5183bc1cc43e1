package types

// EntityRef is a reference from one canonical record to another artifact,
// identified by the referenced artifact's source-system id. The set of
// references on a record is the sole input to dependency-graph construction.
type EntityRef struct {
	Type       ArtifactType `json:"type"`
	OriginalID string       `json:"original_id"`
}

// CanonicalRecord is the normalized, source-format-independent representation
// of an artifact. It is produced wholesale by transformation and replaced
// wholesale on re-transformation, never partially mutated.
type CanonicalRecord struct {
	OriginalID  string       `json:"original_id"`
	Type        ArtifactType `json:"type"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	CreatedAt   string       `json:"created_at,omitempty"`
	ModifiedAt  string       `json:"modified_at,omitempty"`

	// Payload holds the type-specific body pushed to the target system.
	Payload map[string]any `json:"payload"`

	// References lists every other artifact this record depends on.
	// Always non-nil so the dependency contract is explicit even when empty.
	References []EntityRef `json:"references"`
}

// RefersTo reports whether the record references the given source-system id.
func (r *CanonicalRecord) RefersTo(originalID string) bool {
	for _, ref := range r.References {
		if ref.OriginalID == originalID {
			return true
		}
	}
	return false
}
