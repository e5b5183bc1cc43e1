package transform

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// Error represents a transformation failure: the source document does not
// carry what its declared artifact type requires.
type Error struct {
	Type    types.ArtifactType
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transformation failed for %s: %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("transformation failed for %s: %s", e.Type, e.Message)
}

// MapperFunc maps a parsed source document to a canonical record.
// Mappers are pure: no I/O, and identical input always produces identical output.
type MapperFunc func(doc map[string]any) (*types.CanonicalRecord, error)

// registry dispatches transformation by the artifact's declared type.
// types.TypeOther deliberately maps to the generic passthrough.
var registry = map[types.ArtifactType]MapperFunc{
	types.TypeTradingPartner: mapTradingPartner,
	types.TypeChannel:        mapChannel,
	types.TypeCertificate:    mapCertificate,
	types.TypeMap:            mapMap,
	types.TypeEndpoint:       mapEndpoint,
	types.TypeSchema:         mapSchema,
	types.TypeOther:          mapPassthrough,
}

// Transform converts a raw source document into a canonical record for the
// declared artifact type. Unregistered types fall back to the generic
// passthrough; a registered type whose discriminator section is absent
// returns *Error.
func Transform(artifactType types.ArtifactType, originalData json.RawMessage) (*types.CanonicalRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(originalData, &doc); err != nil {
		return nil, &Error{Type: artifactType, Message: fmt.Sprintf("source document is not a JSON object: %v", err)}
	}

	mapper, ok := registry[artifactType]
	if !ok {
		mapper = mapPassthrough
	}

	record, err := mapper(doc)
	if err != nil {
		return nil, err
	}

	record.Type = artifactType
	if record.Payload == nil {
		record.Payload = map[string]any{}
	}
	if record.References == nil {
		record.References = []types.EntityRef{}
	}
	return record, nil
}
