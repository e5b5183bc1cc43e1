package transform

import (
	"github.com/jonathan/b2b-migrator/internal/types"
)

// Section keys are the discriminators the source export uses for each
// artifact kind. A document whose declared type does not match its section
// is malformed and fails transformation.
const (
	sectionTradingPartner = "TradingPartner"
	sectionChannel        = "Channel"
	sectionCertificate    = "Certificate"
	sectionMap            = "Map"
	sectionEndpoint       = "Endpoint"
	sectionSchema         = "Schema"
)

// envelope fills the shared canonical fields from a source section.
func envelope(sec map[string]any) types.CanonicalRecord {
	return types.CanonicalRecord{
		OriginalID:  str(sec, "ID"),
		Name:        str(sec, "Name"),
		Description: str(sec, "Description"),
		CreatedAt:   str(sec, "Created"),
		ModifiedAt:  str(sec, "Modified"),
	}
}

func mapTradingPartner(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionTradingPartner)
	if !ok {
		return nil, &Error{Type: types.TypeTradingPartner, Field: sectionTradingPartner, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	endpoints := strList(sec, "Endpoints")

	contacts := objList(sec, "Contacts")
	identifiers := objList(sec, "Identifiers")
	record.Payload = map[string]any{
		"name":        record.Name,
		"description": scalarOrNil(sec, "Description"),
		"contacts":    anySlice(contacts),
		"identifiers": anySlice(identifiers),
		"properties":  propertiesOf(sec),
		"endpoints":   stringsAsAny(endpoints),
	}

	for _, endpointID := range endpoints {
		record.References = append(record.References, types.EntityRef{
			Type:       types.TypeEndpoint,
			OriginalID: endpointID,
		})
	}
	return &record, nil
}

func mapChannel(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionChannel)
	if !ok {
		return nil, &Error{Type: types.TypeChannel, Field: sectionChannel, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	record.Payload = map[string]any{
		"name":       record.Name,
		"protocol":   scalarOrNil(sec, "Protocol"),
		"direction":  scalarOrNil(sec, "Direction"),
		"properties": propertiesOf(sec),
	}

	// The security block carries the certificate binding; the channel cannot
	// exist on the target before its certificate does.
	if security, ok := section(sec, "Security"); ok {
		record.Payload["security"] = normalizeMap(security)
		if certID := str(security, "CertificateId"); certID != "" {
			record.References = append(record.References, types.EntityRef{
				Type:       types.TypeCertificate,
				OriginalID: certID,
			})
		}
	} else {
		record.Payload["security"] = nil
	}
	return &record, nil
}

func mapCertificate(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionCertificate)
	if !ok {
		return nil, &Error{Type: types.TypeCertificate, Field: sectionCertificate, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	record.Payload = map[string]any{
		"alias":      record.Name,
		"content":    scalarOrNil(sec, "Content"),
		"serial":     scalarOrNil(sec, "Serial"),
		"not_before": scalarOrNil(sec, "NotBefore"),
		"not_after":  scalarOrNil(sec, "NotAfter"),
	}
	return &record, nil
}

func mapMap(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionMap)
	if !ok {
		return nil, &Error{Type: types.TypeMap, Field: sectionMap, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	sourceSchema := str(sec, "SourceSchema")
	targetSchema := str(sec, "TargetSchema")
	record.Payload = map[string]any{
		"name":          record.Name,
		"source_schema": orNil(sourceSchema),
		"target_schema": orNil(targetSchema),
		"content":       scalarOrNil(sec, "Content"),
	}

	if sourceSchema != "" {
		record.References = append(record.References, types.EntityRef{Type: types.TypeSchema, OriginalID: sourceSchema})
	}
	if targetSchema != "" && targetSchema != sourceSchema {
		record.References = append(record.References, types.EntityRef{Type: types.TypeSchema, OriginalID: targetSchema})
	}
	return &record, nil
}

func mapEndpoint(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionEndpoint)
	if !ok {
		return nil, &Error{Type: types.TypeEndpoint, Field: sectionEndpoint, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	channelID := str(sec, "Channel")
	partnerID := str(sec, "Partner")
	record.Payload = map[string]any{
		"name":       record.Name,
		"address":    scalarOrNil(sec, "Address"),
		"protocol":   scalarOrNil(sec, "Protocol"),
		"channel":    orNil(channelID),
		"partner":    orNil(partnerID),
		"properties": propertiesOf(sec),
	}

	if channelID != "" {
		record.References = append(record.References, types.EntityRef{Type: types.TypeChannel, OriginalID: channelID})
	}
	if partnerID != "" {
		record.References = append(record.References, types.EntityRef{Type: types.TypeTradingPartner, OriginalID: partnerID})
	}
	return &record, nil
}

func mapSchema(doc map[string]any) (*types.CanonicalRecord, error) {
	sec, ok := section(doc, sectionSchema)
	if !ok {
		return nil, &Error{Type: types.TypeSchema, Field: sectionSchema, Message: "discriminator section missing"}
	}

	record := envelope(sec)
	record.Payload = map[string]any{
		"name":      record.Name,
		"namespace": scalarOrNil(sec, "Namespace"),
		"content":   scalarOrNil(sec, "Content"),
	}
	return &record, nil
}

// mapPassthrough wraps an unrecognized source document wholesale. It carries
// no references, so passthrough artifacts migrate with no ordering constraint.
func mapPassthrough(doc map[string]any) (*types.CanonicalRecord, error) {
	record := types.CanonicalRecord{
		Payload: map[string]any{
			"document": normalizeMap(doc),
		},
	}
	// Best-effort envelope: some foreign documents still carry flat
	// identifying fields at the top level.
	record.OriginalID = str(doc, "ID")
	record.Name = str(doc, "Name")
	return &record, nil
}

// propertiesOf normalizes the free-form Properties sub-object, or nil.
func propertiesOf(sec map[string]any) any {
	props, ok := section(sec, "Properties")
	if !ok {
		return nil
	}
	return normalizeMap(props)
}

// orNil maps the empty string to an explicit null in canonical payloads.
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func anySlice(objs []map[string]any) []any {
	out := make([]any, len(objs))
	for i, o := range objs {
		out[i] = o
	}
	return out
}

func stringsAsAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
