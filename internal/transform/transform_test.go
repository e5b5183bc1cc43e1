package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/types"
)

const tradingPartnerDoc = `{
	"TradingPartner": [{
		"ID": ["TP-001"],
		"Name": ["Acme Logistics"],
		"Description": ["Primary 3PL partner"],
		"Created": ["2021-04-01T09:00:00Z"],
		"Modified": ["2023-11-12T16:30:00Z"],
		"Contacts": [
			{"Name": ["Jo Berg"], "Email": ["jo@acme.example"]},
			{"Name": ["Sam Lee"], "Email": ["sam@acme.example"]}
		],
		"Identifiers": [
			{"Qualifier": ["ZZ"], "Value": ["ACMELOG"]},
			{"Qualifier": ["01"], "Value": ["004321519"]}
		],
		"Properties": [{"Timezone": ["Europe/Oslo"]}],
		"Endpoints": ["EP-10", "EP-11"]
	}]
}`

func TestTransform_TradingPartner(t *testing.T) {
	record, err := Transform(types.TypeTradingPartner, []byte(tradingPartnerDoc))
	require.NoError(t, err)

	assert.Equal(t, "TP-001", record.OriginalID)
	assert.Equal(t, types.TypeTradingPartner, record.Type)
	assert.Equal(t, "Acme Logistics", record.Name)
	assert.Equal(t, "2021-04-01T09:00:00Z", record.CreatedAt)

	identifiers, ok := record.Payload["identifiers"].([]any)
	require.True(t, ok, "identifiers should be a list")
	assert.Len(t, identifiers, 2)

	contacts, ok := record.Payload["contacts"].([]any)
	require.True(t, ok)
	require.Len(t, contacts, 2)
	first := contacts[0].(map[string]any)
	assert.Equal(t, "Jo Berg", first["Name"], "singleton-wrapped contact fields should unwrap to scalars")

	require.Len(t, record.References, 2)
	assert.Equal(t, types.EntityRef{Type: types.TypeEndpoint, OriginalID: "EP-10"}, record.References[0])
	assert.Equal(t, types.EntityRef{Type: types.TypeEndpoint, OriginalID: "EP-11"}, record.References[1])
}

func TestTransform_Deterministic(t *testing.T) {
	first, err := Transform(types.TypeTradingPartner, []byte(tradingPartnerDoc))
	require.NoError(t, err)
	second, err := Transform(types.TypeTradingPartner, []byte(tradingPartnerDoc))
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON, "identical input must produce byte-identical output")
}

func TestTransform_MissingDiscriminator(t *testing.T) {
	doc := `{"Channel": [{"ID": ["CH-1"], "Name": ["AS2 Inbound"]}]}`

	_, err := Transform(types.TypeTradingPartner, []byte(doc))
	require.Error(t, err)

	var transformErr *Error
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, types.TypeTradingPartner, transformErr.Type)
	assert.Equal(t, "TradingPartner", transformErr.Field)
}

func TestTransform_Endpoint(t *testing.T) {
	doc := `{
		"Endpoint": [{
			"ID": ["EP-10"],
			"Name": ["AS2 to Acme"],
			"Address": ["https://as2.acme.example/in"],
			"Protocol": ["AS2"],
			"Channel": ["CH-1"],
			"Partner": ["TP-001"]
		}]
	}`

	record, err := Transform(types.TypeEndpoint, []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "https://as2.acme.example/in", record.Payload["address"])
	require.Len(t, record.References, 2)
	assert.Equal(t, types.TypeChannel, record.References[0].Type)
	assert.Equal(t, "CH-1", record.References[0].OriginalID)
	assert.Equal(t, types.TypeTradingPartner, record.References[1].Type)
	assert.Equal(t, "TP-001", record.References[1].OriginalID)
}

func TestTransform_ChannelSecurityBlock(t *testing.T) {
	doc := `{
		"Channel": [{
			"ID": ["CH-1"],
			"Name": ["AS2 Inbound"],
			"Protocol": ["AS2"],
			"Security": [{"CertificateId": ["CERT-9"], "Cipher": ["TLS_AES_256_GCM_SHA384"]}]
		}]
	}`

	record, err := Transform(types.TypeChannel, []byte(doc))
	require.NoError(t, err)

	security, ok := record.Payload["security"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CERT-9", security["CertificateId"])

	require.Len(t, record.References, 1)
	assert.Equal(t, types.EntityRef{Type: types.TypeCertificate, OriginalID: "CERT-9"}, record.References[0])
}

func TestTransform_ChannelWithoutSecurity(t *testing.T) {
	doc := `{"Channel": [{"ID": ["CH-2"], "Name": ["SFTP Outbound"], "Protocol": ["SFTP"]}]}`

	record, err := Transform(types.TypeChannel, []byte(doc))
	require.NoError(t, err)

	assert.Nil(t, record.Payload["security"], "absent security block should become an explicit null")
	assert.Empty(t, record.References)
}

func TestTransform_MapSchemaReferences(t *testing.T) {
	doc := `{
		"Map": [{
			"ID": ["MAP-3"],
			"Name": ["850 to Order"],
			"SourceSchema": ["SCH-850"],
			"TargetSchema": ["SCH-ORDER"],
			"Content": ["base64content=="]
		}]
	}`

	record, err := Transform(types.TypeMap, []byte(doc))
	require.NoError(t, err)
	require.Len(t, record.References, 2)
	assert.Equal(t, "SCH-850", record.References[0].OriginalID)
	assert.Equal(t, "SCH-ORDER", record.References[1].OriginalID)
}

func TestTransform_MapSameSchemaBothSides(t *testing.T) {
	doc := `{"Map": [{"ID": ["MAP-4"], "Name": ["Identity"], "SourceSchema": ["SCH-1"], "TargetSchema": ["SCH-1"]}]}`

	record, err := Transform(types.TypeMap, []byte(doc))
	require.NoError(t, err)
	assert.Len(t, record.References, 1, "identical source and target schemas should produce one reference")
}

func TestTransform_CertificateHasNoReferences(t *testing.T) {
	doc := `{"Certificate": [{"ID": ["CERT-9"], "Name": ["acme-as2"], "Content": ["MIIC..."], "Serial": ["0457"]}]}`

	record, err := Transform(types.TypeCertificate, []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "acme-as2", record.Payload["alias"])
	assert.Empty(t, record.References)
	assert.Nil(t, record.Payload["not_before"], "absent optional fields should be explicit nulls")
}

func TestTransform_PassthroughFallback(t *testing.T) {
	doc := `{"ID": "X-1", "Name": "mystery object", "Blob": [1, 2, 3]}`

	record, err := Transform(types.TypeOther, []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, types.TypeOther, record.Type)
	assert.Equal(t, "X-1", record.OriginalID)
	assert.Empty(t, record.References)

	wrapped, ok := record.Payload["document"].(map[string]any)
	require.True(t, ok, "passthrough should wrap the whole source document")
	assert.Equal(t, "mystery object", wrapped["Name"])
}

func TestTransform_InvalidJSON(t *testing.T) {
	_, err := Transform(types.TypeChannel, []byte(`not json`))
	require.Error(t, err)

	var transformErr *Error
	assert.ErrorAs(t, err, &transformErr)
}

func TestNormalize_SingletonUnwrap(t *testing.T) {
	assert.Equal(t, "x", normalize([]any{"x"}))
	assert.Equal(t, []any{"x", "y"}, normalize([]any{"x", "y"}))
	assert.Equal(t, map[string]any{"A": "1"}, normalize(map[string]any{"A": []any{"1"}}))
}
