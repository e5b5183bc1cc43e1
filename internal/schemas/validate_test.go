package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSchema_ValidJSON(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal(exportSchema, &v), "embedded schema must be valid JSON")
}

func TestValidateExport_Valid(t *testing.T) {
	export := `{
		"artifacts": [
			{"original_id": "TP-1", "type": "trading_partner", "document": {"TradingPartner": [{"ID": ["TP-1"]}]}},
			{"original_id": "EP-1", "type": "endpoint", "document": {"Endpoint": [{"ID": ["EP-1"]}]}}
		],
		"metadata": {"source_version": "5.2"}
	}`

	assert.NoError(t, ValidateExport([]byte(export)))
}

func TestValidateExport_EmptyArtifactList(t *testing.T) {
	assert.NoError(t, ValidateExport([]byte(`{"artifacts": []}`)))
}

func TestValidateExport_MissingRequiredFields(t *testing.T) {
	export := `{"artifacts": [{"type": "endpoint"}]}`

	err := ValidateExport([]byte(export))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Errors)
	assert.Contains(t, ve.Error(), "original_id")
}

func TestValidateExport_ArtifactsNotAList(t *testing.T) {
	err := ValidateExport([]byte(`{"artifacts": {"original_id": "x"}}`))
	require.Error(t, err)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestValidateExport_EmptyOriginalID(t *testing.T) {
	export := `{"artifacts": [{"original_id": "", "type": "endpoint", "document": {}}]}`

	err := ValidateExport([]byte(export))
	require.Error(t, err)
}
