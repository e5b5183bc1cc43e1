package types

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// ExtractRequest is the API request to ingest a source-system export.
type ExtractRequest struct {
	Method string          `json:"method" validate:"required,min=1"`
	Export json.RawMessage `json:"export" validate:"required"`
}

// MigrateRequest is the API request to migrate pending artifacts.
type MigrateRequest struct {
	CredentialsKey string `json:"credentials_key" validate:"required,min=1"`
	Force          bool   `json:"force,omitempty"`
}

// LoginRequest is the API request for an operator login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse carries the bearer token issued for an operator.
type LoginResponse struct {
	Operator string `json:"operator"`
	Token    string `json:"token"`
}

// Validate validates the ExtractRequest using the validator.
func (r *ExtractRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the MigrateRequest using the validator.
func (r *MigrateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
