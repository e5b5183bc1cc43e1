package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/b2b-migrator/internal/config"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// AuthHandler handles operator authentication. There is no user store: the
// admin API has a single operator account configured through the environment.
type AuthHandler struct {
	username     string
	passwordHash string
	passwords    *config.PasswordConfig
	jwtService   *JWTService
	validator    *validator.Validate
}

// NewAuthHandler creates an AuthHandler from ADMIN_USERNAME and
// ADMIN_PASSWORD_HASH (a bcrypt hash, see PasswordConfig.HashPassword).
func NewAuthHandler(passwords *config.PasswordConfig, jwtService *JWTService) (*AuthHandler, error) {
	username := os.Getenv("ADMIN_USERNAME")
	passwordHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required")
	}
	return &AuthHandler{
		username:     username,
		passwordHash: passwordHash,
		passwords:    passwords,
		jwtService:   jwtService,
		validator:    validator.New(),
	}, nil
}

// Login handles operator login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		http.Error(w, extractValidationErrors(err), http.StatusBadRequest)
		return
	}

	if req.Username != h.username || !h.passwords.VerifyPassword(req.Password, h.passwordHash) {
		err := &ErrInvalidCredentials{}
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	token, err := h.jwtService.GenerateToken(req.Username)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := types.LoginResponse{
		Operator: req.Username,
		Token:    token,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Log error but response already sent
		return
	}
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			// Return first validation error for simplicity
			ve := validationErrors[0]
			return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
		}
	}
	return "validation error: invalid request"
}
