package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/config"
)

func testJWTService() *JWTService {
	return NewJWTService(&config.JWTConfig{Secret: "test-secret", ExpirationHours: 1})
}

func TestJWT_GenerateAndValidate(t *testing.T) {
	service := testJWTService()

	token, err := service.GenerateToken("ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.Equal(t, "ops", claims.GetOperator())
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestJWT_ValidateEmptyToken(t *testing.T) {
	service := testJWTService()

	_, err := service.ValidateToken("")
	assert.Error(t, err)
}

func TestJWT_ValidateMalformedToken(t *testing.T) {
	service := testJWTService()

	_, err := service.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := testJWTService().GenerateToken("ops")
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: "different-secret", ExpirationHours: 1})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWT_ExpiredToken(t *testing.T) {
	service := testJWTService()

	now := time.Now()
	claims := &Claims{
		Operator: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			NotBefore: jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = service.ValidateToken(signed)
	assert.Error(t, err)
}

func TestJWT_RejectsUnexpectedSigningMethod(t *testing.T) {
	service := testJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Operator: "ops"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(signed)
	assert.Error(t, err)
}

func TestJWT_AsTokenValidator(t *testing.T) {
	service := testJWTService()

	token, err := service.GenerateToken("ops")
	require.NoError(t, err)

	getter, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", getter.GetOperator())
}
