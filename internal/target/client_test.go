package target

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/types"
)

func TestAuthenticate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/token", r.URL.Path)

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "client-1", creds.ClientID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","expires_in":3600}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	token, err := client.Authenticate(context.Background(), Credentials{ClientID: "client-1", ClientSecret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token.AccessToken)
	assert.False(t, token.ExpiresAt.IsZero())
}

func TestAuthenticate_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid client", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.Authenticate(context.Background(), Credentials{ClientID: "bad"})
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.Authenticate(context.Background(), Credentials{ClientID: "client-1"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "no access token")
}

func TestCreate_RoutesByType(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var record types.CanonicalRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "EP-1", record.OriginalID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"remote-42"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	record := &types.CanonicalRecord{
		OriginalID: "EP-1",
		Type:       types.TypeEndpoint,
		Payload:    map[string]any{"protocol": "AS2"},
		References: []types.EntityRef{},
	}

	result, err := client.Create(context.Background(), "tok-abc", record)
	require.NoError(t, err)
	assert.Equal(t, "/api/endpoints", gotPath)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
	assert.Equal(t, "remote-42", result.RemoteID)
	assert.Contains(t, string(result.Response), "remote-42")
}

func TestCreate_Rejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate partner identifier", http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	record := &types.CanonicalRecord{OriginalID: "TP-1", Type: types.TypeTradingPartner, Payload: map[string]any{}}

	_, err := client.Create(context.Background(), "tok", record)
	require.Error(t, err)

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusConflict, rejection.StatusCode)
	assert.Equal(t, "TP-1", rejection.OriginalID)
	assert.Contains(t, rejection.Body, "duplicate")
}

func TestCreate_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client := NewClient(server.URL, nil)
	record := &types.CanonicalRecord{OriginalID: "TP-1", Type: types.TypeTradingPartner, Payload: map[string]any{}}

	_, err := client.Create(context.Background(), "tok", record)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Contains(t, rejection.Body, "transport failure")
}

func TestCreate_UnroutedType(t *testing.T) {
	client := NewClient("http://example.invalid", &Options{Routes: Routes{}})
	record := &types.CanonicalRecord{OriginalID: "X", Type: types.TypeOther, Payload: map[string]any{}}

	_, err := client.Create(context.Background(), "tok", record)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Contains(t, rejection.Body, "no creation endpoint")
}
