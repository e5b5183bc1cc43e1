// Package target provides the HTTP client for the migration target system:
// credential exchange for bearer tokens and per-type creation calls.
package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// DefaultTimeout is the default timeout for a single target-system call.
const DefaultTimeout = 30 * time.Second

// authPath is the credential-exchange endpoint, shared by all artifact types.
const authPath = "/api/auth/token"

// Credentials identify the migration client to the target system.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Token is a bearer token issued by the target system.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthError represents a failed credential exchange. It is a batch-wide
// failure: without a valid token no push in the batch can proceed.
type AuthError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// RejectionError represents a non-success response to a single push.
// It affects only the artifact it was returned for.
type RejectionError struct {
	Type       types.ArtifactType
	OriginalID string
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("target rejected %s %s: status %d: %s", e.Type, e.OriginalID, e.StatusCode, e.Body)
}

// Routes maps each artifact type to its creation endpoint path.
type Routes map[types.ArtifactType]string

// DefaultRoutes returns the standard creation endpoints of the target API.
func DefaultRoutes() Routes {
	return Routes{
		types.TypeTradingPartner: "/api/partners",
		types.TypeChannel:        "/api/channels",
		types.TypeCertificate:    "/api/certificates",
		types.TypeMap:            "/api/maps",
		types.TypeEndpoint:       "/api/endpoints",
		types.TypeSchema:         "/api/schemas",
		types.TypeOther:          "/api/objects",
	}
}

// Options configures the target client.
type Options struct {
	Timeout    time.Duration
	Routes     Routes
	HTTPClient *http.Client
}

// DefaultOptions returns sensible defaults for the client.
func DefaultOptions() *Options {
	return &Options{
		Timeout: DefaultTimeout,
		Routes:  DefaultRoutes(),
	}
}

// Client talks to the target system over HTTPS.
type Client struct {
	baseURL    string
	routes     Routes
	httpClient *http.Client
}

// NewClient creates a target client for the given base URL.
func NewClient(baseURL string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Routes == nil {
		opts.Routes = DefaultRoutes()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		routes:     opts.Routes,
		httpClient: httpClient,
	}
}

// authResponse is the wire shape of the token endpoint's response.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Token, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, &AuthError{Message: "failed to encode credentials", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Message: "credential exchange failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "failed to read token response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: snippet(respBody)}
	}

	var parsed authResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "malformed token response", Cause: err}
	}
	if parsed.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "token response contained no access token"}
	}

	return &Token{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}

// CreateResult holds the target's answer to a successful creation call.
type CreateResult struct {
	RemoteID string
	Response json.RawMessage
}

// createResponse is the wire shape of a creation response.
type createResponse struct {
	ID string `json:"id"`
}

// Create pushes one canonical record to its type-specific creation endpoint.
// Non-2xx responses return *RejectionError; transport failures are wrapped in
// one as well since both fail only the single artifact being pushed.
func (c *Client) Create(ctx context.Context, accessToken string, record *types.CanonicalRecord) (*CreateResult, error) {
	path, ok := c.routes[record.Type]
	if !ok {
		return nil, &RejectionError{
			Type:       record.Type,
			OriginalID: record.OriginalID,
			Body:       "no creation endpoint configured for this artifact type",
		}
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RejectionError{
			Type:       record.Type,
			OriginalID: record.OriginalID,
			Body:       fmt.Sprintf("transport failure: %v", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RejectionError{
			Type:       record.Type,
			OriginalID: record.OriginalID,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RejectionError{
			Type:       record.Type,
			OriginalID: record.OriginalID,
			StatusCode: resp.StatusCode,
			Body:       snippet(respBody),
		}
	}

	var parsed createResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &RejectionError{
			Type:       record.Type,
			OriginalID: record.OriginalID,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("malformed creation response: %v", err),
		}
	}

	return &CreateResult{RemoteID: parsed.ID, Response: respBody}, nil
}

// snippet truncates a response body for error messages.
func snippet(body []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
