// Package config provides configuration loading and validation for the CLI
// and the admin server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/b2b-migrator/internal/target"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	Export string `json:"export,omitempty"` // Path to source-system export JSON
	Routes string `json:"routes,omitempty"` // Path to YAML route overrides for the target API

	// Target system
	TargetURL    string `json:"target_url,omitempty"`    // Base URL of the target REST API
	ClientID     string `json:"client_id,omitempty"`     // Target API client id
	ClientSecret string `json:"client_secret,omitempty"` // Target API client secret

	// CredentialSets holds named target credentials for API-driven
	// migrations, so callers reference a key instead of raw secrets.
	CredentialSets map[string]CredentialSet `json:"credential_sets,omitempty"`

	// Behavior
	Workers            int    `json:"workers,omitempty"`              // Concurrent pushes within a wave
	PushTimeoutSeconds int    `json:"push_timeout_seconds,omitempty"` // Per-item push timeout
	Force              bool   `json:"force,omitempty"`                // Re-push already-migrated artifacts
	Verbose            bool   `json:"verbose,omitempty"`              // Print detailed debug information
	DatabaseURL        string `json:"database_url,omitempty"`         // PostgreSQL connection URL
}

// CredentialSet is one named pair of target credentials.
type CredentialSet struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.PushTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'push_timeout_seconds' must be non-negative")
	}

	// Validate file paths exist (if specified)
	if c.Export != "" {
		if _, err := os.Stat(c.Export); os.IsNotExist(err) {
			return fmt.Errorf("config error: export file not found: %s", c.Export)
		}
	}
	if c.Routes != "" {
		if _, err := os.Stat(c.Routes); os.IsNotExist(err) {
			return fmt.Errorf("config error: routes file not found: %s", c.Routes)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Export == "" {
		result.Export = defaults.Export
	}
	if result.Routes == "" {
		result.Routes = defaults.Routes
	}
	if result.TargetURL == "" {
		result.TargetURL = defaults.TargetURL
	}
	if result.ClientID == "" {
		result.ClientID = defaults.ClientID
	}
	if result.ClientSecret == "" {
		result.ClientSecret = defaults.ClientSecret
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.PushTimeoutSeconds == 0 {
		result.PushTimeoutSeconds = defaults.PushTimeoutSeconds
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Credentials resolves the target credentials, preferring config file values
// and falling back to TARGET_CLIENT_ID / TARGET_CLIENT_SECRET.
func (c *Config) Credentials() (target.Credentials, error) {
	creds := target.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
	if creds.ClientID == "" {
		creds.ClientID = os.Getenv("TARGET_CLIENT_ID")
	}
	if creds.ClientSecret == "" {
		creds.ClientSecret = os.Getenv("TARGET_CLIENT_SECRET")
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return target.Credentials{}, fmt.Errorf("target credentials missing: set client_id/client_secret or TARGET_CLIENT_ID/TARGET_CLIENT_SECRET")
	}
	return creds, nil
}

// ResolveCredentials looks up a named credential set. The key "default" falls
// back to the top-level credentials when no set with that name exists.
func (c *Config) ResolveCredentials(key string) (target.Credentials, error) {
	if set, ok := c.CredentialSets[key]; ok {
		if set.ClientID == "" || set.ClientSecret == "" {
			return target.Credentials{}, fmt.Errorf("credential set %q is incomplete", key)
		}
		return target.Credentials{ClientID: set.ClientID, ClientSecret: set.ClientSecret}, nil
	}
	if key == "default" {
		return c.Credentials()
	}
	return target.Credentials{}, fmt.Errorf("unknown credential set: %q", key)
}
