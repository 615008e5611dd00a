// Package credentials resolves transport authentication material from
// pluggable backends. The runtimevar-backed provider works across local
// files and cloud secret managers through one URL scheme.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned when credentials are malformed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderClosed is returned when using a closed provider.
	ErrProviderClosed = errors.New("provider is closed")
)

// Type defines the kind of credential.
type Type string

const (
	// TypeToken is a bearer token.
	TypeToken Type = "token"

	// TypeUserPassword is username/password authentication.
	TypeUserPassword Type = "user_password"

	// TypeCredsFile is a NATS .creds file body.
	TypeCredsFile Type = "creds_file"
)

// Credentials is the authentication material for the transport connection.
type Credentials struct {
	Type Type `json:"type"`

	Token string `json:"token,omitempty"`

	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// CredsFile is the full body of a NATS credentials file.
	CredsFile string `json:"creds_file,omitempty"`

	// ExpiresAt marks expiry, when the backend rotates.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the credentials have expired.
func (c *Credentials) IsExpired() bool {
	return c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt)
}

// Validate ensures the credentials are well-formed for their type.
func (c *Credentials) Validate() error {
	switch c.Type {
	case TypeToken:
		if c.Token == "" {
			return fmt.Errorf("%w: token is required", ErrInvalidCredentials)
		}
	case TypeUserPassword:
		if c.User == "" || c.Password == "" {
			return fmt.Errorf("%w: user and password are required", ErrInvalidCredentials)
		}
	case TypeCredsFile:
		if c.CredsFile == "" {
			return fmt.Errorf("%w: creds file body is required", ErrInvalidCredentials)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidCredentials, c.Type)
	}
	return nil
}

// MarshalJSON redacts secret material so credentials never leak into logs.
func (c *Credentials) MarshalJSON() ([]byte, error) {
	type alias Credentials
	sanitized := &struct {
		Token     string `json:"token,omitempty"`
		Password  string `json:"password,omitempty"`
		CredsFile string `json:"creds_file,omitempty"`
		*alias
	}{
		alias: (*alias)(c),
	}
	if c.Token != "" {
		sanitized.Token = "***"
	}
	if c.Password != "" {
		sanitized.Password = "***"
	}
	if c.CredsFile != "" {
		sanitized.CredsFile = "***"
	}
	return json.Marshal(sanitized)
}

// Provider resolves credentials from a backend.
type Provider interface {
	// GetCredentials retrieves the current credentials.
	GetCredentials(ctx context.Context) (*Credentials, error)

	// Close releases provider resources.
	Close() error
}
