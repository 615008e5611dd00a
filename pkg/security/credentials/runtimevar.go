package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gocloud.dev/runtimevar"
	_ "gocloud.dev/runtimevar/constantvar" // constant:// for tests
	_ "gocloud.dev/runtimevar/filevar"     // file:// for local development
)

// RuntimevarProvider resolves credentials from a gocloud runtimevar URL.
// The backend (file, constant, or a cloud secret manager driver imported by
// the binary) pushes rotations; reads always return the latest snapshot.
type RuntimevarProvider struct {
	variable *runtimevar.Variable
	mu       sync.Mutex
	closed   bool
}

// NewRuntimevarProvider opens a runtimevar URL whose value is the JSON form
// of Credentials.
func NewRuntimevarProvider(ctx context.Context, url string) (*RuntimevarProvider, error) {
	variable, err := runtimevar.OpenVariable(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open credential variable: %w", err)
	}
	return &RuntimevarProvider{variable: variable}, nil
}

// GetCredentials implements Provider.
func (p *RuntimevarProvider) GetCredentials(ctx context.Context) (*Credentials, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProviderClosed
	}
	p.mu.Unlock()

	snapshot, err := p.variable.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credential variable: %w", err)
	}

	var raw []byte
	switch v := snapshot.Value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil, fmt.Errorf("%w: unexpected variable type %T", ErrInvalidCredentials, snapshot.Value)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Close implements Provider.
func (p *RuntimevarProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.variable.Close()
}
