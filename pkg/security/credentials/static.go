package credentials

import (
	"context"
	"sync"
)

// StaticProvider serves fixed credentials, for development and tests.
type StaticProvider struct {
	mu     sync.RWMutex
	creds  *Credentials
	closed bool
}

// NewStaticProvider creates a provider around fixed credentials.
func NewStaticProvider(creds *Credentials) (*StaticProvider, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &StaticProvider{creds: creds}, nil
}

// GetCredentials implements Provider.
func (p *StaticProvider) GetCredentials(ctx context.Context) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	copied := *p.creds
	return &copied, nil
}

// Close implements Provider.
func (p *StaticProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
