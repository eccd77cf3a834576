// Package credentials stores the credentials for the registry being
// browsed, between runs.
package credentials

import (
	"sync"

	"github.com/fluxcd/regbrowser/pkg/registry"
)

// Method names where credentials are kept.
type Method string

const (
	MethodFile   Method = "file"
	MethodMemory Method = "memory"
)

// Description says where credentials are kept and how safely.
type Description struct {
	Method      Method `json:"method"`
	Description string `json:"description"`
	Secure      bool   `json:"secure"`
}

// Provider keeps at most one set of credentials.
type Provider interface {
	// Load returns nil, nil if nothing has been saved.
	Load() (*registry.Credentials, error)
	Save(registryURL, username, password string) (Method, error)
	Clear() error
	Describe() Description
}

// MemoryProvider keeps credentials for the life of the process.
type MemoryProvider struct {
	mu    sync.Mutex
	creds *registry.Credentials
}

func (p *MemoryProvider) Load() (*registry.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.creds == nil {
		return nil, nil
	}
	c := *p.creds
	return &c, nil
}

func (p *MemoryProvider) Save(registryURL, username, password string) (Method, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = &registry.Credentials{RegistryURL: registryURL, Username: username, Password: password}
	return MethodMemory, nil
}

func (p *MemoryProvider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = nil
	return nil
}

func (p *MemoryProvider) Describe() Description {
	return Description{
		Method:      MethodMemory,
		Description: "kept in memory until the process exits",
		Secure:      true,
	}
}
