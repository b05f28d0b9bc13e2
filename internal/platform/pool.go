package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/veilworks/rite/internal/models"
)

// Provider supplies a connected Adapter for a tenant's platform config.
// The orchestrator depends on this interface, never on a concrete adapter.
type Provider interface {
	AdapterFor(ctx context.Context, cfg *models.PlatformConfig) (Adapter, error)
}

// Factory constructs an unconnected Adapter from a tenant's platform config.
type Factory func(cfg *models.PlatformConfig) (Adapter, error)

// Pool implements Provider by caching one connected adapter per tenant.
// Adapters live for the pool's lifetime; Close shuts them all down.
type Pool struct {
	factory Factory

	mu       sync.Mutex
	adapters map[string]Adapter // key: tenant ID
}

// NewPool creates a Pool that builds adapters with the given factory.
func NewPool(factory Factory) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("platform: factory is required")
	}
	return &Pool{
		factory:  factory,
		adapters: make(map[string]Adapter),
	}, nil
}

// AdapterFor returns the tenant's cached adapter, building and connecting
// one on first use. A failed connect is not cached; the next call retries.
func (p *Pool) AdapterFor(ctx context.Context, cfg *models.PlatformConfig) (Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("platform: platform config is required")
	}
	if !cfg.Active {
		return nil, fmt.Errorf("platform: config for tenant %s is inactive", cfg.TenantID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.adapters[cfg.TenantID]; ok {
		return a, nil
	}

	a, err := p.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("platform: build adapter for tenant %s: %w", cfg.TenantID, err)
	}
	if err := a.Connect(ctx); err != nil {
		return nil, fmt.Errorf("platform: connect adapter for tenant %s: %w", cfg.TenantID, err)
	}

	p.adapters[cfg.TenantID] = a
	return a, nil
}

// Close shuts down every cached adapter. The first error is returned;
// remaining adapters are still closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for tenantID, a := range p.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("platform: close adapter for tenant %s: %w", tenantID, err)
		}
		delete(p.adapters, tenantID)
	}
	return firstErr
}
