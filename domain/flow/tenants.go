package flow

import (
	"context"
	"protocolo/bizerror"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// WorkflowProvider resolves the workflow of a module type for a tenant.
type WorkflowProvider interface {
	GetWorkflow(ctx context.Context, tenantID, moduleType string) (*Workflow, error)
}

// TenantRegistries lazily builds one immutable Registry per tenant and caches it.
type TenantRegistries struct {
	source Source
	cache  *cache.Cache
	loadMu sync.Mutex
}

// NewTenantRegistries ttl <= 0 keeps registries until Invalidate is called.
func NewTenantRegistries(source Source, ttl time.Duration) *TenantRegistries {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl
	}
	return &TenantRegistries{source: source, cache: cache.New(expiration, cleanup)}
}

func (t *TenantRegistries) Registry(ctx context.Context, tenantID string) (*Registry, error) {
	if r, found := t.cache.Get(tenantID); found {
		return r.(*Registry), nil
	}

	t.loadMu.Lock()
	defer t.loadMu.Unlock()
	if r, found := t.cache.Get(tenantID); found {
		return r.(*Registry), nil
	}

	defs, err := t.source.Load(ctx, tenantID)
	if err != nil {
		logrus.WithField("tenant", tenantID).Errorf("load workflows: %v", err)
		return nil, bizerror.Internal(err)
	}
	registry, err := NewRegistry(defs)
	if err != nil {
		logrus.WithField("tenant", tenantID).Errorf("refuse to serve invalid workflows: %v", err)
		return nil, err
	}
	t.cache.Set(tenantID, registry, cache.DefaultExpiration)
	logrus.WithField("tenant", tenantID).Infof("%d workflows loaded", registry.Len())
	return registry, nil
}

func (t *TenantRegistries) GetWorkflow(ctx context.Context, tenantID, moduleType string) (*Workflow, error) {
	registry, err := t.Registry(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return registry.GetWorkflow(moduleType)
}

// Preload loads tenants eagerly, the first invalid tenant aborts.
func (t *TenantRegistries) Preload(ctx context.Context, tenantIDs ...string) error {
	for _, tenantID := range tenantIDs {
		if _, err := t.Registry(ctx, tenantID); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops the cached registry, the next read reloads it from source.
func (t *TenantRegistries) Invalidate(tenantID string) {
	t.cache.Delete(tenantID)
}
