package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/store"
	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
)

// registryEntry is one supervised app: its Supervisor and the live Handle
// returned by Start.
type registryEntry struct {
	sup    *supervisor.Supervisor
	handle *supervisor.Handle
}

// registry is the daemon's in-memory app table. It satisfies api.Registry
// and metrics.StateLister, and mirrors every successful Start and every
// posted Reload into the persisted store so the next boot can re-read
// bundles without asking an operator again.
type registry struct {
	mu     sync.RWMutex
	apps   map[types.AppName]*registryEntry
	db     *store.Store
	newSup func(types.AppName) *supervisor.Supervisor
}

func newRegistry(db *store.Store, newSup func(types.AppName) *supervisor.Supervisor) *registry {
	return &registry{
		apps:   make(map[types.AppName]*registryEntry),
		db:     db,
		newSup: newSup,
	}
}

// Start bootstraps a new app from bundle and, on success, records it both
// in memory and in the persisted store.
func (r *registry) Start(ctx context.Context, app types.AppName, bundle types.BundleRef, owner *security.Owner) error {
	sup := r.newSup(app)
	handle, err := sup.Start(ctx, bundle)
	if err != nil {
		return fmt.Errorf("start %s: %w", app, err)
	}

	r.mu.Lock()
	r.apps[app] = &registryEntry{sup: sup, handle: handle}
	r.mu.Unlock()

	if err := r.db.Put(app, store.Record{Bundle: bundle, Owner: owner}); err != nil {
		return fmt.Errorf("persist %s: %w", app, err)
	}
	return nil
}

// List implements api.Registry.
func (r *registry) List() []types.AppName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]types.AppName, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	return names
}

// State implements api.Registry.
func (r *registry) State(app types.AppName) (types.AppState, bool) {
	r.mu.RLock()
	entry, ok := r.apps[app]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return entry.sup.State(), true
}

// States implements metrics.StateLister.
func (r *registry) States() map[types.AppName]types.AppState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.AppName]types.AppState, len(r.apps))
	for name, entry := range r.apps {
		out[name] = entry.sup.State()
	}
	return out
}

// Reload implements api.Registry. It posts a non-blocking reload to the
// app's mailbox and updates the store's bundle pointer optimistically; if
// the reload is later rejected, the store pointer still reflects the
// attempt rather than the last-known-good bundle, consistent with the
// store being a boot-time cache, not a source of truth.
func (r *registry) Reload(app types.AppName, bundle types.BundleRef) bool {
	r.mu.RLock()
	entry, ok := r.apps[app]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	entry.handle.Reload(bundle)

	if rec, found, err := r.db.Get(app); err == nil && found {
		rec.Bundle = bundle
		_ = r.db.Put(app, rec)
	}
	return true
}

// Terminate implements api.Registry.
func (r *registry) Terminate(app types.AppName) bool {
	r.mu.Lock()
	entry, ok := r.apps[app]
	if ok {
		delete(r.apps, app)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.handle.Terminate()
	_ = r.db.Delete(app)
	return true
}
