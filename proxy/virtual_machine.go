package proxy

import (
	"context"
	"errors"
	"sync"

	stalecache "github.com/krisalay/stalecache"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/refresh"
	"github.com/krisalay/stalecache/remote"
	"github.com/krisalay/stalecache/types"
)

// Properties and roles used by virtual machines.
const (
	ClassVirtualMachine = "VirtualMachine"
	RoleAdapter         = "adapter"

	PropState = "EnabledState"
)

/*
VirtualMachine is a virtual machine proxy.

Its settings handle is read through two updaters, one per remote cache,
so property reads and association reads keep separate freshness. Both
are primary. The adapter list is a collection derived from the cached
associations.
*/
type VirtualMachine struct {
	*Object

	engine *engine.Engine

	settings     *stalecache.Updater[*remote.Handle]
	associations *stalecache.Updater[*remote.Handle]
	adapters     *stalecache.Updater[[]*remote.Handle]

	mu       sync.Mutex
	adapterP map[*remote.Handle]*NetworkAdapter
}

// NewVirtualMachine creates a proxy for the virtual machine behind h. The
// handle's caches are taken as fresh, so h should come from a lookup that
// loaded it.
func NewVirtualMachine(e *engine.Engine, h *remote.Handle, empty refresh.EmptyCollection) *VirtualMachine {
	if e == nil {
		e = engine.Default()
	}
	e = e.With("vm", h.Path())

	vm := &VirtualMachine{
		Object:   newObject(h.Path()),
		engine:   e,
		adapterP: make(map[*remote.Handle]*NetworkAdapter),
	}

	vm.settings = stalecache.NewHandleUpdater(e, h)
	vm.associations = stalecache.NewHandleUpdater(e, h)
	vm.primary(vm.settings)
	vm.primary(vm.associations)

	vm.adapters = stalecache.NewCollectionUpdater(e, func() []*remote.Handle {
		if vm.IsDeleted() {
			return nil
		}
		return h.Related(RoleAdapter)
	}, empty)
	return vm
}

// Name returns the virtual machine's display name.
func (vm *VirtualMachine) Name(ctx context.Context, policy types.UpdatePolicy) (string, error) {
	h, err := vm.settings.Get(ctx, policy)
	if err != nil {
		return "", err
	}
	return h.StringProperty(PropName), nil
}

// State returns the virtual machine's power state.
func (vm *VirtualMachine) State(ctx context.Context, policy types.UpdatePolicy) (string, error) {
	h, err := vm.settings.Get(ctx, policy)
	if err != nil {
		return "", err
	}
	return h.StringProperty(PropState), nil
}

/*
NetworkAdapters returns the adapters attached to the virtual machine.

Any ensure policy reloads the association cache first and then rebuilds
the list from it. The same adapter is returned as the same proxy across
calls for as long as it stays attached. Adapters that disappear while
the list is being built are left out.
*/
func (vm *VirtualMachine) NetworkAdapters(ctx context.Context, policy types.UpdatePolicy) ([]*NetworkAdapter, error) {
	if !policy.Valid() {
		return nil, &types.InvalidPolicyError{Policy: policy}
	}
	if policy != types.None {
		if _, err := vm.associations.Get(ctx, types.EnsureAssociatorsUpdated); err != nil {
			return nil, err
		}
		policy = types.EnsureUpdated
	}

	handles, err := vm.adapters.Get(ctx, policy)
	if err != nil {
		return nil, err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	current := make(map[*remote.Handle]*NetworkAdapter, len(handles))
	out := make([]*NetworkAdapter, 0, len(handles))
	for _, h := range handles {
		a, ok := vm.adapterP[h]
		if !ok || a.IsDeleted() {
			a, err = newNetworkAdapter(ctx, vm.engine, h)
			if errors.Is(err, remote.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		current[h] = a
		out = append(out, a)
	}
	vm.adapterP = current
	return out, nil
}
