package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/refresh"
	"github.com/krisalay/stalecache/registry"
	"github.com/krisalay/stalecache/remote"
)

// Inventory hands out virtual machine proxies for one host and reuses
// them across lookups until they are deleted or evicted.
type Inventory struct {
	host   *remote.Host
	engine *engine.Engine
	empty  refresh.EmptyCollection
	vms    *registry.Registry[*VirtualMachine]
}

// NewInventory creates an inventory keeping at most capacity proxies.
func NewInventory(host *remote.Host, e *engine.Engine, capacity int, empty refresh.EmptyCollection) *Inventory {
	if e == nil {
		e = engine.Default()
	}
	return &Inventory{
		host:   host,
		engine: e,
		empty:  empty,
		vms:    registry.New[*VirtualMachine](capacity, e.Logger),
	}
}

// VirtualMachine returns the proxy for the virtual machine at path. The
// returned error wraps remote.ErrNotFound when there is none.
func (inv *Inventory) VirtualMachine(ctx context.Context, path string) (*VirtualMachine, error) {
	return inv.vms.GetOrAdd(path, func() (*VirtualMachine, error) {
		h := inv.host.Lookup(path)
		if h == nil || h.Class() != ClassVirtualMachine {
			return nil, fmt.Errorf("virtual machine %s: %w", path, remote.ErrNotFound)
		}
		if err := h.Load(ctx); err != nil {
			return nil, err
		}
		return NewVirtualMachine(inv.engine, h, inv.empty), nil
	})
}

// VirtualMachines returns a proxy for every virtual machine on the host.
func (inv *Inventory) VirtualMachines(ctx context.Context) ([]*VirtualMachine, error) {
	paths := inv.host.Paths(ClassVirtualMachine)
	out := make([]*VirtualMachine, 0, len(paths))
	for _, p := range paths {
		vm, err := inv.VirtualMachine(ctx, p)
		if errors.Is(err, remote.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, vm)
	}
	return out, nil
}

// Cached returns the proxies currently held, ordered by path.
func (inv *Inventory) Cached() []*VirtualMachine {
	return inv.vms.List()
}
