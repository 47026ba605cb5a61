package proxy

import (
	"context"
	"errors"
	"time"

	stalecache "github.com/krisalay/stalecache"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/remote"
	"github.com/krisalay/stalecache/types"
)

// Association roles and property names used by network adapters.
const (
	RoleConnection = "connection"

	PropName       = "ElementName"
	PropMACAddress = "Address"
	PropSwitchName = "SwitchName"
)

/*
NetworkAdapter is a virtual network adapter.

Its port setting is the primary object: deleting it deletes the adapter.
The connection is a separate remote object that the host may recreate
when the adapter is reconnected, so it is held by a recovering updater
that finds the replacement through the port's association.
*/
type NetworkAdapter struct {
	*Object

	template bool

	portSetting *stalecache.Updater[*remote.Handle]
	connection  *stalecache.Updater[*remote.Handle]
}

// newNetworkAdapter loads port and its current connection and builds the
// adapter proxy over them.
func newNetworkAdapter(ctx context.Context, e *engine.Engine, port *remote.Handle) (*NetworkAdapter, error) {
	if err := port.Load(ctx); err != nil {
		return nil, err
	}
	conn := port.RelatedOne(RoleConnection)
	if conn != nil {
		if err := conn.Load(ctx); err != nil && !errors.Is(err, remote.ErrNotFound) {
			return nil, err
		}
	}

	e = e.With("adapter", port.Path())
	a := &NetworkAdapter{Object: newObject(port.Path())}

	a.portSetting = stalecache.NewHandleUpdater(e, port)
	a.primary(a.portSetting)

	lookup := func(ctx context.Context, threshold time.Duration) (*remote.Handle, error) {
		status, err := port.UpdateAssociationCache(ctx, threshold)
		if err != nil || status == types.StatusDeleted {
			return nil, err
		}
		return port.RelatedOne(RoleConnection), nil
	}
	a.connection = stalecache.NewRecoveringHandleUpdater(e, conn, lookup)
	return a, nil
}

/*
NewTemplateNetworkAdapter describes an adapter that does not exist on the
host yet, for example one about to be added to a virtual machine. Every
read is served from props and never reaches a host.
*/
func NewTemplateNetworkAdapter(e *engine.Engine, props map[string]any) *NetworkAdapter {
	if e == nil {
		e = engine.Default()
	}
	a := &NetworkAdapter{Object: newObject(""), template: true}
	a.portSetting = stalecache.NewTemplateUpdater(e, remote.NewTemplate("Port", props))
	a.connection = stalecache.NewTemplateUpdater(e, remote.NewTemplate("Connection", props))
	return a
}

// IsTemplate reports whether the adapter is a template.
func (a *NetworkAdapter) IsTemplate() bool { return a.template }

// Name returns the adapter's display name.
func (a *NetworkAdapter) Name(ctx context.Context, policy types.UpdatePolicy) (string, error) {
	port, err := a.portSetting.Get(ctx, policy)
	if err != nil || port == nil {
		return "", err
	}
	return port.StringProperty(PropName), nil
}

// MACAddress returns the adapter's MAC address.
func (a *NetworkAdapter) MACAddress(ctx context.Context, policy types.UpdatePolicy) (string, error) {
	port, err := a.portSetting.Get(ctx, policy)
	if err != nil || port == nil {
		return "", err
	}
	return port.StringProperty(PropMACAddress), nil
}

// SwitchName returns the name of the switch the adapter is connected to,
// or "" when it is disconnected.
func (a *NetworkAdapter) SwitchName(ctx context.Context, policy types.UpdatePolicy) (string, error) {
	conn, err := a.connection.Get(ctx, policy)
	if err != nil || conn == nil {
		return "", err
	}
	return conn.StringProperty(PropSwitchName), nil
}

// Connection returns the handle of the current connection object.
func (a *NetworkAdapter) Connection(ctx context.Context, policy types.UpdatePolicy) (*remote.Handle, error) {
	return a.connection.Get(ctx, policy)
}
