package affinity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fleetline/msggate/internal/docstore"
)

// Resolver answers the two affinity questions per tenant: does this machine
// own the session, and if not, where does the owner live. Every call is a
// fresh lookup; topology is always current at the cost of a store read.
type Resolver struct {
	store        docstore.Store
	inventory    Inventory
	instanceName string
	logger       *slog.Logger
}

// NewResolver creates a Resolver for the machine named instanceName.
func NewResolver(store docstore.Store, inventory Inventory, instanceName string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:        store,
		inventory:    inventory,
		instanceName: instanceName,
		logger:       logger,
	}
}

// InstanceName returns this machine's identity.
func (r *Resolver) InstanceName() string {
	return r.instanceName
}

// IsLocalOwner reports whether the ownership record names this machine. A
// missing record is false, not an error: an unowned tenant is handled
// locally.
func (r *Resolver) IsLocalOwner(ctx context.Context, tenantID string) (bool, error) {
	rec, err := r.store.Get(ctx, tenantID)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.InstanceName == r.instanceName, nil
}

// ResolveRemoteAddress returns the owning machine's reachable address, or ""
// when the tenant is unowned, owned locally, or the lookup fails. Lookup
// failure is non-fatal and logged; the caller falls back to local handling.
func (r *Resolver) ResolveRemoteAddress(ctx context.Context, tenantID string) string {
	rec, err := r.store.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			r.logger.Warn("ownership record read failed",
				"tenant_id", tenantID, "error", err)
		}
		return ""
	}

	owner := rec.InstanceName
	if owner == "" || owner == r.instanceName || owner == LocalInstance {
		return ""
	}

	addr, err := r.inventory.ResolveAddress(ctx, owner)
	if err != nil {
		r.logger.Warn("inventory lookup failed",
			"tenant_id", tenantID, "instance", owner, "error", err)
		return ""
	}
	return addr
}
