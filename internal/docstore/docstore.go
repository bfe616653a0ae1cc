// Package docstore defines the shared session-metadata document API. Every
// machine in the fleet reads and merges per-tenant ownership records through
// a Store so any instance can discover which machine holds a tenant's live
// session.
//
// Writes are last-write-wins; no distributed lock protects records. Only the
// owning machine writes StatusReady, which keeps the invariant that at most
// one instance is marked authoritative for a tenant at a time (with a narrow
// window after fail-over, resolved by the next ready write).
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested ownership record is missing.
var ErrNotFound = errors.New("ownership record not found")

// Record status values.
const (
	StatusReady        = "ready"
	StatusDisconnected = "disconnected"
)

// OwnershipRecord is the per-tenant document shared across the fleet.
type OwnershipRecord struct {
	TenantID       string    `json:"clientId"`
	Status         string    `json:"status"`
	InstanceName   string    `json:"instanceName"`
	LastUpdated    time.Time `json:"lastUpdated"`
	PairingPayload string    `json:"pairingPayload,omitempty"`

	// SecretCounter feeds the forwarding-token derivation. It is owned by
	// the control plane that provisions tenants; lifecycle writes must go
	// through Merge so they never clobber it.
	SecretCounter int `json:"secretCounter,omitempty"`
}

// Counter returns the forwarding-secret counter, defaulting to 1 when the
// record carries none.
func (r *OwnershipRecord) Counter() int {
	if r == nil || r.SecretCounter == 0 {
		return 1
	}
	return r.SecretCounter
}

// Patch is a partial record update. Nil fields are left untouched by Merge.
type Patch struct {
	Status         *string
	InstanceName   *string
	LastUpdated    *time.Time
	PairingPayload *string
	SecretCounter  *int
}

// Apply merges the patch into rec in place.
func (p Patch) Apply(rec *OwnershipRecord) {
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.InstanceName != nil {
		rec.InstanceName = *p.InstanceName
	}
	if p.LastUpdated != nil {
		rec.LastUpdated = *p.LastUpdated
	}
	if p.PairingPayload != nil {
		rec.PairingPayload = *p.PairingPayload
	}
	if p.SecretCounter != nil {
		rec.SecretCounter = *p.SecretCounter
	}
}

// Ptr returns a pointer to v, for building Patch values inline.
func Ptr[T any](v T) *T {
	return &v
}

// Store is the document API consumed by the lifecycle manager and the
// affinity resolver. There is deliberately no whole-record replace: every
// write goes through Merge so a writer can never clobber fields it does not
// own (SecretCounter belongs to the control plane, InstanceName to the
// owning machine).
type Store interface {
	// Get returns the record for a tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID string) (OwnershipRecord, error)

	// Merge applies a partial update to a tenant's record, creating the
	// record if absent.
	Merge(ctx context.Context, tenantID string, patch Patch) error

	// List returns all records.
	List(ctx context.Context) ([]OwnershipRecord, error)
}
