// Package memory provides an in-memory docstore.Store, used by tests and by
// single-machine deployments that do not share ownership state.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/fleetline/msggate/internal/docstore"
)

var errTenantIDEmpty = errors.New("tenant id cannot be empty")

// Store implements docstore.Store with an in-memory map.
type Store struct {
	mu      sync.RWMutex
	records map[string]docstore.OwnershipRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]docstore.OwnershipRecord),
	}
}

// Get returns a copy of the record for a tenant, or docstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, tenantID string) (docstore.OwnershipRecord, error) {
	if tenantID == "" {
		return docstore.OwnershipRecord{}, errTenantIDEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[tenantID]
	if !ok {
		return docstore.OwnershipRecord{}, docstore.ErrNotFound
	}
	return rec, nil
}

// Merge applies a partial update, creating the record if absent.
func (s *Store) Merge(ctx context.Context, tenantID string, patch docstore.Patch) error {
	if tenantID == "" {
		return errTenantIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tenantID]
	if !ok {
		rec = docstore.OwnershipRecord{TenantID: tenantID}
	}
	patch.Apply(&rec)
	s.records[tenantID] = rec
	return nil
}

// List returns copies of all records.
func (s *Store) List(ctx context.Context) ([]docstore.OwnershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]docstore.OwnershipRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}
