// Package bolt provides a BoltDB-backed docstore.Store. It is the durable
// backend for deployments where the shared document service is fronted by a
// local replica, and for development against real files.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fleetline/msggate/internal/docstore"
)

const sessionsBucket = "sessions"

// Store implements docstore.Store on a bbolt database.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) a bolt-backed store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the record for a tenant, or docstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, tenantID string) (docstore.OwnershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return docstore.OwnershipRecord{}, err
	}
	if tenantID == "" {
		return docstore.OwnershipRecord{}, fmt.Errorf("tenant id is required")
	}

	var rec docstore.OwnershipRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(sessionsBucket)).Get([]byte(tenantID))
		if raw == nil {
			return docstore.ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return docstore.OwnershipRecord{}, err
	}
	return rec, nil
}

// Merge applies a partial update inside a single transaction, creating the
// record if absent.
func (s *Store) Merge(ctx context.Context, tenantID string, patch docstore.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tenantID == "" {
		return fmt.Errorf("tenant id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))

		rec := docstore.OwnershipRecord{TenantID: tenantID}
		if raw := bucket.Get([]byte(tenantID)); raw != nil {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
		}
		patch.Apply(&rec)

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return bucket.Put([]byte(tenantID), payload)
	})
}

// List returns all records.
func (s *Store) List(ctx context.Context) ([]docstore.OwnershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []docstore.OwnershipRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).ForEach(func(_, raw []byte) error {
			var rec docstore.OwnershipRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
