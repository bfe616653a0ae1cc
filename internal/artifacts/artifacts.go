// Package artifacts manages the on-disk state the automation engine leaves
// behind for each tenant: pairing keys, browser caches, and the local
// message log. All paths live under one data root, one
// "session-<tenant>" directory per tenant.
//
// Everything here operates on an afero.Fs so cleanup and sizing are testable
// against an in-memory filesystem.
package artifacts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Cache subdirectories cleared by ClearCache. These are regenerated by the
// engine and safe to delete while a session is live.
var cacheDirs = []string{
	filepath.Join("Default", "Cache"),
	filepath.Join("Default", "Code Cache"),
}

const bytesPerMB = 1024 * 1024

// PathStatus reports the outcome of one path deletion.
type PathStatus struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// Manager owns the artifact tree under a single data root.
type Manager struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger

	logMu sync.Mutex
}

// New creates a Manager rooted at root on fs.
func New(fs afero.Fs, root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{fs: fs, root: root, logger: logger}
}

// SessionDir returns the artifact directory for a tenant.
func (m *Manager) SessionDir(tenantID string) string {
	return filepath.Join(m.root, "session-"+tenantID)
}

// RemoveSessionDir deletes a tenant's entire artifact tree. A missing
// directory is not an error; per-file failures are logged and skipped.
func (m *Manager) RemoveSessionDir(tenantID string) error {
	dir := m.SessionDir(tenantID)

	if _, err := m.fs.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := m.fs.RemoveAll(dir); err != nil {
		m.logger.Warn("session artifact cleanup incomplete",
			"tenant_id", tenantID, "dir", dir, "error", err)
		return err
	}
	return nil
}

// ClearCache deletes the regenerable cache subdirectories of a tenant's
// session and reports a status per path.
func (m *Manager) ClearCache(tenantID string) []PathStatus {
	statuses := make([]PathStatus, 0, len(cacheDirs))
	for _, sub := range cacheDirs {
		dir := filepath.Join(m.SessionDir(tenantID), sub)

		if err := m.fs.RemoveAll(dir); err != nil {
			m.logger.Warn("cache deletion failed", "dir", dir, "error", err)
			statuses = append(statuses, PathStatus{
				Status:  false,
				Message: fmt.Sprintf("error while deleting %s: %v", dir, err),
			})
			continue
		}
		statuses = append(statuses, PathStatus{
			Status:  true,
			Message: fmt.Sprintf("%s has been deleted successfully", dir),
		})
	}
	return statuses
}

// DirectorySizeMB walks a tenant's artifact tree and returns its total size
// in megabytes. Unreadable entries are logged and skipped; a missing
// directory is an error.
func (m *Manager) DirectorySizeMB(tenantID string) (float64, error) {
	dir := m.SessionDir(tenantID)

	if _, err := m.fs.Stat(dir); err != nil {
		return 0, fmt.Errorf("stat %s: %w", dir, err)
	}

	var total int64
	err := afero.Walk(m.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			m.logger.Warn("could not stat path during size walk",
				"path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(total) / bytesPerMB, nil
}

// AppendMessageLog appends v as one JSON line to the tenant's local message
// log. Best effort: the caller treats failures as non-fatal.
func (m *Manager) AppendMessageLog(tenantID string, v any) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	dir := m.SessionDir(tenantID)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f, err := m.fs.OpenFile(filepath.Join(dir, "messages.jsonl"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}
