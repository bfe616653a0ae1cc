package artifacts_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/artifacts"
)

func newTestManager(t *testing.T) (*artifacts.Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return artifacts.New(fs, "data", nil), fs
}

func writeFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0o644))
}

func TestRemoveSessionDir(t *testing.T) {
	m, fs := newTestManager(t)
	writeFile(t, fs, m.SessionDir("acme")+"/Default/keys.json", 10)

	require.NoError(t, m.RemoveSessionDir("acme"))

	exists, err := afero.DirExists(fs, m.SessionDir("acme"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoveSessionDirMissingIsNotError(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.RemoveSessionDir("ghost"))
}

func TestClearCache(t *testing.T) {
	m, fs := newTestManager(t)
	writeFile(t, fs, filepath.Join(m.SessionDir("acme"), "Default", "Cache", "blob"), 100)
	writeFile(t, fs, filepath.Join(m.SessionDir("acme"), "Default", "Code Cache", "blob"), 100)
	writeFile(t, fs, filepath.Join(m.SessionDir("acme"), "Default", "keys.json"), 10)

	statuses := m.ClearCache("acme")
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.True(t, st.Status, st.Message)
	}

	// Cache gone, session keys untouched.
	exists, err := afero.DirExists(fs, filepath.Join(m.SessionDir("acme"), "Default", "Cache"))
	require.NoError(t, err)
	assert.False(t, exists)

	keysExist, err := afero.Exists(fs, filepath.Join(m.SessionDir("acme"), "Default", "keys.json"))
	require.NoError(t, err)
	assert.True(t, keysExist)
}

func TestDirectorySizeMB(t *testing.T) {
	m, fs := newTestManager(t)
	writeFile(t, fs, filepath.Join(m.SessionDir("acme"), "a"), 512*1024)
	writeFile(t, fs, filepath.Join(m.SessionDir("acme"), "sub", "b"), 512*1024)

	size, err := m.DirectorySizeMB("acme")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, size, 0.001)
}

func TestDirectorySizeMBMissingDir(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.DirectorySizeMB("ghost")
	require.Error(t, err)
}

func TestAppendMessageLog(t *testing.T) {
	m, fs := newTestManager(t)

	require.NoError(t, m.AppendMessageLog("acme", map[string]string{"body": "hi"}))
	require.NoError(t, m.AppendMessageLog("acme", map[string]string{"body": "again"}))

	raw, err := afero.ReadFile(fs, filepath.Join(m.SessionDir("acme"), "messages.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"body":"hi"`)
	assert.Contains(t, string(raw), `"body":"again"`)
}
