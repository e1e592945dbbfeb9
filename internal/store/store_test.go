package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadConfig(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveConfig("run1", []byte(`{"gain":2}`)))

	payload, err := s.LoadConfig("run1")
	require.NoError(t, err)
	assert.Equal(t, `{"gain":2}`, string(payload))
}

func TestSaveConfigUpserts(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveConfig("run1", []byte("v1")))
	require.NoError(t, s.SaveConfig("run1", []byte("v2")))

	payload, err := s.LoadConfig("run1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(payload))
}

func TestLoadMissingConfigFails(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadConfig("missing")
	assert.Error(t, err)
}

func TestListConfigs(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveConfig("a", []byte("1")))
	require.NoError(t, s.SaveConfig("b", []byte("2")))

	names, err := s.ListConfigs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestDeleteConfig(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveConfig("a", []byte("1")))
	require.NoError(t, s.DeleteConfig("a"))

	_, err := s.LoadConfig("a")
	assert.Error(t, err)
}
