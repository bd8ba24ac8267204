package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok := m.Get(KeyMaxSlippage)
	assert.False(t, ok)

	require.NoError(t, m.Set(KeyMaxSlippage, "5"))
	v, ok := m.Get(KeyMaxSlippage)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	require.NoError(t, m.Delete(KeyMaxSlippage))
	_, ok = m.Get(KeyMaxSlippage)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyTheme, "dark"))
	require.NoError(t, s.Set(KeyActiveComponent, "swap"))

	// A fresh store reads back what the first one wrote.
	s2, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok := s2.Get(KeyTheme)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	require.NoError(t, s2.Delete(KeyTheme))
	_, ok = s2.Get(KeyTheme)
	assert.False(t, ok)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreMissingFileIsFine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok := s.Get(KeyTheme)
	assert.False(t, ok)
}
