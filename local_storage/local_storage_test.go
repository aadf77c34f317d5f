package local_storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Dir()))
}

func TestSetGetRemove(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested", "state"))
	require.NoError(t, err)

	_, ok, err := s.Get("uid")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should not be found")

	require.NoError(t, s.Set("uid", []byte("abc123")))
	value, ok, err := s.Get("uid")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", string(value))

	require.NoError(t, s.Set("uid", []byte("def456")))
	value, _, err = s.Get("uid")
	require.NoError(t, err)
	assert.Equal(t, "def456", string(value))

	info, err := os.Stat(filepath.Join(s.Dir(), "uid"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())

	require.NoError(t, s.Remove("uid"))
	_, ok, err = s.Get("uid")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing twice is fine
	require.NoError(t, s.Remove("uid"))
}

func TestRemoveBeforeDirectoryExists(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "not-created"))
	require.NoError(t, err)
	assert.NoError(t, s.Remove("downloads"))
}

func TestInvalidKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", ".", "..", "a/b", "../escape", "with space"} {
		t.Run(key, func(t *testing.T) {
			err := s.Set(key, []byte("x"))
			assert.IsType(t, InvalidKeyError(""), err)
			_, _, err = s.Get(key)
			assert.IsType(t, InvalidKeyError(""), err)
		})
	}
}

func TestNoTemporaryFilesLeft(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Set("downloads", []byte(`{"items":[]}`)))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "downloads", entries[0].Name())
}

func TestConcurrentSet(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set("downloads", []byte{byte('a' + i)}))
		}(i)
	}
	wg.Wait()

	value, ok, err := s.Get("downloads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, value, 1)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	dir, err := DefaultDir("ytdl-client")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/state", "ytdl-client"), dir)
}
