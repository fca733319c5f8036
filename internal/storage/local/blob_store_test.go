// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/legal-decisions-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "decisions")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)

		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "directory must not exist before the first write")
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "decisions")
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("CreatesDirectoryLazily", func(t *testing.T) {
		data := []byte(`{"title":"x"}`)
		uri, err := store.PutObject(context.Background(), "object.json", "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, "object.json"), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(dir, "object.json"))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("Overwrites", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "same.json", "", bytes.NewReader([]byte("first")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "same.json", "", bytes.NewReader([]byte("second")))
		require.NoError(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(dir, "same.json"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(readData))
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("RejectsNestedPaths", func(t *testing.T) {
		for _, name := range []string{"a/b.json", `a\b.json`, "..", "."} {
			_, err := store.PutObject(context.Background(), name, "", bytes.NewReader([]byte("data")))
			assert.Errorf(t, err, "name %q", name)
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.PutObject(ctx, "late.json", "", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})
}

func TestPutObjectBaseDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	store, err := local.New(local.Config{BaseDir: path})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "a.json", "", bytes.NewReader([]byte("data")))
	assert.Error(t, err)
}

func TestPutObjectConcurrentSameName(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	big, err := json.Marshal(map[string]string{"text": strings.Repeat("x", 200_000)})
	require.NoError(t, err)
	small := []byte(`{"text":"y"}`)

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for _, body := range [][]byte{big, small} {
			wg.Add(1)
			go func(body []byte) {
				defer wg.Done()
				_, err := store.PutObject(context.Background(), "k.json", "", bytes.NewReader(body))
				assert.NoError(t, err)
			}(body)
		}
		wg.Wait()

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(dir, "k.json"))
		require.NoError(t, err)
		require.Truef(t, bytes.Equal(got, big) || bytes.Equal(got, small), "round %d: mixed content", round)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
