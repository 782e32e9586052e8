package rhema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeBackends = []string{"sqlite", "bolt"}

func TestStoreSaveAndList(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			store, err := OpenStore(backend, t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.SaveDefinition("one", "1"))
			require.NoError(t, store.SaveDefinition("two", "2"))
			require.NoError(t, store.SaveDefinition("three", "3"))

			defs, err := store.ListDefinitions()
			require.NoError(t, err)
			require.Len(t, defs, 3)

			assert.Equal(t, "one", defs[0].Name)
			assert.Equal(t, "two", defs[1].Name)
			assert.Equal(t, "three", defs[2].Name)
			assert.Equal(t, "1", defs[0].Source)
			assert.Less(t, defs[0].Seq, defs[1].Seq)
			assert.Less(t, defs[1].Seq, defs[2].Seq)
		})
	}
}

// Redefining a name must move it to the end of the replay order, so a
// redefinition that references later names still replays correctly.
func TestStoreRedefineMovesToEnd(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			store, err := OpenStore(backend, t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.SaveDefinition("a", "1"))
			require.NoError(t, store.SaveDefinition("b", "2"))
			require.NoError(t, store.SaveDefinition("a", "(add b 1)"))

			defs, err := store.ListDefinitions()
			require.NoError(t, err)
			require.Len(t, defs, 2)

			assert.Equal(t, "b", defs[0].Name)
			assert.Equal(t, "a", defs[1].Name)
			assert.Equal(t, "(add b 1)", defs[1].Source)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			store, err := OpenStore(backend, t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.SaveDefinition("gone", "1"))
			require.NoError(t, store.DeleteDefinition("gone"))

			defs, err := store.ListDefinitions()
			require.NoError(t, err)
			assert.Empty(t, defs)

			// Deleting a missing name is not an error.
			require.NoError(t, store.DeleteDefinition("never-was"))
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			store, err := OpenStore(backend, dir)
			require.NoError(t, err)
			require.NoError(t, store.SaveDefinition("kept", `"still here"`))
			require.NoError(t, store.Close())

			reopened, err := OpenStore(backend, dir)
			require.NoError(t, err)
			defer reopened.Close()

			defs, err := reopened.ListDefinitions()
			require.NoError(t, err)
			require.Len(t, defs, 1)
			assert.Equal(t, "kept", defs[0].Name)
			assert.Equal(t, `"still here"`, defs[0].Source)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			store, err := OpenStore(backend, t.TempDir())
			require.NoError(t, err)
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.SaveDefinition("x", "1"), ErrStoreClosed)
			assert.ErrorIs(t, store.DeleteDefinition("x"), ErrStoreClosed)
			_, err = store.ListDefinitions()
			assert.ErrorIs(t, err, ErrStoreClosed)
			assert.ErrorIs(t, store.Close(), ErrStoreClosed)
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore("etcd", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestOpenStoreDefaultsToSQLite(t *testing.T) {
	store, err := OpenStore("", t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*SQLiteStore)
	assert.True(t, ok)
}
