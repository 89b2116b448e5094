package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"perpeditions/storage"
)

func TestManagerStagesWritesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	key := []byte("example")
	require.NoError(t, manager.KVPut(key, uint64(42)))

	// Staged writes are visible through the manager but not the database.
	var out uint64
	ok, err := manager.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), out)

	has, err := db.Has(key)
	require.NoError(t, err)
	require.False(t, has)
	require.Equal(t, 1, manager.Pending())

	require.NoError(t, manager.Commit())
	require.Equal(t, 0, manager.Pending())

	has, err = db.Has(key)
	require.NoError(t, err)
	require.True(t, has)

	fresh := NewManager(db)
	out = 0
	ok, err = fresh.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), out)
}

func TestManagerResetDiscardsStagedWrites(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	require.NoError(t, manager.KVPut([]byte("staged"), uint64(7)))
	manager.Reset()
	require.Equal(t, 0, manager.Pending())

	var out uint64
	ok, err := manager.KVGet([]byte("staged"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.Commit())
	has, err := db.Has([]byte("staged"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestManagerOverwriteWithinOverlay(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	key := []byte("counter")
	require.NoError(t, manager.KVPut(key, uint64(1)))
	require.NoError(t, manager.KVPut(key, uint64(2)))

	var out uint64
	ok, err := manager.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), out)
}
