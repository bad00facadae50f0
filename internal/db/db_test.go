package db

import (
	"expvar"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stat(name string) int64 {
	return stats.Get(name).(*expvar.Int).Value()
}

func TestOpenInMemory(t *testing.T) {
	ResetStats()
	db, err := Open("", "test")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	assert.Equal(t, int64(1), stat(numOpenedInMemory))
	assert.Equal(t, int64(0), stat(numOpened))
}

func TestOpenOnDisk(t *testing.T) {
	ResetStats()
	path := filepath.Join(t.TempDir(), "store")
	db, err := Open(path, "test")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), stat(numOpened))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err = Open(blocker, "test")
	assert.Error(t, err)
	assert.Equal(t, int64(1), stat(numOpenFailures))
}
