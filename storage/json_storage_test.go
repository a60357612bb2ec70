package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"voting-coordinator/models"
)

func TestJSONStorePersistsBlocks(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	store, err := NewJSONStore(dir)
	require.NoError(err)

	blocks, err := store.LoadChain("ledger")
	require.NoError(err)
	require.Empty(blocks)

	genesis := models.NewBlock(0, []byte(`{"type":"genesis"}`), make([]byte, 32), 0)
	require.NoError(store.SaveBlock("ledger", genesis))
	next := models.NewBlock(1, []byte(`{"type":"vote"}`), genesis.Hash, 0)
	require.NoError(store.SaveBlock("ledger", next))

	_, err = os.Stat(filepath.Join(dir, "ledger_chain.json"))
	require.NoError(err)

	reopened, err := NewJSONStore(dir)
	require.NoError(err)
	blocks, err = reopened.LoadChain("ledger")
	require.NoError(err)
	require.Len(blocks, 2)
	require.Equal(next.Hash, blocks[1].Hash)
	require.NoError(models.ValidateChain(blocks))
}

func TestJSONStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger_chain.json"), []byte("{"), 0644))

	store, err := NewJSONStore(dir)
	require.NoError(t, err)
	_, err = store.LoadChain("ledger")
	require.Error(t, err)
}
