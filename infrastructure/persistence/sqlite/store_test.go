package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/application/ports"
	"graphstore/infrastructure/persistence/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.Store {
		store, err := Open(context.Background(), Config{
			Path:   filepath.Join(t.TempDir(), "graph.db"),
			Logger: zaptest.NewLogger(t),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Path: MemoryPath})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Nodes().Put(ctx, repotest.Node("A", "codex.concept"))
	require.NoError(t, err)

	ok, err := store.Nodes().Exists(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, store.Ping(ctx))
	assert.Equal(t, BackendName, store.Name())
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "fk.db")})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.ExecContext(ctx, `INSERT INTO edges (from_id, to_id, role, created_at, updated_at)
		VALUES ('x', 'y', 'r', '', '')`)
	require.Error(t, err)
	assert.True(t, isForeignKeyViolation(err))
}
