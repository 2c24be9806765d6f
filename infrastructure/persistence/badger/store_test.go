package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/application/ports"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/infrastructure/persistence/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.Store {
		cfg := InMemoryConfig()
		cfg.Logger = zaptest.NewLogger(t)
		store, err := Open(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0

	store, err := Open(cfg)
	require.NoError(t, err)
	_, err = store.Nodes().Put(ctx, repotest.Node("A", "codex.concept"))
	require.NoError(t, err)
	_, err = store.Nodes().Put(ctx, repotest.Node("B", "codex.concept"))
	require.NoError(t, err)
	first, err := store.Edges().Put(ctx, repotest.Edge("A", "B", "rel"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Nodes().Count(ctx, specifications.NodeSpec{TypeID: "codex.concept"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The sequence counter survives, so later inserts still order after.
	second, err := store.Edges().Put(ctx, repotest.Edge("A", "B", "another"))
	require.NoError(t, err)
	assert.Greater(t, second.Sequence, first.Sequence)

	got, err := store.Edges().Get(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "rel", got.Role)
}

func TestKeyRoundTrip(t *testing.T) {
	key := entities.EdgeKey{FromID: "from", ToID: "to", Role: "role"}
	decoded, ok := incomingToEdgeKey(incomingKey(key))
	require.True(t, ok)
	assert.Equal(t, key, decoded)

	assert.Equal(t, "codex.concept", firstPart(indexKey(prefixType, "codex.concept", "id-1"), prefixType))
	assert.Equal(t, "id-1", lastPart(indexKey(prefixType, "codex.concept", "id-1"), indexPrefix(prefixType, "codex.concept")))
}
