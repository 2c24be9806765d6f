package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/infrastructure/persistence/memory"
	"graphstore/infrastructure/persistence/repotest"
	"graphstore/pkg/common"
)

func seededEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore(logger)

	for _, id := range []string{"c", "a", "b", "d"} {
		_, err := store.Nodes().Put(ctx, repotest.Node(id, "codex.concept"))
		require.NoError(t, err)
	}
	for _, e := range [][3]string{{"b", "a", "z"}, {"a", "c", "x"}, {"a", "b", "y"}, {"a", "b", "x"}, {"d", "d", "self"}} {
		_, err := store.Edges().Put(ctx, repotest.Edge(e[0], e[1], e[2]))
		require.NoError(t, err)
	}
	return NewEngine(store.Nodes(), store.Edges(), common.NewLenientPolicy(2, 3), logger)
}

func edgeKeys(edges []*entities.Edge) []entities.EdgeKey {
	keys := make([]entities.EdgeKey, len(edges))
	for i, e := range edges {
		keys[i] = e.Key()
	}
	return keys
}

func TestQueryNodesOrdersByID(t *testing.T) {
	engine := seededEngine(t)

	page, err := engine.QueryNodes(context.Background(), NodeQuery{Page: common.Page{Take: 10}})
	require.NoError(t, err)

	// take is clamped to the engine policy's maximum
	assert.Equal(t, 3, page.Take)
	assert.Equal(t, 4, page.TotalCount)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "a", page.Items[0].ID)
	assert.Equal(t, "b", page.Items[1].ID)
	assert.Equal(t, "c", page.Items[2].ID)
}

func TestQueryEdgesOrdersByKey(t *testing.T) {
	engine := seededEngine(t)

	page, err := engine.QueryEdges(context.Background(), EdgeQuery{Page: common.Page{Take: 3}})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "a", ToID: "b", Role: "x"},
		{FromID: "a", ToID: "b", Role: "y"},
		{FromID: "a", ToID: "c", Role: "x"},
	}, edgeKeys(page.Items))

	rest, err := engine.QueryEdges(context.Background(), EdgeQuery{Page: common.Page{Skip: 3, Take: 3}})
	require.NoError(t, err)
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "b", ToID: "a", Role: "z"},
		{FromID: "d", ToID: "d", Role: "self"},
	}, edgeKeys(rest.Items))
}

func TestQueryEdgesFilters(t *testing.T) {
	engine := seededEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		spec  specifications.EdgeSpec
		total int
	}{
		{"by role", specifications.EdgeSpec{Role: "x"}, 2},
		{"by from", specifications.EdgeSpec{FromID: "a"}, 3},
		{"by to", specifications.EdgeSpec{ToID: "b"}, 2},
		{"by node", specifications.EdgeSpec{NodeID: "a"}, 4},
		{"self-loop once", specifications.EdgeSpec{NodeID: "d"}, 1},
		{"no match", specifications.EdgeSpec{Role: "none"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := engine.QueryEdges(ctx, EdgeQuery{Spec: tt.spec, Page: common.Page{Take: 3}})
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.TotalCount)
			assert.NotNil(t, page.Items)
		})
	}
}

func TestEdgesOf(t *testing.T) {
	engine := seededEngine(t)

	out, err := engine.EdgesOf(context.Background(), "a", entities.DirectionOutgoing, "x")
	require.NoError(t, err)
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "a", ToID: "b", Role: "x"},
		{FromID: "a", ToID: "c", Role: "x"},
	}, edgeKeys(out))

	in, err := engine.EdgesOf(context.Background(), "c", entities.DirectionIncoming, "y")
	require.NoError(t, err)
	assert.NotNil(t, in)
	assert.Empty(t, in)
}
