// Package repotest is the behavioral contract every persistence backend
// must pass. Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphstore/application/ports"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/valueobjects"
	pkgerrors "graphstore/pkg/errors"
)

// Factory opens a fresh, empty store for one subtest. Cleanup is the
// factory's responsibility.
type Factory func(t *testing.T) ports.Store

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("NodeReadYourWrite", func(t *testing.T) { testNodeReadYourWrite(t, newStore(t)) })
	t.Run("NodeUpsert", func(t *testing.T) { testNodeUpsert(t, newStore(t)) })
	t.Run("NodeValidation", func(t *testing.T) { testNodeValidation(t, newStore(t)) })
	t.Run("NodeScan", func(t *testing.T) { testNodeScan(t, newStore(t)) })
	t.Run("EdgeDanglingReference", func(t *testing.T) { testEdgeDanglingReference(t, newStore(t)) })
	t.Run("EdgeUpsert", func(t *testing.T) { testEdgeUpsert(t, newStore(t)) })
	t.Run("EdgeFirstCommitted", func(t *testing.T) { testEdgeFirstCommitted(t, newStore(t)) })
	t.Run("EdgeScanByNode", func(t *testing.T) { testEdgeScanByNode(t, newStore(t)) })
	t.Run("EdgeScan", func(t *testing.T) { testEdgeScan(t, newStore(t)) })
	t.Run("ConcurrentWriters", func(t *testing.T) { testConcurrentWriters(t, newStore(t)) })
}

// Node builds a minimal valid node.
func Node(id, typeID string) *entities.Node {
	return &entities.Node{ID: id, TypeID: typeID, State: "ice", Locale: "en", Title: id}
}

// Edge builds a minimal valid edge.
func Edge(from, to, role string) *entities.Edge {
	return &entities.Edge{FromID: from, ToID: to, Role: role, Weight: 1}
}

// Collect drains a scan, failing the test on the first error.
func Collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()
	var out []T
	for item, err := range seq {
		require.NoError(t, err)
		out = append(out, item)
	}
	return out
}

func nodeIDs(nodes []*entities.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)
	return ids
}

func edgeKeys(edges []*entities.Edge) []entities.EdgeKey {
	keys := make([]entities.EdgeKey, len(edges))
	for i, e := range edges {
		keys[i] = e.Key()
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func mustPutNode(t *testing.T, store ports.Store, n *entities.Node) *entities.Node {
	t.Helper()
	stored, err := store.Nodes().Put(context.Background(), n)
	require.NoError(t, err)
	return stored
}

func mustPutEdge(t *testing.T, store ports.Store, e *entities.Edge) *entities.Edge {
	t.Helper()
	stored, err := store.Edges().Put(context.Background(), e)
	require.NoError(t, err)
	return stored
}

func testNodeReadYourWrite(t *testing.T, store ports.Store) {
	ctx := context.Background()
	in := &entities.Node{
		ID:          "concept-1",
		TypeID:      "codex.concept",
		State:       "water",
		Locale:      "en-US",
		Title:       "Resonance",
		Description: "A shared vibration",
		Content: &valueobjects.Content{
			MediaType: "application/json",
			Inline:    json.RawMessage(`{ "axis": "ucore", "weight": 0.5 }`),
		},
		Meta: valueobjects.Meta{
			"tags":   json.RawMessage(`["a", "b"]`),
			"nested": json.RawMessage(`{"k": {"v": 1}}`),
			"none":   json.RawMessage(`null`),
		},
	}

	stored, err := store.Nodes().Put(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.False(t, stored.CreatedAt.IsZero())

	got, err := store.Nodes().Get(ctx, "concept-1")
	require.NoError(t, err)

	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.TypeID, got.TypeID)
	assert.Equal(t, in.State, got.State)
	assert.Equal(t, in.Locale, got.Locale)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Description, got.Description)
	require.NotNil(t, got.Content)
	assert.Equal(t, "application/json", got.Content.MediaType)
	assert.JSONEq(t, `{"axis":"ucore","weight":0.5}`, string(got.Content.Inline))
	require.Len(t, got.Meta, 3)
	assert.Equal(t, `["a","b"]`, string(got.Meta["tags"]))
	assert.Equal(t, `{"k":{"v":1}}`, string(got.Meta["nested"]))
	assert.Equal(t, `null`, string(got.Meta["none"]))
	assert.Equal(t, stored.Version, got.Version)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, stored.UpdatedAt.Equal(got.UpdatedAt))

	ok, err := store.Nodes().Exists(ctx, "concept-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Nodes().Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Nodes().Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.ErrorIs(t, err, pkgerrors.ErrNodeNotFound)
}

func testNodeUpsert(t *testing.T, store ports.Store) {
	ctx := context.Background()
	first := mustPutNode(t, store, Node("n1", "codex.concept"))

	update := Node("n1", "codex.news.item")
	update.State = "gas"
	update.Title = "renamed"
	second := mustPutNode(t, store, update)

	assert.Equal(t, int64(2), second.Version)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	got, err := store.Nodes().Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "codex.news.item", got.TypeID)
	assert.Equal(t, "gas", got.State)
	assert.Equal(t, "renamed", got.Title)

	// The old type index entry must be gone.
	n, err := store.Nodes().Count(ctx, specifications.NodeSpec{TypeID: "codex.concept"})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.Nodes().Count(ctx, specifications.NodeSpec{TypeID: "codex.news.item"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Nodes().Count(ctx, specifications.NodeSpec{State: "ice"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testNodeValidation(t *testing.T, store ports.Store) {
	ctx := context.Background()
	tests := []struct {
		name string
		node *entities.Node
	}{
		{"missing id", &entities.Node{TypeID: "codex.concept"}},
		{"missing type", &entities.Node{ID: "x"}},
		{"blank id", &entities.Node{ID: "   ", TypeID: "codex.concept"}},
		{"invalid meta", &entities.Node{ID: "x", TypeID: "t", Meta: valueobjects.Meta{"k": json.RawMessage(`{bad`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Nodes().Put(ctx, tt.node)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
		})
	}
	n, err := store.Nodes().Count(ctx, specifications.NodeSpec{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testNodeScan(t *testing.T, store ports.Store) {
	ctx := context.Background()
	nodes := []*entities.Node{
		{ID: "a", TypeID: "codex.concept", State: "ice", Locale: "en", Title: "Quantum Field", Description: "physics"},
		{ID: "b", TypeID: "codex.concept", State: "water", Locale: "de", Title: "Feld", Description: "quantum mechanics"},
		{ID: "c", TypeID: "codex.news.item", State: "ice", Locale: "en", Title: "Daily news", Description: "headlines"},
		{ID: "d", TypeID: "codex.user", State: "gas", Locale: "en", Title: "alice", Description: ""},
	}
	for _, n := range nodes {
		mustPutNode(t, store, n)
	}

	tests := []struct {
		name string
		spec specifications.NodeSpec
		want []string
	}{
		{"all", specifications.NodeSpec{}, []string{"a", "b", "c", "d"}},
		{"type", specifications.NodeSpec{TypeID: "codex.concept"}, []string{"a", "b"}},
		{"state", specifications.NodeSpec{State: "ice"}, []string{"a", "c"}},
		{"locale", specifications.NodeSpec{Locale: "en"}, []string{"a", "c", "d"}},
		{"type and state", specifications.NodeSpec{TypeID: "codex.concept", State: "ice"}, []string{"a"}},
		{"search title or description", specifications.NodeSpec{SearchTerm: "QUANTUM"}, []string{"a", "b"}},
		{"whitespace search", specifications.NodeSpec{SearchTerm: "   "}, []string{"a", "b", "c", "d"}},
		{"unknown type", specifications.NodeSpec{TypeID: "codex.unknown"}, nil},
		{"conflicting filters", specifications.NodeSpec{TypeID: "codex.user", State: "ice"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Collect(t, store.Nodes().Scan(ctx, tt.spec))
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, nodeIDs(got))
			}
			n, err := store.Nodes().Count(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}

	t.Run("restartable", func(t *testing.T) {
		seq := store.Nodes().Scan(ctx, specifications.NodeSpec{})
		assert.Len(t, Collect(t, seq), 4)
		assert.Len(t, Collect(t, seq), 4)
	})

	t.Run("early stop", func(t *testing.T) {
		seen := 0
		for _, err := range store.Nodes().Scan(ctx, specifications.NodeSpec{}) {
			require.NoError(t, err)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})

	types, err := store.Nodes().DistinctTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, types)
}

func testEdgeDanglingReference(t *testing.T, store ports.Store) {
	ctx := context.Background()
	mustPutNode(t, store, Node("A", "codex.concept"))

	tests := []struct {
		name    string
		edge    *entities.Edge
		missing []interface{}
	}{
		{"missing target", Edge("A", "B", "rel"), []interface{}{"B"}},
		{"missing source", Edge("B", "A", "rel"), []interface{}{"B"}},
		{"both missing", Edge("X", "Y", "rel"), []interface{}{"X", "Y"}},
		{"missing self loop", Edge("Z", "Z", "rel"), []interface{}{"Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Edges().Put(ctx, tt.edge)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsDanglingReference(err), "got %v", err)
			appErr := pkgerrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.ElementsMatch(t, tt.missing, appErr.Details["missing"])
		})
	}

	n, err := store.Edges().Count(ctx, specifications.EdgeSpec{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Edges().Put(ctx, &entities.Edge{FromID: "A", ToID: "A"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func testEdgeUpsert(t *testing.T, store ports.Store) {
	ctx := context.Background()
	mustPutNode(t, store, Node("A", "codex.concept"))
	mustPutNode(t, store, Node("B", "codex.concept"))

	in := Edge("A", "B", "test-relationship")
	in.Weight = 0.25
	in.Meta = valueobjects.Meta{"source": json.RawMessage(` "import" `)}
	first := mustPutEdge(t, store, in)

	got, err := store.Edges().GetByKey(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, "A", got.FromID)
	assert.Equal(t, "B", got.ToID)
	assert.Equal(t, "test-relationship", got.Role)
	assert.Equal(t, 0.25, got.Weight)
	assert.Equal(t, `"import"`, string(got.Meta["source"]))

	update := Edge("A", "B", "test-relationship")
	update.Weight = 0.75
	second := mustPutEdge(t, store, update)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, first.Sequence, second.Sequence)

	got, err = store.Edges().Get(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Weight)
	assert.Empty(t, got.Meta)

	n, err := store.Edges().Count(ctx, specifications.EdgeSpec{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Edges().GetByKey(ctx, entities.EdgeKey{FromID: "A", ToID: "B", Role: "other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrEdgeNotFound)

	_, err = store.Edges().Get(ctx, "B", "A")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func testEdgeFirstCommitted(t *testing.T, store ports.Store) {
	ctx := context.Background()
	mustPutNode(t, store, Node("A", "t"))
	mustPutNode(t, store, Node("B", "t"))

	mustPutEdge(t, store, Edge("A", "B", "zeta"))
	mustPutEdge(t, store, Edge("A", "B", "alpha"))
	// Re-writing the first role must not move it behind the second.
	mustPutEdge(t, store, Edge("A", "B", "zeta"))

	got, err := store.Edges().Get(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "zeta", got.Role)

	byRole, err := store.Edges().GetByKey(ctx, entities.EdgeKey{FromID: "A", ToID: "B", Role: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", byRole.Role)
}

func testEdgeScanByNode(t *testing.T, store ports.Store) {
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		mustPutNode(t, store, Node(id, "t"))
	}
	mustPutEdge(t, store, Edge("A", "B", "r1"))
	mustPutEdge(t, store, Edge("C", "A", "r2"))
	mustPutEdge(t, store, Edge("A", "A", "self"))
	mustPutEdge(t, store, Edge("B", "C", "r3"))

	out := Collect(t, store.Edges().ScanByNode(ctx, "A", entities.DirectionOutgoing))
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "A", ToID: "A", Role: "self"},
		{FromID: "A", ToID: "B", Role: "r1"},
	}, edgeKeys(out))

	in := Collect(t, store.Edges().ScanByNode(ctx, "A", entities.DirectionIncoming))
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "A", ToID: "A", Role: "self"},
		{FromID: "C", ToID: "A", Role: "r2"},
	}, edgeKeys(in))

	both := Collect(t, store.Edges().ScanByNode(ctx, "A", entities.DirectionBoth))
	assert.Equal(t, []entities.EdgeKey{
		{FromID: "A", ToID: "A", Role: "self"},
		{FromID: "A", ToID: "B", Role: "r1"},
		{FromID: "C", ToID: "A", Role: "r2"},
	}, edgeKeys(both))

	none := Collect(t, store.Edges().ScanByNode(ctx, "unknown", entities.DirectionBoth))
	assert.Empty(t, none)
}

func testEdgeScan(t *testing.T, store ports.Store) {
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		mustPutNode(t, store, Node(id, "t"))
	}
	mustPutEdge(t, store, Edge("A", "B", "authored"))
	mustPutEdge(t, store, Edge("A", "C", "categorized"))
	mustPutEdge(t, store, Edge("B", "C", "authored"))
	mustPutEdge(t, store, Edge("C", "C", "authored"))

	tests := []struct {
		name string
		spec specifications.EdgeSpec
		want int
	}{
		{"all", specifications.EdgeSpec{}, 4},
		{"role", specifications.EdgeSpec{Role: "authored"}, 3},
		{"from", specifications.EdgeSpec{FromID: "A"}, 2},
		{"to", specifications.EdgeSpec{ToID: "C"}, 3},
		{"node either side", specifications.EdgeSpec{NodeID: "C"}, 3},
		{"node and role", specifications.EdgeSpec{NodeID: "B", Role: "authored"}, 2},
		{"from and to", specifications.EdgeSpec{FromID: "A", ToID: "C"}, 1},
		{"unknown role", specifications.EdgeSpec{Role: "nope"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Collect(t, store.Edges().Scan(ctx, tt.spec))
			assert.Len(t, got, tt.want)
			for _, e := range got {
				assert.True(t, tt.spec.IsSatisfiedBy(e))
			}
			n, err := store.Edges().Count(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func testConcurrentWriters(t *testing.T, store ports.Store) {
	ctx := context.Background()
	const writers = 8
	const perWriter = 10

	mustPutNode(t, store, Node("hub", "codex.hub"))

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter*2+writers*4)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%d-n%d", w, i)
				n := Node(id, "codex.concept")
				n.Meta = valueobjects.Meta{"writer": json.RawMessage(fmt.Sprintf("%d", w))}
				if _, err := store.Nodes().Put(ctx, n); err != nil {
					errs <- err
					continue
				}
				if _, err := store.Edges().Put(ctx, Edge(id, "hub", "member")); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	for r := 0; r < writers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				for n, err := range store.Nodes().Scan(ctx, specifications.NodeSpec{TypeID: "codex.concept"}) {
					if err != nil {
						errs <- err
						return
					}
					if n.ID == "" || n.TypeID != "codex.concept" || len(n.Meta) != 1 {
						errs <- fmt.Errorf("torn record: %+v", n)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	n, err := store.Nodes().Count(ctx, specifications.NodeSpec{TypeID: "codex.concept"})
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, n)

	in := Collect(t, store.Edges().ScanByNode(ctx, "hub", entities.DirectionIncoming))
	assert.Len(t, in, writers*perWriter)
}
