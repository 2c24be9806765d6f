package queries

import (
	"context"
	"iter"
	"slices"
	"strings"

	"go.uber.org/zap"

	"graphstore/application/ports"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/pkg/common"
)

// NodeQuery is a filtered, paginated node listing.
type NodeQuery struct {
	Spec specifications.NodeSpec
	Page common.Page
}

// EdgeQuery is a filtered, paginated edge listing.
type EdgeQuery struct {
	Spec specifications.EdgeSpec
	Page common.Page
}

// NodePage is one window of a node listing. TotalCount ignores pagination.
type NodePage struct {
	Items      []*entities.Node `json:"nodes"`
	TotalCount int              `json:"totalCount"`
	Skip       int              `json:"skip"`
	Take       int              `json:"take"`
}

// EdgePage is one window of an edge listing. TotalCount ignores pagination.
type EdgePage struct {
	Items      []*entities.Edge `json:"edges"`
	TotalCount int              `json:"totalCount"`
	Skip       int              `json:"skip"`
	Take       int              `json:"take"`
}

// Engine composes repository scans into ordered pages. Items and
// TotalCount of a page come from the same scan.
type Engine struct {
	nodes  ports.NodeRepository
	edges  ports.EdgeRepository
	policy common.PaginationPolicy
	logger *zap.Logger
}

// NewEngine creates a query engine. policy normalizes pages that reach the
// engine already resolved; it only enforces bounds.
func NewEngine(nodes ports.NodeRepository, edges ports.EdgeRepository, policy common.PaginationPolicy, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = common.NewLenientPolicy(common.DefaultTake, common.MaxTakeCeiling)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{nodes: nodes, edges: edges, policy: policy, logger: logger}
}

// QueryNodes returns the nodes matching q.Spec ordered by ID.
func (e *Engine) QueryNodes(ctx context.Context, q NodeQuery) (*NodePage, error) {
	page := e.policy.Normalize(q.Page)

	items, err := drain(e.nodes.Scan(ctx, q.Spec))
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b *entities.Node) int {
		return strings.Compare(a.ID, b.ID)
	})

	start, end := common.Window(page, len(items))
	e.logger.Debug("node query",
		zap.String("typeID", q.Spec.TypeID),
		zap.Int("total", len(items)),
		zap.Int("skip", page.Skip),
		zap.Int("take", page.Take))

	return &NodePage{
		Items:      slices.Clip(items[start:end]),
		TotalCount: len(items),
		Skip:       page.Skip,
		Take:       page.Take,
	}, nil
}

// QueryEdges returns the edges matching q.Spec ordered by (from, to, role).
func (e *Engine) QueryEdges(ctx context.Context, q EdgeQuery) (*EdgePage, error) {
	page := e.policy.Normalize(q.Page)

	items, err := drain(e.edges.Scan(ctx, q.Spec))
	if err != nil {
		return nil, err
	}
	sortEdges(items)

	start, end := common.Window(page, len(items))
	e.logger.Debug("edge query",
		zap.String("role", q.Spec.Role),
		zap.Int("total", len(items)),
		zap.Int("skip", page.Skip),
		zap.Int("take", page.Take))

	return &EdgePage{
		Items:      slices.Clip(items[start:end]),
		TotalCount: len(items),
		Skip:       page.Skip,
		Take:       page.Take,
	}, nil
}

// EdgesOf lists every edge touching nodeID in dir, ordered like QueryEdges.
// The result is never nil.
func (e *Engine) EdgesOf(ctx context.Context, nodeID string, dir entities.Direction, role string) ([]*entities.Edge, error) {
	items := []*entities.Edge{}
	for edge, err := range e.edges.ScanByNode(ctx, nodeID, dir) {
		if err != nil {
			return nil, err
		}
		if role != "" && edge.Role != role {
			continue
		}
		items = append(items, edge)
	}
	sortEdges(items)
	return items, nil
}

func sortEdges(items []*entities.Edge) {
	slices.SortFunc(items, func(a, b *entities.Edge) int {
		ka, kb := a.Key(), b.Key()
		switch {
		case ka.Less(kb):
			return -1
		case kb.Less(ka):
			return 1
		}
		return 0
	})
}

func drain[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
