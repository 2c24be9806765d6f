package memory

import (
	"context"
	"iter"
	"sync"

	"go.uber.org/zap"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/validators"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/utils"
)

type keySet map[string]map[entities.EdgeKey]struct{}

func (s keySet) add(id string, key entities.EdgeKey) {
	set, ok := s[id]
	if !ok {
		set = make(map[entities.EdgeKey]struct{})
		s[id] = set
	}
	set[key] = struct{}{}
}

// EdgeRepository keeps edges keyed by (from, to, role) with outgoing and
// incoming adjacency indexes.
type EdgeRepository struct {
	mu       sync.RWMutex
	edges    map[entities.EdgeKey]*entities.Edge
	outgoing keySet
	incoming keySet
	seq      int64
	nodes    *NodeRepository
	logger   *zap.Logger
}

// NewEdgeRepository creates a new in-memory edge repository. Dangling
// checks consult nodes.
func NewEdgeRepository(nodes *NodeRepository, logger *zap.Logger) *EdgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeRepository{
		edges:    make(map[entities.EdgeKey]*entities.Edge),
		outgoing: make(keySet),
		incoming: make(keySet),
		nodes:    nodes,
		logger:   logger,
	}
}

// Put checks both endpoints while holding the edge write lock. Nodes are
// never removed, so an endpoint seen here still exists at commit.
func (r *EdgeRepository) Put(ctx context.Context, edge *entities.Edge) (*entities.Edge, error) {
	if err := validators.ValidateEdgeRecord(edge); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewTimeoutError("edge put").WithCause(err)
	}
	record, err := edge.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, id := range endpoints(record) {
		ok, err := r.nodes.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.NewDanglingReferenceError(missing...)
	}

	key := record.Key()
	prev := r.edges[key]
	if prev == nil {
		r.seq++
	}
	record.Stamp(prev, r.seq, utils.Now())
	r.edges[key] = record
	r.outgoing.add(key.FromID, key)
	r.incoming.add(key.ToID, key)

	r.logger.Debug("edge stored",
		zap.String("fromID", key.FromID),
		zap.String("toID", key.ToID),
		zap.String("role", key.Role))

	return record.Clone(), nil
}

func (r *EdgeRepository) Get(ctx context.Context, fromID, toID string) (*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var first *entities.Edge
	for key := range r.outgoing[fromID] {
		if key.ToID != toID {
			continue
		}
		if e := r.edges[key]; first == nil || e.Sequence < first.Sequence {
			first = e
		}
	}
	if first == nil {
		return nil, pkgerrors.EdgeNotFound(fromID, toID, "")
	}
	return first.Clone(), nil
}

func (r *EdgeRepository) GetByKey(ctx context.Context, key entities.EdgeKey) (*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.edges[key]
	if !ok {
		return nil, pkgerrors.EdgeNotFound(key.FromID, key.ToID, key.Role)
	}
	return e.Clone(), nil
}

func (r *EdgeRepository) ScanByNode(ctx context.Context, nodeID string, dir entities.Direction) iter.Seq2[*entities.Edge, error] {
	spec := specifications.EdgeSpec{}
	switch dir {
	case entities.DirectionOutgoing:
		spec.FromID = nodeID
	case entities.DirectionIncoming:
		spec.ToID = nodeID
	default:
		spec.NodeID = nodeID
	}
	return r.Scan(ctx, spec)
}

func (r *EdgeRepository) Scan(ctx context.Context, spec specifications.EdgeSpec) iter.Seq2[*entities.Edge, error] {
	return func(yield func(*entities.Edge, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, pkgerrors.NewTimeoutError("edge scan").WithCause(err))
			return
		}
		for _, e := range r.snapshot(spec) {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *EdgeRepository) Count(ctx context.Context, spec specifications.EdgeSpec) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	r.each(spec, func(*entities.Edge) { n++ })
	return n, nil
}

func (r *EdgeRepository) snapshot(spec specifications.EdgeSpec) []*entities.Edge {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Edge
	r.each(spec, func(e *entities.Edge) { out = append(out, e.Clone()) })
	return out
}

// each visits matches through the adjacency index when the spec pins an
// endpoint. Callers hold the lock.
func (r *EdgeRepository) each(spec specifications.EdgeSpec, fn func(*entities.Edge)) {
	visit := func(keys map[entities.EdgeKey]struct{}) {
		for key := range keys {
			if e := r.edges[key]; spec.IsSatisfiedBy(e) {
				fn(e)
			}
		}
	}

	switch {
	case spec.FromID != "":
		visit(r.outgoing[spec.FromID])
	case spec.ToID != "":
		visit(r.incoming[spec.ToID])
	case spec.NodeID != "":
		visit(r.outgoing[spec.NodeID])
		for key := range r.incoming[spec.NodeID] {
			// self-loops were already visited through outgoing
			if key.FromID == spec.NodeID {
				continue
			}
			if e := r.edges[key]; spec.IsSatisfiedBy(e) {
				fn(e)
			}
		}
	default:
		for _, e := range r.edges {
			if spec.IsSatisfiedBy(e) {
				fn(e)
			}
		}
	}
}

func endpoints(e *entities.Edge) []string {
	if e.FromID == e.ToID {
		return []string{e.FromID}
	}
	return []string{e.FromID, e.ToID}
}
