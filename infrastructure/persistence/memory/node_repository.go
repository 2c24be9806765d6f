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

type index map[string]map[string]struct{}

func (ix index) add(value, id string) {
	set, ok := ix[value]
	if !ok {
		set = make(map[string]struct{})
		ix[value] = set
	}
	set[id] = struct{}{}
}

func (ix index) remove(value, id string) {
	if set, ok := ix[value]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(ix, value)
		}
	}
}

// NodeRepository keeps nodes in maps guarded by one RWMutex, with
// secondary indexes on type, state and locale.
type NodeRepository struct {
	mu       sync.RWMutex
	nodes    map[string]*entities.Node
	byType   index
	byState  index
	byLocale index
	logger   *zap.Logger
}

// NewNodeRepository creates a new in-memory node repository.
func NewNodeRepository(logger *zap.Logger) *NodeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeRepository{
		nodes:    make(map[string]*entities.Node),
		byType:   make(index),
		byState:  make(index),
		byLocale: make(index),
		logger:   logger,
	}
}

func (r *NodeRepository) Put(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if err := validators.ValidateNodeRecord(node); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewTimeoutError("node put").WithCause(err)
	}
	record, err := node.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.nodes[record.ID]
	record.Stamp(prev, utils.Now())
	if prev != nil {
		r.byType.remove(prev.TypeID, prev.ID)
		r.byState.remove(prev.State, prev.ID)
		r.byLocale.remove(prev.Locale, prev.ID)
	}
	r.nodes[record.ID] = record
	r.byType.add(record.TypeID, record.ID)
	r.byState.add(record.State, record.ID)
	r.byLocale.add(record.Locale, record.ID)

	r.logger.Debug("node stored",
		zap.String("nodeID", record.ID),
		zap.String("typeID", record.TypeID),
		zap.Int64("version", record.Version))

	return record.Clone(), nil
}

func (r *NodeRepository) Get(ctx context.Context, id string) (*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[id]
	if !ok {
		return nil, pkgerrors.NodeNotFound(id)
	}
	return node.Clone(), nil
}

func (r *NodeRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok, nil
}

// Scan copies the matches under the read lock and yields the copy.
func (r *NodeRepository) Scan(ctx context.Context, spec specifications.NodeSpec) iter.Seq2[*entities.Node, error] {
	return func(yield func(*entities.Node, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, pkgerrors.NewTimeoutError("node scan").WithCause(err))
			return
		}
		for _, node := range r.snapshot(spec) {
			if !yield(node, nil) {
				return
			}
		}
	}
}

func (r *NodeRepository) Count(ctx context.Context, spec specifications.NodeSpec) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	r.each(spec, func(*entities.Node) { n++ })
	return n, nil
}

func (r *NodeRepository) DistinctTypes(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType), nil
}

func (r *NodeRepository) snapshot(spec specifications.NodeSpec) []*entities.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Node
	r.each(spec, func(n *entities.Node) { out = append(out, n.Clone()) })
	return out
}

// each visits matches using the narrowest index the spec names.
// Callers hold the lock.
func (r *NodeRepository) each(spec specifications.NodeSpec, fn func(*entities.Node)) {
	var candidates map[string]struct{}
	narrow := func(ix index, value string) {
		if value == "" {
			return
		}
		set := ix[value]
		if candidates == nil || len(set) < len(candidates) {
			candidates = set
			if candidates == nil {
				candidates = map[string]struct{}{}
			}
		}
	}
	narrow(r.byType, spec.TypeID)
	narrow(r.byState, spec.State)
	narrow(r.byLocale, spec.Locale)

	if candidates == nil {
		for _, node := range r.nodes {
			if spec.IsSatisfiedBy(node) {
				fn(node)
			}
		}
		return
	}
	for id := range candidates {
		if node := r.nodes[id]; spec.IsSatisfiedBy(node) {
			fn(node)
		}
	}
}
