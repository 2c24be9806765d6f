package badger

import (
	"context"
	"errors"
	"iter"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/validators"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/utils"
)

type EdgeRepository struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewEdgeRepository creates a new badger-backed edge repository.
func NewEdgeRepository(db *badger.DB, logger *zap.Logger) *EdgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeRepository{db: db, logger: logger}
}

// Put reads both endpoint keys and the sequence counter in the same
// transaction as the edge write, so the existence check and the sequence
// assignment commit atomically with it.
func (r *EdgeRepository) Put(ctx context.Context, edge *entities.Edge) (*entities.Edge, error) {
	if err := validators.ValidateEdgeRecord(edge); err != nil {
		return nil, err
	}
	normalized, err := edge.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	var stored *entities.Edge
	err = update(ctx, r.db, "badger.put_edge", func(txn *badger.Txn) error {
		record := normalized.Clone()

		var missing []string
		for _, id := range endpoints(record) {
			_, err := txn.Get(nodeKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missing = append(missing, id)
				continue
			}
			if err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			return pkgerrors.NewDanglingReferenceError(missing...)
		}

		key := record.Key()
		prev, err := getEdge(txn, key)
		if err != nil && !pkgerrors.IsNotFound(err) {
			return err
		}

		var seq int64
		if prev == nil {
			seq, err = nextSeq(txn)
			if err != nil {
				return err
			}
		}
		record.Stamp(prev, seq, utils.Now())

		value, err := encodeEdge(record)
		if err != nil {
			return err
		}
		if err := txn.Set(edgeKey(key), value); err != nil {
			return err
		}
		if err := txn.Set(incomingKey(key), nil); err != nil {
			return err
		}
		stored = record
		return nil
	})
	if err != nil {
		if !pkgerrors.IsDanglingReference(err) {
			r.logger.Error("failed to store edge",
				zap.String("fromID", edge.FromID),
				zap.String("toID", edge.ToID),
				zap.String("role", edge.Role),
				zap.Error(err))
		}
		return nil, err
	}
	return stored, nil
}

func nextSeq(txn *badger.Txn) (int64, error) {
	var current int64
	item, err := txn.Get(keyEdgeSeq)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(val []byte) error {
			current = decodeSeq(val)
			return nil
		}); err != nil {
			return 0, err
		}
	}
	next := current + 1
	return next, txn.Set(keyEdgeSeq, encodeSeq(next))
}

func getEdge(txn *badger.Txn, key entities.EdgeKey) (*entities.Edge, error) {
	item, err := txn.Get(edgeKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.EdgeNotFound(key.FromID, key.ToID, key.Role)
	}
	if err != nil {
		return nil, err
	}
	return itemEdge(item)
}

func itemEdge(item *badger.Item) (*entities.Edge, error) {
	var edge *entities.Edge
	err := item.Value(func(val []byte) error {
		var derr error
		edge, derr = decodeEdge(val)
		return derr
	})
	return edge, err
}

// Get picks the lowest sequence among the pair's roles.
func (r *EdgeRepository) Get(ctx context.Context, fromID, toID string) (*entities.Edge, error) {
	var first *entities.Edge
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := pairPrefix(fromID, toID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			e, err := itemEdge(it.Item())
			if err != nil {
				return err
			}
			if first == nil || e.Sequence < first.Sequence {
				first = e
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("badger.get_edge", err)
	}
	if first == nil {
		return nil, pkgerrors.EdgeNotFound(fromID, toID, "")
	}
	return first, nil
}

func (r *EdgeRepository) GetByKey(ctx context.Context, key entities.EdgeKey) (*entities.Edge, error) {
	var edge *entities.Edge
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdge(txn, key)
		return err
	})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.NewDatabaseError("badger.get_edge", err)
	}
	return edge, nil
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
		var edges []*entities.Edge
		err := r.db.View(func(txn *badger.Txn) error {
			return eachEdge(ctx, txn, spec, func(e *entities.Edge) {
				edges = append(edges, e)
			})
		})
		if err != nil {
			yield(nil, wrapScanErr("badger.scan_edges", err))
			return
		}
		for _, e := range edges {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *EdgeRepository) Count(ctx context.Context, spec specifications.EdgeSpec) (int, error) {
	n := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return eachEdge(ctx, txn, spec, func(*entities.Edge) { n++ })
	})
	if err != nil {
		return 0, wrapScanErr("badger.count_edges", err)
	}
	return n, nil
}

func eachEdge(ctx context.Context, txn *badger.Txn, spec specifications.EdgeSpec, fn func(*entities.Edge)) error {
	visit := func(e *entities.Edge) {
		if spec.IsSatisfiedBy(e) {
			fn(e)
		}
	}
	switch {
	case spec.FromID != "":
		return scanEdgeRange(ctx, txn, outgoingPrefix(spec.FromID), visit)
	case spec.ToID != "":
		return scanIncoming(ctx, txn, spec.ToID, visit)
	case spec.NodeID != "":
		if err := scanEdgeRange(ctx, txn, outgoingPrefix(spec.NodeID), visit); err != nil {
			return err
		}
		// self-loops were already visited through the outgoing range
		return scanIncoming(ctx, txn, spec.NodeID, func(e *entities.Edge) {
			if e.FromID != spec.NodeID {
				visit(e)
			}
		})
	default:
		return scanEdgeRange(ctx, txn, prefixEdge, visit)
	}
}

func scanEdgeRange(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(*entities.Edge)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := itemEdge(it.Item())
		if err != nil {
			return err
		}
		fn(e)
	}
	return nil
}

func scanIncoming(ctx context.Context, txn *badger.Txn, toID string, fn func(*entities.Edge)) error {
	prefix := incomingPrefix(toID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, ok := incomingToEdgeKey(it.Item().Key())
		if !ok {
			continue
		}
		e, err := getEdge(txn, key)
		if err != nil {
			return err
		}
		fn(e)
	}
	return nil
}

func endpoints(e *entities.Edge) []string {
	if e.FromID == e.ToID {
		return []string{e.FromID}
	}
	return []string{e.FromID, e.ToID}
}
