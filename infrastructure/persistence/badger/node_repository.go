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

// maxConflictRetries bounds optimistic retries of a write transaction.
const maxConflictRetries = 128

type NodeRepository struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewNodeRepository creates a new badger-backed node repository.
func NewNodeRepository(db *badger.DB, logger *zap.Logger) *NodeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeRepository{db: db, logger: logger}
}

// update runs fn in a read-write transaction, retrying on conflicts.
func update(ctx context.Context, db *badger.DB, op string, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return pkgerrors.NewTimeoutError(op).WithCause(err)
		}
		err := db.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			if pkgerrors.GetAppError(err) != nil {
				return err
			}
			return pkgerrors.NewDatabaseError(op, err)
		}
	}
}

func (r *NodeRepository) Put(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if err := validators.ValidateNodeRecord(node); err != nil {
		return nil, err
	}
	normalized, err := node.Normalized()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	var stored *entities.Node
	err = update(ctx, r.db, "badger.put_node", func(txn *badger.Txn) error {
		record := normalized.Clone()
		prev, err := getNode(txn, record.ID)
		if err != nil && !pkgerrors.IsNotFound(err) {
			return err
		}
		record.Stamp(prev, utils.Now())

		if prev != nil {
			for _, k := range nodeIndexKeys(prev) {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		value, err := encodeNode(record)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(record.ID), value); err != nil {
			return err
		}
		for _, k := range nodeIndexKeys(record) {
			if err := txn.Set(k, nil); err != nil {
				return err
			}
		}
		stored = record
		return nil
	})
	if err != nil {
		r.logger.Error("failed to store node", zap.String("nodeID", node.ID), zap.Error(err))
		return nil, err
	}
	return stored, nil
}

func nodeIndexKeys(n *entities.Node) [][]byte {
	return [][]byte{
		indexKey(prefixType, n.TypeID, n.ID),
		indexKey(prefixState, n.State, n.ID),
		indexKey(prefixLocale, n.Locale, n.ID),
	}
}

func getNode(txn *badger.Txn, id string) (*entities.Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NodeNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	var node *entities.Node
	err = item.Value(func(val []byte) error {
		var derr error
		node, derr = decodeNode(val)
		return derr
	})
	return node, err
}

func (r *NodeRepository) Get(ctx context.Context, id string) (*entities.Node, error) {
	var node *entities.Node
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, id)
		return err
	})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.NewDatabaseError("badger.get_node", err)
	}
	return node, nil
}

func (r *NodeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(nodeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		ok = err == nil
		return err
	})
	if err != nil {
		return false, pkgerrors.NewDatabaseError("badger.exists_node", err)
	}
	return ok, nil
}

// Scan materializes matches inside one read transaction, then yields them.
func (r *NodeRepository) Scan(ctx context.Context, spec specifications.NodeSpec) iter.Seq2[*entities.Node, error] {
	return func(yield func(*entities.Node, error) bool) {
		var nodes []*entities.Node
		err := r.db.View(func(txn *badger.Txn) error {
			return eachNode(ctx, txn, spec, func(n *entities.Node) {
				nodes = append(nodes, n)
			})
		})
		if err != nil {
			yield(nil, wrapScanErr("badger.scan_nodes", err))
			return
		}
		for _, n := range nodes {
			if !yield(n, nil) {
				return
			}
		}
	}
}

func (r *NodeRepository) Count(ctx context.Context, spec specifications.NodeSpec) (int, error) {
	n := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return eachNode(ctx, txn, spec, func(*entities.Node) { n++ })
	})
	if err != nil {
		return 0, wrapScanErr("badger.count_nodes", err)
	}
	return n, nil
}

// DistinctTypes walks the type index keys only.
func (r *NodeRepository) DistinctTypes(ctx context.Context) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixType
		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		first := true
		for it.Seek(prefixType); it.ValidForPrefix(prefixType); it.Next() {
			typeID := firstPart(it.Item().Key(), prefixType)
			if first || typeID != last {
				count++
				last = typeID
				first = false
			}
		}
		return nil
	})
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("badger.distinct_types", err)
	}
	return count, nil
}

// eachNode visits matches through the first index the spec names, or
// the full node range otherwise.
func eachNode(ctx context.Context, txn *badger.Txn, spec specifications.NodeSpec, fn func(*entities.Node)) error {
	var prefix []byte
	switch {
	case spec.TypeID != "":
		prefix = indexPrefix(prefixType, spec.TypeID)
	case spec.State != "":
		prefix = indexPrefix(prefixState, spec.State)
	case spec.Locale != "":
		prefix = indexPrefix(prefixLocale, spec.Locale)
	}

	if prefix == nil {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixNode
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixNode); it.ValidForPrefix(prefixNode); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var node *entities.Node
			err := it.Item().Value(func(val []byte) error {
				var derr error
				node, derr = decodeNode(val)
				return derr
			})
			if err != nil {
				return err
			}
			if spec.IsSatisfiedBy(node) {
				fn(node)
			}
		}
		return nil
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, err := getNode(txn, lastPart(it.Item().Key(), prefix))
		if err != nil {
			return err
		}
		if spec.IsSatisfiedBy(node) {
			fn(node)
		}
	}
	return nil
}

func wrapScanErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError(op).WithCause(err)
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}
	return pkgerrors.NewDatabaseError(op, err)
}
