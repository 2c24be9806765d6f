package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"graphstore/application/ports"
)

// BackendName identifies this backend in stats.
const BackendName = "badger"

// Store owns the BadgerDB handle and its GC loop.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	nodes  *NodeRepository
	edges  *EdgeRepository
	logger *zap.Logger
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		nodes:  NewNodeRepository(db, logger),
		edges:  NewEdgeRepository(db, logger),
		logger: logger,
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
	}
	logger.Info("badger store opened",
		zap.String("path", cfg.Path),
		zap.Bool("inMemory", cfg.InMemory))
	return s, nil
}

func (s *Store) Nodes() ports.NodeRepository { return s.nodes }
func (s *Store) Edges() ports.EdgeRepository { return s.edges }
func (s *Store) Name() string                { return BackendName }

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return ctx.Err() })
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}
