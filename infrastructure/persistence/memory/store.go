// Package memory is the in-process backend. It is the default for tests
// and single-instance deployments.
package memory

import (
	"context"

	"go.uber.org/zap"

	"graphstore/application/ports"
)

// BackendName identifies this backend in stats.
const BackendName = "memory"

type Store struct {
	nodes *NodeRepository
	edges *EdgeRepository
}

// NewStore creates a new in-memory store.
func NewStore(logger *zap.Logger) *Store {
	nodes := NewNodeRepository(logger)
	return &Store{
		nodes: nodes,
		edges: NewEdgeRepository(nodes, logger),
	}
}

func (s *Store) Nodes() ports.NodeRepository { return s.nodes }
func (s *Store) Edges() ports.EdgeRepository { return s.edges }
func (s *Store) Name() string                { return BackendName }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }
