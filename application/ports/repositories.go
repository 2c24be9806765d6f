package ports

import (
	"context"
	"iter"
	"time"

	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/events"
)

// NodeRepository owns node records. This is a port in hexagonal
// architecture; backends live under infrastructure/persistence.
type NodeRepository interface {
	// Put inserts or replaces the node by ID and returns the stored record.
	Put(ctx context.Context, node *entities.Node) (*entities.Node, error)

	// Get returns NODE_NOT_FOUND when the id is absent.
	Get(ctx context.Context, id string) (*entities.Node, error)

	Exists(ctx context.Context, id string) (bool, error)

	// Scan yields every node satisfying spec from one consistent snapshot.
	// Each call starts a fresh sequence; order is unspecified.
	Scan(ctx context.Context, spec specifications.NodeSpec) iter.Seq2[*entities.Node, error]

	Count(ctx context.Context, spec specifications.NodeSpec) (int, error)

	// DistinctTypes returns the number of distinct TypeIDs stored.
	DistinctTypes(ctx context.Context) (int, error)
}

// EdgeRepository owns directed labeled edges.
type EdgeRepository interface {
	// Put fails with DANGLING_REFERENCE unless both endpoints exist when
	// the write commits. An existing key is updated in place.
	Put(ctx context.Context, edge *entities.Edge) (*entities.Edge, error)

	// Get returns the first committed edge between the pair, whatever its role.
	Get(ctx context.Context, fromID, toID string) (*entities.Edge, error)

	GetByKey(ctx context.Context, key entities.EdgeKey) (*entities.Edge, error)

	// ScanByNode yields edges leaving, entering, or touching nodeID.
	// A self-loop is yielded once for DirectionBoth.
	ScanByNode(ctx context.Context, nodeID string, dir entities.Direction) iter.Seq2[*entities.Edge, error]

	Scan(ctx context.Context, spec specifications.EdgeSpec) iter.Seq2[*entities.Edge, error]

	Count(ctx context.Context, spec specifications.EdgeSpec) (int, error)
}

// Store is one backend instance exposing both repositories.
type Store interface {
	Nodes() NodeRepository
	Edges() EdgeRepository
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher sends domain events to subscribers outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics receives operation measurements from the facade and buses.
type Metrics interface {
	RecordOperation(op string, duration time.Duration, err error)
	IncNodesUpserted()
	IncEdgesUpserted()
}
