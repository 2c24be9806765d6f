// Package services holds the graph facade: the single entry point through
// which transports and tools read and write the store.
package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"graphstore/application/ports"
	"graphstore/application/queries"
	"graphstore/domain/config"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/domain/core/validators"
	"graphstore/domain/core/valueobjects"
	"graphstore/domain/events"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/observability"
	"graphstore/pkg/utils"
)

// Operation names used for metrics, tracing and logs.
const (
	OpUpsertNode   = "upsert_node"
	OpUpsertEdge   = "upsert_edge"
	OpGetNode      = "get_node"
	OpGetEdge      = "get_edge"
	OpQueryNodes   = "query_nodes"
	OpQueryEdges   = "query_edges"
	OpGetNodeEdges = "get_node_edges"
	OpStats        = "stats"
	OpQueryEvents  = "query_events"
)

// NodeEdges lists the edges touching one node. Both slices are non-nil.
type NodeEdges struct {
	NodeID   string           `json:"nodeId"`
	Outgoing []*entities.Edge `json:"outgoing"`
	Incoming []*entities.Edge `json:"incoming"`
}

// Stats summarizes the store.
type Stats struct {
	NodeCount         int       `json:"nodeCount"`
	EdgeCount         int       `json:"edgeCount"`
	TotalItems        int       `json:"totalItems"`
	DistinctTypeCount int       `json:"distinctTypeCount"`
	StorageBackend    string    `json:"storageBackend"`
	Timestamp         time.Time `json:"timestamp"`
}

// EventQuery lists resonance event nodes. Page is resolved with the strict
// policy, so malformed skip/take fail instead of being clamped.
type EventQuery struct {
	State      string
	Locale     string
	SearchTerm string
	Page       common.RawPage
}

// GraphService is the graph facade.
type GraphService struct {
	store     ports.Store
	engine    *queries.Engine
	validator *validators.GraphValidator
	strict    common.StrictPolicy
	eventType string
	publisher ports.EventPublisher
	metrics   ports.Metrics
	tracer    *observability.Tracer
	logger    *zap.Logger
}

// NewGraphService wires the facade over store. publisher, metrics and
// tracer may be nil.
func NewGraphService(
	store ports.Store,
	cfg *config.DomainConfig,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *GraphService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{
		store:     store,
		engine:    queries.NewEngine(store.Nodes(), store.Edges(), cfg.LenientPolicy(), logger),
		validator: validators.NewGraphValidator(cfg),
		strict:    cfg.StrictPolicy(),
		eventType: cfg.EventTypeID,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// CreateOrUpdateNode upserts node, assigning an id when it has none.
func (s *GraphService) CreateOrUpdateNode(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if node == nil {
		return nil, pkgerrors.NewValidationError("node is required")
	}
	record := node.Clone()
	if strings.TrimSpace(record.ID) == "" {
		record.ID = valueobjects.NewNodeID()
	}

	var stored *entities.Node
	err := s.observe(ctx, OpUpsertNode, func(ctx context.Context) error {
		if err := s.validator.ValidateNode(record); err != nil {
			return err
		}
		var err error
		stored, err = s.store.Nodes().Put(ctx, record)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncNodesUpserted()
	s.publish(ctx, events.NewNodeUpserted(stored, utils.Now()))
	s.logger.Info("node upserted",
		zap.String("nodeID", stored.ID),
		zap.String("typeID", stored.TypeID),
		zap.Int64("version", stored.Version))
	return stored, nil
}

// CreateOrUpdateEdge upserts edge. A missing endpoint fails with a
// dangling reference error listing the absent ids.
func (s *GraphService) CreateOrUpdateEdge(ctx context.Context, edge *entities.Edge) (*entities.Edge, error) {
	if edge == nil {
		return nil, pkgerrors.NewValidationError("edge is required")
	}

	var stored *entities.Edge
	err := s.observe(ctx, OpUpsertEdge, func(ctx context.Context) error {
		if err := s.validator.ValidateEdge(edge); err != nil {
			return err
		}
		var err error
		stored, err = s.store.Edges().Put(ctx, edge)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncEdgesUpserted()
	s.publish(ctx, events.NewEdgeUpserted(stored, utils.Now()))
	s.logger.Info("edge upserted",
		zap.String("fromID", stored.FromID),
		zap.String("toID", stored.ToID),
		zap.String("role", stored.Role))
	return stored, nil
}

// GetNode returns the node with the given id.
func (s *GraphService) GetNode(ctx context.Context, id string) (*entities.Node, error) {
	var node *entities.Node
	err := s.observe(ctx, OpGetNode, func(ctx context.Context) error {
		var err error
		node, err = s.store.Nodes().Get(ctx, id)
		return err
	})
	return node, err
}

// GetEdge looks up an edge by its endpoints. With an empty role the first
// committed edge between the pair is returned.
func (s *GraphService) GetEdge(ctx context.Context, fromID, toID, role string) (*entities.Edge, error) {
	var edge *entities.Edge
	err := s.observe(ctx, OpGetEdge, func(ctx context.Context) error {
		var err error
		if role == "" {
			edge, err = s.store.Edges().Get(ctx, fromID, toID)
		} else {
			edge, err = s.store.Edges().GetByKey(ctx, entities.EdgeKey{FromID: fromID, ToID: toID, Role: role})
		}
		return err
	})
	return edge, err
}

// QueryNodes returns one page of nodes matching the query.
func (s *GraphService) QueryNodes(ctx context.Context, q queries.NodeQuery) (*queries.NodePage, error) {
	var page *queries.NodePage
	err := s.observe(ctx, OpQueryNodes, func(ctx context.Context) error {
		var err error
		page, err = s.engine.QueryNodes(ctx, q)
		return err
	})
	return page, err
}

// QueryEdges returns one page of edges matching the query.
func (s *GraphService) QueryEdges(ctx context.Context, q queries.EdgeQuery) (*queries.EdgePage, error) {
	var page *queries.EdgePage
	err := s.observe(ctx, OpQueryEdges, func(ctx context.Context) error {
		var err error
		page, err = s.engine.QueryEdges(ctx, q)
		return err
	})
	return page, err
}

// GetNodeEdges loads the outgoing and incoming edges of nodeID
// concurrently, optionally restricted to one role. A missing node is
// NotFound; a node without edges yields empty lists.
func (s *GraphService) GetNodeEdges(ctx context.Context, nodeID, role string) (*NodeEdges, error) {
	result := &NodeEdges{NodeID: nodeID}
	err := s.observe(ctx, OpGetNodeEdges, func(ctx context.Context) error {
		exists, err := s.store.Nodes().Exists(ctx, nodeID)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.NodeNotFound(nodeID)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			edges, err := s.engine.EdgesOf(gctx, nodeID, entities.DirectionOutgoing, role)
			result.Outgoing = edges
			return err
		})
		g.Go(func() error {
			edges, err := s.engine.EdgesOf(gctx, nodeID, entities.DirectionIncoming, role)
			result.Incoming = edges
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stats counts nodes, edges and node types concurrently. The three counts are
// independent reads rather than one snapshot, so under concurrent writes
// TotalItems may combine node and edge counts taken at different instants.
func (s *GraphService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{StorageBackend: s.store.Name()}
	err := s.observe(ctx, OpStats, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.store.Nodes().Count(gctx, specifications.NodeSpec{})
			stats.NodeCount = n
			return err
		})
		g.Go(func() error {
			n, err := s.store.Edges().Count(gctx, specifications.EdgeSpec{})
			stats.EdgeCount = n
			return err
		})
		g.Go(func() error {
			n, err := s.store.Nodes().DistinctTypes(gctx)
			stats.DistinctTypeCount = n
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	stats.TotalItems = stats.NodeCount + stats.EdgeCount
	stats.Timestamp = utils.Now()
	return stats, nil
}

// QueryEvents lists nodes of the configured event type.
func (s *GraphService) QueryEvents(ctx context.Context, q EventQuery) (*queries.NodePage, error) {
	var page *queries.NodePage
	err := s.observe(ctx, OpQueryEvents, func(ctx context.Context) error {
		resolved, err := s.strict.Resolve(q.Page)
		if err != nil {
			return err
		}
		page, err = s.engine.QueryNodes(ctx, queries.NodeQuery{
			Spec: specifications.NodeSpec{
				TypeID:     s.eventType,
				State:      q.State,
				Locale:     q.Locale,
				SearchTerm: q.SearchTerm,
			},
			Page: resolved,
		})
		return err
	})
	return page, err
}

// StrictPolicy is the policy QueryEvents applies; other strict callers
// such as the CLI share it.
func (s *GraphService) StrictPolicy() common.StrictPolicy { return s.strict }

// Ping checks that the backend is reachable.
func (s *GraphService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// observe runs fn inside a trace subsegment and records its outcome.
func (s *GraphService) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx = common.WithOperation(ctx, op)
	s.tracer.AddAnnotation(ctx, "backend", s.store.Name())

	err := s.tracer.TraceFunction(ctx, op, fn)
	s.metrics.RecordOperation(op, time.Since(start), err)

	if err != nil {
		fields := []zap.Field{zap.String("operation", op), zap.Error(err)}
		if id, ok := common.GetRequestID(ctx); ok {
			fields = append(fields, zap.String("requestID", id))
		}
		if appErr := pkgerrors.GetAppError(err); appErr != nil && appErr.HTTPStatus < 500 {
			s.logger.Debug("operation rejected", fields...)
		} else {
			s.logger.Error("operation failed", fields...)
		}
	}
	return err
}

// publish never fails the committed write; delivery errors are logged.
func (s *GraphService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err))
	}
}
