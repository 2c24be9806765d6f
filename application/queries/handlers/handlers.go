package handlers

import (
	"context"
	"fmt"

	"graphstore/application/queries"
	"graphstore/application/queries/bus"
	"graphstore/application/services"
	"graphstore/pkg/common"
)

// GraphQueryHandler answers every read query through the graph facade.
type GraphQueryHandler struct {
	service *services.GraphService
	lenient common.PaginationPolicy
}

// NewGraphQueryHandler creates a handler resolving raw pages of generic
// listings with lenient.
func NewGraphQueryHandler(service *services.GraphService, lenient common.PaginationPolicy) *GraphQueryHandler {
	return &GraphQueryHandler{service: service, lenient: lenient}
}

// Handle dispatches on the query type.
func (h *GraphQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.GetNodeQuery:
		return h.service.GetNode(ctx, q.NodeID)

	case queries.GetEdgeQuery:
		return h.service.GetEdge(ctx, q.FromID, q.ToID, q.Role)

	case queries.QueryNodesQuery:
		page, err := h.lenient.Resolve(q.Page)
		if err != nil {
			return nil, err
		}
		return h.service.QueryNodes(ctx, queries.NodeQuery{Spec: q.Spec, Page: page})

	case queries.QueryEdgesQuery:
		page, err := h.lenient.Resolve(q.Page)
		if err != nil {
			return nil, err
		}
		return h.service.QueryEdges(ctx, queries.EdgeQuery{Spec: q.Spec, Page: page})

	case queries.GetNodeEdgesQuery:
		return h.service.GetNodeEdges(ctx, q.NodeID, q.Role)

	case queries.GetStatsQuery:
		return h.service.Stats(ctx)

	case queries.QueryEventsQuery:
		return h.service.QueryEvents(ctx, services.EventQuery{
			State:      q.State,
			Locale:     q.Locale,
			SearchTerm: q.SearchTerm,
			Page:       q.Page,
		})

	default:
		return nil, fmt.Errorf("unexpected query type %T", query)
	}
}

// Register registers the handler for every read query on b.
func Register(b *bus.QueryBus, handler *GraphQueryHandler) error {
	for _, q := range []bus.Query{
		queries.GetNodeQuery{},
		queries.GetEdgeQuery{},
		queries.QueryNodesQuery{},
		queries.QueryEdgesQuery{},
		queries.GetNodeEdgesQuery{},
		queries.GetStatsQuery{},
		queries.QueryEventsQuery{},
	} {
		if err := b.Register(q, handler); err != nil {
			return err
		}
	}
	return nil
}
