package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"graphstore/application/commands"
	"graphstore/application/commands/bus"
	"graphstore/application/queries"
	querybus "graphstore/application/queries/bus"
	"graphstore/application/services"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// UpsertNode handles POST /nodes
func (h *NodeHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpsertNodeCommand
	if err := common.ParseJSONBody(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	node := result.(*entities.Node)

	h.logger.Debug("node upserted", zap.String("nodeID", node.ID), zap.String("typeID", node.TypeID))
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{"node": node})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{NodeID: nodeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{"node": result})
}

// QueryNodes handles GET /nodes
func (h *NodeHandler) QueryNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := queries.QueryNodesQuery{
		Spec: specifications.NodeSpec{
			TypeID:     q.Get("typeId"),
			State:      q.Get("state"),
			Locale:     q.Get("locale"),
			SearchTerm: q.Get("searchTerm"),
		},
		Page: common.ExtractRawPage(r),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondNodePage(w, result.(*queries.NodePage))
}

// GetNodeEdges handles GET /nodes/{nodeID}/edges
func (h *NodeHandler) GetNodeEdges(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	query := queries.GetNodeEdgesQuery{
		NodeID: nodeID,
		Role:   r.URL.Query().Get("type"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	edges := result.(*services.NodeEdges)
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"nodeId":   edges.NodeID,
		"outgoing": edges.Outgoing,
		"incoming": edges.Incoming,
	})
}

func respondNodePage(w http.ResponseWriter, page *queries.NodePage) {
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"nodes":      page.Items,
		"totalCount": page.TotalCount,
		"skip":       page.Skip,
		"take":       page.Take,
	})
}
