package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"graphstore/application/commands"
	"graphstore/application/commands/bus"
	"graphstore/application/queries"
	querybus "graphstore/application/queries/bus"
	"graphstore/domain/core/entities"
	"graphstore/domain/core/specifications"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *EdgeHandler {
	return &EdgeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// UpsertEdge handles POST /edges
func (h *EdgeHandler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpsertEdgeCommand
	if err := common.ParseJSONBody(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		if pkgerrors.IsDanglingReference(err) {
			h.logger.Info("edge rejected",
				zap.String("fromID", cmd.FromID),
				zap.String("toID", cmd.ToID),
				zap.Error(err),
			)
		}
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{"edge": result.(*entities.Edge)})
}

// GetEdge handles GET /edges/{fromID}/{toID}
func (h *EdgeHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	fromID, err := pathParam(r, "fromID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	toID, err := pathParam(r, "toID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	query := queries.GetEdgeQuery{
		FromID: fromID,
		ToID:   toID,
		Role:   r.URL.Query().Get("role"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{"edge": result})
}

// QueryEdges handles GET /edges
func (h *EdgeHandler) QueryEdges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := queries.QueryEdgesQuery{
		Spec: specifications.EdgeSpec{
			Role:   q.Get("role"),
			NodeID: q.Get("nodeId"),
			FromID: q.Get("fromId"),
			ToID:   q.Get("toId"),
		},
		Page: common.ExtractRawPage(r),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	page := result.(*queries.EdgePage)
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"edges":      page.Items,
		"totalCount": page.TotalCount,
		"skip":       page.Skip,
		"take":       page.Take,
	})
}
