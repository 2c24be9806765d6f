package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"graphstore/application/queries"
	querybus "graphstore/application/queries/bus"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
)

// GraphHandler serves store-wide reads: statistics and the events listing.
type GraphHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// GetStats handles GET /stats
func (h *GraphHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetStatsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w, http.StatusOK, map[string]interface{}{"stats": result})
}

// ListEvents handles GET /events. Unlike the generic listings, malformed
// skip or take are rejected.
func (h *GraphHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := queries.QueryEventsQuery{
		State:      q.Get("state"),
		Locale:     q.Get("locale"),
		SearchTerm: q.Get("searchTerm"),
		Page:       common.ExtractRawPage(r),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondNodePage(w, result.(*queries.NodePage))
}
