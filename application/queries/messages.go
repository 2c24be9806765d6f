package queries

import (
	"graphstore/domain/core/specifications"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
)

// GetNodeQuery fetches one node by id.
type GetNodeQuery struct {
	NodeID string
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	if q.NodeID == "" {
		return pkgerrors.NewValidationError("node ID is required").WithCode(pkgerrors.CodeInvalidRequest)
	}
	return nil
}

// GetEdgeQuery fetches one edge. An empty Role selects the first
// committed edge between the endpoints.
type GetEdgeQuery struct {
	FromID string
	ToID   string
	Role   string
}

// Validate validates the GetEdgeQuery
func (q GetEdgeQuery) Validate() error {
	if q.FromID == "" || q.ToID == "" {
		return pkgerrors.NewValidationError("from and to node IDs are required").WithCode(pkgerrors.CodeInvalidRequest)
	}
	return nil
}

// QueryNodesQuery lists nodes; Page is resolved by the lenient policy.
type QueryNodesQuery struct {
	Spec specifications.NodeSpec
	Page common.RawPage
}

func (q QueryNodesQuery) Validate() error { return nil }

// QueryEdgesQuery lists edges; Page is resolved by the lenient policy.
type QueryEdgesQuery struct {
	Spec specifications.EdgeSpec
	Page common.RawPage
}

func (q QueryEdgesQuery) Validate() error { return nil }

// GetNodeEdgesQuery lists the edges touching a node, optionally of one role.
type GetNodeEdgesQuery struct {
	NodeID string
	Role   string
}

// Validate validates the GetNodeEdgesQuery
func (q GetNodeEdgesQuery) Validate() error {
	if q.NodeID == "" {
		return pkgerrors.NewValidationError("node ID is required").WithCode(pkgerrors.CodeInvalidRequest)
	}
	return nil
}

// GetStatsQuery asks for store statistics.
type GetStatsQuery struct{}

func (q GetStatsQuery) Validate() error { return nil }

// QueryEventsQuery lists resonance events; Page is resolved by the strict
// policy.
type QueryEventsQuery struct {
	State      string
	Locale     string
	SearchTerm string
	Page       common.RawPage
}

func (q QueryEventsQuery) Validate() error { return nil }
