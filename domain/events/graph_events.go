package events

import (
	"time"

	"graphstore/domain/core/entities"
)

// NodeUpserted is raised after a node write commits.
type NodeUpserted struct {
	BaseEvent
	NodeID      string `json:"node_id"`
	TypeID      string `json:"type_id"`
	State       string `json:"state"`
	Locale      string `json:"locale,omitempty"`
	NodeVersion int64  `json:"node_version"`
	Created     bool   `json:"created"`
}

// NewNodeUpserted builds the event from the stored record.
func NewNodeUpserted(node *entities.Node, timestamp time.Time) NodeUpserted {
	return NodeUpserted{
		BaseEvent: BaseEvent{
			AggregateID: node.ID,
			EventType:   EventTypeNodeUpserted,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:      node.ID,
		TypeID:      node.TypeID,
		State:       node.State,
		Locale:      node.Locale,
		NodeVersion: node.Version,
		Created:     node.Version == 1,
	}
}

// EdgeUpserted is raised after an edge write commits.
type EdgeUpserted struct {
	BaseEvent
	FromID  string  `json:"from_id"`
	ToID    string  `json:"to_id"`
	Role    string  `json:"role"`
	Weight  float64 `json:"weight"`
	Created bool    `json:"created"`
}

// NewEdgeUpserted builds the event from the stored record.
func NewEdgeUpserted(edge *entities.Edge, timestamp time.Time) EdgeUpserted {
	return EdgeUpserted{
		BaseEvent: BaseEvent{
			AggregateID: edge.FromID + "|" + edge.ToID + "|" + edge.Role,
			EventType:   EventTypeEdgeUpserted,
			Timestamp:   timestamp,
			Version:     1,
		},
		FromID:  edge.FromID,
		ToID:    edge.ToID,
		Role:    edge.Role,
		Weight:  edge.Weight,
		Created: edge.CreatedAt.Equal(edge.UpdatedAt),
	}
}
