package commands

import (
	"graphstore/domain/core/entities"
	"graphstore/domain/core/valueobjects"
	"graphstore/pkg/utils"
)

// UpsertNodeCommand creates a node or replaces the node with the same ID.
// An empty ID asks the store to assign one.
type UpsertNodeCommand struct {
	ID          string                `json:"id,omitempty" validate:"omitempty,max=256"`
	TypeID      string                `json:"typeId" validate:"required,max=128"`
	State       string                `json:"state,omitempty" validate:"max=64"`
	Locale      string                `json:"locale,omitempty" validate:"max=64"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	Content     *valueobjects.Content `json:"content,omitempty"`
	Meta        valueobjects.Meta     `json:"meta,omitempty"`
}

// Validate validates the UpsertNodeCommand
func (c UpsertNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// Node builds the record to store.
func (c UpsertNodeCommand) Node() *entities.Node {
	return &entities.Node{
		ID:          c.ID,
		TypeID:      c.TypeID,
		State:       c.State,
		Locale:      c.Locale,
		Title:       c.Title,
		Description: c.Description,
		Content:     c.Content,
		Meta:        c.Meta,
	}
}

// UpsertEdgeCommand creates or replaces the edge (FromID, ToID, Role).
type UpsertEdgeCommand struct {
	FromID string            `json:"fromId" validate:"required,max=256"`
	ToID   string            `json:"toId" validate:"required,max=256"`
	Role   string            `json:"role" validate:"required,max=128"`
	Weight float64           `json:"weight"`
	Meta   valueobjects.Meta `json:"meta,omitempty"`
}

// Validate validates the UpsertEdgeCommand
func (c UpsertEdgeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// Edge builds the record to store.
func (c UpsertEdgeCommand) Edge() *entities.Edge {
	return &entities.Edge{
		FromID: c.FromID,
		ToID:   c.ToID,
		Role:   c.Role,
		Weight: c.Weight,
		Meta:   c.Meta,
	}
}
