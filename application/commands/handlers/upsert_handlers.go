package handlers

import (
	"context"
	"fmt"

	"graphstore/application/commands"
	"graphstore/application/commands/bus"
	"graphstore/application/services"
)

// UpsertNodeHandler handles UpsertNodeCommand
type UpsertNodeHandler struct {
	service *services.GraphService
}

// NewUpsertNodeHandler creates a new upsert node handler
func NewUpsertNodeHandler(service *services.GraphService) *UpsertNodeHandler {
	return &UpsertNodeHandler{service: service}
}

// Handle stores the node and returns the stored record.
func (h *UpsertNodeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.UpsertNodeCommand)
	if !ok {
		return nil, fmt.Errorf("unexpected command type %T", cmd)
	}
	return h.service.CreateOrUpdateNode(ctx, c.Node())
}

// UpsertEdgeHandler handles UpsertEdgeCommand
type UpsertEdgeHandler struct {
	service *services.GraphService
}

// NewUpsertEdgeHandler creates a new upsert edge handler
func NewUpsertEdgeHandler(service *services.GraphService) *UpsertEdgeHandler {
	return &UpsertEdgeHandler{service: service}
}

// Handle stores the edge and returns the stored record.
func (h *UpsertEdgeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.UpsertEdgeCommand)
	if !ok {
		return nil, fmt.Errorf("unexpected command type %T", cmd)
	}
	return h.service.CreateOrUpdateEdge(ctx, c.Edge())
}

// Register registers every command handler on b.
func Register(b *bus.CommandBus, service *services.GraphService) error {
	if err := b.Register(commands.UpsertNodeCommand{}, NewUpsertNodeHandler(service)); err != nil {
		return err
	}
	return b.Register(commands.UpsertEdgeCommand{}, NewUpsertEdgeHandler(service))
}
