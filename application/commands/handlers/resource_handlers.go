package handlers

import (
	"context"

	"cms-backend/application/commands"
	"cms-backend/application/ports"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/keyspace"
)

// ResourceHandler handles media resource commands
type ResourceHandler struct {
	base
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(deps Dependencies) *ResourceHandler {
	return &ResourceHandler{base: newBase(deps)}
}

// Save handles SaveResourceCommand
func (h *ResourceHandler) Save(ctx context.Context, cmd commands.SaveResourceCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}

	resource := entities.Resource{
		ID:          cmd.ResourceID,
		URL:         cmd.URL,
		SourceURL:   cmd.SourceURL,
		ContentType: cmd.ContentType,
		UpdatedAt:   h.deps.Now(),
	}
	item, err := resource.ToItem(scope)
	if err != nil {
		return nil, err
	}
	var details map[string]any
	if cmd.SourceURL != "" {
		details = map[string]any{"sourceUrl": cmd.SourceURL}
	}
	return h.save(ctx, scope, item, details)
}

// Delete handles DeleteResourceCommand
func (h *ResourceHandler) Delete(ctx context.Context, cmd commands.DeleteResourceCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}
	key, err := keyspace.ResourceKey(scope, cmd.ResourceID)
	if err != nil {
		return nil, err
	}
	return nil, h.remove(ctx, scope, key, "resource")
}
