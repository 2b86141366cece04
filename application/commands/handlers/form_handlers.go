package handlers

import (
	"context"
	"strings"

	"cms-backend/application/commands"
	"cms-backend/application/ports"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// FormHandler handles form commands
type FormHandler struct {
	base
}

// NewFormHandler creates a new form handler
func NewFormHandler(deps Dependencies) *FormHandler {
	return &FormHandler{base: newBase(deps)}
}

// Save handles SaveFormCommand. The slug may not fall under a reserved path
// prefix and may not be held by another form.
func (h *FormHandler) Save(ctx context.Context, cmd commands.SaveFormCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}

	slug := keyspace.NormalizeFormSlug(cmd.Slug)
	if h.deps.Settings != nil {
		settings, err := h.deps.Settings.Settings(ctx, scope)
		if err != nil {
			return nil, err
		}
		if prefix, reserved := reservedBy(slug, settings.ReservedPrefixes); reserved {
			return nil, pkgerrors.NewValidationErrorf("slug %q is under the reserved path %s", slug, prefix).
				WithCode(pkgerrors.CodeReservedSlug).
				WithDetail("slug", slug)
		}
	}

	form := entities.Form{
		ID:        cmd.FormID,
		Title:     cmd.Title,
		Slug:      slug,
		Fields:    cmd.Fields,
		UpdatedAt: h.deps.Now(),
	}
	item, err := form.ToItem(scope)
	if err != nil {
		return nil, err
	}
	return h.save(ctx, scope, item, map[string]any{"slug": slug})
}

// Delete handles DeleteFormCommand
func (h *FormHandler) Delete(ctx context.Context, cmd commands.DeleteFormCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}
	key, err := keyspace.FormKey(scope, cmd.FormID)
	if err != nil {
		return nil, err
	}
	return nil, h.remove(ctx, scope, key, "form")
}

// reservedBy reports the reserved prefix a normalized slug falls under.
// "/api" reserves "api" and "api/x" but not "apis".
func reservedBy(slug string, prefixes []string) (string, bool) {
	path := "/" + slug
	for _, p := range prefixes {
		p = "/" + strings.Trim(strings.ToLower(p), "/")
		if p == "/" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return p, true
		}
	}
	return "", false
}
