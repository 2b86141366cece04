package auth

import (
	"context"

	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// RoleAuthorizer grants permissions from the caller's roles and tenant
// memberships:
//
//	admin   every permission in every scope, including the system scope
//	editor  read and write within its tenants
//	viewer  read within its tenants
type RoleAuthorizer struct {
	logger *zap.Logger
}

// NewRoleAuthorizer creates the authorizer.
func NewRoleAuthorizer(logger *zap.Logger) *RoleAuthorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleAuthorizer{logger: logger}
}

// Authorize implements ports.Authorizer.
func (a *RoleAuthorizer) Authorize(ctx context.Context, scope keyspace.Scope, perm ports.Permission) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == "" {
		return pkgerrors.NewUnauthorizedError("authentication required")
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if p.HasRole(RoleAdmin) {
		return nil
	}

	deny := func(reason string) error {
		a.logger.Debug("Authorization denied",
			zap.String("user_id", p.UserID),
			zap.String("scope", scope.String()),
			zap.String("permission", string(perm)),
			zap.String("reason", reason))
		return pkgerrors.NewForbiddenError("not allowed to " + string(perm) + " in this scope")
	}

	if scope.IsSystem() {
		return deny("system scope")
	}
	if !p.MemberOf(scope.TenantID()) {
		return deny("not a tenant member")
	}

	switch perm {
	case ports.PermissionRead:
		if p.HasRole(RoleEditor) || p.HasRole(RoleViewer) {
			return nil
		}
	case ports.PermissionWrite:
		if p.HasRole(RoleEditor) {
			return nil
		}
	}
	return deny("missing role")
}

var _ ports.Authorizer = (*RoleAuthorizer)(nil)
