package handlers

import (
	"context"

	"cms-backend/application/commands"
	"cms-backend/application/ports"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/keyspace"
)

// CouponHandler handles coupon commands
type CouponHandler struct {
	base
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(deps Dependencies) *CouponHandler {
	return &CouponHandler{base: newBase(deps)}
}

// Save handles SaveCouponCommand. A code already held by another coupon is a
// CONFLICT and nothing is written.
func (h *CouponHandler) Save(ctx context.Context, cmd commands.SaveCouponCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}

	coupon := entities.Coupon{
		ID:         cmd.CouponID,
		Code:       cmd.Code,
		PercentOff: cmd.PercentOff,
		AmountOff:  cmd.AmountOff,
		ExpiresAt:  cmd.ExpiresAt,
		UpdatedAt:  h.deps.Now(),
	}
	item, err := coupon.ToItem(scope)
	if err != nil {
		return nil, err
	}
	return h.save(ctx, scope, item, map[string]any{"code": item.String("code")})
}

// Delete handles DeleteCouponCommand
func (h *CouponHandler) Delete(ctx context.Context, cmd commands.DeleteCouponCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}
	key, err := keyspace.CouponKey(scope, cmd.CouponID)
	if err != nil {
		return nil, err
	}
	return nil, h.remove(ctx, scope, key, "coupon")
}
