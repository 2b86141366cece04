package handlers

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"cms-backend/application/commands"
	"cms-backend/application/ports"
	"cms-backend/application/projection"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/events"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// ProductHandler handles product and category commands
type ProductHandler struct {
	base
}

// NewProductHandler creates a new product handler
func NewProductHandler(deps Dependencies) *ProductHandler {
	return &ProductHandler{base: newBase(deps)}
}

// Save handles SaveProductCommand
func (h *ProductHandler) Save(ctx context.Context, cmd commands.SaveProductCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}

	product := entities.Product{
		ID:          cmd.ProductID,
		Title:       cmd.Title,
		Slug:        cmd.Slug,
		Price:       cmd.Price,
		Image:       cmd.Image,
		SortOrder:   cmd.SortOrder,
		CategoryIDs: cmd.CategoryIDs,
		Description: cmd.Description,
		UpdatedAt:   h.deps.Now(),
	}
	item, err := product.ToItem(scope)
	if err != nil {
		return nil, err
	}
	return h.save(ctx, scope, item, map[string]any{"categories": len(cmd.CategoryIDs)})
}

// Delete handles DeleteProductCommand
func (h *ProductHandler) Delete(ctx context.Context, cmd commands.DeleteProductCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}
	key, err := keyspace.ProductKey(scope, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	return nil, h.remove(ctx, scope, key, "product")
}

// RepriceResult reports a category reprice.
type RepriceResult struct {
	CategoryID string                `json:"categoryId"`
	Products   int                   `json:"products"`
	Skipped    []string              `json:"skipped,omitempty"`
	Bulk       projection.BulkResult `json:"bulk"`
}

// Reprice handles RepriceCategoryCommand. It rewrites every product listed in
// the category through the bulk path, which refreshes the price on each of
// the product's category cards. Batches that fail are listed in the result;
// re-sending the command repairs them.
func (h *ProductHandler) Reprice(ctx context.Context, cmd commands.RepriceCategoryCommand) (interface{}, error) {
	scope, err := h.authorize(ctx, cmd.TenantID, ports.PermissionWrite)
	if err != nil {
		return nil, err
	}

	cards, err := h.deps.Projector.CategoryProducts(ctx, scope, cmd.CategoryID)
	if err != nil {
		return nil, err
	}

	result := RepriceResult{CategoryID: cmd.CategoryID}
	now := h.deps.Now().UTC().Format(time.RFC3339Nano)
	changes := make([]projection.Change, 0, len(cards))
	for _, card := range cards {
		key, err := keyspace.ProductKey(scope, card.ProductID)
		if err != nil {
			return nil, err
		}
		prev, err := h.deps.Store.Get(ctx, key)
		if pkgerrors.IsNotFound(err) {
			// A membership outliving its product; the next save of the product
			// or a reprojection cleans it up.
			h.deps.Logger.Warn("Category lists a missing product",
				zap.String("scope", scope.String()),
				zap.String("category_id", cmd.CategoryID),
				zap.String("product_id", card.ProductID))
			result.Skipped = append(result.Skipped, card.ProductID)
			continue
		}
		if err != nil {
			return nil, err
		}

		price, ok := projection.Number(prev.Attributes["price"])
		if !ok {
			price = 0
		}
		current := prev.Clone()
		current.Attributes["price"] = RepricedPrice(price, cmd.Percent, cmd.Amount)
		current.Attributes["updatedAt"] = now
		previous := prev
		changes = append(changes, projection.Change{Previous: &previous, Current: current})
	}

	result.Products = len(changes)
	if len(changes) > 0 {
		bulk, err := h.deps.Projector.BulkSave(ctx, scope, changes)
		if err != nil {
			return nil, err
		}
		result.Bulk = bulk
	}

	details := map[string]any{"products": result.Products}
	if cmd.Percent != nil {
		details["percent"] = *cmd.Percent
	} else {
		details["amount"] = *cmd.Amount
	}
	if failed := result.Bulk.FailedEntityIDs(); len(failed) > 0 {
		details["failed"] = failed
	}
	h.audit(ctx, scope, keyspace.KindCategory, cmd.CategoryID, events.ActionRepriced, details)
	return result, nil
}

// RepricedPrice applies a percentage or absolute change, rounded to cents and
// never below zero.
func RepricedPrice(price float64, percent, amount *float64) float64 {
	next := price
	switch {
	case percent != nil:
		next = price * (1 + *percent/100)
	case amount != nil:
		next = price + *amount
	}
	next = math.Round(next*100) / 100
	if next < 0 {
		return 0
	}
	return next
}
