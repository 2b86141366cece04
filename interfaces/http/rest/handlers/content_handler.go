package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cms-backend/application/commands"
	"cms-backend/application/commands/bus"
	"cms-backend/pkg/common"
	pkgerrors "cms-backend/pkg/errors"
)

// ContentHandler handles the writes of indexed content: products, coupons,
// forms and media resources.
type ContentHandler struct {
	commandBus *bus.CommandBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(commandBus *bus.CommandBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		commandBus: commandBus,
		errors:     errors,
		logger:     logger,
	}
}

// SaveProduct handles PUT /products/{productID}
func (h *ContentHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SaveProductCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.TenantID = chi.URLParam(r, "tenantID")
	cmd.ProductID = chi.URLParam(r, "productID")
	h.send(w, r, cmd)
}

// DeleteProduct handles DELETE /products/{productID}
func (h *ContentHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.DeleteProductCommand{
		TenantID:  chi.URLParam(r, "tenantID"),
		ProductID: chi.URLParam(r, "productID"),
	})
}

// RepriceCategory handles POST /categories/{categoryID}/reprice
func (h *ContentHandler) RepriceCategory(w http.ResponseWriter, r *http.Request) {
	var cmd commands.RepriceCategoryCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.TenantID = chi.URLParam(r, "tenantID")
	cmd.CategoryID = chi.URLParam(r, "categoryID")
	h.send(w, r, cmd)
}

// SaveCoupon handles PUT /coupons/{couponID}
func (h *ContentHandler) SaveCoupon(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SaveCouponCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.TenantID = chi.URLParam(r, "tenantID")
	cmd.CouponID = chi.URLParam(r, "couponID")
	h.send(w, r, cmd)
}

// DeleteCoupon handles DELETE /coupons/{couponID}
func (h *ContentHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.DeleteCouponCommand{
		TenantID: chi.URLParam(r, "tenantID"),
		CouponID: chi.URLParam(r, "couponID"),
	})
}

// SaveForm handles PUT /forms/{formID}
func (h *ContentHandler) SaveForm(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SaveFormCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.TenantID = chi.URLParam(r, "tenantID")
	cmd.FormID = chi.URLParam(r, "formID")
	h.send(w, r, cmd)
}

// DeleteForm handles DELETE /forms/{formID}
func (h *ContentHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.DeleteFormCommand{
		TenantID: chi.URLParam(r, "tenantID"),
		FormID:   chi.URLParam(r, "formID"),
	})
}

// SaveResource handles PUT /resources/{resourceID}
func (h *ContentHandler) SaveResource(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SaveResourceCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.TenantID = chi.URLParam(r, "tenantID")
	cmd.ResourceID = chi.URLParam(r, "resourceID")
	h.send(w, r, cmd)
}

// DeleteResource handles DELETE /resources/{resourceID}
func (h *ContentHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.DeleteResourceCommand{
		TenantID:   chi.URLParam(r, "tenantID"),
		ResourceID: chi.URLParam(r, "resourceID"),
	})
}

// send dispatches cmd and writes its result. Commands without a result
// answer 204.
func (h *ContentHandler) send(w http.ResponseWriter, r *http.Request, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if result == nil {
		common.RespondNoContent(w)
		return
	}
	common.RespondWithMeta(w, http.StatusOK, result, &common.MetaInfo{RequestID: common.ExtractRequestID(r)})
}
