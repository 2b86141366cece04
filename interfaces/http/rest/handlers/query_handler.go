package handlers

import (
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cms-backend/application/queries"
	querybus "cms-backend/application/queries/bus"
	"cms-backend/pkg/common"
	pkgerrors "cms-backend/pkg/errors"
)

// QueryHandler serves the read side: secondary index lookups, the link
// graph, listings and the audit log.
type QueryHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryBus *querybus.QueryBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queryBus: queryBus,
		errors:   errors,
		logger:   logger,
	}
}

// LinkGraph handles GET /link-graph
func (h *QueryHandler) LinkGraph(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetLinkGraphQuery{TenantID: chi.URLParam(r, "tenantID")})
}

// CategoryProducts handles GET /categories/{categoryID}/products
func (h *QueryHandler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ListCategoryProductsQuery{
		TenantID:   chi.URLParam(r, "tenantID"),
		CategoryID: chi.URLParam(r, "categoryID"),
	})
}

// CouponByCode handles GET /coupons/by-code/{code}
func (h *QueryHandler) CouponByCode(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.FindCouponByCodeQuery{
		TenantID: chi.URLParam(r, "tenantID"),
		Code:     chi.URLParam(r, "code"),
	})
}

// FormBySlug handles GET /forms/by-slug/{slug}
func (h *QueryHandler) FormBySlug(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.FindFormBySlugQuery{
		TenantID: chi.URLParam(r, "tenantID"),
		Slug:     chi.URLParam(r, "slug"),
	})
}

// MediaMap handles GET /media-map?url=
func (h *QueryHandler) MediaMap(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.LookupMediaQuery{
		TenantID: chi.URLParam(r, "tenantID"),
		URL:      r.URL.Query().Get("url"),
	})
}

// Listing handles GET /listing?filterTag=&limit=&exclude=. An absent limit
// uses the configured default and limit=0 returns every match.
func (h *QueryHandler) Listing(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := queries.ResolveListingQuery{
		TenantID:  chi.URLParam(r, "tenantID"),
		FilterTag: params.Get("filterTag"),
		Exclude:   params.Get("exclude"),
	}
	if params.Has("limit") {
		q.Limit = params.Get("limit")
	}
	h.ask(w, r, q)
}

// AuditLog handles GET /audit
func (h *QueryHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ListAuditLogQuery{TenantID: chi.URLParam(r, "tenantID")})
}

func (h *QueryHandler) ask(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	meta := &common.MetaInfo{RequestID: common.ExtractRequestID(r)}
	if v := reflect.ValueOf(result); v.Kind() == reflect.Slice {
		n := v.Len()
		meta.Count = &n
	}
	common.RespondWithMeta(w, http.StatusOK, result, meta)
}
