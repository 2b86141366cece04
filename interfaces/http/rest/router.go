package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"cms-backend/application/commands/bus"
	querybus "cms-backend/application/queries/bus"
	"cms-backend/interfaces/http/rest/handlers"
	"cms-backend/interfaces/http/rest/middleware"
	"cms-backend/pkg/auth"
	"cms-backend/pkg/common"
	pkgerrors "cms-backend/pkg/errors"
)

// ReadinessCheck reports whether the service can take traffic.
type ReadinessCheck func(ctx context.Context) error

// Options configures the router.
type Options struct {
	CORS           bool
	AllowedOrigins []string
	// RequestTimeout cancels the request context after the duration; zero
	// disables it.
	RequestTimeout time.Duration
	// TrustGatewayAuth accepts identities forwarded by API Gateway.
	TrustGatewayAuth bool
	Debug            bool
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Observer       middleware.HTTPObserver
	Ready          ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	validator  *auth.JWTValidator
	options    Options
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		validator:  validator,
		options:    options,
		errors:     pkgerrors.NewErrorHandler(logger, options.Debug),
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.options.Observer != nil {
		router.Use(middleware.Metrics(rt.options.Observer))
	}

	if rt.options.CORS {
		origins := rt.options.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.options.MetricsHandler)
	}

	content := handlers.NewContentHandler(rt.commandBus, rt.errors, rt.logger)
	reads := handlers.NewQueryHandler(rt.queryBus, rt.errors, rt.logger)

	router.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		if rt.options.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.options.RequestTimeout))
		}
		r.Use(middleware.Authenticate(middleware.AuthConfig{
			Validator:    rt.validator,
			TrustGateway: rt.options.TrustGatewayAuth,
			Errors:       rt.errors,
			Logger:       rt.logger,
		}))

		r.Get("/link-graph", reads.LinkGraph)
		r.Get("/listing", reads.Listing)
		r.Get("/media-map", reads.MediaMap)
		r.Get("/audit", reads.AuditLog)

		r.Route("/categories/{categoryID}", func(r chi.Router) {
			r.Get("/products", reads.CategoryProducts)
			r.Post("/reprice", content.RepriceCategory)
		})
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Put("/", content.SaveProduct)
			r.Delete("/", content.DeleteProduct)
		})
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/by-code/{code}", reads.CouponByCode)
			r.Put("/{couponID}", content.SaveCoupon)
			r.Delete("/{couponID}", content.DeleteCoupon)
		})
		r.Route("/forms", func(r chi.Router) {
			r.Get("/by-slug/{slug}", reads.FormBySlug)
			r.Put("/{formID}", content.SaveForm)
			r.Delete("/{formID}", content.DeleteForm)
		})
		r.Route("/resources/{resourceID}", func(r chi.Router) {
			r.Put("/", content.SaveResource)
			r.Delete("/", content.DeleteResource)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports 503 while a dependency, usually the store breaker,
// is unavailable.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.options.Ready != nil {
		if err := rt.options.Ready(req.Context()); err != nil {
			rt.errors.Handle(w, req, err)
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
