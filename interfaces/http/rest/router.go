package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"graphstore/application/commands/bus"
	"graphstore/application/queries"
	querybus "graphstore/application/queries/bus"
	"graphstore/infrastructure/config"
	"graphstore/interfaces/http/rest/handlers"
	"graphstore/interfaces/http/rest/middleware"
	"graphstore/pkg/common"
	pkgerrors "graphstore/pkg/errors"
	"graphstore/pkg/observability"
)

// legacyPrefix serves clients that still call the original storage routes.
const legacyPrefix = "/storage-endpoints"

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil, in which
// case /metrics is not mounted.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector))
	}
	router.Use(versionMiddleware)

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck(errorHandler))
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	// API v1 routes (legacy - redirects to v2)
	router.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			target := strings.Replace(req.URL.Path, "/api/v1", "/api/v2", 1)
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}
			http.Redirect(w, req, target, http.StatusPermanentRedirect)
		})
	})

	api := rt.apiRoutes(errorHandler)
	router.Mount("/api/v2", api)
	router.Mount(legacyPrefix, api)

	return router
}

func (rt *Router) apiRoutes(errorHandler *pkgerrors.ErrorHandler) http.Handler {
	r := chi.NewRouter()
	if rt.cfg.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, errorHandler).Handler)
	}

	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.queryBus, errorHandler, rt.logger)

	r.Route("/nodes", func(r chi.Router) {
		r.Post("/", nodeHandler.UpsertNode)
		r.Get("/", nodeHandler.QueryNodes)
		r.Get("/{nodeID}", nodeHandler.GetNode)
		r.Get("/{nodeID}/edges", nodeHandler.GetNodeEdges)
	})

	r.Route("/edges", func(r chi.Router) {
		r.Post("/", edgeHandler.UpsertEdge)
		r.Get("/", edgeHandler.QueryEdges)
		r.Get("/{fromID}/{toID}", edgeHandler.GetEdge)
	})

	r.Get("/stats", graphHandler.GetStats)
	r.Get("/events", graphHandler.ListEvents)

	return r
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready once the backend answers a stats query.
func (rt *Router) readinessCheck(errorHandler *pkgerrors.ErrorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if _, err := rt.queryBus.Ask(req.Context(), queries.GetStatsQuery{}); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			errorHandler.HandleStatus(w, req, http.StatusServiceUnavailable, "storage backend not ready")
			return
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v2"
		if strings.HasPrefix(r.URL.Path, "/api/v1") {
			version = "v1"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")
		if version == "v1" || strings.HasPrefix(r.URL.Path, legacyPrefix) {
			w.Header().Set("X-API-Deprecated", "true")
		}

		next.ServeHTTP(w, r)
	})
}
