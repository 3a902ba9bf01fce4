package rest

import (
	"context"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"scribe/application/services"
	"scribe/infrastructure/config"
	"scribe/interfaces/http/rest/handlers"
	"scribe/interfaces/http/rest/middleware"
	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"
	"scribe/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Services are the application services behind the API
type Services struct {
	Accounts  *services.AccountService
	Ledger    *services.LedgerService
	Uploads   *services.UploadService
	Analysis  *services.AnalysisService
	Projects  *services.ProjectService
	Exports   *services.ExportService
	Admin     *services.AdminService
	Dashboard *services.DashboardService
}

// ReadinessCheck reports whether the backing stores can serve requests
type ReadinessCheck func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	services  Services
	validator middleware.TokenValidator
	collector *observability.Collector
	errors    *pkgerrors.ErrorHandler
	ready     ReadinessCheck
	logger    *zap.Logger

	// ProgressInterval overrides the SSE polling interval; zero uses the default
	ProgressInterval time.Duration

	cfg atomic.Pointer[config.Config]
}

// NewRouter creates a new router instance. collector and ready may be nil.
func NewRouter(
	cfg *config.Config,
	svcs Services,
	validator middleware.TokenValidator,
	collector *observability.Collector,
	errs *pkgerrors.ErrorHandler,
	ready ReadinessCheck,
	logger *zap.Logger,
) *Router {
	rt := &Router{
		services:  svcs,
		validator: validator,
		collector: collector,
		errors:    errs,
		ready:     ready,
		logger:    logger,
	}
	rt.cfg.Store(cfg)
	return rt
}

// Reload applies the settings that may change at runtime: CORS origins and
// export retention.
func (rt *Router) Reload(cfg *config.Config) {
	rt.cfg.Store(cfg)
	rt.logger.Info("Router configuration reloaded",
		zap.Strings("allowedOrigins", cfg.CORS.AllowedOrigins),
		zap.Int("retentionDays", cfg.Exports.RetentionDays),
	)
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	cfg := rt.cfg.Load()
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errors.Middleware)
	if cfg.Observability.EnableTracing {
		router.Use(observability.TracingMiddleware(cfg.Observability.ServiceName))
	}
	if rt.collector != nil {
		router.Use(observability.MetricsMiddleware(rt.collector))
	}

	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  rt.allowOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil && cfg.Observability.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	window := cfg.RateLimit.Window.String()
	ipLimiter := auth.NewIPRateLimiter(cfg.RateLimit.IPRequests, cfg.RateLimit.Window)
	userLimiter := auth.NewUserRateLimiter(cfg.RateLimit.UserRequests, cfg.RateLimit.Window)

	accountHandler := handlers.NewAccountHandler(rt.services.Accounts, rt.services.Ledger, rt.errors, rt.logger)
	uploadHandler := handlers.NewUploadHandler(rt.services.Uploads, cfg.Server.MaxUploadBytes, rt.errors, rt.logger)
	analysisHandler := handlers.NewAnalysisHandler(rt.services.Analysis, rt.ProgressInterval, rt.errors, rt.logger)
	projectHandler := handlers.NewProjectHandler(rt.services.Projects, rt.errors, rt.logger)
	exportHandler := handlers.NewExportHandler(rt.services.Exports, rt.errors, rt.logger)
	adminHandler := handlers.NewAdminHandler(rt.services.Admin, rt.services.Exports, rt.retentionDays, rt.errors, rt.logger)
	dashboardHandler := handlers.NewDashboardHandler(rt.services.Dashboard, rt.errors)

	router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ipLimiter, rt.errors, cfg.RateLimit.IPRequests, window))

			r.Post("/auth/register", accountHandler.Register)
			r.Post("/auth/login", accountHandler.Login)
			r.Get("/payment/plans", accountHandler.Plans)
			r.Get("/export/formats", exportHandler.Formats)
			r.Get("/share/{token}", projectHandler.GetShared)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(middleware.AuthConfig{
				Validator:   rt.validator,
				IPLimiter:   ipLimiter,
				UserLimiter: userLimiter,
				Errors:      rt.errors,
				Logger:      rt.logger,
				Limit:       cfg.RateLimit.UserRequests,
				Window:      window,
			}))

			r.Post("/auth/logout", accountHandler.Logout)
			r.Get("/auth/profile", accountHandler.Profile)
			r.Put("/auth/profile", accountHandler.UpdateProfile)
			r.Get("/auth/usage", accountHandler.Usage)
			r.Delete("/auth/account", accountHandler.DeleteAccount)
			r.Post("/payment/request", accountHandler.RequestUpgrade)

			r.Post("/upload", uploadHandler.Upload)
			r.Post("/analyze", analysisHandler.Analyze)
			r.Get("/content/{whiteboardID}", analysisHandler.Content)
			r.Get("/whiteboards/{whiteboardID}/progress", analysisHandler.Progress)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.ListProjects)
				r.Post("/", projectHandler.CreateProject)
				r.Get("/{projectID}", projectHandler.GetProject)
				r.Put("/{projectID}", projectHandler.UpdateProject)
				r.Delete("/{projectID}", projectHandler.DeleteProject)
				r.Post("/{projectID}/share", projectHandler.ShareProject)
				r.Delete("/{projectID}/share", projectHandler.UnshareProject)
				r.Get("/{projectID}/exports", exportHandler.ListProjectExports)
			})

			// /export/formats is public and registered above
			r.Post("/export", exportHandler.Generate)
			r.Get("/export/{exportID}", exportHandler.GetExport)
			r.Get("/export/{exportID}/download", exportHandler.Download)

			r.Get("/dashboard", dashboardHandler.Dashboard)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(rt.errors, auth.RoleAdmin))
				r.Get("/users", adminHandler.ListUsers)
				r.Put("/users/{userID}/subscription", adminHandler.SetSubscription)
				r.Get("/stats", adminHandler.Stats)
				r.Post("/exports/purge", adminHandler.PurgeExports)
			})
		})
	})

	return router
}

func (rt *Router) allowOrigin(_ *http.Request, origin string) bool {
	origins := rt.cfg.Load().CORS.AllowedOrigins
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

func (rt *Router) retentionDays() int {
	return rt.cfg.Load().Exports.RetentionDays
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck pings the backing stores
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errors.HandleStatus(w, req, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
