package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cryptohelms/backend/app"
	"github.com/cryptohelms/backend/handlers"
	"github.com/cryptohelms/backend/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := deps.HealthHandler()
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	authHandler := deps.AuthHandler()
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}

	r.Route(prefix, func(r chi.Router) {
		r.Get("/status", health.HandleStatus)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", authHandler.HandleRegister)
			r.Post("/login/token/", authHandler.HandleLogin)

			r.With(deps.AuthMiddleware.RequireAuth).Get("/me/", authHandler.HandleCurrentUser)
		})

		r.Get("/forecast/", handlers.ForecastHandler)
		r.Get("/viz/viz", handlers.VizHandler)
		r.Get("/dummy/", handlers.DummyHandler)
	})

	r.NotFound(handlers.NotFoundHandler)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler)

	return r
}
