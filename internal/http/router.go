package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hubbroker/internal/config"
	"hubbroker/internal/connections"
	"hubbroker/internal/identity"
	"hubbroker/internal/metrics"
)

// NewRouter wires application routes and middleware using chi. The
// google argument may be nil when the Google flow is not configured;
// its routes then answer 503 instead of panicking on first use.
func NewRouter(cfg config.Config, google googleProvider, motion motionValidator, connSvc *connections.Service, identitySvc *identity.Service, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newMetricsMiddleware(m))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	oauthHandler := NewOAuthHandler(google, connSvc, identitySvc, m, cfg.Environment, logger)
	motionHandler := NewMotionHandler(motion, connSvc, m, logger)
	authHandler := NewAuthHandler(identitySvc, connSvc, cfg.Environment, logger)
	callbackPage := NewCallbackPageHandler(cfg.FrontendURL, logger)

	if google == nil {
		logger.Warn("google oauth not configured; /auth/google endpoints disabled")
	}

	r.Route("/auth", func(r chi.Router) {
		if google == nil {
			r.Get("/google", googleDisabled)
			r.Get("/google/callback", googleDisabled)
		} else {
			r.Get("/google", oauthHandler.InitiateGoogle)
			r.Get("/google/callback", oauthHandler.CallbackGoogle)
		}

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(identitySvc, logger))
			r.Post("/motion", motionHandler.Connect)
		})
	})

	r.Get("/oauth-callback", callbackPage.Render)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/status", authHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(identitySvc, logger))
			r.Post("/disconnect/{service}", authHandler.Disconnect)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}

func googleDisabled(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "google sign-in is not configured")
}
