package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-read-marker/internal/config"
	jwtinfra "github.com/go-read-marker/internal/infrastructure/jwt"
	"github.com/go-read-marker/internal/transport/http/handler"
	appmiddleware "github.com/go-read-marker/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds the control API router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLog(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	passthrough := func(next http.Handler) http.Handler { return next }
	authMw := passthrough
	scope := func(string) func(http.Handler) http.Handler { return passthrough }
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		scope = appmiddleware.RequireScope
	}

	// Window signals can arrive in bursts when the desktop app flaps focus.
	windowRL := appmiddleware.NewRateLimiter(rate.Limit(10), 20)

	healthH := handler.NewHealthHandler(deps.Ready)
	windowH := handler.NewWindowHandler(deps.Service)
	statusH := handler.NewStatusHandler(deps.Service)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(scope(jwtinfra.ScopeWindow), windowRL.Limit).Post("/window/{action}", windowH.Action)
			r.With(scope(jwtinfra.ScopeStatus)).Get("/status", statusH.Get)
			r.With(scope(jwtinfra.ScopeStatus)).Get("/markers/{id}", statusH.Marker)
		})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
