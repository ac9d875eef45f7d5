package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/logging"
)

type RouterOptions struct {
	// Limiter throttles /public per client address. Nil disables rate limiting.
	Limiter *RateLimiter
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP instead of the connection. Clients can set those headers freely,
	// so only a proxy that overwrites them makes this safe.
	TrustProxyHeaders bool
}

// NewRouter wires the public, health and admin routes.
func NewRouter(apiHandler *APIHandler, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(logging.OrNop(logger)))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/public", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
		r.Post("/chat", apiHandler.ChatHandler)
	})

	if apiHandler.admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/chatbots", apiHandler.ListChatbotsHandler)
			r.Post("/chatbots", apiHandler.CreateChatbotHandler)
			r.Post("/chatbots/{chatbotID}/entities", apiHandler.CreateEntityHandler)
			r.Post("/chatbots/{chatbotID}/entities/{entityID}/tags", apiHandler.LinkEntityTagsHandler)

			r.Get("/tags", apiHandler.ListTagsHandler)
			r.Post("/tags", apiHandler.CreateTagHandler)
			r.Post("/block-types", apiHandler.CreateBlockTypeHandler)
		})
	}

	return r
}
