package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "monitorflow/internal/api/context"
	"monitorflow/internal/api/handlers"
	"monitorflow/internal/api/middleware"
)

type Dependencies struct {
	AuthHandler         *handlers.AuthHandler
	EventsHandler       *handlers.EventsHandler
	CategoryHandler     *handlers.CategoryHandler
	WebhookHandler      *handlers.WebhookHandler
	HealthHandler       *handlers.HealthHandler
	MetricsHandler      *handlers.MetricsHandler
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	authMid := deps.AuthMiddleware
	rateLimitMid := deps.RateLimitMiddleware

	// Operational endpoints
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Token exchange: authenticate with the API key, get a short-lived JWT
	router.POST("/api/v1/auth/token", chain(deps.AuthHandler.Token, authMid.APIKey))

	// Event intake. Rate limit runs before key resolution so abusive
	// clients are shed without a database lookup per key.
	router.POST("/api/v1/events",
		chain(deps.EventsHandler.Ingest, rateLimitMid.Handle, authMid.APIKey))

	// Event management
	router.GET("/api/v1/events", chain(deps.EventsHandler.List, authMid.JWT))
	router.POST("/api/v1/events/:event_id/ack", chain(deps.EventsHandler.Acknowledge, authMid.JWT))

	// Category management
	router.POST("/api/v1/categories", chain(deps.CategoryHandler.Create, authMid.JWT))
	router.GET("/api/v1/categories", chain(deps.CategoryHandler.List, authMid.JWT))
	router.DELETE("/api/v1/categories/:name", chain(deps.CategoryHandler.Delete, authMid.JWT))

	// Webhook management
	router.POST("/api/v1/webhooks", chain(deps.WebhookHandler.Create, authMid.JWT))
	router.GET("/api/v1/webhooks", chain(deps.WebhookHandler.List, authMid.JWT))
	router.GET("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Get, authMid.JWT))
	router.PATCH("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Update, authMid.JWT))
	router.DELETE("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Delete, authMid.JWT))
	router.POST("/api/v1/webhooks/:webhook_id/secret",
		chain(deps.WebhookHandler.RegenerateSecret, authMid.JWT))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
