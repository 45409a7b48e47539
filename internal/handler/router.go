package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/captain-focus/backend/internal/config"
	"github.com/captain-focus/backend/internal/handler/agent"
	"github.com/captain-focus/backend/internal/handler/chat"
	personaHandler "github.com/captain-focus/backend/internal/handler/persona"
	"github.com/captain-focus/backend/internal/handler/voice"
	middlewarePkg "github.com/captain-focus/backend/internal/middleware"
	"github.com/captain-focus/backend/internal/model/persona"
	"github.com/captain-focus/backend/internal/service/dispatch"
	"github.com/captain-focus/backend/internal/service/provider"
	"github.com/captain-focus/backend/internal/service/session"
	"github.com/captain-focus/backend/pkg/utils"
)

var endpoints = []string{
	"GET /",
	"GET /api/health",
	"GET /api/agent/health",
	"POST /api/agent/create",
	"POST /api/agent/chat",
	"POST /api/chat",
	"GET /api/agent/status/{agentId}",
	"GET /api/agent/list",
	"GET /api/persona",
	"GET /api/voice/ws",
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, logger zerolog.Logger, registry *session.Registry, client *provider.Client, pipeline *dispatch.Pipeline, p persona.Persona) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusNotFound, map[string]any{
			"error":              "Endpoint not found",
			"code":               "NOT_FOUND",
			"path":               r.URL.RequestURI(),
			"availableEndpoints": endpoints,
			"timestamp":          utils.Now(),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" is not allowed on "+r.URL.Path)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"name":      "Captain Focus Backend API",
			"version":   "1.0.0",
			"status":    "running",
			"endpoints": endpoints,
			"environment": map[string]any{
				"env":                     cfg.Env,
				"omnidimensionConfigured": client.Configured(),
				"activeAgents":            registry.Len(),
			},
			"timestamp": utils.Now(),
		})
	})

	agentHandler := agent.New(registry, client, cfg.Dispatch.MaxMessageBytes)
	chatHandler := chat.New(pipeline)
	voiceHandler := voice.NewWebSocketHandler(pipeline)
	profileHandler := personaHandler.New(p)

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimit.Enabled {
			api.Use(middlewarePkg.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Handler)
		}

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			apiKey := "missing"
			if client.Configured() {
				apiKey = "configured"
			}
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":  "healthy",
				"service": "Captain Focus Backend",
				"message": "Server is running perfectly!",
				"environment": map[string]any{
					"env":                 cfg.Env,
					"addr":                cfg.Server.Addr,
					"omnidimensionApiKey": apiKey,
				},
				"timestamp": utils.Now(),
			})
		})

		// Register agent routes
		agentHandler.RegisterRoutes(api)

		// Register chat routes
		chatHandler.RegisterRoutes(api)

		// Voice clients keep one socket per conversation
		voiceHandler.RegisterRoutes(api)

		profileHandler.RegisterRoutes(api)
	})

	return r
}
