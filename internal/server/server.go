package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gsalazar/workchat/internal/auth"
	"github.com/gsalazar/workchat/internal/config"
	"github.com/gsalazar/workchat/internal/database"
	"github.com/gsalazar/workchat/internal/hub"
	"github.com/gsalazar/workchat/internal/middleware"
)

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	DB           *database.DB // nil when no user directory is configured
	AuthHandlers *auth.Handlers
	WSHandler    *hub.Handler
	RateLimiter  *middleware.RateLimiter
	StaticDir    string
	Logger       *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()

	registerRoutes(mux, deps)

	// Wrap with middleware
	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Ready check - verifies the user directory when one is configured
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.DB != nil {
			if err := deps.DB.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","error":"database unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// Auth / session routes
	mux.HandleFunc("GET /login", deps.AuthHandlers.Login)
	mux.HandleFunc("GET /oauth2callback", deps.AuthHandlers.Callback)
	mux.HandleFunc("GET /session", deps.AuthHandlers.Session)
	mux.HandleFunc("GET /logout", deps.AuthHandlers.Logout)
	mux.Handle("POST /setname", deps.RateLimiter.Middleware(http.HandlerFunc(deps.AuthHandlers.SetName)))

	// WebSocket route
	mux.Handle("GET /ws", deps.WSHandler)

	// Static files (frontend) - serve at root
	staticFS := http.FileServer(http.Dir(deps.StaticDir))
	mux.Handle("GET /", staticFS)
}
