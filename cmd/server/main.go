package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gsalazar/workchat/internal/auth"
	"github.com/gsalazar/workchat/internal/config"
	"github.com/gsalazar/workchat/internal/database"
	"github.com/gsalazar/workchat/internal/history"
	"github.com/gsalazar/workchat/internal/hub"
	"github.com/gsalazar/workchat/internal/middleware"
	"github.com/gsalazar/workchat/internal/server"
	"github.com/gsalazar/workchat/internal/session"
)

func main() {
	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context for initialization
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// History store: one append-only log per room
	historyStore, err := history.NewStore(filepath.Join(cfg.DataDir, "messages"))
	if err != nil {
		slog.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	// Session store: file for single instances, redis to share sessions
	var sessions session.Store
	switch cfg.SessionStore {
	case "redis":
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			slog.Error("failed to connect session store", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		sessions = redisStore
	default:
		fileStore, err := session.NewFileStore(cfg.DataDir, cfg.SessionTTL)
		if err != nil {
			slog.Error("failed to open session store", "error", err)
			os.Exit(1)
		}
		sessions = fileStore
	}
	slog.Info("session store ready", "backend", cfg.SessionStore)

	// Optional Postgres user directory; the file store records users otherwise
	var db *database.DB
	var users auth.UserDirectory
	if cfg.DatabaseURL != "" {
		db, err = database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		userRepo := database.NewUserRepository(db)
		if err := userRepo.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		users = userRepo
		slog.Info("user directory ready", "backend", "postgres")
	} else if fileStore, ok := sessions.(*session.FileStore); ok {
		users = fileStore
	}

	// Connection hub
	validator := session.NewValidator(sessions, cfg.AuthTimeout)
	chatHub := hub.New(historyStore, validator, hub.Options{
		HistoryTail:    cfg.HistoryTail,
		SendBuffer:     cfg.SendBuffer,
		MessagesPerMin: cfg.MessagesPerMin,
	}, logger)
	wsHandler := hub.NewHandler(chatHub, logger)

	// OAuth login flow
	if !cfg.OAuthEnabled {
		slog.Warn("Google OAuth not configured - login disabled")
	}
	oauthService := auth.NewOAuthService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.StateSigningKey)
	authHandlers := auth.NewHandlers(oauthService, sessions, users, chatHub, logger)

	// Create and start server
	deps := &server.Dependencies{
		DB:           db,
		AuthHandlers: authHandlers,
		WSHandler:    wsHandler,
		RateLimiter:  middleware.NewRateLimiter(cfg.MessagesPerMin),
		StaticDir:    cfg.StaticDir,
		Logger:       logger,
	}

	srv := server.New(cfg, deps)

	// Graceful shutdown setup
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-shutdownCtx.Done()
	slog.Info("shutting down gracefully...")

	// Give active connections 10 seconds to finish
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
