package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/database"
	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/handler"
	"github.com/comigor/jarvis-chat/internal/history"
	"github.com/comigor/jarvis-chat/internal/identity"
	"github.com/comigor/jarvis-chat/internal/llm"
	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/prompt"
	"github.com/comigor/jarvis-chat/internal/relay"
	"github.com/comigor/jarvis-chat/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Log)
	l := logger.L()
	l.Info().Msg("jarvis-chat starting")

	// Conversation store
	db, err := database.Open(cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}
	defer database.Close(db)

	store := history.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Session verification, with Redis-backed revocation when configured
	var revoker identity.Revoker = identity.NewMemoryRevoker()
	if cfg.Redis.Address != "" {
		rr, err := identity.NewRedisRevoker(cfg.Redis)
		if err != nil {
			l.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer rr.Close()
		revoker = rr
		l.Info().Str("address", cfg.Redis.Address).Msg("redis revocation list enabled")
	}
	verifier, err := identity.NewVerifier(cfg.Auth, revoker)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize session verifier")
	}

	// Model provider and system instruction
	if cfg.LLM.APIKey == "" {
		l.Warn().Msg("llm.api_key is not set; /chat will fail with missing_api_key")
	}
	llmClient := llm.NewClient(cfg.LLM)

	discovered := prompt.Discover(context.Background(), cfg.MCPServers, prompt.Dial)
	systemPrompt := prompt.Build(cfg.LLM.SystemPrompt, discovered)
	l.Info().Int("discovered", len(discovered)).Msg("system prompt assembled")

	g := guard.New(store)
	messages := service.NewMessageService(store)
	h := handler.New(handler.Deps{
		Conversations: service.NewConversationService(store, g, messages),
		Messages:      messages,
		Relay:         relay.New(llmClient, cfg.LLM, cfg.Relay, systemPrompt, messages),
		Guard:         g,
		Sessions:      verifier,
		CookieName:    cfg.Auth.CookieName,
	})

	// Initialize router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware())
	h.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info().Str("address", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until SIGINT / SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	l.Info().Msg("shutting down: draining in-flight requests")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Warn().Err(err).Msg("shutdown timed out")
	}
	l.Info().Msg("shutdown complete")
}
