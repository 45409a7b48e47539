package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/captain-focus/backend/internal/config"
	"github.com/captain-focus/backend/internal/handler"
	"github.com/captain-focus/backend/internal/logging"
	"github.com/captain-focus/backend/internal/model/persona"
	"github.com/captain-focus/backend/internal/service/dispatch"
	"github.com/captain-focus/backend/internal/service/provider"
	"github.com/captain-focus/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		App:    "captain-focus-api",
	}, os.Stderr)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	p := persona.CaptainFocus()
	client := provider.New(cfg.Provider, p, logging.Component(logger, "provider"))
	if client.Configured() {
		logger.Info().Str("base_url", cfg.Provider.BaseURL).Msg("Omnidimension provider configured")
	} else {
		logger.Warn().Msg("OMNIDIMENSION_API_KEY 未配置，聊天将回退到 mock 回复")
	}

	registry := session.NewRegistry(session.NewMemoryStore(), client, logging.Component(logger, "session"))
	pipeline := dispatch.New(registry, client, p, cfg.Dispatch.MaxMessageBytes, logging.Component(logger, "dispatch"))

	router := handler.NewRouter(cfg, logger, registry, client, pipeline, p)

	startServer(ctx, logger, cfg.Server, router)
	logger.Info().Int("active_agents", registry.Len()).Msg("server stopped")
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("Captain Focus backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
