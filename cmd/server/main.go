// @title           Poster Generator Backend API
// @version         1.0.0
// @description     Backend API for turning an uploaded photo and a text prompt into a poster with Gemini. Generated posters and their source images are stored in Supabase Storage and listed per user.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the Supabase access token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"poster-generator-backend/internal/config"
	"poster-generator-backend/internal/database"
	"poster-generator-backend/internal/gemini"
	"poster-generator-backend/internal/handlers"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/logger"
	"poster-generator-backend/internal/session"
	"poster-generator-backend/internal/supabase"
	"poster-generator-backend/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration. A missing required value does not stop the
	// server; it serves the configuration error instead.
	cfg, cfgErr := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := handlers.RouterDeps{Config: cfg, Log: log, ConfigErr: cfgErr}
	if cfgErr != nil {
		log.Error().Err(cfgErr).Msg("Configuration error, serving error responses only")
	} else {
		log.Info().Str("config", cfg.String()).Msg("Configuration loaded")
		if err := wire(ctx, cfg, log, &deps); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize services")
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(deps),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// wire builds the clients, the session gate and the workspace registry.
func wire(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *handlers.RouterDeps) error {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, migrations will be skipped")
	} else {
		runMigrations(ctx, cfg.DatabaseURL, log)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		return err
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.DataKey(), cfg.SupabaseStorageBucket, cfg.ForwardsUserTokens(), log)
	if err != nil {
		return err
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return err
	}

	registry := workflow.NewRegistry(workflow.Deps{
		Generator: geminiClient,
		Blobs:     storageClient,
		History:   supabase.NewHistoryStore(supabaseClient, storageClient, log),
		Fetcher:   imagecodec.NewFetcher(cfg.FetchTimeout),
	}, workflow.Options{
		CleanupOrphanedUploads: cfg.CleanupOrphanedUploads,
	}, log)
	go registry.RunEviction(ctx, cfg.WorkspaceIdleTimeout)

	gate := session.NewGate(supabase.NewAuthProvider(supabaseClient), log)
	gate.Subscribe(func(evt session.Event) {
		switch evt.Type {
		case session.SignedIn:
			log.Info().Str("user_id", evt.User.ID).Msg("User signed in")
		case session.SignedOut:
			registry.Drop(evt.User.ID)
			log.Info().Str("user_id", evt.User.ID).Msg("User signed out")
		}
	})

	if cfg.ForwardsUserTokens() {
		log.Info().Msg("SUPABASE_SERVICE_ROLE_KEY not set, data calls run with the caller's access token")
	}

	if cfg.SupabaseJWTSecret == "" {
		log.Warn().Msg("SUPABASE_JWT_SECRET not set, tokens are verified against Supabase Auth on every request")
	}

	deps.Gate = gate
	deps.Registry = registry
	return nil
}

// runMigrations is best effort: a failure is logged and the server still starts.
func runMigrations(ctx context.Context, dbURL string, log zerolog.Logger) {
	migrator, err := database.NewMigrator(ctx, dbURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize migrator")
		return
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		log.Warn().Err(err).Msg("Migration failed")
		return
	}
	log.Info().Msg("Migrations completed successfully")
}
