package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	v1 "github.com/votalab/sonda/internal/api/v1"
	"github.com/votalab/sonda/internal/auth"
	"github.com/votalab/sonda/internal/config"
	"github.com/votalab/sonda/internal/engine"
	"github.com/votalab/sonda/internal/interview"
	"github.com/votalab/sonda/internal/llm"
	"github.com/votalab/sonda/internal/notify"
	"github.com/votalab/sonda/internal/server"
	"github.com/votalab/sonda/internal/store/postgres"
	redisstore "github.com/votalab/sonda/internal/store/redis"
	"github.com/votalab/sonda/internal/store/remotehttp"
	"github.com/votalab/sonda/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("SONDA_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("SONDA_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create auth service.
	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Build the model invocation stack: provider -> retry client -> executor.
	endpoint := strings.TrimSuffix(cfg.LLM.BaseURL, "/") + "/chat/completions"
	provider := llm.NewOpenAIProvider(cfg.LLM.APIKey, llm.WithEndpoint(endpoint))
	client := llm.NewClient(provider, llm.RetryPolicy{
		MaxAttempts: cfg.LLM.MaxRetries + 1,
		BaseDelay:   cfg.LLM.RetryBaseDelay,
		CallTimeout: cfg.LLM.CallTimeout,
	})
	executor := interview.NewExecutor(client, interview.DefaultPromptBuilder{}, cfg.LLM.MaxTokens)

	// Terminal-state notifications always land in the log; Slack is fanned
	// in when configured.
	var notifier engine.Notifier = notify.NewLogNotifier(log.Logger)
	if cfg.Slack.BotToken != "" {
		slackClient := slacklib.New(cfg.Slack.BotToken)
		notifier = notify.NewFanout(notifier, notify.NewSlackNotifier(slackClient, cfg.Slack.Channel))
		log.Info().Str("channel", cfg.Slack.Channel).Msg("Slack notifications enabled")
	}

	// Create the session controller.
	ctrl := engine.NewController(store.Sessions(), store.Agents(), executor, pubsub, notifier, engine.Config{
		Workers:          cfg.Engine.Workers,
		FailureRatio:     cfg.Engine.FailureRatio,
		MaxInputTokens:   int64(cfg.Engine.MaxInputTokens),
		MinFailureSample: cfg.Engine.MinFailureSample,
	})
	defer ctrl.Shutdown()

	// Remote synchronization is optional; without a base URL the sync
	// endpoints answer 501.
	var sync v1.Synchronizer
	if cfg.Sync.BaseURL != "" {
		remote := remotehttp.New(cfg.Sync.BaseURL, cfg.Sync.Token)
		sync = syncer.New(store.Sessions(), store.Recovery(), remote, ctrl)
		log.Info().Str("remote", cfg.Sync.BaseURL).Msg("remote sync enabled")
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, authSvc, ctrl, sync, pubsub)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
