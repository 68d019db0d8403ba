package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/scythe504/ninjahunt-backend/internal/config"
	"github.com/scythe504/ninjahunt-backend/internal/discord"
	"github.com/scythe504/ninjahunt-backend/internal/feed"
	"github.com/scythe504/ninjahunt-backend/internal/game"
	"github.com/scythe504/ninjahunt-backend/internal/server"
	"github.com/scythe504/ninjahunt-backend/internal/store"
	"github.com/scythe504/ninjahunt-backend/internal/utils"
)

const readyTimeout = 60 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[main] Failed to open store: %v", err)
	}
	defer cleanup()

	gw, err := discord.NewGateway(cfg)
	if err != nil {
		log.Fatalf("[main] Failed to create gateway: %v", err)
	}

	hub := feed.NewHub()
	agg := game.NewScoreAggregator(
		kv.Namespace("scoreboard"),
		kv.Namespace("blocked"),
		gw,
	)
	controller := game.NewController(game.ControllerConfig{
		GuildID:               cfg.GuildID,
		PublicOnly:            cfg.PublicOnly,
		Cooldown:              cfg.Cooldown,
		MaxTimeJitter:         cfg.MaxTimeJitter,
		ProbabilityMultiplier: cfg.ProbabilityMultiplier,
		MaxPoints:             cfg.MaxPoints,
		ReactionTimeout:       cfg.ReactionTimeout,
		AutoStart:             cfg.AutoStart,
		Channels:              cfg.Channels,
		Categories:            cfg.Categories,
		MarkerNames:           utils.MarkerNames(),
	}, gw, agg, kv.Namespace("config"), hub)

	commands := discord.NewCommands(cfg, gw, controller)
	commands.Register()

	if err := gw.Open(); err != nil {
		log.Fatalf("[main] Failed to connect to discord: %v", err)
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Printf("[main] Failed to close discord session: %v", err)
		}
	}()

	readyCtx, cancelReady := context.WithTimeout(ctx, readyTimeout)
	if err := gw.WaitUntilGuildReady(readyCtx); err != nil {
		cancelReady()
		log.Fatalf("[main] Guild %s never became ready: %v", cfg.GuildID, err)
	}
	cancelReady()

	controller.Bootstrap(ctx)

	srv := server.NewServer(cfg.Port, controller, hub)
	go func() {
		log.Printf("[main] HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[main] HTTP server error: %v", err)
			stop()
		}
	}()

	// The signal context winds the game loop down at the next phase
	// boundary; the persisted running flag stays untouched so the game
	// resumes automatically after a restart.
	<-ctx.Done()
	log.Printf("[main] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] HTTP shutdown error: %v", err)
	}
}

// openStore prefers Postgres and falls back to the in-memory store so the bot
// still runs (without persistence) when no database is configured.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Printf("[openStore] DATABASE_URL not set, scores will not survive restarts")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
