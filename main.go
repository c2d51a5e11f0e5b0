package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"monopolis-server/api"
	"monopolis-server/auth"
	"monopolis-server/cards"
	"monopolis-server/config"
	"monopolis-server/eventlog"
	"monopolis-server/game"
	"monopolis-server/loghandler"
	"monopolis-server/relay"
	"monopolis-server/rooms"
	"monopolis-server/storage"
)

func main() {
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, slog.LevelInfo)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; using environment variables", "tag", "main")
	}

	cfg := config.Load()
	slog.Info("configuration", "tag", "main",
		"port", cfg.WSPort, "stepDelayMS", cfg.StepDelayMS, "maxPlayers", cfg.MaxPlayers,
		"idleTimeoutSec", cfg.RoomIdleTimeoutSec, "eventLogCapacity", cfg.EventLogCapacity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var history storage.HistoryStore
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		defer store.Close()
		history = store
		slog.Info("turn history enabled", "tag", "main")
	}

	var events eventlog.Log = eventlog.NewMemory(cfg.EventLogCapacity)
	redisLog, err := eventlog.NewRedis(ctx, cfg.RedisURL, cfg.EventLogCapacity, 2*cfg.RoomIdleTimeout())
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	if redisLog != nil {
		defer redisLog.Close()
		events = redisLog
		slog.Info("event log in redis", "tag", "main")
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWKSURL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if verifier == nil {
		slog.Warn("JWT_SECRET and JWKS_URL are not set; device tokens are not checked", "tag", "main")
	}

	board := game.DefaultBoard()
	rm := rooms.NewManager(ctx, cfg, board, cards.Standard(), events, history)
	hub := relay.NewHub(cfg, rm, verifier)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           api.NewRouter(api.NewHandler(cfg, rm, history, verifier), hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("monopolis relay listening", "tag", "main", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
