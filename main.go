package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/outing-pick/auth"
	"github.com/danielhkuo/outing-pick/cliparse"
	"github.com/danielhkuo/outing-pick/db"
	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/middleware"
	"github.com/danielhkuo/outing-pick/ratelimit"
	"github.com/danielhkuo/outing-pick/router"
	"github.com/danielhkuo/outing-pick/store"
	"github.com/danielhkuo/outing-pick/trigger"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliparse.Config) error {
	// Connect to the database
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(ctx, dbConn); err != nil {
		return err
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	st := store.New(dbConn)
	identity := auth.VoterIdentity{Salt: cfg.VoterSalt}
	plurality := engine.NewPluralityResolver(st, identity)
	ranked := engine.NewRankedResolver(st, st, identity)

	svc := router.Services{
		Store:     st,
		Plurality: plurality,
		Ranked:    ranked,
	}

	if cfg.RedisURL != "" {
		client, err := ratelimit.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		svc.Limiter = middleware.Limiter(ratelimit.New(client, cfg.RateLimitPerMinute, cfg.RateLimitBurst))
		slog.Info("Rate limiting enabled", "per_minute", cfg.RateLimitPerMinute, "burst", cfg.RateLimitBurst)
	}

	server := &http.Server{
		Handler:           middleware.CORS(router.NewRouter(svc, cfg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.SweepSchedule != "" {
		sweeper := trigger.New(st, plurality, ranked, cfg.SweepWorkers)
		if err := sweeper.Start(gctx, cfg.SweepSchedule); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			sweeper.Stop()
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server closed", "error", err)
	return err
}
