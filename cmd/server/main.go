package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secretmessag.es/config"
	"secretmessag.es/internal/api"
	"secretmessag.es/internal/message"
	"secretmessag.es/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Optional .env for local development; env vars override the YAML file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := message.NewService(st, slog.Default())
	router := api.SetupRouter(svc, cfg, slog.Default())

	if cfg.Housekeeping.Interval > 0 {
		go sweepLoop(ctx, svc, cfg.Housekeeping.Interval)
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server started",
		"addr", cfg.Addr(),
		"base_url", cfg.Server.BaseURL,
		"store", cfg.Store.Type,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func initStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// sweepLoop is the in-process counterpart of the authenticated housekeeping
// endpoint. Both may fire around the same moment; the sweep is idempotent, so
// the overlap is harmless.
func sweepLoop(ctx context.Context, svc *message.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.Housekeeping(ctx)
			if err != nil {
				slog.Error("background sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("background sweep", "deleted", deleted)
			}
		}
	}
}
