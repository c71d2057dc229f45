package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth_service/internal/auth"
	"auth_service/internal/config"
	"auth_service/internal/handler"
	"auth_service/internal/limiter"
	"auth_service/internal/service"
	"auth_service/internal/storage"

	"github.com/redis/go-redis/v9"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	shutdownTimeout = 10 * time.Second
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the yaml config")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting auth service", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("auth service failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	lgr.Info("auth service stopped")
}

// run serves until ctx is cancelled or the server fails. Every resource it
// opens is released before it returns.
func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	const op = "main.run"

	//INIT CORE
	hasher, err := auth.NewPasswordHasher(cfg.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte(cfg.Tokens.AccessSecret),
		RefreshSecret: []byte(cfg.Tokens.RefreshSecret),
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        cfg.Tokens.Issuer,
	}, time.Now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	//INIT DB
	st, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer st.Close()

	svc := service.NewService(st, hasher, issuer, time.Now)

	var rl handler.RateLimiter
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer rdb.Close()

		rl = limiter.NewRedisLimiter(rdb, limiter.Config{
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
			Prefix:      "auth_service",
		})
	} else {
		lgr.Warn("rate limiting disabled: rate_limit.redis_addr is empty")
	}

	h := handler.NewHandler(svc, auth.NewGuard(issuer), rl, handler.CookieConfig{
		Secure:     cfg.Cookies.Secure,
		Domain:     cfg.Cookies.Domain,
		AccessTTL:  cfg.Tokens.AccessTTL,
		RefreshTTL: cfg.Tokens.RefreshTTL,
	}, lgr)

	//INIT SERVER
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case <-ctx.Done():
	}
	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}

	return nil
}

func openStorage(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	if cfg.Driver == config.DriverSQLite {
		st, err := storage.NewSQLiteStorage(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	if err := storage.MigratePostgres(ctx, cfg.DbURL); err != nil {
		return nil, err
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DbURL)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
