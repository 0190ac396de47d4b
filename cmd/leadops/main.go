package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niveshya/leadops/internal/app"
	"github.com/niveshya/leadops/internal/auth"
	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/observability"
	"github.com/niveshya/leadops/internal/platform/cache"
	"github.com/niveshya/leadops/internal/platform/db"
	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
	"github.com/niveshya/leadops/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	usersService := users.NewService(users.NewRepository(dbpool))
	rbacService := rbac.NewService(rbac.NewRepository(dbpool), usersService, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(
		authRepo,
		rbacService,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		auth.NewRedisRevocationList(redisClient),
		logger,
	)

	if cfg.RBACBootstrap {
		if err := bootstrapRBAC(ctx, cfg, authRepo, rbacService, logger); err != nil {
			logger.Error("rbac bootstrap", slog.Any("error", err))
			os.Exit(1)
		}
	}

	audioService, err := meetings.NewAudioService(meetings.NewAudioRepository(dbpool), cfg.AudioDir, cfg.AudioMaxBytes, logger)
	if err != nil {
		logger.Error("init audio storage", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  auth.Middleware{Service: authService, Logger: logger},
		AuthHandler:     auth.NewHandler(logger, authService),
		RBACHandler:     rbac.NewHandler(logger, rbacService),
		UsersHandler:    users.NewHandler(logger, usersService, rbacMiddleware),
		MeetingsHandler: meetings.NewHandler(logger, audioService, rbacMiddleware),
		Metrics:         metrics,
		HealthCheck:     healthCheck(dbpool),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// bootstrapRBAC seeds the catalog and grants Super Admin to the configured account.
// A configured email with no matching account is logged and skipped.
func bootstrapRBAC(ctx context.Context, cfg *app.Config, accounts auth.Repository, svc *rbac.Service, logger *slog.Logger) error {
	var opts rbac.BootstrapOptions
	if cfg.RBACSuperAdminEmail != "" {
		user, err := accounts.FindByEmail(ctx, cfg.RBACSuperAdminEmail)
		switch {
		case err == nil:
			opts.SuperAdminUserID = user.ID
		case errors.Is(err, shared.ErrNotFound):
			logger.Warn("super admin account not found", slog.String("email", cfg.RBACSuperAdminEmail))
		default:
			return err
		}
	}
	return svc.Bootstrap(ctx, opts)
}

func healthCheck(pool *pgxpool.Pool) func(*http.Request) error {
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}
