package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewhub/crewhub/cmd/crewhub/cli"
	"github.com/crewhub/crewhub/internal/app"
	"github.com/crewhub/crewhub/internal/authz"
	"github.com/crewhub/crewhub/internal/manifest"
	"github.com/crewhub/crewhub/internal/observability"
	"github.com/crewhub/crewhub/internal/permissions"
	platformcache "github.com/crewhub/crewhub/internal/platform/cache"
	platformdb "github.com/crewhub/crewhub/internal/platform/db"
	"github.com/crewhub/crewhub/internal/roles"
	"github.com/crewhub/crewhub/internal/shared"
	"github.com/crewhub/crewhub/internal/users"
	"github.com/crewhub/crewhub/jobs"
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

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL)

	if len(os.Args) > 1 && os.Args[1] == "sync" {
		if len(os.Args) < 3 {
			logger.Error("usage: crewhub sync <manifest.yaml>")
			os.Exit(2)
		}
		jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()

		engine := manifest.NewEngine(manifest.NewRepository(pool), authzCache, logger)
		syncCmd := &cli.SyncCLI{Engine: engine, Jobs: jobsClient, Logger: logger, Out: os.Stdout}
		if err := syncCmd.Run(ctx, os.Args[2]); err != nil {
			logger.Error("manifest sync", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	permissionsRepo := permissions.NewRepository(pool)
	permissionsService := permissions.NewService(permissionsRepo, authzCache, logger)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, authzCache, logger)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, authzCache, logger)

	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo, authzCache)
	guards := authz.Middleware{Service: authzService, Logger: logger}

	permissionsHandler := permissions.NewHandler(logger, permissionsService, func(r *http.Request) bool {
		staffID, ok := shared.ActorFromContext(r.Context())
		if !ok {
			return false
		}
		elevated, err := authzService.HasPermission(r.Context(), staffID, permissions.ManageName)
		if err != nil {
			logger.Warn("elevation check", slog.Any("error", err))
			return false
		}
		return elevated
	})
	rolesHandler := roles.NewHandler(logger, rolesService)
	usersHandler := users.NewHandler(logger, usersService)
	authzHandler := authz.NewHandler(logger, authzService)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PermissionsHandler: permissionsHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		AuthzHandler:       authzHandler,
		Guards:             guards,
		Pool:               pool,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
