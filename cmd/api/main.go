package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/artisansflow/portal/internal/api/http"
	"github.com/artisansflow/portal/internal/api/http/handlers"
	"github.com/artisansflow/portal/internal/config"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/observability"
	"github.com/artisansflow/portal/internal/persistence"
	"github.com/artisansflow/portal/internal/repository"
	"github.com/artisansflow/portal/internal/service"
	"github.com/artisansflow/portal/internal/session"
	"github.com/artisansflow/portal/internal/shell"
	"github.com/artisansflow/portal/internal/worker"
)

const visitorIdle = 3 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("identity provider is not configured", zap.Error(err))
	}

	routes, err := guard.LoadRouteTable(cfg.Guard.RoutesFile)
	if err != nil {
		logger.Fatal("failed to load route table", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, cfg.Postgres.MigrationsPath, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	profileRepo := repository.NewProfileRepository(pg.Pool)
	activityRepo := repository.NewActivityRepository(pg.Pool)
	roleCache := repository.NewRoleCache(redis.Client, cfg.Redis.RoleTTL())

	backend := identity.NewGoTrue(cfg.Identity.URL, cfg.Identity.AnonKey, cfg.Identity.Timeout())
	verifier := identity.NewTokenVerifier(cfg.Identity.JWTSecret, cfg.Identity.DevTokenTTL())

	registry := shell.NewRegistry(backend, profileRepo, roleCache, logger)
	defer registry.Close()

	feed := persistence.NewChangeFeed(pg.Pool, cfg.Postgres.ChangeChannel, logger)
	go feed.Run(ctx)
	stopListener := worker.NewProfileListener(feed, registry, roleCache, logger).Start()
	defer stopListener()

	limiter := httptransport.NewRateLimiter(cfg.Limits.AuthPerMinute, cfg.Limits.AuthBurst)
	go worker.RunSweeper(ctx, "browser_contexts", registry, cfg.Shell.SweepInterval(), cfg.Shell.IdleTimeout(), logger)
	go worker.RunSweeper(ctx, "auth_visitors", limiter, cfg.Shell.SweepInterval(), visitorIdle, logger)

	metrics := observability.NewMetrics()
	accounts := service.NewAccountService(service.AccountDependencies{
		Backend:    backend,
		Profiles:   profileRepo,
		Activity:   activityRepo,
		Routes:     routes,
		RenderWait: cfg.Guard.RenderWait(),
		Logger:     logger,
	})
	admin := service.NewAdminService(profileRepo, activityRepo, logger)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics: handlers.NewMetricsHandler(metrics),
		Auth: handlers.NewAuthHandler(accounts, routes, handlers.SessionCookies{
			Access:  cfg.Identity.AccessCookie,
			Refresh: cfg.Identity.RefreshCookie,
			Secure:  cfg.Identity.CookieSecure,
		}),
		Pages:    handlers.NewPagesHandler(),
		Settings: handlers.NewSettingsHandler(accounts),
		Admin:    handlers.NewAdminHandler(admin),
		Session:  identity.SessionMiddleware(verifier, cfg.Identity.AccessCookie, cfg.Identity.RefreshCookie),
		Shell: shell.Middleware(registry, shell.CookieOptions{
			Name:   cfg.Guard.ContextCookie,
			TTL:    cfg.Guard.ContextCookieTTL(),
			Secure: cfg.Identity.CookieSecure,
		}),
		Edge:        guard.EdgeGate(routes, session.NewCachedRoles(roleCache, logger), metrics, logger),
		Render:      guard.NewRenderGate(routes, cfg.Guard.RenderWait(), metrics, logger),
		AuthLimiter: limiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
