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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/edunirix/portal/internal/account"
	"github.com/edunirix/portal/internal/app"
	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/authclient"
	"github.com/edunirix/portal/internal/login"
	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/observability"
	"github.com/edunirix/portal/internal/platform/cache"
	"github.com/edunirix/portal/internal/platform/db"
	"github.com/edunirix/portal/internal/session"
	"github.com/edunirix/portal/internal/shared"
	"github.com/edunirix/portal/internal/view"
	"github.com/edunirix/portal/jobs"
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

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("portal stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := session.NewManager(redisClient, session.Options{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.IsProduction(),
	})
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	routes := navigation.Routes{PasswordChange: cfg.PasswordChangePath, Dashboard: cfg.DashboardPath}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	var apiHandler *auth.Handler
	if cfg.AuthAPIEnabled {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		jobClient := jobs.NewRedisClient(redisOpts, cfg.AppPublicURL+cfg.PasswordChangePath)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()

		service := auth.NewService(auth.NewRepository(pool), auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL))
		apiHandler = auth.NewHandler(logger, service, auth.HandlerConfig{
			Notifier:   jobClient,
			LoginLimit: cfg.LoginRateLimit,
		})
	}

	client := authclient.New(authclient.Config{
		LoginURL:          cfg.LoginURL(),
		ChangePasswordURL: cfg.ChangePasswordURL(),
		Timeout:           cfg.AuthTimeout,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Sessions: sessions,
		CSRF:     csrf,
		Routes:   routes,
		LoginHandler: login.NewHandler(login.HandlerParams{
			Logger:    logger,
			Client:    client,
			Templates: templates,
			Sessions:  sessions,
			CSRF:      csrf,
			Routes:    routes,
			Metrics:   metrics,
		}),
		AccountHandler: account.NewHandler(account.HandlerParams{
			Logger:    logger,
			Client:    client,
			Templates: templates,
			CSRF:      csrf,
			Routes:    routes,
		}),
		AuthAPIHandler: apiHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
