package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mission_rewards/internal/api"
	"mission_rewards/internal/middleware"
	"mission_rewards/internal/notify"
	"mission_rewards/internal/scheduler"
	"mission_rewards/pkg/auth"
	"mission_rewards/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket hub and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), opts.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	zapLogger := logger.Logger()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := notify.NewHub()
	notifiers := notify.Multi{hub}

	var alerts *notify.ReviewAlerts
	if cfg.Notify.BotToken != "" {
		alerts, err = notify.NewReviewAlerts(cfg.Notify)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, alerts)
	} else {
		zapLogger.Info("review alerts disabled, no bot token configured")
	}
	a.runs.SetNotifier(notifiers)
	a.ledger.SetNotifier(notifiers)

	sched, err := scheduler.New(cfg.Scheduler, a.runs, a.limiter)
	if err != nil {
		return err
	}

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)
	if cfg.TelegramAuth.DebugMode {
		zapLogger.Warn("telegram init data signatures are not checked in debug mode")
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
	}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Idempotency-Key"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	api.NewRunRoutes(v1, a.runs, hub, telegramAuth)
	api.NewWalletRoutes(v1, a.wallets, telegramAuth)
	api.NewReviewRoutes(v1, a.gateway, a.tokens, middleware.NewAuthorization(a.repo))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLogger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Shutdown()
	})

	if alerts != nil {
		g.Go(func() error {
			alerts.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
