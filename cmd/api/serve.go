package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medischedule-api/internal/app"
	"github.com/jwalitptl/medischedule-api/internal/config"
	"github.com/jwalitptl/medischedule-api/internal/email"
	adminhandler "github.com/jwalitptl/medischedule-api/internal/handler/admin"
	aihandler "github.com/jwalitptl/medischedule-api/internal/handler/ai"
	appointmenthandler "github.com/jwalitptl/medischedule-api/internal/handler/appointment"
	authhandler "github.com/jwalitptl/medischedule-api/internal/handler/auth"
	chathandler "github.com/jwalitptl/medischedule-api/internal/handler/chat"
	"github.com/jwalitptl/medischedule-api/internal/handler/departmenthead"
	directoryhandler "github.com/jwalitptl/medischedule-api/internal/handler/directory"
	"github.com/jwalitptl/medischedule-api/internal/handler/health"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/router"
	adminService "github.com/jwalitptl/medischedule-api/internal/service/admin"
	aiService "github.com/jwalitptl/medischedule-api/internal/service/ai"
	appointmentService "github.com/jwalitptl/medischedule-api/internal/service/appointment"
	authService "github.com/jwalitptl/medischedule-api/internal/service/auth"
	chatService "github.com/jwalitptl/medischedule-api/internal/service/chat"
	directoryService "github.com/jwalitptl/medischedule-api/internal/service/directory"
	eventService "github.com/jwalitptl/medischedule-api/internal/service/event"
	rbacService "github.com/jwalitptl/medischedule-api/internal/service/rbac"
	"github.com/jwalitptl/medischedule-api/pkg/auth"
	"github.com/jwalitptl/medischedule-api/pkg/llm"
	"github.com/jwalitptl/medischedule-api/pkg/logger"
	"github.com/jwalitptl/medischedule-api/pkg/messaging"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
	"github.com/jwalitptl/medischedule-api/pkg/security"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

// services holds everything the HTTP layer and the seed commands need.
type services struct {
	authz       *rbacService.Service
	auth        *authService.Service
	directory   *directoryService.Service
	appointment *appointmentService.Service
	chat        *chatService.Service
	ai          *aiService.Service
	admin       *adminService.Service
}

func buildServices(cfg *config.Config, store *repository.Store, broker messaging.Broker, m *metrics.Metrics) *services {
	tokens := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Lifetime())
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, m)
	advisor := llm.NewAdvisor(llm.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, m)
	events := eventService.NewService(broker, cfg.Redis.Channel, m)

	authz := rbacService.NewService(store.Users, store.Doctors, tokens)
	authSvc := authService.NewService(store, hasher, tokens, mailer)
	directorySvc := directoryService.NewService(store, authz, events)

	return &services{
		authz:       authz,
		auth:        authSvc,
		directory:   directorySvc,
		appointment: appointmentService.NewService(store, events),
		chat:        chatService.NewService(store, advisor, events),
		ai:          aiService.NewService(store.AIChats, advisor, directorySvc, cfg.AI.HistoryLimit),
		admin:       adminService.NewService(store, authSvc, directorySvc, authz, events),
	}
}

func runServer(cfg *config.Config) error {
	baseLogger := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	broker, err := app.OpenBroker(ctx, cfg.Redis, baseLogger)
	if err != nil {
		return err
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, cfg.Metrics.Namespace)

	svc := buildServices(cfg, store, broker, m)

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowOrigins
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(svc.authz),
		router.Handlers{
			Auth:           authhandler.NewHandler(svc.auth),
			Directory:      directoryhandler.NewHandler(svc.directory),
			Appointment:    appointmenthandler.NewHandler(svc.appointment),
			Chat:           chathandler.NewHandler(svc.chat),
			Admin:          adminhandler.NewHandler(svc.admin, svc.directory),
			DepartmentHead: departmenthead.NewHandler(svc.admin, svc.directory),
			AI:             aihandler.NewHandler(svc.ai, svc.chat),
			Health:         health.NewHandler(store.Users),
		},
		registry,
		router.RouterConfig{
			RateLimit:        rate.Limit(cfg.RateLimit.RPS),
			RateBurst:        cfg.RateLimit.Burst,
			AIRateLimit:      rate.Limit(cfg.RateLimit.AIRPS),
			AIRateBurst:      cfg.RateLimit.AIBurst,
			CORSConfig:       cors,
			MetricsNamespace: cfg.Metrics.Namespace,
			RequestTimeout:   cfg.Server.RequestTimeout,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server exited")
	return nil
}
