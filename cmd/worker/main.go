package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/app"
	"github.com/jwalitptl/medischedule-api/internal/config"
	"github.com/jwalitptl/medischedule-api/internal/email"
	"github.com/jwalitptl/medischedule-api/internal/handler/health"
	"github.com/jwalitptl/medischedule-api/internal/worker"
	"github.com/jwalitptl/medischedule-api/pkg/logger"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("health-addr", ":8081", "address of the health and metrics listener")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		log.Error().Err(err).Msg("Worker failed")
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	baseLogger := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if cfg.Redis.URL == "" {
		return errors.New("the notification worker needs redis.url")
	}

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
	m := metrics.New(registry, cfg.Metrics.Namespace)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, m)

	notifier := worker.NewNotifier(broker, store.Users, mailer, worker.NotifierConfig{
		Channel:       cfg.Redis.Channel,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
	}, m)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(broker).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: addr, Handler: engine, ReadTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health server failed")
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := notifier.Start(ctx); err != nil {
		return fmt.Errorf("notification worker stopped: %w", err)
	}
	return nil
}
