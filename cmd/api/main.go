package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "time/tzdata"

	"github.com/comitanigiacomo/kanso-care-engine/docs"
	adapterHTTP "github.com/comitanigiacomo/kanso-care-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-care-engine/internal/app"
	"github.com/comitanigiacomo/kanso-care-engine/internal/config"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-care-engine/internal/logger"
)

// @title                      Kanso Care Engine API
// @version                    1.0
// @description                Recurring plant-care reminders, task history and calendar.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.RequireJWT(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	docs.SwaggerInfo.BasePath = "/api/v1"

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	tokenService := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL, a.Users)
	authService := services.NewAuthService(a.Users, tokenService)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(authService),
		ReminderHandler: adapterHTTP.NewReminderHandler(a.ReminderService),
		TaskHandler:     adapterHTTP.NewTaskHandler(a.TaskService, a.Clock),
		CalendarHandler: adapterHTTP.NewCalendarHandler(a.CalendarService),
		StatsHandler:    adapterHTTP.NewStatsHandler(a.StatsService, a.Clock),
		TokenValidator:  tokenService,
		DB:              a.DB,
		Redis:           a.Redis,
		Metrics:         a.Metrics,
		Logger:          log,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimit:       cfg.RateLimit.Requests,
		RateWindow:      cfg.RateLimit.Window,
		StartTime:       startTime,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	if cfg.Scheduler.Enabled {
		if err := a.Worker.Start(workerCtx); err != nil {
			log.Fatal("scheduler failed to start", zap.Error(err))
		}
		// Today's run is idempotent, so a restart after the scheduled time still fills today.
		a.Worker.Enqueue(a.Clock.Today())
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server_listening",
			zap.String("addr", srv.Addr),
			zap.String("reference_timezone", a.Clock.Location().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown_signal_received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		stopWorker()
		select {
		case <-a.Worker.Done():
		case <-ctx.Done():
			log.Warn("scheduler did not stop in time")
		}
	}

	log.Info("server_stopped")
}
