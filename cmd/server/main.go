package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/cache"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/config"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/database"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/handler"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/queue"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/router"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting and free-slot cache disabled")
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var events service.EventPublisher
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL)
		defer pub.Close()
		events = pub
	}

	deps := service.Deps{
		DB:                 db,
		Availability:       repository.NewAvailabilityRepo(db),
		Appointments:       repository.NewAppointmentRepo(db),
		Counters:           repository.NewDayCounterRepo(db),
		Doctors:            repository.NewDoctorRepo(db),
		Cache:              cache.NewFreeSlots(rdb, config.LoadCacheConfig()),
		Events:             events,
		Metrics:            metrics.NewSchedulerMetrics(reg),
		Log:                log,
		MaxRetries:         cfg.BookingMaxRetries,
		DefaultSlotMinutes: cfg.DefaultSlotMinutes,
	}
	bookingHandler := handler.NewBookingHandler(service.NewBookingService(deps))
	availabilityHandler := handler.NewAvailabilityHandler(service.NewAvailabilityService(deps))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	router.RegisterOps(e, db, reg)
	router.RegisterPublic(e, availabilityHandler)
	router.RegisterBookings(e, bookingHandler, availabilityHandler, cfg.JWTSecret, limiter)

	if cfg.EventsConsumerEnabled {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogPath: "logs/appointments.log", Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("appointment consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
