// Command server runs the movie ticket booking API: the HTTP
// surface, the seat reservation engine, the payment coordinator and
// the expiry reaper, wired together from environment configuration.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/logger"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/reaper"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; deployments set env directly

	cfg := config.Load()

	logger, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(migrateCtx, db); err != nil {
		cancelMigrate()
		logger.Fatal("schema migration failed", zap.Error(err))
	}
	cancelMigrate()

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	screens := repository.NewScreenRepo(db)
	shows := repository.NewShowRepo(db)
	showSeats := repository.NewShowSeatRepo(db)

	var bookings repository.BookingStore = repository.NewBookingRepo(db)
	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb != nil {
		bookings = repository.NewCachedBookingStore(bookings, rdb, cfg.BookingCacheTTL)
		logger.Info("booking read cache enabled", zap.Duration("ttl", cfg.BookingCacheTTL))
	} else {
		logger.Warn("redis unavailable, booking cache and rate limiting disabled")
	}

	// The engine and the reaper must share one lock registry so their
	// per-show critical sections actually exclude each other.
	locks := lock.NewRegistry()
	eng := engine.New(showSeats, bookings, shows, locks, logger, engine.Config{
		LockDuration: cfg.LockDuration,
		CancelGrace:  cfg.CancelGrace,
	})

	gateway, err := payment.NewGateway(payment.Options{
		Kind:            cfg.PaymentGateway,
		StripeSecretKey: cfg.StripeSecretKey,
		MockSuccessRate: cfg.MockSuccessRate,
	})
	if err != nil {
		logger.Fatal("payment gateway init failed", zap.Error(err))
	}
	logger.Info("payment gateway ready", zap.String("gateway", gateway.Name()))

	coordinator := payment.New(gateway, eng, bookings, logger, payment.Config{
		MaxRetries: cfg.MaxPaymentRetries,
		Backoff:    cfg.PaymentRetryBackoff,
	})
	eng.SetRefunder(coordinator)
	if err := coordinator.Start(); err != nil {
		logger.Fatal("payment coordinator start failed", zap.Error(err))
	}

	var consumer *queue.Consumer
	if cfg.AMQPUrl != "" {
		publisher := queue.NewPublisher(cfg.AMQPUrl, logger)
		eng.SetEvents(publisher)
		consumer = queue.NewConsumer(cfg.AMQPUrl, logger)
		consumer.Start()
	} else {
		logger.Warn("RABBITMQ_URL not set, booking events disabled")
	}

	sweeper := reaper.New(showSeats, bookings, locks, logger, reaper.Config{
		Interval: cfg.CleanupInterval,
	})
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("reaper start failed", zap.Error(err))
	}

	// HTTP surface.
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	healthH := handler.NewHealthHandler(db)
	authH := handler.NewAuthHandler(cfg, users, tokens)
	bookingH := handler.NewBookingHandler(eng, coordinator, bookings)
	showH := handler.NewShowHandler(eng, shows, movies, screens, showSeats, bookings)
	catalogH := handler.NewCatalogHandler(movies, screens)

	// Redis-backed middleware: the catalog response cache on the
	// browse routes and the token bucket on the booking routes. Both
	// collapse to nothing when Redis is down.
	var browseMW, bookingMW []echo.MiddlewareFunc
	if rdb != nil {
		if ccCfg := config.LoadCacheConfig(); ccCfg.Enabled {
			browseMW = append(browseMW, middleware.NewCatalogCache(ccCfg, rdb, logger))
		}
		if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled {
			bookingMW = append(bookingMW, middleware.NewTokenBucket(rlCfg, rdb, logger))
		}
	}

	router.RegisterRoutes(e, healthH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterBrowse(e, showH, catalogH, browseMW...)
	router.RegisterAdmin(e, showH, catalogH, cfg.JWTSecret)
	router.RegisterBooking(e, bookingH, cfg.JWTSecret, bookingMW...)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	// Intake is closed; now drain the workers that still mutate
	// bookings, then the event pipeline.
	sweeper.Stop()
	coordinator.Stop()
	if consumer != nil {
		consumer.Stop()
	}
	logger.Info("server stopped")
}
