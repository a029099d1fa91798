package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/devfloor/waitline/internal/cache"
	"github.com/devfloor/waitline/internal/config"
	"github.com/devfloor/waitline/internal/database"
	"github.com/devfloor/waitline/internal/handler"
	"github.com/devfloor/waitline/internal/lock"
	"github.com/devfloor/waitline/internal/metrics"
	mw "github.com/devfloor/waitline/internal/middleware"
	"github.com/devfloor/waitline/internal/queue"
	"github.com/devfloor/waitline/internal/repository"
	"github.com/devfloor/waitline/internal/router"
	"github.com/devfloor/waitline/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	defer db.Close()
	if err := database.CreateTables(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("schema creation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs the distributed lock, the slot counter and the rate
	// limiter.  Without it a single instance still works: locking falls
	// back to in-process and the counter fast path is skipped.
	rdb := config.NewRedisClient()
	var locker lock.Locker
	var counter service.CounterCache
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb)
		counter = cache.NewSlotCounter(rdb)
	} else {
		log.Warn().Msg("redis unavailable, using in-process locking; do not scale horizontally")
		locker = lock.NewLocalLocker()
	}

	// Notifications are fire-and-forget; without a broker they are
	// dropped and the engines behave identically.
	var notifier service.NotificationSender = service.NopNotifier{}
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		notifier = pub
		go queue.StartConsumer(ctx, cfg.AMQPURL, log)
	}

	metrics.Register()

	users := repository.NewUserRepo(db)
	stores := repository.NewStoreRepo(db)
	slotRows := repository.NewSlotRepo(db)
	entries := repository.NewQueueRepo(db)
	reservations := repository.NewReservationRepo(db)

	slots := service.NewSlotStore(slotRows, counter, log)
	engine := service.NewReservationEngine(locker, slots, reservations, notifier, log, cfg.LockWait, cfg.LockLease)
	advancer := service.NewQueueAdvancer(entries, notifier, log)
	waiting := service.NewWaitingQueue(locker, stores, entries, advancer, notifier, log, cfg.LockWait, cfg.LockLease)

	scheduler := service.NewTimeoutScheduler(locker, entries, waiting, log, cfg.SchedulerInterval, cfg.CalledTimeout)
	go scheduler.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	var rateLimit echo.MiddlewareFunc
	if rdb != nil {
		rateLimit = mw.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	}
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users),
		Reservation: handler.NewReservationHandler(engine, slots),
		Waiting:     handler.NewWaitingHandler(waiting),
		Staff:       handler.NewStaffHandler(stores, slots, waiting),
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   rateLimit,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
