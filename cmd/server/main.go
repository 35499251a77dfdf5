package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/forecast"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/jobs"
	"github.com/iliyamo/parking-reservation/internal/ledger"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/retry"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	level := glog.INFO
	if cfg.Env == "dev" {
		level = glog.DEBUG
	}
	newLogger := func(prefix string) *glog.Logger {
		l := glog.New(prefix)
		l.SetLevel(level)
		return l
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, pinger, closeStore := openStore(ctx, cfg, newLogger("store"))
	defer closeStore()

	var rdb *redis.Client
	if cfg.Forecast.CacheBackend == "redis" || cfg.RateLimit.Enabled {
		rdb = config.NewRedisClient(config.LoadRedisConfig())
		if rdb == nil {
			log.Printf("redis unavailable; forecast cache in-process, rate limiting off")
		} else {
			defer rdb.Close()
		}
	}

	publisher, closePublisher := openPublisher(cfg.Events)
	defer closePublisher()

	rate, err := decimal.NewFromString(cfg.Engine.RatePerHour)
	if err != nil || !rate.IsPositive() {
		log.Fatalf("invalid ENGINE_RATE_PER_HOUR %q", cfg.Engine.RatePerHour)
	}

	l := ledger.New(store, newLogger("ledger"))
	svc := service.NewReservationService(store, l, service.Options{
		RatePerHour: rate,
		Retry: retry.Policy{
			MaxAttempts:    cfg.Engine.RetryMaxAttempts,
			BaseDelay:      cfg.Engine.RetryBaseDelay,
			AttemptTimeout: cfg.Engine.AttemptTimeout,
		},
		Publisher:   publisher,
		AsyncEvents: true,
		Logger:      newLogger("reservation"),
	})
	defer svc.Wait()

	var cache forecast.Cache = forecast.NewMemoryCache(cfg.Forecast.CacheTTL, nil)
	if cfg.Forecast.CacheBackend == "redis" && rdb != nil {
		cache = forecast.NewRedisCache(rdb, cfg.Forecast.CacheTTL, cfg.Forecast.CachePrefix, newLogger("forecast-cache"))
	}
	registry := forecast.NewRegistry(cfg.Forecast.ModelPath)
	if err := registry.Load(); err != nil {
		log.Printf("forecast models not loaded: %v", err)
	}
	engine := forecast.NewEngine(store, cache, registry, forecast.Config{
		HistoryDays: cfg.Forecast.HistoryDays,
		PatternDays: cfg.Forecast.PatternDays,
		ModelOrder:  cfg.Forecast.ModelOrder,
		Jitter:      cfg.Forecast.Jitter,
	}, newLogger("forecast"))

	if cfg.Forecast.RefitCron != "" {
		sched, err := jobs.NewScheduler(engine, cfg.Forecast.RefitCron, cfg.Forecast.WarmHours, newLogger("jobs"))
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			if err := sched.RunOnce(ctx); err != nil {
				log.Printf("initial forecast maintenance: %v", err)
			}
		}()
		sched.Start()
		defer sched.Stop()
	}

	if cfg.Events.Backend == "rabbitmq" && cfg.Events.AuditConsumer {
		consumer := &queue.AuditConsumer{
			URL:     cfg.Events.RabbitURL,
			Queue:   cfg.Events.Queue,
			LogPath: cfg.Events.AuditLogPath,
			Logger:  newLogger("audit-consumer"),
		}
		go func() { _ = consumer.Run(ctx) }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(level)
	router.RegisterRoutes(e, router.Deps{
		Reservations: handler.NewReservationHandler(svc),
		Lots:         handler.NewLotHandler(store, l),
		Forecasts:    handler.NewForecastHandler(engine),
		DB:           pinger,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    middleware.RateLimit(cfg.RateLimit, rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreBackend)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := registry.Save(); err != nil {
		log.Printf("save forecast models: %v", err)
	}
}

// openStore returns the configured store, a pinger for readiness (nil for
// memory) and a close function.
func openStore(ctx context.Context, cfg config.Config, logger *glog.Logger) (repository.Store, handler.Pinger, func()) {
	if cfg.StoreBackend == config.StoreMemory {
		var lots = database.DefaultLots()
		if !cfg.SeedLots {
			lots = nil
		}
		s := repository.NewMemoryStore(repository.MemoryOptions{
			MaxConns:       cfg.DBMaxConns,
			AcquireTimeout: cfg.Engine.AcquireTimeout,
			LockTimeout:    cfg.Engine.LockTimeout,
		}, lots...)
		return s, nil, func() {}
	}

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxConns:        cfg.DBMaxConns,
		LockWaitSeconds: cfg.DBLockWait,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	orm, err := database.NewORM(db, cfg.Env)
	if err != nil {
		log.Fatalf("open gorm: %v", err)
	}
	if err := database.Migrate(ctx, orm); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if cfg.SeedLots {
		n, err := database.SeedLots(ctx, orm, database.DefaultLots())
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		if n > 0 {
			logger.Infof("seeded %d parking lots", n)
		}
	}
	return repository.NewMySQLStore(db, orm, cfg.Engine.AcquireTimeout), db, func() { _ = db.Close() }
}

// openPublisher selects the reservation event backend.
func openPublisher(ec config.EventsConfig) (queue.Publisher, func()) {
	switch ec.Backend {
	case "rabbitmq":
		return queue.NewRabbitPublisher(ec.RabbitURL, ec.Queue), func() {}
	case "kafka":
		p := queue.NewKafkaPublisher(ec.KafkaBrokers, ec.Queue)
		return p, func() { _ = p.Close() }
	default:
		return queue.NopPublisher{}, func() {}
	}
}
