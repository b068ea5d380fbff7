package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/api"
	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/config"
	"github.com/AndreEgeli/theAtlasBoard/notify"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
	"github.com/AndreEgeli/theAtlasBoard/resources"
	"github.com/AndreEgeli/theAtlasBoard/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InitStorage {
		if err := storage.EnsureTables(ctx, cfg.StorageConnection, cfg.Tables, cfg.ChangeQueue); err != nil {
			log.Fatalf("storage init: %v", err)
		}
	}
	store, err := storage.New(cfg.StorageConnection, cfg.Tables, cfg.ChangeQueue, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	rc := redis.NewClient(config.RedisOptions(cfg.RedisConnection))
	defer rc.Close()
	backend := storage.NewCache(store, rc, cfg.CacheTTL, logger)

	qc := cache.NewQueryCache(cache.Options{RefreshTimeout: cfg.RefreshTimeout, Logger: logger})
	defer qc.Close()
	resources.RegisterQueries(qc, backend)
	engine := optimistic.NewEngine(qc, logger)

	go notify.Subscribe(ctx, logger, rc, cfg.ChangeChannel, qc)
	if cfg.RelayEnabled {
		queue, err := notify.NewQueue(cfg.StorageConnection, cfg.ChangeQueue)
		if err != nil {
			log.Fatalf("change queue: %v", err)
		}
		relay := notify.NewRelay(queue, rc, cfg.ChangeChannel, logger)
		relay.Idle = cfg.RelayIdle
		go relay.Run(ctx)
	}

	e := echo.New()
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding, api.HeaderIdempotencyKey},
	}))
	e.Use(api.RequestMetrics(logger))
	e.Use(api.GzipRequestMiddleware())
	e.Use(api.IdempotencyMiddleware(api.NewRedisDeduper(rc, cfg.DeduperTTL), cfg.UserID, logger))
	api.Register(e, api.NewServer(qc, engine, backend, cfg.UserID, logger))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("shutdown")
		}
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("board client listening")
	if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal(err)
	}
}
