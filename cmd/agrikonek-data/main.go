package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/config"
	"agrikonek/internal/delivery"
	httpapi "agrikonek/internal/http"
	"agrikonek/internal/platform/database"
	"agrikonek/internal/platform/logger"
	"agrikonek/internal/platform/mqtt"
	"agrikonek/internal/platform/redisx"
	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
	"agrikonek/internal/service"
	"agrikonek/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "agrikonek-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	// Postgres when enabled and reachable; in-memory repositories otherwise
	var db *sql.DB
	var repos *repository.Repositories
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			repos = repository.New(db)
			log.Info("DB enabled for agrikonek-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}
	if repos == nil {
		repos = repository.NewMemory(repository.NewMemoryDB())
	}

	var kv store.KV = store.NewMemoryKV()
	var audit service.AuditLog
	var redisClient *redisx.Client
	if cfg.Redis.Enabled {
		redisClient = redisx.NewClient(&cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisx.Ping(pingCtx, redisClient)
		cancel()
		if err != nil {
			log.Warn("Redis unreachable, idempotency keys stay in process memory", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			kv = store.NewRedisKV(redisClient)
			audit = redisx.NewStreamPublisher(redisClient, cfg.Notify.Stream, 100000)
		}
	}

	dcfg := service.DispatcherConfig{Workers: cfg.Notify.Workers, Queue: cfg.Notify.Queue, Audit: audit}
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := mqtt.NewClient(&cfg.MQTT, log); err == nil {
			mqttClient = c
			dcfg.Push = delivery.NewMQTTPusher(c, cfg.MQTT.TopicPrefix, log.Named("push"))
		} else {
			log.Warn("MQTT unavailable, push channel disabled", zap.Error(err))
		}
	}
	if cfg.Mail.Enabled {
		dcfg.Mail = delivery.NewMailClient(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.From, log.Named("mail"))
	}
	dispatcher := service.NewDispatcher(repos, dcfg, log.Named("dispatcher"))

	var fallback *seed.Provider
	if cfg.SeedFallbackEnabled {
		fallback, err = seed.Default()
		if err != nil {
			log.Fatal("Failed to load bundled region dataset", zap.Error(err))
		}
	}
	services := service.New(repos, fallback, dispatcher, log)

	auth := httpapi.NewAuthenticator(cfg.Auth)
	router := httpapi.NewRouter(log.Named("http"))
	router.Use(
		auth.Middleware,
		httpapi.Provision(services.Profiles, log.Named("http")),
		httpapi.AccessLog(log.Named("access")),
		httpapi.Timeout(cfg.HTTP.RequestTimeout),
		httpapi.Idempotent(store.NewIdempotency(kv, cfg.IdempotencyTTL), log.Named("idempotency")),
	)
	router.RegisterAPI(services)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	// in-flight requests are done, so nothing enqueues after this
	dispatcher.Close()
	if mqttClient != nil {
		mqttClient.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = database.Close(db)
	}
}
