package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chatpulse/backend/internal/api/handler"
	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/config"
	"chatpulse/backend/internal/fanout"
	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/observability"
	"chatpulse/backend/internal/presence"
	"chatpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// One Redis client for presence, relay and health checks.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := storage.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting ChatPulse Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := storage.NewStorageService(db)
	store := presence.NewStore(rdb)
	registry := chathub.NewRegistry(metrics)

	var publisher fanout.Publisher = chathub.LocalPublisher{Registry: registry}
	if cfg.RelayEnabled {
		relay := chathub.NewRelay(rdb, registry)
		if err := relay.Start(ctx); err != nil {
			log.Fatalf("Failed to start Redis relay: %v", err)
		}
		publisher = relay
		log.Printf("INFO: cross-instance relay enabled on %s", chathub.RelayChannel)
	}

	dispatcher := fanout.NewDispatcher(publisher, store, s, metrics, fanout.Options{
		Workers:      cfg.FanoutWorkers,
		QueueSize:    cfg.FanoutQueueSize,
		Timeout:      cfg.FanoutTimeout,
		OnlineFilter: cfg.FanoutOnlineFilter,
	})
	s.SetCommitHook(func(m models.CommittedMessage) { dispatcher.Enqueue(m) })

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	r := gin.Default()
	h := handler.NewHandler(handler.Deps{
		Registry:       registry,
		Presence:       store,
		Storage:        s,
		Auth:           handler.NewAuthenticator(cfg.JWTSecret),
		Redis:          rdb,
		Metrics:        metrics,
		Gatherer:       reg,
		RoomTTL:        cfg.RoomPresenceTTL,
		OnlineTTL:      cfg.OnlinePresenceTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	h.Routes(r)

	// No WriteTimeout: it would cut long-lived WebSocket connections.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Printf("INFO: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	// Hijacked WebSocket connections are not tracked by Shutdown.
	registry.Shutdown()
	// Let sessions run their teardown so room markers are cleared now.
	if err := registry.WaitEmpty(shutdownCtx); err != nil {
		log.Printf("WARNING: %d channels still open at exit: %v", registry.ChannelCount(), err)
	}
	<-dispatchDone
	log.Println("Shutdown complete.")
}
