package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dialdesk/acd/internal/aggregator"
	"github.com/dialdesk/acd/internal/api"
	"github.com/dialdesk/acd/internal/auth"
	"github.com/dialdesk/acd/internal/cache"
	"github.com/dialdesk/acd/internal/config"
	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/directory"
	"github.com/dialdesk/acd/internal/engine"
	"github.com/dialdesk/acd/internal/event"
	"github.com/dialdesk/acd/internal/qlog"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/rules"
	"github.com/dialdesk/acd/internal/statebus"
	"github.com/dialdesk/acd/internal/storage"
	"github.com/dialdesk/acd/internal/telephony"
	"github.com/dialdesk/acd/internal/ticker"
	"github.com/dialdesk/acd/internal/websocket"
	"github.com/dialdesk/acd/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting acd dispatch server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue log store: DynamoDB when configured, noop otherwise
	var store storage.Store
	if cfg.DynamoEndpoint != "" || os.Getenv("AWS_REGION") != "" {
		s, err := storage.NewStore(ctx, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize queue log store")
		}
		store = s
	} else {
		log.Warn().Msg("no dynamo configuration, queue log persistence disabled")
		store = storage.NewNoopStore()
	}
	sink := qlog.NewSink(store, log.Logger)

	// Realtime directory database
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open realtime database")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("realtime database unreachable")
		}
		defer db.Close()
	} else {
		log.Info().Msg("no postgres dsn, realtime directory layer disabled")
	}

	// Dynamic member persistence
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis unreachable")
		}
		defer rdb.Close()
	} else {
		log.Info().Msg("no redis addr, dynamic member persistence disabled")
	}

	// Core registries
	devices := device.NewRegistry(log.Logger)
	queues := queue.NewRegistry(devices, log.Logger)

	// Directory: load every composed queue into the registry
	dir := directory.New(db, rdb, log.Logger)
	if err := dir.Reload(ctx, queues); err != nil {
		log.Error().Err(err).Msg("initial directory load failed, starting empty")
	}

	// Create WebSocket hub for observers
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// State bus: the single consumer of device-state updates
	bus := statebus.New(devices, queues, hub, log.Logger)
	go bus.Run(ctx)

	// Update cache + HTTP fallback ingress
	updateCache := cache.NewUpdateCache()
	receiver := event.NewReceiver(updateCache, bus, log.Logger)

	// Periodic queue snapshot broadcast
	aggregatorService := aggregator.New(queues, updateCache, hub, time.Second, log.Logger)
	go aggregatorService.Start(ctx)

	// Shared-clock broadcast for observers
	tickerService := ticker.NewTicker(hub, 10*time.Second, log.Logger)
	go tickerService.Start(ctx)

	// Dispatch engine over the loopback transport, driven by injected
	// calls until a real PBX transport is plugged in
	ruleReg := rules.NewRegistry(log.Logger)
	eng := engine.New(queues, devices, ruleReg, telephony.NewLoopback(log.Logger), sink, log.Logger)
	eng.SetTick(cfg.TickInterval)

	// WebSocket handlers: state ingress and observer feed
	ingressHandler := websocket.NewIngressHandler(hub, cfg, bus, log.Logger)
	observerHandler := websocket.NewObserverHandler(hub, cfg, log.Logger)

	// REST handlers
	queueHandler := api.NewQueueHandler(queues, log.Logger)
	memberHandler := api.NewMemberHandler(queues, dir, sink, log.Logger)
	logHandler := api.NewLogHandler(store, log.Logger)
	adminHandler := api.NewAdminHandler(queues, dir, store, log.Logger)
	callHandler := api.NewCallHandler(eng, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Internal routes (no auth - for PBX adapters)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/state", receiver.HandleUpdate)
		r.Get("/state/stats", receiver.GetStats)
		r.Get("/state/ws", ingressHandler.ServeHTTP)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", observerHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/queues", queueHandler.ListQueues)
			r.Get("/queues/{name}", queueHandler.GetQueue)
			r.Get("/logs", logHandler.GetLogs)
			r.Get("/logs/{queue}", logHandler.GetQueueLogs)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireSupervisorOrAdmin)
				r.Post("/queues/{name}/members", memberHandler.AddMember)
				r.Delete("/queues/{name}/members", memberHandler.RemoveMember)
				r.Post("/queues/{name}/members/penalty", memberHandler.SetPenalty)
				r.Post("/members/pause", memberHandler.Pause)
				r.Post("/members/unpause", memberHandler.Unpause)
			})

			r.Group(func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Post("/admin/reload", adminHandler.Reload)
				r.Delete("/admin/queues", adminHandler.RemoveQueue)
				r.Post("/admin/logs/wipe", adminHandler.WipeQueueLog)
				r.Post("/admin/calls/inject", callHandler.InjectCalls)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the bus, aggregator and ticker
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"acd-dispatch"}`)
}
