package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kareem-3del/auction-platform-sub003/internal/api/handlers"
	apimiddleware "github.com/Kareem-3del/auction-platform-sub003/internal/api/middleware"
	"github.com/Kareem-3del/auction-platform-sub003/internal/config"
	"github.com/Kareem-3del/auction-platform-sub003/internal/infrastructure/leader"
	"github.com/Kareem-3del/auction-platform-sub003/internal/infrastructure/mysql"
	redisinfra "github.com/Kareem-3del/auction-platform-sub003/internal/infrastructure/redis"
	"github.com/Kareem-3del/auction-platform-sub003/internal/infrastructure/websocket"
	"github.com/Kareem-3del/auction-platform-sub003/internal/services"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting realtime bidding service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	productRepo := mysql.NewMySQLProductRepository(db)
	userRepo := mysql.NewMySQLUserRepository(db)

	// Initialize Redis based components
	eventPublisher := redisinfra.NewRedisEventPublisher(rdb)
	eventSubscriber := redisinfra.NewRedisEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize connection registry and services
	connManager := websocket.NewConnectionManager(log)
	authService := services.NewAuthService(cfg.JWT.Secret, userRepo, log)
	relay := services.NewEventRelay(connManager, connManager, eventPublisher, cfg.Instance.ID, log)
	watcher := services.NewRoomWatcher(connManager, productRepo, relay, leaderElection, cfg.Instance.ID, log)
	monitor := websocket.NewLivenessMonitor(connManager, cfg.Liveness.Interval, log)

	// Initialize handlers
	wsHandler := websocket.NewWebSocketHandler(connManager, authService, productRepo, log)
	internalHandler := handlers.NewInternalHandler(relay, connManager, log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Background loops
	go func() {
		if err := eventSubscriber.Subscribe(rootCtx, relay.HandleEnvelope); err != nil &&
			!errors.Is(err, context.Canceled) {
			log.Error("Event subscriber exited", "error", err)
		}
	}()

	monitor.Start(rootCtx)

	if err := watcher.Start(rootCtx); err != nil {
		log.Error("Failed to start room watcher", "error", err)
		os.Exit(1)
	}

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(rootCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became realtime leader", "instance_id", cfg.Instance.ID)
			}
			select {
			case <-rootCtx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	// Public listener: websocket clients + health probe.
	router := mux.NewRouter()
	router.Use(apimiddleware.CORS)
	router.HandleFunc("/ws", wsHandler.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	publicServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Public.Host, cfg.Public.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting public websocket server", "address", publicServer.Addr)
		if err := publicServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Public server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Internal listener: trusted submissions + monitoring, not exposed to browsers.
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	internalHandler.Register(e)

	go func() {
		internalAddr := fmt.Sprintf("%s:%d", cfg.Internal.Host, cfg.Internal.Port)
		log.Info("Starting internal API server", "address", internalAddr)
		if err := e.Start(internalAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Internal server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down realtime service...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := watcher.Stop(); err != nil {
		log.Error("Failed to stop room watcher", "error", err)
	}
	monitor.Stop()

	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Public server forced to shutdown", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Internal server forced to shutdown", "error", err)
	}

	log.Info("Realtime service stopped")
}
