package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/KeelyW-11/school-equipment-inventory/config"
	"github.com/KeelyW-11/school-equipment-inventory/internal/api"
	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/db"
	"github.com/KeelyW-11/school-equipment-inventory/internal/mw"
	"github.com/KeelyW-11/school-equipment-inventory/internal/notification"
	"github.com/KeelyW-11/school-equipment-inventory/internal/parse"
	"github.com/KeelyW-11/school-equipment-inventory/internal/scanner"
	"github.com/KeelyW-11/school-equipment-inventory/internal/source"
	"github.com/KeelyW-11/school-equipment-inventory/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "inventory-backend ", log.LstdFlags)

	config.LoadEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("no configuration at %s, using defaults", configPath)
		cfg = config.Default()
	case err != nil:
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	default:
		logger.Printf("configuration loaded successfully from %s", configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database backs both the gorm store and push subscriptions.
	var gormDB *gorm.DB
	if cfg.Storage.Backend == "gorm" || cfg.Push.Enabled {
		gormDB, err = db.Init(&cfg.Database)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		logger.Println("database initialized successfully")
	}

	appStore, err := newStore(ctx, cfg, gormDB)
	if err != nil {
		logger.Fatalf("failed to initialize store: %v", err)
	}
	logger.Printf("data store initialized (%s)", cfg.Storage.Backend)

	var pool notification.Dispatcher
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("VAPID keys must be configured when push is enabled.")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		pool = workerPool
	}

	responseCache := mw.NewResponseCache(cfg.Server.CacheTTL)
	hub := notification.NewHub(0, pool, responseCache.Flush)

	loc, err := time.LoadLocation(cfg.Catalog.Timezone)
	if err != nil {
		logger.Printf("unknown timezone %q, using local time: %v", cfg.Catalog.Timezone, err)
		loc = time.Local
	}
	delimiter, err := parse.ParseDelimiter(cfg.Catalog.Delimiter)
	if err != nil {
		logger.Fatalf("invalid catalog delimiter: %v", err)
	}

	cat := catalog.New(appStore, hub, hub, catalog.Options{Delimiter: delimiter, Location: loc})
	coord := scanner.New(cat, appStore, hub, hub, scanner.Options{
		Cooldown:         cfg.Scanner.Cooldown,
		ReadinessTimeout: cfg.Scanner.ReadinessTimeout,
		AutoClose:        cfg.Scanner.AutoClose,
		DecodesPerSecond: cfg.Scanner.DecodesPerSecond,
		Strictness:       scanner.Strictness(cfg.Scanner.Strictness),
		RescanPolicy:     scanner.RescanPolicy(cfg.Scanner.RescanPolicy),
		QueryParams:      cfg.Scanner.QueryParams,
	})

	loader := source.NewService(source.FromConfig(&cfg.Catalog), cat, cfg.Catalog.ReloadInterval, func(ctx context.Context) {
		coord.Drain(ctx)
	})
	go loader.Run(ctx)

	coordDone := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(coordDone)
	}()

	handler := api.NewHandler(cat, coord, hub, loader, gormDB, webpushOptions)
	router := api.NewRouter(handler, &cfg.Server, responseCache)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	// Scans still waiting on the catalog are queued before exit.
	cancel()
	<-coordDone

	logger.Println("Server gracefully stopped")
}

func newStore(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "gorm":
		return store.NewGormStore(gormDB), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store.NewRedisStore(rdb, cfg.Redis.KeyPrefix), nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
