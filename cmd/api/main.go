package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/config"
	"fruition-api/internal/fruit"
	"fruition-api/internal/geo"
	"fruition-api/internal/handler"
	"fruition-api/internal/middleware"
	"fruition-api/internal/notify"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/repository"
	"fruition-api/internal/router"
	"fruition-api/internal/service"
	"fruition-api/pkg/clock"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Fruition API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	clk := clock.Real{}
	defaultLoc, err := cfg.Engine.Location()
	if err != nil {
		log.Fatalf("Invalid engine config: %v", err)
	}

	// Initialize store based on config
	var store *repository.SQLStore
	switch cfg.Store.Type {
	case "postgres", "postgresql":
		store, err = repository.NewPostgresStore(cfg.Store.PostgresDSN())
	case "mysql":
		store, err = repository.NewMySQLStore(cfg.Store.MySQLDSN())
	default: // sqlite
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err = repository.NewSQLiteStore(cfg.Store.Path)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Store.Type, err)
	}
	defer store.Close()
	log.Printf("%s store initialized", cfg.Store.Type)

	// KV store and change broker: per process, or shared through Redis
	var (
		redisClient *redis.Client
		kv          cache.Cache
		broker      pubsub.Broker
	)
	if cfg.Cache.UsesRedis() {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory: %v", err)
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		kv = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix+":kv")
		broker = pubsub.NewRedisBroker(redisClient, cfg.Cache.KeyPrefix+":topic")
		log.Println("Redis KV store and broker initialized")
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		kv = memCache
		broker = pubsub.NewMemoryBroker()
		log.Println("In-memory KV store and broker initialized")
	}
	defer broker.Close()

	// Public feed: repository, optionally buffered in Redis
	var (
		feedSink   service.FeedSink
		feedReader service.FeedReader
		feedBuffer *cache.RedisFeedBuffer
	)
	if cfg.Feed.Enabled {
		var feedRepo repository.FeedRepository = store
		if cfg.Feed.Backend == "mongodb" || cfg.Feed.Backend == "mongo" {
			mongoRepo, err := repository.NewMongoDBFeedRepository(
				cfg.Feed.MongoURI,
				cfg.Feed.MongoDatabase,
				cfg.Feed.MongoCollection,
			)
			if err != nil {
				log.Fatalf("Failed to initialize MongoDB feed: %v", err)
			}
			defer mongoRepo.Close()
			feedRepo = mongoRepo
			log.Println("MongoDB feed repository initialized")
		}

		if redisClient != nil {
			feedBuffer = cache.NewRedisFeedBuffer(redisClient, cache.FeedBufferConfig{
				FlushInterval: cfg.Feed.FlushInterval,
				KeyPrefix:     cfg.Cache.KeyPrefix + ":feed",
			}, service.CreateFeedFlushFunc(feedRepo))
			feedSink, feedReader = feedBuffer, feedBuffer
			log.Println("Redis feed buffer initialized")
		} else {
			direct := service.NewDirectFeed(feedRepo)
			feedSink, feedReader = direct, direct
		}
	} else {
		direct := service.NewDirectFeed(store)
		feedReader = direct
	}

	// Location lookup (best-effort)
	var locator geo.Locator = geo.Nop{}
	if cfg.Geo.Enabled {
		locator = geo.NewHTTPLocator(cfg.Geo.BaseURL, cfg.Geo.Timeout)
	}

	// Initialize services
	var broadcaster *service.FeedBroadcaster
	if feedSink != nil {
		broadcaster = service.NewFeedBroadcaster(feedSink, clk, time.Now().UnixNano())
	}
	identityService := service.NewIdentityService(store, locator, clk)
	householdService := service.NewHouseholdService(store, store, clk)
	ledger := service.NewLedger(store, store, broker, broadcaster, clk)
	statsAggregator := service.NewStatsAggregator(store, clk)
	history := notify.NewHistory(kv, clk, cfg.Engine.NotificationLimit)
	tokenService := service.NewTokenService(kv, clk, cfg.Engine.TokenTTL)

	var alerter notify.Alerter = notify.LogAlerter{}
	if redisClient != nil {
		alerter = notify.BrokerAlerter{Broker: broker}
	}

	sessions := service.NewSessionManager(service.SessionDeps{
		Identity:   identityService,
		Households: householdService,
		Ledger:     ledger,
		Source:     store,
		Broker:     broker,
		ShelfLife:  fruit.DefaultTable(),
		Notify: notify.Config{
			KV:            kv,
			History:       history,
			Alerter:       alerter,
			Clock:         clk,
			CheckInterval: cfg.Engine.CheckInterval,
			Broker:        broker,
		},
		Clock:            clk,
		DefaultLocation:  defaultLoc,
		PresenceInterval: cfg.Engine.PresenceInterval,
	})

	reaper := service.NewSessionReaper(sessions, service.ReaperConfig{
		IdleThreshold: cfg.Engine.SessionIdle,
		Interval:      cfg.Engine.ReapInterval,
	})
	reaper.Start()

	// Initialize handlers
	validate := handler.NewValidator()
	healthHandler := handler.New(store, kv)
	adminHandler := handler.NewAdminHandler(handler.AdminConfig{
		Store:      store,
		Identity:   identityService,
		Sessions:   sessions,
		FeedBuffer: feedBuffer,
		Reaper:     reaper,
		Validate:   validate,
		DBType:     cfg.Store.Type,
	})

	if len(cfg.Auth.APIKeys) == 0 {
		log.Println("Warning: API_KEYS not set, identity headers are trusted without a key")
	}
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		TokenService: tokenService,
		APIKeys:      cfg.Auth.APIKeys,
	})

	// Create router
	r := router.New(router.Config{
		Handler:             healthHandler,
		InventoryHandler:    handler.NewInventoryHandler(sessions, validate),
		StatsHandler:        handler.NewStatsHandler(sessions, statsAggregator),
		NotificationHandler: handler.NewNotificationHandler(sessions, history, kv, validate),
		ProfileHandler:      handler.NewProfileHandler(sessions, householdService, validate),
		EventsHandler:       handler.NewEventsHandler(sessions, broker, cfg.Engine.StreamHeartbeat),
		FeedHandler:         handler.NewFeedHandler(feedReader),
		AuthHandler:         handler.NewAuthHandler(sessions, tokenService),
		AdminHandler:        adminHandler,
		AuthMiddleware:      authMiddleware,
		AdminMiddleware:     middleware.NewAdminMiddleware(cfg.Auth.AdminKeys),
		AllowedOrigins:      cfg.Server.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	reaper.Stop()
	sessions.CloseAll()

	// Close feed buffer before the server (flushes pending events)
	if feedBuffer != nil {
		log.Println("Closing feed buffer...")
		feedBuffer.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
