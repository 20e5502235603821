package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/analyzer"
	"github.com/yameens/trumpdump/internal/api/handlers"
	"github.com/yameens/trumpdump/internal/cache/redis"
	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/internal/metrics"
	"github.com/yameens/trumpdump/internal/middleware/ratelimit"
	"github.com/yameens/trumpdump/internal/middleware/security"
	"github.com/yameens/trumpdump/internal/poller"
	"github.com/yameens/trumpdump/internal/relevance"
	"github.com/yameens/trumpdump/internal/scraper"
	"github.com/yameens/trumpdump/internal/storage/sqlite"
	"github.com/yameens/trumpdump/pkg/config"
	appLogger "github.com/yameens/trumpdump/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting market impact monitor")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without response cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	var analyzerClient *analyzer.Client
	if cfg.Poller.SkipAnalysis {
		appLogger.Warn("Analysis disabled: posts will be stored without market analysis")
	} else {
		if cfg.OpenAI.APIKey == "" {
			appLogger.Fatal("OpenAI API key is required unless poller.skipAnalysis is set")
		}
		analyzerClient = analyzer.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.FactsModel, cfg.OpenAI.MarketModel, analyzer.Options{
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     time.Duration(cfg.OpenAI.TimeoutSec) * time.Second,
		})
	}

	gate := relevance.NewGate(cfg.Relevance.MinScore, cfg.Relevance.MinConfidence)
	bus := events.NewBus()
	defer bus.Close()

	var fetchers []scraper.Fetcher
	if cfg.Sources.WhiteHouseEnabled {
		fetchers = append(fetchers, scraper.NewWhiteHouseFetcher(cfg.Sources.WhiteHouseURL, cfg.Sources.UserAgent))
	}
	if cfg.Sources.TruthSocialEnabled {
		fetchers = append(fetchers, scraper.NewTruthSocialFetcher(cfg.Sources.TruthSocialURL, cfg.Sources.UserAgent))
	}

	var pollerAnalyzer poller.Analyzer
	if analyzerClient != nil {
		pollerAnalyzer = analyzerClient
	}

	p := poller.New(
		sqliteClient,
		pollerAnalyzer,
		gate,
		bus,
		fetchers,
		time.Duration(cfg.Poller.IntervalSeconds)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Poller.Disabled || len(fetchers) == 0 {
		appLogger.Warn("Poller disabled: serving stored data only")
	} else {
		go p.Run(ctx)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	allowedOrigins := strings.Split(cfg.Server.AllowedOrigins, ",")

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: allowedOrigins,
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, X-API-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	cacheTTL := time.Duration(cfg.Redis.CacheTTL) * time.Second

	analysisHandler := handlers.NewAnalysisHandler(sqliteClient, cacheClient, gate, cacheTTL)
	healthHandler := handlers.NewHealthHandler(sqliteClient, p)
	streamHandler := handlers.NewStreamHandler(bus)
	wsHandler := handlers.NewWebSocketHandler(bus)
	adminHandler := handlers.NewAdminHandler(p, bus)

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", metrics.MetricsHandler())

	public := app.Group("/", limiter.Middleware())
	public.Get("/latest", analysisHandler.GetLatest)
	public.Get("/latest-with-tickers", analysisHandler.GetLatestWithTickers)
	public.Get("/history", analysisHandler.GetHistory)
	public.Get("/analysis/:id", analysisHandler.GetByID)

	app.Get("/stream", streamHandler.Stream)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	admin := app.Group("/admin", handlers.APIKeyMiddleware(cfg.Admin.APIKey))
	admin.Get("/scheduler/status", adminHandler.SchedulerStatus)
	admin.Post("/scheduler/poll", adminHandler.TriggerPoll)
	admin.Get("/events/status", adminHandler.EventsStatus)
	admin.Post("/events/test", adminHandler.PublishTestEvent)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancel()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
