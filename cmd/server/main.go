package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/musichub/api/internal/client"
	"github.com/musichub/api/internal/config"
	"github.com/musichub/api/internal/handler"
	"github.com/musichub/api/internal/middleware"
	"github.com/musichub/api/internal/service"
	"github.com/musichub/api/internal/store"
	ws "github.com/musichub/api/internal/websocket"
	"github.com/musichub/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Record store for wallets and jobs
	recordStore, err := newRecordStore(cfg, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize record store: %v", err)
	}

	// External split worker
	workerClient := client.NewWorkerClient(&cfg.Worker)

	// Optional R2 archival of split inputs
	var storageClient client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 archival disabled: %v", err)
	} else {
		storageClient = r2
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize services
	walletService := service.NewWalletService(recordStore)
	splitService := service.NewSplitService(recordStore, workerClient, storageClient, hub)

	// Initialize handlers
	walletHandler := handler.NewWalletHandler(walletService, validate)
	splitHandler := handler.NewSplitHandler(splitService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	auth := authMiddleware.Authenticate()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB uploads
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Wallet routes
	app.Get("/wallet", auth, walletHandler.GetWallet)
	app.Post("/wallet/earn", auth, rateLimiter.WalletLimit(cfg.RateLimit.WalletPerMin), walletHandler.Earn)
	app.Post("/wallet/spend", auth, rateLimiter.WalletLimit(cfg.RateLimit.WalletPerMin), walletHandler.Spend)

	// Splitter routes
	app.Post("/splitter/split", auth, rateLimiter.SplitLimit(cfg.RateLimit.SplitPerHour), splitHandler.Split)
	app.Get("/splitter/status/:jobId", auth, splitHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start the background reconcile sweep
	go startReconcileWorker(cfg, splitService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newRecordStore(cfg *config.Config, redisClient *redis.Client) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.Storage.Dir)
	default:
		return store.NewRedisStore(redisClient), nil
	}
}

func startReconcileWorker(cfg *config.Config, splitService *service.SplitService) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"splitter": 1,
		},
	})

	reconcileWorker := worker.NewReconcileWorker(splitService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeReconcile, reconcileWorker.ProcessTask)

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Printf("Asynq worker error: %v", err)
		}
	}()

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(cfg.Worker.ReconcileEvery, worker.NewReconcileTask(), asynq.Queue("splitter")); err != nil {
		log.Printf("Failed to register reconcile schedule: %v", err)
		return
	}
	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
