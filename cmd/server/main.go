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

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/handler"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/queue"
	"github.com/clipforge/api/internal/repository"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/worker"
	ws "github.com/clipforge/api/internal/websocket"
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

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Object storage; missing credentials fall back to an in-memory
	// repository for local development
	var assets repository.AssetRepository
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil || !r2Client.IsConfigured() {
		log.Printf("Warning: R2 not configured, using in-memory asset repository")
		assets = repository.NewMemoryAssetRepository()
	} else {
		assets = repository.NewStorageAssetRepository(redisClient, r2Client)
	}

	// Media pipeline collaborators; unconfigured external services fall back
	// to deterministic in-process stubs
	var suppressor media.NoiseSuppressor = media.NewStubSuppressor()
	suppressClient := client.NewSuppressClient(&cfg.Suppress)
	if !suppressClient.IsConfigured() {
		log.Printf("Warning: noise suppression service not configured, using stub")
	} else {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := suppressClient.HealthCheck(healthCtx); err != nil {
			log.Printf("Warning: noise suppression service unhealthy, using stub: %v", err)
		} else {
			suppressor = suppressClient
		}
		cancel()
	}

	var transcriber media.Transcriber = media.NewStubTranscriber()
	transcribeClient := client.NewTranscribeClient(&cfg.Transcribe)
	if transcribeClient.IsConfigured() {
		transcriber = transcribeClient
	} else {
		log.Printf("Warning: transcription API not configured, using stub")
	}

	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	pipeline := media.NewPipeline(ffmpeg, suppressor, transcriber, assets)

	// Initialize stores and services
	jobStore := store.NewRedisJobStore(redisClient)
	enqueuer := queue.NewAsynqEnqueuer(asynqClient, cfg.Queue)
	jobService := service.NewJobService(jobStore, assets, enqueuer)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
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

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	ai := api.Group("/ai")
	ai.Post("/noise-removal", jobHandler.StartNoiseRemoval)
	ai.Post("/subtitles", jobHandler.StartSubtitles)
	ai.Get("/jobs", jobHandler.List)
	ai.Get("/jobs/:jobId", jobHandler.Status)
	ai.Post("/jobs/:jobId/retry", jobHandler.Retry)

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

	// Start Asynq worker server
	mediaWorker := worker.NewMediaWorker(jobStore, assets, pipeline, hub)
	go startWorkerServer(cfg, redisOpt, mediaWorker)

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

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, mediaWorker *worker.MediaWorker) {
	srv := queue.NewServer(redisOpt, cfg.Queue)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeNoiseRemoval, mediaWorker.ProcessTask)
	mux.HandleFunc(queue.TaskTypeSubtitleGeneration, mediaWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
