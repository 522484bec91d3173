package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingua-backend/internal/config"
	"lingua-backend/internal/database"
	"lingua-backend/internal/handlers"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/repository"
	"lingua-backend/internal/router"
	"lingua-backend/internal/services"
	"lingua-backend/internal/websocket"
	"lingua-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Lingua Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sourceRepo := repository.NewSourceRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	studySessionRepo := repository.NewStudySessionRepo(pool)
	preferencesRepo := repository.NewPreferencesRepo(pool, cfg.DefaultShuffle, cfg.DefaultThoroughLearning)
	liveSessionRepo := repository.NewLiveSessionRepo(redisClients.Queue, cfg.LearningSessionTTL)

	// ──── Step 5: Initialize Gemini Client ────
	generator, err := services.NewGeneratorService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer generator.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	notifier := services.NewNotifier(redisClients.PubSub)
	jobQueue := services.NewJobQueue(jobRepo, redisClients.Queue)
	learningService := services.NewLearningService(flashcardRepo, preferencesRepo, studySessionRepo, liveSessionRepo, notifier)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		sourceRepo,
		flashcardRepo,
		jobRepo,
		jobQueue,
		notifier,
		services.NewYouTubeService(),
		services.NewFileExtractService(),
		services.NewWebPageService(),
		generator,
		cfg.StoragePath,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	studySweeper := services.NewStudySessionSweeper(studySessionRepo)
	studySweeper.Start()
	log.Println("✓ Study session sweeper started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, router.Handlers{
		Sources:     handlers.NewSourceHandler(sourceRepo, jobQueue, cfg.StoragePath),
		Flashcards:  handlers.NewFlashcardHandler(flashcardRepo, sourceRepo, jobQueue, liveSessionRepo),
		Learning:    handlers.NewLearningHandler(learningService),
		Preferences: handlers.NewPreferencesHandler(preferencesRepo),
		Jobs:        handlers.NewJobHandler(jobRepo),
		WebSocket:   wsHub.HandleWebSocket,
	}, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		studySweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Lingua Backend ready on http://localhost:%s (%s)", cfg.Port, cfg.Env)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
