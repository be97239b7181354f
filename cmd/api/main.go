package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ugcforge/broll/internal/api"
	"github.com/ugcforge/broll/internal/config"
	"github.com/ugcforge/broll/internal/db"
	"github.com/ugcforge/broll/internal/kie"
	"github.com/ugcforge/broll/internal/media"
	"github.com/ugcforge/broll/internal/pipeline"
	"github.com/ugcforge/broll/internal/queue"
	"github.com/ugcforge/broll/internal/services"
	"github.com/ugcforge/broll/internal/storage"
	"github.com/ugcforge/broll/internal/worker"
)

func main() {
	log.Println("Starting broll API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	handler := api.NewHandler(database, q)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		p := buildPipeline(cfg)
		w := worker.New(database, q, p, cfg)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentRuns)
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// buildPipeline wires the generation pipeline from configured credentials.
// Optional stages stay nil when their provider is not configured.
func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
	kieClient := kie.New(cfg.KieAIKey)
	ffmpeg := media.NewFFmpeg(cfg.VideoWidth, cfg.VideoHeight)

	var tts services.TTSService
	if cfg.ElevenLabsKey != "" {
		tts = services.NewElevenLabsService(cfg.ElevenLabsKey)
		log.Println("TTS provider: ElevenLabs")
	} else {
		tts = services.NewOpenAITTSService(cfg.OpenAIKey)
		log.Println("TTS provider: OpenAI")
	}

	p := &pipeline.Pipeline{
		Scripts:   services.NewScriptService(cfg.OpenAIKey),
		Speech:    tts,
		Clips:     services.NewVideoService(kieClient),
		Assembler: media.NewCombiner(ffmpeg),
	}

	if cfg.KieAIKey != "" {
		p.Music = services.NewMusicService(kieClient, "")
	}
	if cfg.GeminiKey != "" {
		p.Images = services.NewGeminiImageService(cfg.GeminiKey)
		p.Host = services.NewTmpfilesService()
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		p.Publisher = storage.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		log.Printf("Publishing to Supabase bucket %q", cfg.SupabaseBucket)
	}

	return p
}
