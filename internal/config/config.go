package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server mode
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database (server mode run history)
	DatabaseURL string

	// Redis (server mode run queue)
	RedisURL string

	// OpenAI (script generation + default TTS)
	OpenAIKey string

	// Kie AI (Sora 2 video generation + Suno music generation)
	KieAIKey string

	// ElevenLabs (alternative TTS provider)
	ElevenLabsKey string

	// Gemini (product image compositing / background removal)
	GeminiKey string

	// Supabase (final video publishing)
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Output geometry (9:16 for social media)
	VideoWidth  int
	VideoHeight int

	// Artifacts
	OutputBaseDir    string // Server mode: per-run output directories live under this
	ProductImagePath string // Reference product shot for product placement scenes

	// Workers
	MaxClipWorkers    int // Parallel Sora clip jobs per run
	MaxImageWorkers   int // Parallel product-image jobs per run
	MaxConcurrentRuns int // Server mode: concurrent pipeline runs
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		KieAIKey:           getEnv("KIE_AI_API_KEY", ""),
		ElevenLabsKey:      getEnv("ELEVEN_LABS_API_KEY", ""),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseKey:        getEnv("SUPABASE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "generated-ugc"),
		VideoWidth:         getEnvInt("VIDEO_WIDTH", 720),
		VideoHeight:        getEnvInt("VIDEO_HEIGHT", 1280),
		OutputBaseDir:      getEnv("OUTPUT_BASE_DIR", "output"),
		ProductImagePath:   getEnv("PRODUCT_IMAGE_PATH", "product.png"),
		MaxClipWorkers:     getEnvInt("MAX_CLIP_WORKERS", 5),
		MaxImageWorkers:    getEnvInt("MAX_IMAGE_WORKERS", 3),
		MaxConcurrentRuns:  getEnvInt("MAX_CONCURRENT_RUNS", 2),
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for script generation")
	}

	return cfg, nil
}

// ValidateForGeneration checks the credentials a run will need up front,
// before any remote call is made. Kie AI is not required in dry-run mode
// unless music generation is still enabled.
func (c *Config) ValidateForGeneration(dryRun, enableMusic, useElevenLabs bool) error {
	var missing []string

	if useElevenLabs && c.ElevenLabsKey == "" {
		missing = append(missing, "ELEVEN_LABS_API_KEY")
	}

	needsKie := !dryRun || enableMusic
	if needsKie && c.KieAIKey == "" {
		switch {
		case !dryRun && enableMusic:
			missing = append(missing, "KIE_AI_API_KEY (required for video and music generation)")
		case !dryRun:
			missing = append(missing, "KIE_AI_API_KEY (required for video generation)")
		default:
			missing = append(missing, "KIE_AI_API_KEY (required for music generation)")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required API keys: %v", missing)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
