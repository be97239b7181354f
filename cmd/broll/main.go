package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ugcforge/broll/internal/config"
	"github.com/ugcforge/broll/internal/kie"
	"github.com/ugcforge/broll/internal/media"
	"github.com/ugcforge/broll/internal/pipeline"
	"github.com/ugcforge/broll/internal/services"
	"github.com/ugcforge/broll/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		scenes       = flag.Int("scenes", 5, "Number of B-roll scenes to generate")
		voice        = flag.String("voice", "", "TTS voice: OpenAI voice name or ElevenLabs voice ID (default: provider default)")
		outputDir    = flag.String("output-dir", "output", "Output directory")
		productImage = flag.String("product-image", "product.png", "Path to product image file")
		maxWorkers   = flag.Int("max-workers", 5, "Maximum parallel workers for clip generation")
		dryRun       = flag.Bool("dry-run", false, "Skip video generation and render clips from still images instead")
		elevenLabs   = flag.Bool("eleven-labs", false, "Use ElevenLabs for TTS instead of OpenAI")
		removeBg     = flag.Bool("remove-background", false, "Remove background from product image before processing")
		upload       = flag.Bool("upload", false, "Upload final video to the Supabase bucket")
		noMusic      = flag.Bool("no-music", false, "Disable background music generation")
		musicModel   = flag.String("music-model", "V5", "Suno model version for music generation (V3_5, V4, V4_5, V4_5PLUS, V5)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <topic>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	topic := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}

	enableMusic := !*noMusic
	if err := cfg.ValidateForGeneration(*dryRun, enableMusic, *elevenLabs); err != nil {
		log.Printf("Configuration error: %v", err)
		log.Printf("Set the missing keys as environment variables or in a .env file")
		return 1
	}

	if _, err := os.Stat(*productImage); err != nil {
		log.Printf("Warning: product image not found at %s", *productImage)
		log.Printf("Scenes with product placement will fall back to text-to-video")
	}

	p := buildPipeline(cfg, *elevenLabs, *musicModel)

	// Cancel the run cleanly on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := p.Run(ctx, pipeline.Options{
		Topic:            topic,
		NumScenes:        *scenes,
		Voice:            *voice,
		OutputDir:        *outputDir,
		ProductImagePath: *productImage,
		MaxImageWorkers:  cfg.MaxImageWorkers,
		MaxClipWorkers:   *maxWorkers,
		DryRun:           *dryRun,
		RemoveBackground: *removeBg,
		EnableMusic:      enableMusic,
		Upload:           *upload,
	})

	for _, warning := range result.Warnings {
		log.Printf("Warning: %s", warning)
	}

	if result.Err != nil {
		log.Printf("Generation failed: %v", result.Err)
		return 1
	}

	log.Printf("Final video: %s", result.FinalVideoPath)
	if result.PublicURL != "" {
		log.Printf("Public URL: %s", result.PublicURL)
	}
	return 0
}

// buildPipeline wires the generation pipeline from configured credentials.
// Optional stages stay nil when their provider is not configured.
func buildPipeline(cfg *config.Config, useElevenLabs bool, musicModel string) *pipeline.Pipeline {
	kieClient := kie.New(cfg.KieAIKey)
	ffmpeg := media.NewFFmpeg(cfg.VideoWidth, cfg.VideoHeight)

	var tts services.TTSService
	if useElevenLabs {
		tts = services.NewElevenLabsService(cfg.ElevenLabsKey)
	} else {
		tts = services.NewOpenAITTSService(cfg.OpenAIKey)
	}

	p := &pipeline.Pipeline{
		Scripts:   services.NewScriptService(cfg.OpenAIKey),
		Speech:    tts,
		Clips:     services.NewVideoService(kieClient),
		Assembler: media.NewCombiner(ffmpeg),
	}

	if cfg.KieAIKey != "" {
		p.Music = services.NewMusicService(kieClient, musicModel)
	}
	if cfg.GeminiKey != "" {
		p.Images = services.NewGeminiImageService(cfg.GeminiKey)
		p.Host = services.NewTmpfilesService()
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		p.Publisher = storage.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	}

	return p
}
