package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ugcforge/broll/internal/models"
)

// dryRunClipSeconds is the length of the still-image clips that stand in for
// generated video in dry-run mode.
const dryRunClipSeconds = 10.0

// ---------------------------------------------------------------------------
// Collaborator interfaces. The pipeline only sees behavior, so tests can run
// the full orchestration with fakes and no network or ffmpeg.
// ---------------------------------------------------------------------------

type ScriptGenerator interface {
	GenerateScript(ctx context.Context, topic string, numScenes int) (*models.ScriptPlan, error)
}

type SpeechSynthesizer interface {
	GenerateSpeech(ctx context.Context, text, voice, outputDir string) (string, error)
}

type MusicGenerator interface {
	GenerateMusic(ctx context.Context, prompt, style, title, outputDir string) (string, error)
}

type ClipGenerator interface {
	GenerateClip(ctx context.Context, videoPrompt, imageURL, outputDir string, sceneNumber int) (string, error)
}

type ImageComposer interface {
	ComposeProductImage(ctx context.Context, imagePrompt, productImagePath, outputDir string, sceneNumber int) (string, error)
	RemoveBackground(ctx context.Context, productImagePath, outputPath string) (string, error)
}

type FileHost interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

type Assembler interface {
	Combine(ctx context.Context, clipPaths []string, narrationPath, musicPath, outputPath string) error
	VideoFromImage(ctx context.Context, imagePath, outputPath string, duration float64) error
}

type Publisher interface {
	PublishVideo(ctx context.Context, localPath, objectName string) (string, error)
}

// ---------------------------------------------------------------------------

// Options configures one pipeline run.
type Options struct {
	Topic            string
	NumScenes        int
	Voice            string // provider voice; empty means provider default
	OutputDir        string
	ProductImagePath string
	MaxImageWorkers  int
	MaxClipWorkers   int
	DryRun           bool // render clips from still images instead of calling the video API
	RemoveBackground bool
	EnableMusic      bool
	Upload           bool
}

// Result reports everything a run produced. Err is set when the run failed
// outright; Warnings record the steps that degraded without stopping the run.
type Result struct {
	Topic           string
	ScriptPath      string
	Script          *models.ScriptPlan
	NarrationPath   string
	MusicPath       string
	ClipPaths       []string
	ScenesSucceeded int
	FinalVideoPath  string
	PublicURL       string
	Warnings        []string
	Err             error
}

// Pipeline orchestrates a complete run: script, narration, music, clips,
// assembly, publication. Music, Images, Host and Publisher may be nil; the
// corresponding stages are then skipped (with a warning where the script
// asked for them).
type Pipeline struct {
	Scripts   ScriptGenerator
	Speech    SpeechSynthesizer
	Music     MusicGenerator
	Clips     ClipGenerator
	Images    ImageComposer
	Host      FileHost
	Assembler Assembler
	Publisher Publisher
}

// Run executes the pipeline. It always returns a non-nil Result and never
// panics past this boundary; a fatal stage failure lands in Result.Err with
// everything produced so far still populated.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	result := &Result{Topic: opts.Topic}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		result.Err = fmt.Errorf("failed to create output directory: %w", err)
		return result
	}

	if opts.DryRun {
		log.Printf("[Pipeline] DRY RUN: clips will be rendered from still images, no video API calls")
	}

	productImage := opts.ProductImagePath
	if opts.RemoveBackground && p.Images != nil {
		cleaned := filepath.Join(opts.OutputDir, "product_bg_rm.png")
		if _, err := p.Images.RemoveBackground(ctx, productImage, cleaned); err != nil {
			result.warnf("failed to remove background: %v, continuing with original product image", err)
		} else {
			productImage = cleaned
		}
	}

	plan, err := p.Scripts.GenerateScript(ctx, opts.Topic, opts.NumScenes)
	if err != nil {
		result.Err = fmt.Errorf("script generation failed: %w", err)
		return result
	}
	result.Script = plan

	scriptPath, err := saveScript(plan, opts.OutputDir)
	if err != nil {
		result.Err = err
		return result
	}
	result.ScriptPath = scriptPath

	narrationPath, err := p.Speech.GenerateSpeech(ctx, plan.FullNarration, opts.Voice, opts.OutputDir)
	if err != nil {
		result.Err = fmt.Errorf("narration synthesis failed: %w", err)
		return result
	}
	result.NarrationPath = narrationPath

	if opts.EnableMusic && p.Music != nil {
		if plan.MusicPrompt == "" {
			result.warnf("script has no music prompt, skipping music generation")
		} else {
			musicPath, err := p.Music.GenerateMusic(ctx, plan.MusicPrompt, plan.MusicStyle, plan.MusicTitle, opts.OutputDir)
			if err != nil {
				result.warnf("music generation failed: %v, continuing without background music", err)
			} else {
				result.MusicPath = musicPath
			}
		}
	}

	sceneImages := p.generateSceneImages(ctx, plan, productImage, opts, result)

	clipPaths := p.generateClips(ctx, plan, sceneImages, productImage, opts, result)
	result.ClipPaths = clipPaths
	result.ScenesSucceeded = len(clipPaths)
	if len(clipPaths) == 0 {
		result.Err = fmt.Errorf("no clips were generated successfully")
		return result
	}
	log.Printf("[Pipeline] Generated %d/%d clips", len(clipPaths), len(plan.Scenes))

	finalPath := filepath.Join(opts.OutputDir,
		fmt.Sprintf("final_%s.mp4", time.Now().Format("20060102_150405")))
	if err := p.Assembler.Combine(ctx, clipPaths, narrationPath, result.MusicPath, finalPath); err != nil {
		result.Err = fmt.Errorf("video assembly failed: %w", err)
		return result
	}
	result.FinalVideoPath = finalPath

	if opts.Upload && p.Publisher != nil {
		publicURL, err := p.Publisher.PublishVideo(ctx, finalPath, filepath.Base(finalPath))
		if err != nil {
			result.warnf("failed to publish video: %v", err)
		} else {
			result.PublicURL = publicURL
		}
	}

	log.Printf("[Pipeline] Run complete: %s", finalPath)
	return result
}

// generateSceneImages produces product placement images for the scenes that
// want one, keyed by scene index. In normal mode each image is also staged on
// the file host so the video API can fetch it; dry-run keeps local paths.
// Per-scene failures degrade to text-to-video and are recorded as warnings.
func (p *Pipeline) generateSceneImages(ctx context.Context, plan *models.ScriptPlan, productImage string, opts Options, result *Result) map[int]string {
	images := make(map[int]string)
	if p.Images == nil {
		return images
	}

	var productScenes []models.SceneSpec
	for _, scene := range plan.Scenes {
		if scene.IncludeProduct {
			productScenes = append(productScenes, scene)
		}
	}
	if len(productScenes) == 0 {
		return images
	}

	log.Printf("[Pipeline] Generating product placement images for %d scene(s)", len(productScenes))

	jobs := make([]func(context.Context) (string, error), len(productScenes))
	for i, scene := range productScenes {
		scene := scene
		jobs[i] = func(ctx context.Context) (string, error) {
			imagePath, err := p.Images.ComposeProductImage(ctx, scene.ImagePrompt, productImage, opts.OutputDir, scene.Index+1)
			if err != nil {
				return "", err
			}
			if opts.DryRun || p.Host == nil {
				return imagePath, nil
			}
			return p.Host.UploadFile(ctx, imagePath)
		}
	}

	for _, r := range Dispatch(ctx, opts.MaxImageWorkers, jobs) {
		scene := productScenes[r.Index]
		if r.Err != nil {
			result.warnf("scene %d: product image failed: %v, falling back to text-to-video", scene.Index+1, r.Err)
			continue
		}
		images[scene.Index] = r.Value
	}
	return images
}

// generateClips runs the clip phase for every scene in parallel and returns
// the successful clip paths in scene order. Individual scene failures are
// warnings; the caller decides whether zero clips is fatal.
func (p *Pipeline) generateClips(ctx context.Context, plan *models.ScriptPlan, sceneImages map[int]string, productImage string, opts Options, result *Result) []string {
	jobs := make([]func(context.Context) (string, error), len(plan.Scenes))
	for i, scene := range plan.Scenes {
		scene := scene
		if opts.DryRun {
			jobs[i] = func(ctx context.Context) (string, error) {
				imagePath, ok := sceneImages[scene.Index]
				if !ok {
					imagePath = productImage
				}
				if _, err := os.Stat(imagePath); err != nil {
					return "", fmt.Errorf("no source image for scene %d: %w", scene.Index+1, err)
				}
				outputPath := filepath.Join(opts.OutputDir,
					fmt.Sprintf("broll_scene%d_%s.mp4", scene.Index+1, time.Now().Format("20060102_150405")))
				if err := p.Assembler.VideoFromImage(ctx, imagePath, outputPath, dryRunClipSeconds); err != nil {
					return "", err
				}
				return outputPath, nil
			}
		} else {
			jobs[i] = func(ctx context.Context) (string, error) {
				return p.Clips.GenerateClip(ctx, scene.VideoPrompt, sceneImages[scene.Index], opts.OutputDir, scene.Index+1)
			}
		}
	}

	results := Dispatch(ctx, opts.MaxClipWorkers, jobs)
	for _, r := range results {
		if r.Err != nil {
			result.warnf("scene %d: clip generation failed: %v", r.Index+1, r.Err)
		}
	}
	return Succeeded(results)
}

func (r *Result) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[Pipeline] Warning: %s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// saveScript writes the plan to a timestamped JSON artifact in outputDir.
func saveScript(plan *models.ScriptPlan, outputDir string) (string, error) {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal script: %w", err)
	}

	path := filepath.Join(outputDir,
		fmt.Sprintf("broll_script_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save script: %w", err)
	}
	return path, nil
}
