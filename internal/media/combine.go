package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// defaultMusicVolume keeps the background bed well under the narration.
const defaultMusicVolume = 0.075

// Combiner assembles normalized clips, narration and an optional music bed
// into the final video. All intermediate files live in a temp directory that
// is removed whether assembly succeeds or fails.
type Combiner struct {
	ffmpeg      *FFmpeg
	musicVolume float64
}

func NewCombiner(ffmpeg *FFmpeg) *Combiner {
	return &Combiner{ffmpeg: ffmpeg, musicVolume: defaultMusicVolume}
}

// Combine builds the final video at outputPath. musicPath may be empty, in
// which case the narration alone becomes the audio track.
func (c *Combiner) Combine(ctx context.Context, clipPaths []string, narrationPath, musicPath, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to combine")
	}

	tempDir, err := os.MkdirTemp("", "broll_combine_")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	narrationDuration, err := c.ffmpeg.ProbeDuration(ctx, narrationPath)
	if err != nil {
		return fmt.Errorf("failed to probe narration: %w", err)
	}
	log.Printf("[Combiner] Narration duration: %.2fs across %d clips", narrationDuration, len(clipPaths))

	clipDurations := make([]float64, len(clipPaths))
	for i, path := range clipPaths {
		duration, err := c.ffmpeg.ProbeDuration(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to probe clip %d: %w", i+1, err)
		}
		clipDurations[i] = duration
	}

	plan, err := ComputeTimingPlan(narrationDuration, clipDurations)
	if err != nil {
		return fmt.Errorf("failed to plan clip timing: %w", err)
	}

	normalized := make([]string, len(clipPaths))
	for i, path := range clipPaths {
		factor := plan.SpeedFactors[i]
		if factor < 1 {
			log.Printf("[Combiner] Clip %d: %.2fs -> %.2fs (slowing to %.2fx)",
				i+1, clipDurations[i], plan.TargetPerClip, factor)
		} else {
			log.Printf("[Combiner] Clip %d: %.2fs -> %.2fs (trimming)",
				i+1, clipDurations[i], plan.TargetPerClip)
		}

		out := filepath.Join(tempDir, fmt.Sprintf("normalized_%02d.mp4", i))
		if err := c.ffmpeg.NormalizeClip(ctx, path, out, plan.TargetPerClip, factor); err != nil {
			return fmt.Errorf("failed to normalize clip %d: %w", i+1, err)
		}
		normalized[i] = out
	}

	concatPath := filepath.Join(tempDir, "concatenated.mp4")
	if err := c.ffmpeg.Concat(ctx, normalized, concatPath); err != nil {
		return fmt.Errorf("failed to concatenate clips: %w", err)
	}

	audioPath := narrationPath
	if musicPath != "" {
		audioPath, err = c.prepareMixedAudio(ctx, tempDir, narrationPath, musicPath, narrationDuration)
		if err != nil {
			return err
		}
	}

	if err := c.ffmpeg.Mux(ctx, concatPath, audioPath, outputPath); err != nil {
		return fmt.Errorf("failed to mux final video: %w", err)
	}

	log.Printf("[Combiner] Final video written to %s", outputPath)
	return nil
}

// prepareMixedAudio fits the music bed to the narration length (looping when
// shorter, trimming when longer) and mixes it under the narration.
func (c *Combiner) prepareMixedAudio(ctx context.Context, tempDir, narrationPath, musicPath string, narrationDuration float64) (string, error) {
	musicDuration, err := c.ffmpeg.ProbeDuration(ctx, musicPath)
	if err != nil {
		return "", fmt.Errorf("failed to probe music: %w", err)
	}

	bedPath := filepath.Join(tempDir, "music_bed.m4a")
	if musicDuration < narrationDuration {
		loops := MusicLoopCount(narrationDuration, musicDuration)
		log.Printf("[Combiner] Looping music %d times (%.2fs track, %.2fs narration)",
			loops, musicDuration, narrationDuration)
		if err := c.ffmpeg.LoopAudio(ctx, musicPath, bedPath, loops, narrationDuration); err != nil {
			return "", fmt.Errorf("failed to loop music: %w", err)
		}
	} else {
		if err := c.ffmpeg.TrimAudio(ctx, musicPath, bedPath, narrationDuration); err != nil {
			return "", fmt.Errorf("failed to trim music: %w", err)
		}
	}

	mixedPath := filepath.Join(tempDir, "mixed_audio.m4a")
	if err := c.ffmpeg.MixAudio(ctx, narrationPath, bedPath, mixedPath, c.musicVolume); err != nil {
		return "", fmt.Errorf("failed to mix audio: %w", err)
	}
	return mixedPath, nil
}

// ProbeDuration exposes duration probing for callers outside the package.
func (c *Combiner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return c.ffmpeg.ProbeDuration(ctx, path)
}

// VideoFromImage exposes the dry-run still-to-clip rendering.
func (c *Combiner) VideoFromImage(ctx context.Context, imagePath, outputPath string, duration float64) error {
	return c.ffmpeg.VideoFromImage(ctx, imagePath, outputPath, duration)
}
