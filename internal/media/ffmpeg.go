package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpeg wrapper
// All media processing goes through ffmpeg/ffprobe subprocesses — file in,
// file out, stderr captured for diagnostics. Never a library binding.
// ---------------------------------------------------------------------------

// ToolError carries the captured diagnostics of a failed ffmpeg invocation.
type ToolError struct {
	Step   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if len(stderr) > 500 {
		stderr = "..." + stderr[len(stderr)-500:]
	}
	return fmt.Sprintf("ffmpeg %s failed: %v: %s", e.Step, e.Err, stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

// FFmpeg invokes the external media tool with a fixed output geometry.
type FFmpeg struct {
	width  int
	height int
}

func NewFFmpeg(width, height int) *FFmpeg {
	return &FFmpeg{width: width, height: height}
}

// run executes ffmpeg, failing fast with the tool's stderr on a non-zero exit.
func (f *FFmpeg) run(ctx context.Context, step string, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ToolError{Step: step, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// ProbeDuration returns the duration of a media file in seconds using ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return 0, &ToolError{Step: "probe", Stderr: stderr.String(), Err: err}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration of %s: %w", path, err)
	}

	return duration, nil
}

// normalizeFilter builds the -vf chain for NormalizeClip: an optional slowdown
// followed by fill-then-crop scaling to the output geometry. speedFactor below
// 1.0 slows the clip (setpts multiplier is its inverse); 1.0 leaves timing
// untouched.
func normalizeFilter(width, height int, speedFactor float64) string {
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		width, height, width, height)

	if speedFactor > 0 && speedFactor < 1 {
		return fmt.Sprintf("setpts=%.6f*PTS,%s", 1/speedFactor, scale)
	}
	return scale
}

// NormalizeClip re-encodes a clip to the output geometry: apply the timing
// plan's slowdown when speedFactor < 1, scale up to cover the frame and
// center-crop, trim to exactly targetDuration, and strip any embedded audio.
func (f *FFmpeg) NormalizeClip(ctx context.Context, inputPath, outputPath string, targetDuration, speedFactor float64) error {
	args := []string{
		"-i", inputPath,
		"-t", formatSeconds(targetDuration),
		"-vf", normalizeFilter(f.width, f.height, speedFactor),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-an", // Narration carries the audio; clip audio is discarded
		"-y",
		outputPath,
	}
	return f.run(ctx, "normalize", args...)
}

// Concat joins clips in the given order into one video without re-encoding.
// The concat list file is written next to the output.
func (f *FFmpeg) Concat(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	var list strings.Builder
	for _, path := range clipPaths {
		fmt.Fprintf(&list, "file '%s'\n", path)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}
	return f.run(ctx, "concat", args...)
}

// LoopAudio repeats an audio file loops times and trims the result to
// duration seconds, re-encoding to AAC.
func (f *FFmpeg) LoopAudio(ctx context.Context, inputPath, outputPath string, loops int, duration float64) error {
	args := []string{
		"-stream_loop", strconv.Itoa(loops),
		"-i", inputPath,
		"-t", formatSeconds(duration),
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}
	return f.run(ctx, "loop audio", args...)
}

// TrimAudio cuts an audio file to duration seconds, re-encoding to AAC.
func (f *FFmpeg) TrimAudio(ctx context.Context, inputPath, outputPath string, duration float64) error {
	args := []string{
		"-i", inputPath,
		"-t", formatSeconds(duration),
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}
	return f.run(ctx, "trim audio", args...)
}

// MixAudio blends the narration (full volume) with the prepared music bed at
// musicVolume. duration=first makes the mix end with the narration, so the
// music can never extend the output.
func (f *FFmpeg) MixAudio(ctx context.Context, narrationPath, musicPath, outputPath string, musicVolume float64) error {
	filterComplex := fmt.Sprintf(
		"[0:a]volume=1.0[a0];[1:a]volume=%.3f[a1];[a0][a1]amix=inputs=2:duration=first:dropout_transition=2",
		musicVolume)

	args := []string{
		"-i", narrationPath,
		"-i", musicPath,
		"-filter_complex", filterComplex,
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}
	return f.run(ctx, "mix audio", args...)
}

// Mux combines the silent concatenated video with the final audio track.
// Video is copied untouched; audio is re-encoded to AAC; -shortest truncates
// to the shorter stream (always the audio, since clips are pre-trimmed).
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-y",
		outputPath,
	}
	return f.run(ctx, "mux", args...)
}

// VideoFromImage renders a still image as a silent clip of the given duration
// at the output geometry. Used in dry-run mode instead of remote generation.
func (f *FFmpeg) VideoFromImage(ctx context.Context, imagePath, outputPath string, duration float64) error {
	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-t", formatSeconds(duration),
		"-vf", normalizeFilter(f.width, f.height, 1.0),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		"-y",
		outputPath,
	}
	return f.run(ctx, "video from image", args...)
}

// formatSeconds renders a duration for ffmpeg's -t flag.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
