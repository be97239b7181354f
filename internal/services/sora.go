package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/ugcforge/broll/internal/kie"
)

// ---------------------------------------------------------------------------
// Sora 2 Video Generation Service
// Submits text-to-video (or image-to-video when an image URL is available)
// tasks to the Kie AI Sora 2 API, polls until completion, and downloads the
// resulting clip.
// ---------------------------------------------------------------------------

const (
	soraTextModel  = "sora-2-text-to-video"
	soraImageModel = "sora-2-image-to-video"

	// Portrait 9:16 output, 10-second clips, no watermark.
	soraAspectRatio = "portrait"
	soraFrames      = "10"

	videoPollInterval = 10 * time.Second
	videoPollTimeout  = 10 * time.Minute
)

type VideoService struct {
	client *kie.Client
}

func NewVideoService(client *kie.Client) *VideoService {
	return &VideoService{client: client}
}

type soraInput struct {
	Prompt          string   `json:"prompt"`
	ImageURLs       []string `json:"image_urls,omitempty"`
	AspectRatio     string   `json:"aspect_ratio"`
	NFrames         string   `json:"n_frames"`
	RemoveWatermark bool     `json:"remove_watermark"`
}

type soraRequest struct {
	Model string    `json:"model"`
	Input soraInput `json:"input"`
}

// soraResult is the parsed form of the completed task's resultJson field.
type soraResult struct {
	ResultUrls []string `json:"resultUrls"`
}

// GenerateClip generates one B-roll clip and saves it to outputDir as
// broll_scene<N>_<timestamp>.mp4. imageURL switches the task to
// image-to-video when non-empty; sceneNumber is 1-based and used for naming.
func (s *VideoService) GenerateClip(ctx context.Context, videoPrompt, imageURL, outputDir string, sceneNumber int) (string, error) {
	req := soraRequest{
		Model: soraTextModel,
		Input: soraInput{
			Prompt:          videoPrompt,
			AspectRatio:     soraAspectRatio,
			NFrames:         soraFrames,
			RemoveWatermark: true,
		},
	}
	if imageURL != "" {
		req.Model = soraImageModel
		req.Input.ImageURLs = []string{imageURL}
	}

	log.Printf("[Sora] Scene %d: submitting %s task (prompt: %s)",
		sceneNumber, req.Model, truncateString(videoPrompt, 80))

	taskID, err := s.client.CreateTask(ctx, kie.VideoJobs, req)
	if err != nil {
		return "", fmt.Errorf("scene %d: failed to create video task: %w", sceneNumber, err)
	}

	record, err := s.client.WaitForTask(ctx, kie.VideoJobs, taskID, videoPollInterval, videoPollTimeout)
	if err != nil {
		return "", fmt.Errorf("scene %d: video task did not complete: %w", sceneNumber, err)
	}

	videoURL, err := extractVideoURL(record)
	if err != nil {
		return "", fmt.Errorf("scene %d: %w", sceneNumber, err)
	}

	outputPath := filepath.Join(outputDir, fmt.Sprintf("broll_scene%d_%s.mp4", sceneNumber, timestamp()))
	if err := s.client.Download(ctx, videoURL, outputPath); err != nil {
		return "", fmt.Errorf("scene %d: failed to download clip: %w", sceneNumber, err)
	}

	log.Printf("[Sora] Scene %d: clip saved to %s", sceneNumber, outputPath)
	return outputPath, nil
}

// extractVideoURL pulls the first result URL out of the completed task's
// resultJson, which arrives as a JSON string inside the record.
func extractVideoURL(record *kie.TaskRecord) (string, error) {
	resultJSON := record.StringField("resultJson")
	if resultJSON == "" {
		return "", fmt.Errorf("task %s completed without resultJson", record.TaskID)
	}

	var result soraResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", fmt.Errorf("failed to parse resultJson: %w", err)
	}
	if len(result.ResultUrls) == 0 {
		return "", fmt.Errorf("task %s returned no video URLs", record.TaskID)
	}

	return result.ResultUrls[0], nil
}
