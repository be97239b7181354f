package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/ugcforge/broll/internal/kie"
)

// ---------------------------------------------------------------------------
// Suno Music Generation Service
// Generates an instrumental background track via the Suno API on Kie AI.
// The API requires a callback URL even in polling mode, so a placeholder is
// supplied and completion is detected by polling.
// ---------------------------------------------------------------------------

const (
	musicDefaultModel = "V5"
	musicCallbackURL  = "https://placeholder.example.com/callback"

	musicPollInterval = 5 * time.Second
	musicPollTimeout  = 5 * time.Minute
)

type MusicService struct {
	client *kie.Client
	model  string
}

func NewMusicService(client *kie.Client, model string) *MusicService {
	if model == "" {
		model = musicDefaultModel
	}
	return &MusicService{client: client, model: model}
}

type sunoRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl"`
}

// GenerateMusic produces an instrumental track matching the prompt and saves
// it to outputDir as background_music_<timestamp>.mp3.
func (s *MusicService) GenerateMusic(ctx context.Context, prompt, style, title, outputDir string) (string, error) {
	log.Printf("[Music] Generating track %q (style=%s, model=%s)", title, style, s.model)

	taskID, err := s.client.CreateTask(ctx, kie.MusicJobs, sunoRequest{
		Prompt:       prompt,
		Style:        style,
		Title:        title,
		CustomMode:   true,
		Instrumental: true,
		Model:        s.model,
		CallBackURL:  musicCallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create music task: %w", err)
	}

	record, err := s.client.WaitForTask(ctx, kie.MusicJobs, taskID, musicPollInterval, musicPollTimeout)
	if err != nil {
		return "", fmt.Errorf("music task did not complete: %w", err)
	}

	audioURL, err := extractMusicURL(record)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, fmt.Sprintf("background_music_%s.mp3", timestamp()))
	if err := s.client.Download(ctx, audioURL, outputPath); err != nil {
		return "", fmt.Errorf("failed to download music: %w", err)
	}

	log.Printf("[Music] Track saved to %s", outputPath)
	return outputPath, nil
}

// extractMusicURL digs the first track's stream URL out of the completed
// task's nested response. streamAudioUrl is preferred; the source stream is a
// fallback when the transcoded stream is not ready.
func extractMusicURL(record *kie.TaskRecord) (string, error) {
	response, ok := record.Data["response"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("task %s completed without response payload", record.TaskID)
	}

	sunoData, ok := response["sunoData"].([]any)
	if !ok || len(sunoData) == 0 {
		return "", fmt.Errorf("task %s returned no tracks", record.TaskID)
	}

	track, ok := sunoData[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("task %s returned malformed track data", record.TaskID)
	}

	for _, field := range []string{"streamAudioUrl", "sourceStreamAudioUrl"} {
		if url, ok := track[field].(string); ok && url != "" {
			return url, nil
		}
	}
	return "", fmt.Errorf("task %s returned a track without an audio URL", record.TaskID)
}
