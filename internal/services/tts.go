package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// TTSService — common interface for text-to-speech providers
// Both OpenAI and ElevenLabs implement this interface so the pipeline can use
// whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSService converts narration text into an audio file on disk.
type TTSService interface {
	// GenerateSpeech writes the spoken narration to a timestamped file in
	// outputDir and returns its path. voice selects a provider-specific
	// voice; empty means the provider's default.
	GenerateSpeech(ctx context.Context, text, voice, outputDir string) (string, error)
}

// openAIVoices are the voices accepted by the tts-1 model.
var openAIVoices = []openai.SpeechVoice{
	openai.VoiceAlloy,
	openai.VoiceEcho,
	openai.VoiceFable,
	openai.VoiceOnyx,
	openai.VoiceNova,
	openai.VoiceShimmer,
}

// OpenAITTSService handles text-to-speech via the OpenAI tts-1 model.
type OpenAITTSService struct {
	client *openai.Client
}

var _ TTSService = (*OpenAITTSService)(nil)

func NewOpenAITTSService(apiKey string) *OpenAITTSService {
	return &OpenAITTSService{
		client: openai.NewClient(apiKey),
	}
}

// GenerateSpeech converts text to speech with tts-1. An empty voice picks one
// of the available voices at random.
func (s *OpenAITTSService) GenerateSpeech(ctx context.Context, text, voice, outputDir string) (string, error) {
	effectiveVoice := openai.SpeechVoice(voice)
	if voice == "" {
		effectiveVoice = openAIVoices[rand.Intn(len(openAIVoices))]
	}

	log.Printf("[TTS] Generating speech with OpenAI (voice=%s, textLen=%d)", effectiveVoice, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Voice: effectiveVoice,
		Input: text,
	})
	if err != nil {
		return "", fmt.Errorf("openai tts request failed: %w", err)
	}
	defer resp.Close()

	outputPath := filepath.Join(outputDir, fmt.Sprintf("tts_audio_%s.mp3", timestamp()))
	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp)
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		os.Remove(outputPath)
		return "", fmt.Errorf("openai tts returned empty audio")
	}

	log.Printf("[TTS] Audio written to %s (%d bytes)", outputPath, written)
	return outputPath, nil
}
