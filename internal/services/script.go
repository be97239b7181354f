package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ugcforge/broll/internal/models"
)

// ---------------------------------------------------------------------------
// Script Generation Service
// Produces the scene-by-scene plan (narration + image/video prompts + music
// brief) via OpenAI JSON-mode chat completion.
// ---------------------------------------------------------------------------

const scriptModel = "gpt-4o-mini"

type ScriptService struct {
	client *openai.Client
}

func NewScriptService(apiKey string) *ScriptService {
	return &ScriptService{
		client: openai.NewClient(apiKey),
	}
}

// GenerateScript asks the model for a plan with exactly numScenes scenes and
// validates the result before returning it.
func (s *ScriptService) GenerateScript(ctx context.Context, topic string, numScenes int) (*models.ScriptPlan, error) {
	prompt := buildScriptPrompt(topic, numScenes)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: scriptModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("script generation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := stripCodeFence(resp.Choices[0].Message.Content)

	var plan models.ScriptPlan
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[Script] parse failed: %v", err)
		log.Printf("[Script] raw response: %s", truncateString(rawContent, 2000))
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	if err := plan.Validate(numScenes); err != nil {
		log.Printf("[Script] raw response: %s", truncateString(rawContent, 2000))
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	// Scene indexes come from position, not from the model
	for i := range plan.Scenes {
		plan.Scenes[i].Index = i
	}
	plan.FullNarration = plan.JoinNarration()

	log.Printf("[Script] Generated %d scenes, narration %d characters",
		len(plan.Scenes), len(plan.FullNarration))

	return &plan, nil
}

// timestamp names output artifacts so reruns never clobber each other.
func timestamp() string {
	return time.Now().Format("20060102_150405")
}

// stripCodeFence removes a surrounding markdown code block, which some models
// add despite JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 2 {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return strings.Trim(s, "`")
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func buildScriptPrompt(topic string, numScenes int) string {
	return fmt.Sprintf(`You are an expert short-form video scriptwriter creating B-roll video plans for portrait-format viewing (9:16, like TikTok/Reels/Shorts).

Generate a B-roll video script for the topic: "%s"

Requirements:
- Generate EXACTLY %d scenes. Not more, not fewer.
- Each scene's narration must be approximately 30 words of conversational voiceover. It will be read aloud by text-to-speech, so write for listening, not reading. Short sentences, contractions, natural rhythm.
- When the narrations are read back to back they must sound like one continuous story: hook first, build momentum, satisfying payoff.
- Each image_prompt must be a complete, detailed scene description: subject, background, lighting, atmosphere, depth layers. Compose for vertical 9:16 framing.
- No people, faces, or hands in any image_prompt or video_prompt. Objects, environments, landscapes, and abstract visuals only.
- Use a different camera angle or composition for every scene (close-up, wide shot, overhead, low angle, macro detail).
- Each video_prompt describes how the scene comes to life as a short cinematic clip: subject motion, environmental motion, camera movement. Present tense, no audio cues.
- include_product is true for scenes where a product shot fits naturally, false otherwise. If no product makes sense, set it false everywhere.
- musicGenerationPrompt describes instrumental background music matching the overall mood of all scenes.
- musicStyle is a genre label (e.g. "Ambient", "Cinematic", "Electronic").
- musicTitle is a short title for the track.

Respond with ONLY a valid JSON object matching this exact schema:
{
    "scenes": [
        {
            "narration": "string (approximately 30 words)",
            "image_prompt": "string",
            "video_prompt": "string",
            "include_product": boolean
        }
    ],
    "musicGenerationPrompt": "string",
    "musicStyle": "string",
    "musicTitle": "string"
}

Return ONLY the JSON. No markdown, no explanations, no code blocks.`, topic, numScenes)
}
