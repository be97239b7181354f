package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Product Image Service
// Uses the Google Gen AI SDK to composite the reference product into a
// generated scene, and to strip the background from the raw product shot.
// ---------------------------------------------------------------------------

const geminiImageModel = "gemini-2.5-flash-image"

const removeBackgroundPrompt = "Remove the background from this product image. " +
	"Keep only the product itself with a transparent background. " +
	"Make sure the product edges are clean and sharp."

type GeminiImageService struct {
	apiKey string
}

func NewGeminiImageService(apiKey string) *GeminiImageService {
	return &GeminiImageService{apiKey: apiKey}
}

// generate runs one image+prompt generation call and returns the raw bytes of
// the first inline image in the response.
func (s *GeminiImageService) generate(ctx context.Context, imageData []byte, mimeType, prompt string) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				genai.NewPartFromBytes(imageData, mimeType),
				genai.NewPartFromText(prompt),
			},
		},
	}

	// Portrait output matching the video geometry
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "9:16",
		},
	}

	resp, err := client.Models.GenerateContent(ctx, geminiImageModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini response did not include generated image data")
}

// ComposeProductImage places the product from productImagePath into the scene
// described by imagePrompt and saves the result in outputDir, named for the
// 1-based scene number.
func (s *GeminiImageService) ComposeProductImage(ctx context.Context, imagePrompt, productImagePath, outputDir string, sceneNumber int) (string, error) {
	productData, err := os.ReadFile(productImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read product image: %w", err)
	}

	log.Printf("[Gemini] Scene %d: generating product placement image (prompt: %s)",
		sceneNumber, truncateString(imagePrompt, 100))

	imageData, err := s.generate(ctx, productData, mimeTypeForImage(productImagePath), imagePrompt)
	if err != nil {
		return "", fmt.Errorf("scene %d: %w", sceneNumber, err)
	}

	outputPath := filepath.Join(outputDir,
		fmt.Sprintf("product_placement_scene%d_%s.png", sceneNumber, timestamp()))
	if err := os.WriteFile(outputPath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to save product image: %w", err)
	}

	log.Printf("[Gemini] Scene %d: product image saved to %s", sceneNumber, outputPath)
	return outputPath, nil
}

// RemoveBackground strips the background from the product shot and writes the
// cleaned image to outputPath.
func (s *GeminiImageService) RemoveBackground(ctx context.Context, productImagePath, outputPath string) (string, error) {
	productData, err := os.ReadFile(productImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read product image: %w", err)
	}

	log.Printf("[Gemini] Removing background from %s", productImagePath)

	imageData, err := s.generate(ctx, productData, mimeTypeForImage(productImagePath), removeBackgroundPrompt)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(outputPath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to save cleaned product image: %w", err)
	}

	log.Printf("[Gemini] Background removed, saved to %s", outputPath)
	return outputPath, nil
}

func mimeTypeForImage(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
