package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// tmpfiles.org File Host
// Product placement images must be reachable by URL before they can feed an
// image-to-video task, so they are staged on tmpfiles.org.
// ---------------------------------------------------------------------------

const tmpfilesUploadURL = "https://tmpfiles.org/api/v1/upload"

type TmpfilesService struct {
	client *http.Client
}

func NewTmpfilesService() *TmpfilesService {
	return &TmpfilesService{
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type tmpfilesResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// UploadFile uploads a local file and returns its public direct-download URL.
func (s *TmpfilesService) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read file for upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tmpfilesUploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("tmpfiles returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result tmpfilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if result.Status != "success" {
		msg := result.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("upload failed: %s", msg)
	}
	if result.Data.URL == "" {
		return "", fmt.Errorf("upload response missing URL")
	}

	url := directDownloadURL(result.Data.URL)
	log.Printf("[Tmpfiles] Uploaded %s -> %s", path, url)
	return url, nil
}

// directDownloadURL rewrites a tmpfiles page URL into the raw-file form.
// http(s)://tmpfiles.org/{id}/{name} -> https://tmpfiles.org/dl/{id}/{name}
func directDownloadURL(url string) string {
	for _, prefix := range []string{"http://tmpfiles.org/", "https://tmpfiles.org/"} {
		if strings.HasPrefix(url, prefix) {
			return "https://tmpfiles.org/dl/" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
