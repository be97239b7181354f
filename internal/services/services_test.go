package services

import (
	"strings"
	"testing"

	"github.com/ugcforge/broll/internal/kie"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"scenes": []}`, `{"scenes": []}`},
		{"```json\n{\"scenes\": []}\n```", `{"scenes": []}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  \n```json\n{}\n```\n ", "{}"},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("expected passthrough, got %q", got)
	}
	got := truncateString(strings.Repeat("a", 20), 10)
	if got != strings.Repeat("a", 10)+"..." {
		t.Errorf("unexpected truncation %q", got)
	}
}

func TestExtractVideoURL(t *testing.T) {
	record := &kie.TaskRecord{
		TaskID: "t1",
		Data: map[string]any{
			"resultJson": `{"resultUrls":["https://cdn.example.com/a.mp4","https://cdn.example.com/b.mp4"]}`,
		},
	}
	url, err := extractVideoURL(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn.example.com/a.mp4" {
		t.Errorf("expected first URL, got %s", url)
	}
}

func TestExtractVideoURLErrors(t *testing.T) {
	if _, err := extractVideoURL(&kie.TaskRecord{TaskID: "t1", Data: map[string]any{}}); err == nil {
		t.Error("expected error for missing resultJson")
	}
	record := &kie.TaskRecord{TaskID: "t1", Data: map[string]any{"resultJson": `{"resultUrls":[]}`}}
	if _, err := extractVideoURL(record); err == nil {
		t.Error("expected error for empty URL list")
	}
	record = &kie.TaskRecord{TaskID: "t1", Data: map[string]any{"resultJson": "not json"}}
	if _, err := extractVideoURL(record); err == nil {
		t.Error("expected error for malformed resultJson")
	}
}

func TestExtractMusicURL(t *testing.T) {
	record := &kie.TaskRecord{
		TaskID: "t2",
		Data: map[string]any{
			"response": map[string]any{
				"sunoData": []any{
					map[string]any{
						"streamAudioUrl":       "https://audio.example.com/stream.mp3",
						"sourceStreamAudioUrl": "https://audio.example.com/source.mp3",
					},
				},
			},
		},
	}
	url, err := extractMusicURL(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://audio.example.com/stream.mp3" {
		t.Errorf("expected the transcoded stream, got %s", url)
	}
}

func TestExtractMusicURLFallsBackToSource(t *testing.T) {
	record := &kie.TaskRecord{
		TaskID: "t2",
		Data: map[string]any{
			"response": map[string]any{
				"sunoData": []any{
					map[string]any{"sourceStreamAudioUrl": "https://audio.example.com/source.mp3"},
				},
			},
		},
	}
	url, err := extractMusicURL(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://audio.example.com/source.mp3" {
		t.Errorf("expected the source stream fallback, got %s", url)
	}
}

func TestExtractMusicURLErrors(t *testing.T) {
	if _, err := extractMusicURL(&kie.TaskRecord{TaskID: "t2", Data: map[string]any{}}); err == nil {
		t.Error("expected error for missing response")
	}
	record := &kie.TaskRecord{
		TaskID: "t2",
		Data:   map[string]any{"response": map[string]any{"sunoData": []any{}}},
	}
	if _, err := extractMusicURL(record); err == nil {
		t.Error("expected error for empty track list")
	}
	record = &kie.TaskRecord{
		TaskID: "t2",
		Data: map[string]any{
			"response": map[string]any{"sunoData": []any{map[string]any{}}},
		},
	}
	if _, err := extractMusicURL(record); err == nil {
		t.Error("expected error for track without URLs")
	}
}

func TestDirectDownloadURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://tmpfiles.org/12345/image.png", "https://tmpfiles.org/dl/12345/image.png"},
		{"http://tmpfiles.org/12345/image.png", "https://tmpfiles.org/dl/12345/image.png"},
		{"https://other.example.com/file.png", "https://other.example.com/file.png"},
	}
	for _, c := range cases {
		if got := directDownloadURL(c.in); got != c.want {
			t.Errorf("directDownloadURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMimeTypeForImage(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"product.png", "image/png"},
		{"product.jpg", "image/jpeg"},
		{"product.jpeg", "image/jpeg"},
		{"product.webp", "image/webp"},
		{"product", "image/png"},
	}
	for _, c := range cases {
		if got := mimeTypeForImage(c.path); got != c.want {
			t.Errorf("mimeTypeForImage(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
