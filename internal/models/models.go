package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusScripting  RunStatus = "scripting"
	RunStatusGenerating RunStatus = "generating"
	RunStatusAssembling RunStatus = "assembling"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// TaskState is the lifecycle of a remote generation task.
// Terminal states are final — a retry creates a new task, it never
// transitions an old one back to pending.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// SceneSpec is a single scene from the generated script. Read-only after
// creation; Index defines the scene's position on the final timeline.
type SceneSpec struct {
	Index          int    `json:"index"`
	Narration      string `json:"narration"`
	ImagePrompt    string `json:"image_prompt"`
	VideoPrompt    string `json:"video_prompt"`
	IncludeProduct bool   `json:"include_product"`
}

// ScriptPlan is the structured output of script generation: the ordered
// scenes plus the music brief used for background-music generation.
type ScriptPlan struct {
	Scenes        []SceneSpec `json:"scenes"`
	MusicPrompt   string      `json:"musicGenerationPrompt"`
	MusicStyle    string      `json:"musicStyle"`
	MusicTitle    string      `json:"musicTitle"`
	FullNarration string      `json:"full_narration"`
}

// Validate checks the plan against the requested scene count and rejects
// incomplete scenes at the ingestion boundary.
func (p *ScriptPlan) Validate(expectedScenes int) error {
	if len(p.Scenes) != expectedScenes {
		return fmt.Errorf("script generated %d scenes, but %d were requested", len(p.Scenes), expectedScenes)
	}

	for i, scene := range p.Scenes {
		var missing []string
		if strings.TrimSpace(scene.Narration) == "" {
			missing = append(missing, "narration")
		}
		if strings.TrimSpace(scene.ImagePrompt) == "" {
			missing = append(missing, "image_prompt")
		}
		if strings.TrimSpace(scene.VideoPrompt) == "" {
			missing = append(missing, "video_prompt")
		}
		if len(missing) > 0 {
			return fmt.Errorf("scene %d missing required fields: %v", i+1, missing)
		}
	}

	if strings.TrimSpace(p.MusicPrompt) == "" {
		return fmt.Errorf("script missing musicGenerationPrompt")
	}

	return nil
}

// JoinNarration concatenates scene narrations into the full TTS input and
// stores it on the plan.
func (p *ScriptPlan) JoinNarration() string {
	parts := make([]string, len(p.Scenes))
	for i, scene := range p.Scenes {
		parts[i] = scene.Narration
	}
	p.FullNarration = strings.Join(parts, " ")
	return p.FullNarration
}

// ClipArtifact is a downloaded scene clip ready for assembly.
// Never mutated after creation.
type ClipArtifact struct {
	SceneIndex      int     `json:"scene_index"`
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunRecord is the persisted/API view of one pipeline run.
type RunRecord struct {
	ID               uuid.UUID  `json:"id"`
	Topic            string     `json:"topic"`
	SceneCount       int        `json:"scene_count"`
	Voice            *string    `json:"voice,omitempty"`
	DryRun           bool       `json:"dry_run"`
	EnableMusic      bool       `json:"enable_music"`
	RemoveBackground bool       `json:"remove_background"`
	Upload           bool       `json:"upload"`
	Status           RunStatus  `json:"status"`
	OutputDir        *string    `json:"output_dir,omitempty"`
	FinalVideo       *string    `json:"final_video,omitempty"`
	PublicURL        *string    `json:"public_url,omitempty"`
	ScenesSucceeded  *int       `json:"scenes_succeeded,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// API DTOs

type CreateRunRequest struct {
	Topic            string  `json:"topic"`
	SceneCount       *int    `json:"scene_count,omitempty"` // Default: 5
	Voice            *string `json:"voice,omitempty"`
	DryRun           *bool   `json:"dry_run,omitempty"`
	EnableMusic      *bool   `json:"enable_music,omitempty"` // Default: true
	RemoveBackground *bool   `json:"remove_background,omitempty"`
	Upload           *bool   `json:"upload,omitempty"`
}

type CreateRunResponse struct {
	RunID  uuid.UUID `json:"run_id"`
	Status RunStatus `json:"status"`
}

type ListRunsResponse struct {
	Runs  []RunRecord `json:"runs"`
	Total int         `json:"total"`
}
