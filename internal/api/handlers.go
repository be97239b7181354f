package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ugcforge/broll/internal/db"
	"github.com/ugcforge/broll/internal/models"
	"github.com/ugcforge/broll/internal/queue"
)

const (
	defaultSceneCount = 5
	maxSceneCount     = 20
)

type Handler struct {
	db    *db.DB
	queue *queue.Queue
}

func NewHandler(database *db.DB, q *queue.Queue) *Handler {
	return &Handler{
		db:    database,
		queue: q,
	}
}

// CreateRun handles POST /v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Topic == "" {
		respondError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	sceneCount := defaultSceneCount
	if req.SceneCount != nil {
		sceneCount = *req.SceneCount
	}
	if sceneCount < 1 || sceneCount > maxSceneCount {
		respondError(w, http.StatusBadRequest, "scene_count must be between 1 and 20")
		return
	}

	run := &models.RunRecord{
		ID:               uuid.New(),
		Topic:            req.Topic,
		SceneCount:       sceneCount,
		Voice:            req.Voice,
		DryRun:           boolValue(req.DryRun, false),
		EnableMusic:      boolValue(req.EnableMusic, true),
		RemoveBackground: boolValue(req.RemoveBackground, false),
		Upload:           boolValue(req.Upload, false),
		Status:           models.RunStatusQueued,
	}

	if err := h.db.CreateRun(r.Context(), run); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create run")
		return
	}

	if err := h.queue.EnqueueRun(r.Context(), run.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue run")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateRunResponse{
		RunID:  run.ID,
		Status: run.Status,
	})
}

// ListRuns handles GET /v1/runs
// Query params:
//   - status: filter by run status (queued, scripting, generating, assembling, completed, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.RunStatus(statusFilter) {
		case models.RunStatusQueued, models.RunStatusScripting,
			models.RunStatusGenerating, models.RunStatusAssembling,
			models.RunStatusCompleted, models.RunStatusFailed:
			// valid
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: queued, scripting, generating, assembling, completed, failed")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountRuns(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count runs")
		return
	}

	runs, err := h.db.ListRuns(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}

	respondJSON(w, http.StatusOK, models.ListRunsResponse{
		Runs:  runs,
		Total: total,
	})
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := h.db.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
