package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ---------------------------------------------------------------------------
// Kie AI task client
// All kie.ai generation products share the same deferred-request shape:
// submit a task, poll a record endpoint by taskId, download the result URL.
// The field names and terminal state values differ per product, so each
// product describes itself with an Endpoint value instead of hardcoding.
// ---------------------------------------------------------------------------

const (
	defaultBaseURL = "https://api.kie.ai"

	requestTimeout  = 30 * time.Second  // Individual HTTP calls, not the full poll cycle
	downloadTimeout = 300 * time.Second // Result files can be large videos
)

// Endpoint describes one kie.ai product's task protocol. The response schema
// proved unstable across products during development, so state field names and
// terminal values are configuration, not constants.
type Endpoint struct {
	Name          string   // Component tag for logs
	SubmitPath    string   // POST path that creates a task
	StatusPath    string   // GET path queried with ?taskId=
	StateField    string   // Field in data holding the task state
	SuccessStates []string // Values of StateField meaning "done, result ready"
	FailureStates []string // Values of StateField meaning "terminal failure"
	MessageFields []string // Candidate fields carrying a failure message
	CodeFields    []string // Candidate fields carrying a failure code
}

// VideoJobs is the Sora 2 job endpoint (createTask / recordInfo).
var VideoJobs = Endpoint{
	Name:          "Sora",
	SubmitPath:    "/api/v1/jobs/createTask",
	StatusPath:    "/api/v1/jobs/recordInfo",
	StateField:    "state",
	SuccessStates: []string{"success"},
	FailureStates: []string{"fail"},
	MessageFields: []string{"failMsg"},
	CodeFields:    []string{"failCode"},
}

// MusicJobs is the Suno generation endpoint (generate / record-info).
// TEXT_SUCCESS is the earliest state at which audio URLs are populated.
var MusicJobs = Endpoint{
	Name:          "Suno",
	SubmitPath:    "/api/v1/generate",
	StatusPath:    "/api/v1/generate/record-info",
	StateField:    "status",
	SuccessStates: []string{"TEXT_SUCCESS", "FIRST_SUCCESS", "SUCCESS"},
	FailureStates: []string{"failed", "error", "fail", "TEXT_FAIL", "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED"},
	MessageFields: []string{"errorMessage", "failMsg"},
	CodeFields:    []string{"errorCode", "failCode"},
}

// errTaskNotVisible marks a poll where the task is not yet in the remote
// registry (HTTP 404). The registry is eventually consistent right after
// submission, so the wait loop treats this as "still pending".
var errTaskNotVisible = fmt.Errorf("kie: task not visible yet")

// TaskRecord is one poll snapshot of a remote task.
type TaskRecord struct {
	TaskID string
	State  string
	Data   map[string]any
}

// StringField returns the first non-empty string among the named fields
// of the record's data payload.
func (r *TaskRecord) StringField(names ...string) string {
	for _, name := range names {
		if v, ok := r.Data[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Client talks to the kie.ai task API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Injected so the wait loop is testable without real sleeps.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a kie.ai client. The API key may be empty; every call checks it
// and fails with ErrMissingAPIKey before touching the network.
func New(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// NewWithBaseURL is used by tests to point the client at a fake server.
func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = baseURL
	return c
}

// SetSleeper overrides the inter-poll sleep, letting tests run a scripted
// status sequence without real delays.
func (c *Client) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// submitResponse is the envelope of every kie.ai submit call. The service
// returns HTTP 200 with an error code in the body on many failures, so the
// body code must be checked in addition to the HTTP status.
type submitResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Data    *struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

func (r *submitResponse) errorMessage() string {
	if r.Msg != "" {
		return r.Msg
	}
	if r.Message != "" {
		return r.Message
	}
	return "unknown error"
}

// CreateTask submits a generation task and returns its taskId.
func (c *Client) CreateTask(ctx context.Context, ep Endpoint, payload any) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+ep.SubmitPath, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope submitResponse
		_ = json.Unmarshal(body, &envelope)
		return "", &APIError{HTTPStatus: resp.StatusCode, Code: envelope.Code, Message: envelope.errorMessage()}
	}

	var envelope submitResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w (body: %s)", err, truncate(string(body), 300))
	}

	// HTTP 200 with a non-200 body code is still an error.
	if envelope.Code != 0 && envelope.Code != 200 {
		return "", &APIError{HTTPStatus: resp.StatusCode, Code: envelope.Code, Message: envelope.errorMessage()}
	}

	if envelope.Data == nil || envelope.Data.TaskID == "" {
		return "", &APIError{HTTPStatus: resp.StatusCode, Message: fmt.Sprintf("no taskId in response: %s", truncate(string(body), 300))}
	}

	log.Printf("[%s] Task created: %s", ep.Name, envelope.Data.TaskID)
	return envelope.Data.TaskID, nil
}

// QueryTask fetches the current record of a task. Returns errTaskNotVisible
// when the registry has not caught up with a fresh submission.
func (c *Client) QueryTask(ctx context.Context, ep Endpoint, taskID string) (*TaskRecord, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	statusURL := fmt.Sprintf("%s%s?taskId=%s", c.baseURL, ep.StatusPath, url.QueryEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, "GET", statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errTaskNotVisible
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope submitResponse
		_ = json.Unmarshal(body, &envelope)
		return nil, &APIError{HTTPStatus: resp.StatusCode, Code: envelope.Code, Message: envelope.errorMessage()}
	}

	var envelope struct {
		Code    int            `json:"code"`
		Msg     string         `json:"msg"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w (body: %s)", err, truncate(string(body), 300))
	}

	if envelope.Code != 0 && envelope.Code != 200 {
		msg := envelope.Msg
		if msg == "" {
			msg = envelope.Message
		}
		return nil, &APIError{HTTPStatus: resp.StatusCode, Code: envelope.Code, Message: msg}
	}

	record := &TaskRecord{TaskID: taskID, Data: envelope.Data}
	if record.Data == nil {
		record.Data = map[string]any{}
	}
	if state, ok := record.Data[ep.StateField].(string); ok {
		record.State = state
	}

	return record, nil
}

// WaitForTask polls a task until a terminal state, sleeping pollInterval
// between checks. Only the waiting loop is bounded by timeout — the remote
// job keeps running if the wait gives up.
func (c *Client) WaitForTask(ctx context.Context, ep Endpoint, taskID string, pollInterval, timeout time.Duration) (*TaskRecord, error) {
	start := c.now()

	for {
		elapsed := c.now().Sub(start)
		if elapsed > timeout {
			return nil, &TimeoutError{TaskID: taskID, Elapsed: elapsed}
		}

		record, err := c.QueryTask(ctx, ep, taskID)
		switch {
		case err == errTaskNotVisible:
			log.Printf("[%s] Task %s not visible yet (elapsed: %s)", ep.Name, taskID, elapsed.Round(time.Second))
		case err != nil:
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return nil, err
			}
			// Transient transport problem — keep polling until the timeout.
			log.Printf("[%s] Poll error for task %s: %v (elapsed: %s)", ep.Name, taskID, err, elapsed.Round(time.Second))
		default:
			if contains(ep.SuccessStates, record.State) {
				log.Printf("[%s] Task %s succeeded (elapsed: %s)", ep.Name, taskID, elapsed.Round(time.Second))
				return record, nil
			}
			if contains(ep.FailureStates, record.State) {
				msg := record.StringField(ep.MessageFields...)
				if msg == "" {
					msg = "unknown error"
				}
				return nil, &JobFailedError{
					TaskID:  taskID,
					Code:    record.StringField(ep.CodeFields...),
					Message: msg,
				}
			}
			log.Printf("[%s] Task %s: %s (elapsed: %s)", ep.Name, taskID, displayState(record.State), elapsed.Round(time.Second))
		}

		if err := c.sleep(ctx, pollInterval); err != nil {
			return nil, fmt.Errorf("wait for task %s cancelled: %w", taskID, err)
		}
	}
}

// Download streams a result artifact to dest, creating intermediate
// directories as needed.
func (c *Client) Download(ctx context.Context, fileURL, dest string) error {
	// Result files can be large videos; use a dedicated generous timeout.
	client := &http.Client{Timeout: downloadTimeout}

	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return &DownloadError{URL: fileURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &DownloadError{URL: fileURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadError{URL: fileURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &DownloadError{URL: fileURL, Err: err}
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return &DownloadError{URL: fileURL, Err: err}
	}
	defer f.Close()

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(dest)
		return &DownloadError{URL: fileURL, Err: err}
	}

	log.Printf("[Kie] Downloaded %d bytes to %s", written, dest)
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func displayState(state string) string {
	if state == "" {
		return "waiting"
	}
	return state
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
