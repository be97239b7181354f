package kie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestCreateTaskRequiresAPIKey(t *testing.T) {
	c := New("")
	if _, err := c.CreateTask(context.Background(), VideoJobs, map[string]string{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := c.QueryTask(context.Background(), VideoJobs, "task-1"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestCreateTaskReturnsTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != VideoJobs.SubmitPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		fmt.Fprint(w, `{"code":200,"msg":"success","data":{"taskId":"task-abc"}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	taskID, err := c.CreateTask(context.Background(), VideoJobs, map[string]string{"model": "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taskID != "task-abc" {
		t.Errorf("expected task-abc, got %s", taskID)
	}
}

func TestCreateTaskBodyCodeError(t *testing.T) {
	// The service reports many failures as HTTP 200 with an error code in
	// the envelope.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":402,"msg":"insufficient credits"}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	_, err := c.CreateTask(context.Background(), VideoJobs, map[string]string{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 402 {
		t.Errorf("expected code 402, got %d", apiErr.Code)
	}
}

func TestCreateTaskMissingTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"msg":"success","data":{}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	_, err := c.CreateTask(context.Background(), VideoJobs, map[string]string{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for missing taskId, got %v", err)
	}
}

func TestWaitForTaskPendingThenSuccess(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("taskId"); got != "task-1" {
			t.Errorf("unexpected taskId %q", got)
		}
		polls++
		switch polls {
		case 1:
			fmt.Fprint(w, `{"code":200,"data":{"state":"waiting"}}`)
		case 2:
			fmt.Fprint(w, `{"code":200,"data":{"state":"generating"}}`)
		default:
			fmt.Fprint(w, `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[\"https://cdn.example.com/clip.mp4\"]}"}}`)
		}
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	c.SetSleeper(noSleep)

	record, err := c.WaitForTask(context.Background(), VideoJobs, "task-1", time.Second, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.State != "success" {
		t.Errorf("expected success state, got %s", record.State)
	}
	if got := record.StringField("resultJson"); got == "" {
		t.Error("expected resultJson to be carried through")
	}
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestWaitForTaskToleratesNotVisible(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"code":200,"data":{"status":"TEXT_SUCCESS"}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	c.SetSleeper(noSleep)

	record, err := c.WaitForTask(context.Background(), MusicJobs, "task-2", time.Second, time.Minute)
	if err != nil {
		t.Fatalf("expected 404s to be treated as pending, got %v", err)
	}
	if record.State != "TEXT_SUCCESS" {
		t.Errorf("expected TEXT_SUCCESS, got %s", record.State)
	}
}

func TestWaitForTaskJobFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"state":"fail","failMsg":"content policy violation","failCode":"400"}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	c.SetSleeper(noSleep)

	_, err := c.WaitForTask(context.Background(), VideoJobs, "task-3", time.Second, time.Minute)

	var jobErr *JobFailedError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *JobFailedError, got %v", err)
	}
	if jobErr.Message != "content policy violation" {
		t.Errorf("unexpected message %q", jobErr.Message)
	}
	if jobErr.Code != "400" {
		t.Errorf("unexpected code %q", jobErr.Code)
	}
}

func TestWaitForTaskAPIErrorIsFatal(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		fmt.Fprint(w, `{"code":401,"msg":"invalid key"}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	c.SetSleeper(noSleep)

	_, err := c.WaitForTask(context.Background(), VideoJobs, "task-4", time.Second, time.Minute)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if polls != 1 {
		t.Errorf("expected a single poll before giving up, got %d", polls)
	}
}

func TestWaitForTaskTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"state":"generating"}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)
	c.SetSleeper(noSleep)

	// Each fake sleep advances the clock by the poll interval.
	current := time.Now()
	c.now = func() time.Time { return current }
	c.SetSleeper(func(ctx context.Context, d time.Duration) error {
		current = current.Add(d)
		return nil
	})

	_, err := c.WaitForTask(context.Background(), VideoJobs, "task-5", 10*time.Second, time.Minute)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.TaskID != "task-5" {
		t.Errorf("unexpected task id %q", timeoutErr.TaskID)
	}
}

func TestWaitForTaskCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"state":"generating"}}`)
	}))
	defer server.Close()

	c := NewWithBaseURL("test-key", server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	c.SetSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := c.WaitForTask(ctx, VideoJobs, "task-6", time.Second, time.Minute)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestDownload(t *testing.T) {
	payload := []byte("fake video bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "nested", "clip.mp4")
	c := New("test-key")
	if err := c.Download(context.Background(), server.URL+"/clip.mp4", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("downloaded bytes do not match")
	}
}

func TestDownloadBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	c := New("test-key")
	err := c.Download(context.Background(), server.URL+"/clip.mp4", dest)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected *DownloadError, got %v", err)
	}
}
