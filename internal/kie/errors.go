package kie

import (
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned before any request is attempted when the
// client was constructed without credentials.
var ErrMissingAPIKey = fmt.Errorf("kie: KIE_AI_API_KEY is not set")

// APIError is a rejection from the remote service. The API returns HTTP 200
// with an error code embedded in the body for many failures, so Code may be
// an application code rather than an HTTP status.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("kie: API error (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("kie: API error (status %d): %s", e.HTTPStatus, e.Message)
}

// JobFailedError is an explicit failure report from the remote task registry.
type JobFailedError struct {
	TaskID  string
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("kie: task %s failed: %s (code: %s)", e.TaskID, e.Message, e.Code)
}

// TimeoutError means the task never reached a terminal state within the
// waiting window. The remote job itself is not cancelled — only the wait.
type TimeoutError struct {
	TaskID  string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("kie: timeout waiting for task %s after %s", e.TaskID, e.Elapsed.Round(time.Second))
}

// DownloadError is a failure while streaming a result artifact to disk.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("kie: download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
