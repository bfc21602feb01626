package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is any non-success response from the upstream service. The body's
// "detail" field (when present) carries the server's message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

// NotFound reports whether the server has no record of the requested entity.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// StillProcessing reports whether results were requested before the job
// reached a terminal state.
func (e *APIError) StillProcessing() bool {
	return e.StatusCode == http.StatusAccepted
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	detail := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Detail != "":
			detail = payload.Detail
		case payload.Message != "":
			detail = payload.Message
		case payload.Error != "":
			detail = payload.Error
		}
	}
	if detail == "" {
		detail = strings.TrimSpace(truncateBody(body))
	}
	return &APIError{StatusCode: status, Detail: detail}
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
