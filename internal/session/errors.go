package session

import (
	"fmt"
	"time"
)

// SubmissionError means the analysis request was rejected before a job was
// created. Not retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("analysis submission rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError means the upstream reported the job as failed, or a status
// or result fetch came back non-successful.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "analysis failed upstream"
	}
	return fmt.Sprintf("job %s: %s", e.JobID, msg)
}

// TimeoutError means the polling ceiling elapsed without the job reaching a
// terminal state. Attempts is a diagnostic, not a limit: the ceiling is
// wall-clock.
type TimeoutError struct {
	JobID    string
	Ceiling  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s: no terminal state after %s (%d polls)", e.JobID, e.Ceiling, e.Attempts)
}

// MalformedResultError means a fetch succeeded but the payload failed
// validation and cannot be trusted by the diagram layer.
type MalformedResultError struct {
	JobID  string
	Reason string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("job %s: malformed result: %s", e.JobID, e.Reason)
}
