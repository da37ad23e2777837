package types

import "time"

// TaskStatus is the terminal status of a channel task.
type TaskStatus string

const (
	// StatusSuccess indicates the task's bytes were fetched and written.
	StatusSuccess TaskStatus = "success"
	// StatusSkippedExisting indicates the destination already existed
	// with non-zero size and the backend was never invoked.
	StatusSkippedExisting TaskStatus = "skipped_existing"
	// StatusSkippedSynthesized indicates the destination was filled by
	// copying the bytes of this channel's real task (fake-image mode).
	StatusSkippedSynthesized TaskStatus = "skipped_synthesized"
	// StatusFailed indicates the task settled without producing a file.
	StatusFailed TaskStatus = "failed"
)

// FailureClass classifies a failed task.
type FailureClass string

const (
	// FailureTransientNetwork covers timeouts, connection resets and
	// 5xx responses. Retryable up to the retry ceiling.
	FailureTransientNetwork FailureClass = "transient_network"
	// FailureNotFound covers 4xx responses and missing local source
	// files. Never retried.
	FailureNotFound FailureClass = "permanent_not_found"
	// FailureIO covers local filesystem failures. Never retried.
	FailureIO FailureClass = "permanent_io"
	// FailureValidation covers tasks that could not be attempted at
	// all: canceled before dispatch, or a synthesis source that failed.
	FailureValidation FailureClass = "validation"
)

// TaskOutcome is the result of one channel task. Appended to the
// outcome ledger exactly once per task and never mutated afterwards.
type TaskOutcome struct {
	// Key is the parent tile identity.
	Key SampleKey `json:"key" msgpack:"key"`
	// Channel is the stain the task covered.
	Channel Channel `json:"channel" msgpack:"channel"`
	// DestPath is the destination file the task owned.
	DestPath string `json:"dest_path" msgpack:"dest_path"`
	// Status is the terminal status.
	Status TaskStatus `json:"status" msgpack:"status"`
	// Bytes is the number of bytes written (or found on disk for
	// skipped-existing tasks).
	Bytes int64 `json:"bytes" msgpack:"bytes"`
	// Elapsed is the wall-clock time the task spent settling.
	Elapsed time.Duration `json:"elapsed_ns" msgpack:"elapsed_ns"`
	// Attempts is the number of fetch attempts made. Zero for tasks
	// that never reached the backend.
	Attempts int `json:"attempts" msgpack:"attempts"`
	// Failure classifies the last error for failed tasks. Empty otherwise.
	Failure FailureClass `json:"failure,omitempty" msgpack:"failure,omitempty"`
	// Error is the last error message for failed tasks. Empty otherwise.
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Settled reports whether the outcome counts toward progress.
// All terminal statuses settle; this exists for symmetry with the
// progress contract rather than for filtering.
func (o *TaskOutcome) Settled() bool {
	switch o.Status {
	case StatusSuccess, StatusSkippedExisting, StatusSkippedSynthesized, StatusFailed:
		return true
	default:
		return false
	}
}
