package generation

import (
	"slices"
	"time"
)

// TaskStatus is the remote state of a generation task.
type TaskStatus string

const (
	// TaskQueued indicates the task is waiting for the service to pick it up.
	TaskQueued TaskStatus = "queued"
	// TaskProcessing indicates the service is generating the video.
	TaskProcessing TaskStatus = "processing"
	// TaskCompleted indicates the video is ready at ResultURL.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed indicates the service gave up; see FailureReason.
	TaskFailed TaskStatus = "failed"
)

// IsTerminal returns true if no further polling is needed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// validTransitions defines which observed status changes are accepted.
// Observations may skip states; they may never leave a terminal one.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskQueued:     {TaskQueued, TaskProcessing, TaskCompleted, TaskFailed},
	TaskProcessing: {TaskProcessing, TaskCompleted, TaskFailed},
	TaskCompleted:  {},
	TaskFailed:     {},
}

func canTransition(from, to TaskStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Task is the client-side record of a remote generation task.
// It is read-only from the service's perspective: the orchestrator only
// advances it with observations fetched from the service.
type Task struct {
	// ID is assigned by the remote service and is opaque.
	ID string `json:"id"`
	// Name is the label the request was submitted with.
	Name string `json:"name,omitempty"`
	// Status is the last observed remote status.
	Status TaskStatus `json:"status"`
	// ResultURL is set only when Status is TaskCompleted.
	ResultURL string `json:"result_url,omitempty"`
	// FailureReason is set only when Status is TaskFailed.
	FailureReason string `json:"failure_reason,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// Advance applies an observation of the same task to t.
// Returns ErrInvalidTransition and leaves t unchanged if the observed status
// is not reachable from the current one.
func (t *Task) Advance(obs Task) error {
	if obs.Status == "" {
		obs.Status = t.Status
	}
	if !canTransition(t.Status, obs.Status) {
		return ErrInvalidTransition
	}

	if t.ID == "" {
		t.ID = obs.ID
	}
	if obs.Name != "" {
		t.Name = obs.Name
	}
	if !obs.CreatedAt.IsZero() {
		t.CreatedAt = obs.CreatedAt
	}
	t.Status = obs.Status

	switch t.Status {
	case TaskCompleted:
		t.ResultURL = obs.ResultURL
	case TaskFailed:
		t.FailureReason = obs.FailureReason
	}

	return nil
}
