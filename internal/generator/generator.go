// Package generator adapts the A2E API to the generation.Backend port.
// Two response shapes exist: a single-task status endpoint (TaskAdapter)
// and a list-all records endpoint (RecordsAdapter). Both normalize their
// payloads into generation.Task values.
package generator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// Shape selects which status endpoint family is polled.
type Shape string

const (
	// ShapeTask polls /<status-path>/<id>.
	ShapeTask Shape = "task"
	// ShapeRecords polls the list-all endpoint and picks the task from it.
	ShapeRecords Shape = "records"
)

// Default poll intervals observed for each shape.
const (
	TaskPollInterval    = 5 * time.Second
	RecordsPollInterval = 10 * time.Second
)

// ErrUnknownShape is returned by New for an unsupported Shape.
var ErrUnknownShape = errors.New("generator: unknown status shape")

// New returns the adapter for shape.
func New(shape Shape, client a2e.Client) (generation.Backend, error) {
	switch shape {
	case ShapeTask:
		return NewTaskAdapter(client), nil
	case ShapeRecords:
		return NewRecordsAdapter(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
}

// PollInterval returns the default delay between checks for shape.
func PollInterval(shape Shape) time.Duration {
	if shape == ShapeRecords {
		return RecordsPollInterval
	}
	return TaskPollInterval
}

// MapStatus maps a remote status string to a task status. Unknown
// non-empty values are treated as still processing.
func MapStatus(s string) generation.TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "done", "success", "succeeded":
		return generation.TaskCompleted
	case "failed", "fail", "error":
		return generation.TaskFailed
	case "", "queued", "initialized", "pending", "sent":
		return generation.TaskQueued
	default:
		return generation.TaskProcessing
	}
}

// toSubmitRequest maps a domain request onto the wire body. Frame-based
// variants send video_length, the others video_time.
func toSubmitRequest(req generation.Request) a2e.SubmitRequest {
	out := a2e.SubmitRequest{
		Name:           req.Name,
		ImageURL:       req.SourceImageURL,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		ExtendPrompt:   req.ExtendPrompt,
		NumberOfImages: req.ReplicateCount,
		EndImageURL:    req.EndImageURL,
	}

	if req.Duration.Unit == generation.UnitFrames {
		out.VideoLength = req.Duration.Value
	} else {
		out.VideoTime = req.Duration.Value
	}

	if req.Variant != generation.VariantStandard {
		out.ModelType = string(req.Variant)
	}

	return out
}

func taskFromGeneration(g a2e.Generation) generation.Task {
	return newTask(g.ID, "", g.Status, g.VideoURL, g.FailedMessage, g.CreatedAt)
}

func taskFromRecord(r a2e.Record) generation.Task {
	return newTask(r.ID, r.Name, r.CurrentStatus, r.VideoURL, r.FailedMessage, r.CreatedAt)
}

func newTask(id, name, status, videoURL, failed, createdAt string) generation.Task {
	t := generation.Task{
		ID:        id,
		Name:      name,
		Status:    MapStatus(status),
		CreatedAt: parseTime(createdAt),
	}
	switch t.Status {
	case generation.TaskCompleted:
		t.ResultURL = videoURL
	case generation.TaskFailed:
		t.FailureReason = failed
	}
	return t
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// classify converts client errors into *generation.Error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *a2e.APIError
	switch {
	case errors.As(err, &apiErr):
		kind := generation.KindTransport
		switch {
		case errors.Is(err, a2e.ErrMalformedResponse):
			kind = generation.KindMalformedResponse
		case errors.Is(err, a2e.ErrServiceRejected):
			kind = generation.KindService
		}
		return generation.NewError(kind, apiErr.Message, err).WithBody(apiErr.Body)
	case errors.Is(err, a2e.ErrTokenRequired):
		return generation.NewError(generation.KindValidation, "Please provide API token", err)
	default:
		return generation.NewError(generation.KindTransport, "request to generation service failed", err)
	}
}
