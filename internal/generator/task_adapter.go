package generator

import (
	"context"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// TaskAdapter polls the single-task status endpoint.
type TaskAdapter struct {
	client a2e.Client
}

// NewTaskAdapter creates a new single-task adapter.
func NewTaskAdapter(client a2e.Client) *TaskAdapter {
	return &TaskAdapter{client: client}
}

// Submit sends the request and returns the task identifier from the response.
func (a *TaskAdapter) Submit(ctx context.Context, credential string, req generation.Request) (generation.SubmitResult, error) {
	resp, err := a.client.Submit(ctx, credential, toSubmitRequest(req))
	if err != nil {
		return generation.SubmitResult{}, classify(err)
	}

	result := generation.SubmitResult{TaskID: resp.TaskIdentifier()}
	switch {
	case resp.Generation != nil:
		t := taskFromGeneration(*resp.Generation)
		result.Task = &t
	case resp.Record != nil:
		t := taskFromRecord(*resp.Record)
		result.Task = &t
	}
	return result, nil
}

// Fetch returns the task's current state.
func (a *TaskAdapter) Fetch(ctx context.Context, credential, taskID string) (generation.Task, error) {
	if taskID == "" {
		return generation.Task{}, generation.NewError(generation.KindMalformedResponse,
			"Submission response contained no task ID", a2e.ErrTaskIDRequired)
	}

	resp, err := a.client.Status(ctx, credential, taskID)
	if err != nil {
		return generation.Task{}, classify(err)
	}

	t := taskFromGeneration(*resp.Generation)
	if t.ID == "" {
		t.ID = taskID
	}
	return t, nil
}

// List returns every task visible to the credential.
func (a *TaskAdapter) List(ctx context.Context, credential string) ([]generation.Task, error) {
	return listRecords(ctx, a.client, credential)
}

// Compile-time check that TaskAdapter implements generation.Backend.
var _ generation.Backend = (*TaskAdapter)(nil)
