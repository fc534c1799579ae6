package generator

import (
	"context"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// RecordsAdapter polls the list-all endpoint. The service may not return a
// task identifier on submission; in that case the most recently created
// record is tracked.
type RecordsAdapter struct {
	client a2e.Client
}

// NewRecordsAdapter creates a new list-all adapter.
func NewRecordsAdapter(client a2e.Client) *RecordsAdapter {
	return &RecordsAdapter{client: client}
}

// Submit sends the request. The returned TaskID may be empty.
func (a *RecordsAdapter) Submit(ctx context.Context, credential string, req generation.Request) (generation.SubmitResult, error) {
	resp, err := a.client.Submit(ctx, credential, toSubmitRequest(req))
	if err != nil {
		return generation.SubmitResult{}, classify(err)
	}

	result := generation.SubmitResult{TaskID: resp.TaskIdentifier()}
	if resp.Record != nil {
		t := taskFromRecord(*resp.Record)
		result.Task = &t
	}
	return result, nil
}

// Fetch picks the task out of the full record list. A task not listed yet
// is returned without a status so the caller keeps its current one.
func (a *RecordsAdapter) Fetch(ctx context.Context, credential, taskID string) (generation.Task, error) {
	tasks, err := listRecords(ctx, a.client, credential)
	if err != nil {
		return generation.Task{}, err
	}

	if taskID == "" {
		latest, ok := mostRecent(tasks)
		if !ok {
			return generation.Task{}, nil
		}
		return latest, nil
	}

	for _, t := range tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return generation.Task{ID: taskID}, nil
}

// List returns every task visible to the credential.
func (a *RecordsAdapter) List(ctx context.Context, credential string) ([]generation.Task, error) {
	return listRecords(ctx, a.client, credential)
}

func listRecords(ctx context.Context, client a2e.Client, credential string) ([]generation.Task, error) {
	resp, err := client.AllRecords(ctx, credential)
	if err != nil {
		return nil, classify(err)
	}

	tasks := make([]generation.Task, 0, len(resp.Records))
	for _, r := range resp.Records {
		tasks = append(tasks, taskFromRecord(r))
	}
	return tasks, nil
}

// mostRecent returns the task with the latest CreatedAt. Ties keep the
// earlier list position.
func mostRecent(tasks []generation.Task) (generation.Task, bool) {
	if len(tasks) == 0 {
		return generation.Task{}, false
	}
	latest := tasks[0]
	for _, t := range tasks[1:] {
		if t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	return latest, true
}

// Compile-time check that RecordsAdapter implements generation.Backend.
var _ generation.Backend = (*RecordsAdapter)(nil)
