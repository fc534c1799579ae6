package generation

import "context"

// SubmitResult is what a successful submission yields.
type SubmitResult struct {
	// TaskID is the remote identifier; it may be empty for services that
	// only expose a list of all tasks.
	TaskID string
	// Task is the task state embedded in the response, if any.
	Task *Task
}

// Backend is the remote generation service as seen by the orchestrator.
// Implementations normalize their wire format into Task values and return
// *Error for every failure.
type Backend interface {
	// Submit sends req once. It must not retry.
	Submit(ctx context.Context, credential string, req Request) (SubmitResult, error)

	// Fetch returns the current state of the task. An empty taskID selects
	// the most recently created task where the service supports it.
	Fetch(ctx context.Context, credential, taskID string) (Task, error)

	// List returns all tasks visible to the credential.
	List(ctx context.Context, credential string) ([]Task, error)
}

// CredentialStore persists the access credential under a fixed key.
// Last write wins; implementations need not be atomic.
type CredentialStore interface {
	// Get returns ErrNoCredential when nothing is stored.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
	Clear(ctx context.Context) error
}

// Archiver retrieves a completed task's media and stores it.
type Archiver interface {
	// Archive returns the location the result was stored at.
	Archive(ctx context.Context, task Task) (location string, err error)
}
