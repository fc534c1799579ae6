package generation

import (
	"errors"
	"testing"
	"time"
)

func TestTaskStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskQueued, false},
		{TaskProcessing, false},
		{TaskCompleted, true},
		{TaskFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTask_Advance(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		wantErr bool
	}{
		{"queued to processing", TaskQueued, TaskProcessing, false},
		{"queued to completed", TaskQueued, TaskCompleted, false},
		{"queued to failed", TaskQueued, TaskFailed, false},
		{"processing to processing", TaskProcessing, TaskProcessing, false},
		{"processing to completed", TaskProcessing, TaskCompleted, false},
		{"processing to queued", TaskProcessing, TaskQueued, true},
		{"completed to processing", TaskCompleted, TaskProcessing, true},
		{"completed to completed", TaskCompleted, TaskCompleted, true},
		{"failed to completed", TaskFailed, TaskCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t-1", Status: tt.from}
			err := task.Advance(Task{Status: tt.to})

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				if task.Status != tt.from {
					t.Errorf("status changed to %s on rejected transition", task.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, task.Status)
			}
		})
	}
}

func TestTask_Advance_CompletedSetsResultURL(t *testing.T) {
	task := Task{ID: "t-1", Status: TaskProcessing}

	err := task.Advance(Task{Status: TaskCompleted, ResultURL: "https://cdn.example/v.mp4", FailureReason: "ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ResultURL != "https://cdn.example/v.mp4" {
		t.Errorf("expected result URL, got %q", task.ResultURL)
	}
	if task.FailureReason != "" {
		t.Errorf("expected no failure reason, got %q", task.FailureReason)
	}
}

func TestTask_Advance_FailedSetsReason(t *testing.T) {
	task := Task{ID: "t-1", Status: TaskQueued}

	if err := task.Advance(Task{Status: TaskFailed, FailureReason: "nsfw", ResultURL: "ignored"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.FailureReason != "nsfw" {
		t.Errorf("expected failure reason nsfw, got %q", task.FailureReason)
	}
	if task.ResultURL != "" {
		t.Errorf("expected no result URL, got %q", task.ResultURL)
	}
}

func TestTask_Advance_KeepsIdentity(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	task := Task{ID: "t-1", Status: TaskQueued}

	err := task.Advance(Task{ID: "other", Name: "Video_1", CreatedAt: created})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "t-1" {
		t.Errorf("expected ID to stay t-1, got %s", task.ID)
	}
	if task.Status != TaskQueued {
		t.Errorf("empty observed status should keep %s, got %s", TaskQueued, task.Status)
	}
	if task.Name != "Video_1" {
		t.Errorf("expected name Video_1, got %s", task.Name)
	}
	if !task.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt %v, got %v", created, task.CreatedAt)
	}
}

func TestTask_Advance_AdoptsIDWhenUnknown(t *testing.T) {
	task := Task{Status: TaskQueued}

	if err := task.Advance(Task{ID: "rec-9", Status: TaskProcessing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "rec-9" {
		t.Errorf("expected ID rec-9, got %s", task.ID)
	}
}
