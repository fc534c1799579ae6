package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/generation"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   string
		want generation.TaskStatus
	}{
		{"completed", generation.TaskCompleted},
		{"COMPLETED", generation.TaskCompleted},
		{"done", generation.TaskCompleted},
		{"success", generation.TaskCompleted},
		{"failed", generation.TaskFailed},
		{"error", generation.TaskFailed},
		{"", generation.TaskQueued},
		{"initialized", generation.TaskQueued},
		{"sent", generation.TaskQueued},
		{"pending", generation.TaskQueued},
		{"processing", generation.TaskProcessing},
		{"rendering", generation.TaskProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MapStatus(tt.in); got != tt.want {
				t.Errorf("MapStatus(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	b, err := New(ShapeTask, &mockClient{})
	require.NoError(t, err)
	assert.IsType(t, &TaskAdapter{}, b)

	b, err = New(ShapeRecords, &mockClient{})
	require.NoError(t, err)
	assert.IsType(t, &RecordsAdapter{}, b)

	_, err = New("stream", &mockClient{})
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestPollInterval(t *testing.T) {
	assert.Equal(t, 5*time.Second, PollInterval(ShapeTask))
	assert.Equal(t, 10*time.Second, PollInterval(ShapeRecords))
}

func TestToSubmitRequest(t *testing.T) {
	tests := []struct {
		name string
		req  generation.Request
		want a2e.SubmitRequest
	}{
		{
			name: "standard sends seconds without model type",
			req: generation.Request{
				Name: "n", SourceImageURL: "src", Prompt: "p", NegativePrompt: "np",
				Duration: generation.Seconds(10), Variant: generation.VariantStandard,
				ExtendPrompt: true, ReplicateCount: 1,
			},
			want: a2e.SubmitRequest{
				Name: "n", ImageURL: "src", Prompt: "p", NegativePrompt: "np",
				VideoTime: 10, ExtendPrompt: true, NumberOfImages: 1,
			},
		},
		{
			name: "first last frame sends frames and end image",
			req: generation.Request{
				Name: "n", SourceImageURL: "src", EndImageURL: "end", Prompt: "p",
				Duration: generation.Frames(129), Variant: generation.VariantFirstLastFrame,
				ReplicateCount: 3,
			},
			want: a2e.SubmitRequest{
				Name: "n", ImageURL: "src", EndImageURL: "end", Prompt: "p",
				VideoLength: 129, ModelType: "first_last_frame", NumberOfImages: 3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toSubmitRequest(tt.req))
		})
	}
}

// Clamped replicate counts reach the wire unchanged.
func TestToSubmitRequest_ClampedReplicates(t *testing.T) {
	for in, want := range map[int]int{0: 1, -3: 1, 99: 5} {
		req, err := generation.BuildRequest(generation.Input{
			SourceImageURL: "https://example.com/a.png",
			ReplicateCount: in,
		}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, want, toSubmitRequest(req).NumberOfImages, "input %d", in)
	}
}

func TestNewTask_OnlyTerminalFields(t *testing.T) {
	completed := taskFromRecord(a2e.Record{ID: "r", CurrentStatus: "completed", VideoURL: "u", FailedMessage: "m"})
	assert.Equal(t, "u", completed.ResultURL)
	assert.Empty(t, completed.FailureReason)

	failed := taskFromRecord(a2e.Record{ID: "r", CurrentStatus: "failed", VideoURL: "u", FailedMessage: "m"})
	assert.Empty(t, failed.ResultURL)
	assert.Equal(t, "m", failed.FailureReason)

	processing := taskFromGeneration(a2e.Generation{ID: "g", Status: "processing", VideoURL: "u"})
	assert.Empty(t, processing.ResultURL)
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), parseTime("2024-05-01T10:00:00.000Z").UTC())
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind generation.ErrorKind
		wantMsg  string
	}{
		{
			name:     "api error without sentinel",
			err:      &a2e.APIError{Message: "Insufficient credits", Body: []byte(`{"msg":"Insufficient credits"}`)},
			wantKind: generation.KindTransport,
			wantMsg:  "Insufficient credits",
		},
		{
			name:     "token missing",
			err:      a2e.ErrTokenRequired,
			wantKind: generation.KindValidation,
			wantMsg:  "Please provide API token",
		},
		{
			name:     "unclassified",
			err:      errors.New("context deadline exceeded"),
			wantKind: generation.KindTransport,
			wantMsg:  "request to generation service failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ge *generation.Error
			require.ErrorAs(t, classify(tt.err), &ge)
			assert.Equal(t, tt.wantKind, ge.Kind)
			assert.Equal(t, tt.wantMsg, ge.Message)
		})
	}
}

// Real client errors keep their kind through the adapter.
func TestClassify_ClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind generation.ErrorKind
	}{
		{"service message", 200, `{"code":1,"msg":"quota"}`, generation.KindService},
		{"non-json success", 200, `<html>`, generation.KindMalformedResponse},
		{"non-json failure", 502, `<html>`, generation.KindTransport},
		{"bare failure", 404, `{}`, generation.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServerClient(t, func(status *int, body *string) {
				*status, *body = tt.status, tt.body
			})
			_, err := NewTaskAdapter(client).Submit(context.Background(), "tok", generation.Request{})

			assert.Equal(t, tt.wantKind, generation.KindOf(err), fmt.Sprint(err))
		})
	}
}

func TestClassify_BodyPrefix(t *testing.T) {
	body := make([]byte, 300)
	for i := range body {
		body[i] = 'x'
	}
	err := classify(&a2e.APIError{Message: "m", Body: body})

	var ge *generation.Error
	require.ErrorAs(t, err, &ge)
	assert.Len(t, ge.Body, generation.BodyPrefixLen)
}
