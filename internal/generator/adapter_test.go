package generator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// mockClient is a simple mock for testing the adapters.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) Submit(ctx context.Context, token string, req a2e.SubmitRequest) (a2e.SubmitResponse, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(a2e.SubmitResponse), args.Error(1)
}

func (m *mockClient) Status(ctx context.Context, token, taskID string) (a2e.StatusResponse, error) {
	args := m.Called(ctx, token, taskID)
	return args.Get(0).(a2e.StatusResponse), args.Error(1)
}

func (m *mockClient) AllRecords(ctx context.Context, token string) (a2e.RecordsResponse, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(a2e.RecordsResponse), args.Error(1)
}

func newServerClient(t *testing.T, respond func(status *int, body *string)) *a2e.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, body := http.StatusOK, ""
		respond(&status, &body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := a2e.NewClient(a2e.WithBaseURL(srv.URL), a2e.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

var testRequest = generation.Request{
	Name:           "Video_1",
	SourceImageURL: "https://i.ibb.co/x.png",
	Prompt:         "p",
	Duration:       generation.Seconds(5),
	Variant:        generation.VariantStandard,
	ReplicateCount: 2,
}

func TestTaskAdapter_Submit(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewTaskAdapter(client)

	client.On("Submit", ctx, "tok", mock.MatchedBy(func(r a2e.SubmitRequest) bool {
		return r.Name == "Video_1" && r.VideoTime == 5 && r.NumberOfImages == 2
	})).Return(a2e.SubmitResponse{
		Generation: &a2e.Generation{ID: "gen-1", Status: "queued"},
	}, nil)

	res, err := adapter.Submit(ctx, "tok", testRequest)
	require.NoError(t, err)

	assert.Equal(t, "gen-1", res.TaskID)
	require.NotNil(t, res.Task)
	assert.Equal(t, generation.TaskQueued, res.Task.Status)
	client.AssertExpectations(t)
}

func TestTaskAdapter_Submit_Error(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewTaskAdapter(client)

	client.On("Submit", ctx, "tok", mock.Anything).
		Return(a2e.SubmitResponse{}, a2e.ErrTokenRequired)

	_, err := adapter.Submit(ctx, "tok", testRequest)
	assert.Equal(t, generation.KindValidation, generation.KindOf(err))
	client.AssertExpectations(t)
}

func TestTaskAdapter_Fetch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		remote     a2e.Generation
		wantStatus generation.TaskStatus
		wantURL    string
		wantReason string
	}{
		{"processing", a2e.Generation{Status: "processing"}, generation.TaskProcessing, "", ""},
		{"completed", a2e.Generation{Status: "completed", VideoURL: "https://cdn/v.mp4"}, generation.TaskCompleted, "https://cdn/v.mp4", ""},
		{"failed", a2e.Generation{Status: "failed", FailedMessage: "bad face"}, generation.TaskFailed, "", "bad face"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			adapter := NewTaskAdapter(client)
			client.On("Status", ctx, "tok", "gen-1").Return(a2e.StatusResponse{Generation: &tt.remote}, nil)

			task, err := adapter.Fetch(ctx, "tok", "gen-1")
			require.NoError(t, err)

			assert.Equal(t, "gen-1", task.ID)
			assert.Equal(t, tt.wantStatus, task.Status)
			assert.Equal(t, tt.wantURL, task.ResultURL)
			assert.Equal(t, tt.wantReason, task.FailureReason)
			client.AssertExpectations(t)
		})
	}
}

func TestTaskAdapter_Fetch_NoTaskID(t *testing.T) {
	client := &mockClient{}
	adapter := NewTaskAdapter(client)

	_, err := adapter.Fetch(context.Background(), "tok", "")
	assert.Equal(t, generation.KindMalformedResponse, generation.KindOf(err))
	client.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordsAdapter_Submit(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)

	client.On("Submit", ctx, "tok", mock.Anything).Return(a2e.SubmitResponse{
		Record: &a2e.Record{ID: "rec-1", CurrentStatus: "initialized"},
	}, nil)

	res, err := adapter.Submit(ctx, "tok", testRequest)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", res.TaskID)
	assert.Equal(t, generation.TaskQueued, res.Task.Status)
}

func TestRecordsAdapter_Submit_WithoutID(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)

	client.On("Submit", ctx, "tok", mock.Anything).Return(a2e.SubmitResponse{}, nil)

	res, err := adapter.Submit(ctx, "tok", testRequest)
	require.NoError(t, err)
	assert.Empty(t, res.TaskID)
	assert.Nil(t, res.Task)
}

func records() a2e.RecordsResponse {
	return a2e.RecordsResponse{Records: []a2e.Record{
		{ID: "r1", Name: "Video_1", CurrentStatus: "completed", VideoURL: "https://cdn/1.mp4", CreatedAt: "2024-05-01T10:00:00.000Z"},
		{ID: "r3", Name: "Video_3", CurrentStatus: "processing", CreatedAt: "2024-05-01T12:00:00.000Z"},
		{ID: "r2", Name: "Video_2", CurrentStatus: "failed", FailedMessage: "nsfw", CreatedAt: "2024-05-01T11:00:00.000Z"},
	}}
}

func TestRecordsAdapter_Fetch_ByID(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)
	client.On("AllRecords", ctx, "tok").Return(records(), nil)

	task, err := adapter.Fetch(ctx, "tok", "r2")
	require.NoError(t, err)

	assert.Equal(t, "r2", task.ID)
	assert.Equal(t, generation.TaskFailed, task.Status)
	assert.Equal(t, "nsfw", task.FailureReason)
}

func TestRecordsAdapter_Fetch_MostRecentWithoutID(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)
	client.On("AllRecords", ctx, "tok").Return(records(), nil)

	task, err := adapter.Fetch(ctx, "tok", "")
	require.NoError(t, err)

	assert.Equal(t, "r3", task.ID)
	assert.Equal(t, generation.TaskProcessing, task.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), task.CreatedAt.UTC())
}

func TestRecordsAdapter_Fetch_NotListedYet(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)
	client.On("AllRecords", ctx, "tok").Return(records(), nil)

	task, err := adapter.Fetch(ctx, "tok", "r9")
	require.NoError(t, err)

	assert.Equal(t, "r9", task.ID)
	assert.Empty(t, task.Status)
}

func TestRecordsAdapter_Fetch_EmptyList(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)
	client.On("AllRecords", ctx, "tok").Return(a2e.RecordsResponse{}, nil)

	task, err := adapter.Fetch(ctx, "tok", "")
	require.NoError(t, err)
	assert.Empty(t, task.Status)
}

func TestRecordsAdapter_List(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	adapter := NewRecordsAdapter(client)
	client.On("AllRecords", ctx, "tok").Return(records(), nil)

	tasks, err := adapter.List(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "https://cdn/1.mp4", tasks[0].ResultURL)
}

// The records shape drives a full orchestrator run: processing twice, then
// completed, with the result URL taken from the third response.
func TestRecordsAdapter_WithOrchestrator(t *testing.T) {
	var calls atomic.Int32
	client := newServerClient(t, func(_ *int, body *string) {
		switch n := calls.Add(1); {
		case n == 1:
			*body = `{"code":0,"data":{"_id":"rec-1","current_status":"initialized"}}`
		case n < 4:
			*body = `{"code":0,"data":[{"_id":"rec-1","current_status":"processing"}]}`
		default:
			*body = `{"code":0,"data":[{"_id":"rec-1","current_status":"completed","video_url":"https://cdn/final.mp4"}]}`
		}
	})

	creds := credentialFunc("tok")
	o := generation.NewOrchestrator(NewRecordsAdapter(client), creds, nil,
		generation.WithPollInterval(10*time.Millisecond))
	require.NoError(t, o.LoadCredential(context.Background()))
	t.Cleanup(o.Reset)

	_, err := o.Submit(context.Background(), generation.Input{SourceImageURL: "https://i.ibb.co/x.png"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return o.State().Phase == generation.PhaseCompleted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://cdn/final.mp4", o.State().ResultURL)
	assert.Equal(t, 3, o.State().PollAttempts)
}

type credentialFunc string

func (c credentialFunc) Get(context.Context) (string, error) { return string(c), nil }
func (c credentialFunc) Set(context.Context, string) error   { return nil }
func (c credentialFunc) Clear(context.Context) error         { return nil }
