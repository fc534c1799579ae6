package generation

import "time"

// Phase is the orchestrator's position in the generation lifecycle.
type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseValidating             Phase = "validating"
	PhaseSubmitting             Phase = "submitting"
	PhasePolling                Phase = "polling"
	PhaseAwaitingSingleResponse Phase = "awaiting_single_response"
	PhaseCompleted              Phase = "completed"
	PhaseFailed                 Phase = "failed"
)

// IsTerminal returns true for Completed and Failed.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// State is an externally observable snapshot of the orchestrator.
type State struct {
	Phase Phase `json:"phase"`
	// Epoch increases with every submit or reset.
	Epoch     uint64 `json:"epoch"`
	AttemptID string `json:"attempt_id,omitempty"`
	// StatusLine is the human-readable progress message.
	StatusLine string `json:"status_line"`
	// Notice is the outcome of the last credential or connection operation.
	Notice  string   `json:"notice,omitempty"`
	Request *Request `json:"request,omitempty"`
	Task    *Task    `json:"task,omitempty"`
	Error   *Error   `json:"-"`
	// ResultURL is set once the task completed with a result.
	ResultURL string `json:"result_url,omitempty"`
	// ArchivedLocation is where the result was stored locally or in S3.
	ArchivedLocation string    `json:"archived_location,omitempty"`
	PollAttempts     int       `json:"poll_attempts"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Clone creates a deep copy of the state for safe reads.
func (s State) Clone() State {
	out := s
	if s.Request != nil {
		r := *s.Request
		out.Request = &r
	}
	if s.Task != nil {
		t := *s.Task
		out.Task = &t
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// Renderer receives every state transition in order.
// Render is called with the orchestrator lock held: it must return quickly
// and must not call back into the orchestrator.
type Renderer interface {
	Render(State)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(State)

// Render calls f(s).
func (f RendererFunc) Render(s State) { f(s) }

type nopRenderer struct{}

func (nopRenderer) Render(State) {}
