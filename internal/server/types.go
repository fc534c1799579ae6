// Package server provides the HTTP API of the generation orchestrator.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// CreateGenerationRequest is the HTTP request body for starting a generation.
// Required fields are checked by the orchestrator so that its messages reach
// the client; only the shape of the body is validated here.
type CreateGenerationRequest struct {
	// Name labels the video; a timestamped default is used when empty.
	Name string `json:"name" validate:"max=200"`
	// SourceImageURL is the image to animate. Share links are normalized.
	SourceImageURL string `json:"source_image_url" validate:"max=2048"`
	// EndImageURL is the last frame for the first_last_frame variant.
	EndImageURL    string `json:"end_image_url" validate:"max=2048"`
	Prompt         string `json:"prompt" validate:"max=4000"`
	NegativePrompt string `json:"negative_prompt" validate:"max=4000"`
	// Variant is standard (default), general or first_last_frame.
	Variant string `json:"model_variant" validate:"omitempty,oneof=standard general first_last_frame"`
	// DurationUnit defaults to the variant's unit.
	DurationUnit string `json:"duration_unit" validate:"omitempty,oneof=seconds frames"`
	// DurationValue is seconds (5, 10, 15) or frames (81, 129); zero selects the default.
	DurationValue int  `json:"duration_value" validate:"min=0"`
	ExtendPrompt  bool `json:"extend_prompt"`
	// ReplicateCount is clamped into [1, 5].
	ReplicateCount int `json:"replicate_count"`
}

// toInput converts the DTO to the orchestrator's input.
func (r CreateGenerationRequest) toInput() generation.Input {
	variant := generation.ModelVariant(r.Variant)
	if variant == "" {
		variant = generation.VariantStandard
	}
	return generation.Input{
		Name:           r.Name,
		SourceImageURL: r.SourceImageURL,
		EndImageURL:    r.EndImageURL,
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Duration:       generation.Duration{Unit: generation.DurationUnit(r.DurationUnit), Value: r.DurationValue},
		Variant:        variant,
		ExtendPrompt:   r.ExtendPrompt,
		ReplicateCount: r.ReplicateCount,
	}
}

// ErrorDetail describes a failed generation.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Body is a prefix of the raw service response, when available.
	Body string `json:"body,omitempty"`
}

// StateResponse is the HTTP rendering of the orchestrator state.
type StateResponse struct {
	Phase            string              `json:"phase"`
	Epoch            uint64              `json:"epoch"`
	AttemptID        string              `json:"attempt_id,omitempty"`
	StatusLine       string              `json:"status_line"`
	Notice           string              `json:"notice,omitempty"`
	Request          *generation.Request `json:"request,omitempty"`
	Task             *generation.Task    `json:"task,omitempty"`
	Error            *ErrorDetail        `json:"error,omitempty"`
	ResultURL        string              `json:"result_url,omitempty"`
	ArchivedLocation string              `json:"archived_location,omitempty"`
	PollAttempts     int                 `json:"poll_attempts"`
	HasCredential    bool                `json:"has_credential"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func newStateResponse(s generation.State, hasCredential bool) StateResponse {
	resp := StateResponse{
		Phase:            string(s.Phase),
		Epoch:            s.Epoch,
		AttemptID:        s.AttemptID,
		StatusLine:       s.StatusLine,
		Notice:           s.Notice,
		Request:          s.Request,
		Task:             s.Task,
		ResultURL:        s.ResultURL,
		ArchivedLocation: s.ArchivedLocation,
		PollAttempts:     s.PollAttempts,
		HasCredential:    hasCredential,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Error != nil {
		resp.Error = &ErrorDetail{
			Kind:    string(s.Error.Kind),
			Message: s.Error.Message,
			Body:    s.Error.Body,
		}
	}
	return resp
}

// HistoryResponse lists past attempts, most recent first.
type HistoryResponse struct {
	Entries []generation.Entry `json:"entries"`
}

// SetCredentialRequest is the HTTP request body for storing the API token.
type SetCredentialRequest struct {
	Token string `json:"token" validate:"required"`
}

// CredentialResponse reports whether a token is stored. The token itself is
// never returned.
type CredentialResponse struct {
	Present    bool   `json:"present"`
	StatusLine string `json:"status_line,omitempty"`
}

// ConnectionResponse is the result of a connection test.
type ConnectionResponse struct {
	OK         bool   `json:"ok"`
	Videos     int    `json:"videos"`
	StatusLine string `json:"status_line"`
}

// NormalizeRequest is the HTTP request body for previewing URL normalization.
type NormalizeRequest struct {
	URL string `json:"url" validate:"required"`
}

// NormalizeResponse shows how a URL would be rewritten.
type NormalizeResponse struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Kind   string `json:"kind"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
