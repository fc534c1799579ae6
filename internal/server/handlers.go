package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/i2v-orchestrator/internal/generation"
	"github.com/maauso/i2v-orchestrator/internal/normalize"
)

// Orchestrator is the part of generation.Orchestrator the API drives.
type Orchestrator interface {
	State() generation.State
	Submit(ctx context.Context, in generation.Input) (generation.State, error)
	CheckNow(ctx context.Context) (generation.State, error)
	Reset()
	SetCredential(ctx context.Context, value string) error
	ClearCredential(ctx context.Context) error
	HasCredential() bool
	TestConnection(ctx context.Context) (int, error)
	History() generation.History
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	orch      Orchestrator
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(orch Orchestrator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		orch:      orch,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetState handles GET /state requests.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state(h.orch.State()))
}

// CreateGeneration handles POST /generations requests. It answers once the
// service has accepted or rejected the submission; polling continues in the
// background.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req CreateGenerationRequest
	if !h.decode(w, r, &req) {
		return
	}

	// The attempt outlives the request: a disconnecting client must not
	// abort the submission or the polls that follow it.
	state, err := h.orch.Submit(context.WithoutCancel(r.Context()), req.toInput())
	if errors.Is(err, generation.ErrSuperseded) {
		writeError(w, http.StatusConflict, "generation was superseded by a newer request", "SUPERSEDED")
		return
	}

	h.logger.Info("generation submitted",
		slog.String("attempt_id", state.AttemptID),
		slog.String("phase", string(state.Phase)),
	)
	writeJSON(w, statusFor(state), h.state(state))
}

// CheckGeneration handles POST /generations/check requests.
func (h *Handlers) CheckGeneration(w http.ResponseWriter, r *http.Request) {
	state, err := h.orch.CheckNow(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, generation.ErrNotPolling):
		writeError(w, http.StatusConflict, "no generation is being polled", "NOT_POLLING")
		return
	case errors.Is(err, generation.ErrSuperseded):
		writeError(w, http.StatusConflict, "generation was superseded by a newer request", "SUPERSEDED")
		return
	}
	writeJSON(w, statusFor(state), h.state(state))
}

// ResetGeneration handles POST /generations/reset requests.
func (h *Handlers) ResetGeneration(w http.ResponseWriter, r *http.Request) {
	h.orch.Reset()
	writeJSON(w, http.StatusOK, h.state(h.orch.State()))
}

// ListGenerations handles GET /generations requests.
func (h *Handlers) ListGenerations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orch.History().List(r.Context())
	if err != nil {
		h.logger.Error("failed to list history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list generations", "HISTORY_FAILED")
		return
	}
	if entries == nil {
		entries = []generation.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// GetCredential handles GET /credential requests.
func (h *Handlers) GetCredential(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CredentialResponse{Present: h.orch.HasCredential()})
}

// SetCredential handles PUT /credential requests.
func (h *Handlers) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req SetCredentialRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.orch.SetCredential(r.Context(), req.Token); err != nil {
		h.logger.Error("failed to store credential", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store API token", "CREDENTIAL_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, CredentialResponse{Present: h.orch.HasCredential()})
}

// DeleteCredential handles DELETE /credential requests.
func (h *Handlers) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.ClearCredential(r.Context()); err != nil {
		h.logger.Error("failed to clear credential", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to clear API token", "CREDENTIAL_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, CredentialResponse{
		Present:    false,
		StatusLine: h.orch.State().Notice,
	})
}

// TestConnection handles GET /connection requests.
func (h *Handlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	n, err := h.orch.TestConnection(r.Context())
	line := h.orch.State().Notice
	if err != nil {
		var ge *generation.Error
		if errors.As(err, &ge) && ge.Kind == generation.KindValidation {
			writeJSON(w, http.StatusBadRequest, ConnectionResponse{StatusLine: ge.Message})
			return
		}
		writeJSON(w, http.StatusBadGateway, ConnectionResponse{StatusLine: line})
		return
	}
	writeJSON(w, http.StatusOK, ConnectionResponse{OK: true, Videos: n, StatusLine: line})
}

// Normalize handles POST /normalize requests.
func (h *Handlers) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, NormalizeResponse{
		Input:  req.URL,
		Output: normalize.URL(req.URL),
		Kind:   string(normalize.Classify(req.URL)),
	})
}

// decode reads and validates a JSON body, writing the error response on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) state(s generation.State) StateResponse {
	return newStateResponse(s, h.orch.HasCredential())
}

// statusFor maps a state to the HTTP status it is served with.
func statusFor(s generation.State) int {
	if s.Error != nil {
		switch s.Error.Kind {
		case generation.KindValidation:
			return http.StatusUnprocessableEntity
		case generation.KindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	}
	if s.Phase == generation.PhasePolling {
		return http.StatusAccepted
	}
	return http.StatusOK
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
