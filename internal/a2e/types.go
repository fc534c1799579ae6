// Package a2e provides an HTTP client for the A2E image-to-video API.
package a2e

import (
	"encoding/json"
	"strings"
)

// AuthScheme selects how the token is placed in the Authorization header.
type AuthScheme string

const (
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer AuthScheme = "bearer"
	// AuthRaw sends the token as the whole header value.
	AuthRaw AuthScheme = "raw"
)

// SuccessCheck selects how a submission response is judged successful.
type SuccessCheck string

const (
	// SuccessHTTP accepts any 2xx response.
	SuccessHTTP SuccessCheck = "http"
	// SuccessCode accepts any response whose embedded code is 0.
	SuccessCode SuccessCheck = "code"
	// SuccessHTTPAndCode requires both a 2xx response and code 0.
	SuccessHTTPAndCode SuccessCheck = "http_and_code"
)

// SubmitRequest is the body of the submission endpoint.
// Exactly one of VideoTime and VideoLength is set.
type SubmitRequest struct {
	Name           string `json:"name"`
	ImageURL       string `json:"image_url"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	VideoTime      int    `json:"video_time,omitempty"`
	VideoLength    int    `json:"video_length,omitempty"`
	ExtendPrompt   bool   `json:"extend_prompt"`
	ModelType      string `json:"model_type,omitempty"`
	NumberOfImages int    `json:"number_of_images,omitempty"`
	EndImageURL    string `json:"end_image_url,omitempty"`
}

// Record is one entry of the list-all endpoint, also returned as the data of
// a submission response.
type Record struct {
	ID            string `json:"_id"`
	Name          string `json:"name"`
	CurrentStatus string `json:"current_status"`
	VideoURL      string `json:"video_url"`
	FailedMessage string `json:"failed_message"`
	CreatedAt     string `json:"createdAt"`
}

// Generation is the task object returned by the single-task status endpoint.
type Generation struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	VideoURL      string `json:"video_url"`
	FailedMessage string `json:"failed_message"`
	CreatedAt     string `json:"created_at"`
}

// SubmitResponse is the decoded submission response. Services differ in
// where they put the new task's identifier.
type SubmitResponse struct {
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id"`
	Record     *Record     `json:"-"`
	Generation *Generation `json:"generation"`
}

// TaskIdentifier returns the first identifier present in the response.
func (r SubmitResponse) TaskIdentifier() string {
	switch {
	case r.Generation != nil && r.Generation.ID != "":
		return r.Generation.ID
	case r.Record != nil && r.Record.ID != "":
		return r.Record.ID
	case r.TaskID != "":
		return r.TaskID
	default:
		return r.ID
	}
}

// StatusResponse is the single-task status endpoint response.
type StatusResponse struct {
	Generation *Generation `json:"generation"`
}

// RecordsResponse is the list-all endpoint response.
type RecordsResponse struct {
	Records []Record
}

// envelope holds the fields every response may carry.
type envelope struct {
	Code    *int            `json:"code"`
	Message text            `json:"message"`
	Msg     text            `json:"msg"`
	Error   text            `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// message returns the first non-empty of message, msg and error.
func (e envelope) message() string {
	for _, m := range []text{e.Message, e.Msg, e.Error} {
		if s := strings.TrimSpace(string(m)); s != "" {
			return s
		}
	}
	return ""
}

// text decodes a JSON string, or keeps any other JSON value verbatim.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	if string(b) == "null" {
		*t = ""
		return nil
	}
	*t = text(b)
	return nil
}
