package a2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/maauso/i2v-orchestrator/internal/a2e"

// Default endpoint layout of the A2E API.
const (
	DefaultBaseURL       = "https://video.a2e.ai"
	DefaultSubmitPath    = "/api/v1/userImage2Video/start"
	DefaultStatusPath    = "/api/v1/userImage2Video"
	DefaultStatusAllPath = "/api/v1/userImage2Video/allRecords"
)

// bodyPrefixLen bounds how much of a raw body appears in error messages.
const bodyPrefixLen = 200

// Static errors for A2E client operations.
var (
	// ErrTokenRequired is returned when a call is made without a token.
	ErrTokenRequired = errors.New("a2e: API token is required")
	// ErrTaskIDRequired is returned when a status check has no task ID.
	ErrTaskIDRequired = errors.New("a2e: task ID is required")
	// ErrInvalidAuthScheme is returned for an unknown AuthScheme.
	ErrInvalidAuthScheme = errors.New("a2e: invalid auth scheme")
	// ErrInvalidSuccessCheck is returned for an unknown SuccessCheck.
	ErrInvalidSuccessCheck = errors.New("a2e: invalid success check")
	// ErrRequestFailed is returned for network failures and non-2xx responses without a message.
	ErrRequestFailed = errors.New("a2e: request failed")
	// ErrServiceRejected is returned when the service reports a failure in a structured response.
	ErrServiceRejected = errors.New("a2e: service rejected request")
	// ErrMalformedResponse is returned when a successful response cannot be decoded.
	ErrMalformedResponse = errors.New("a2e: malformed response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("a2e: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("a2e: rate limited")
)

// APIError describes a failed call. Message is suitable for showing to the
// user; Body holds the raw response body when there was one.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %s", e.err, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.err, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Client defines the interface for interacting with the A2E API.
type Client interface {
	// Submit sends one generation request. It is never retried.
	Submit(ctx context.Context, token string, req SubmitRequest) (SubmitResponse, error)

	// Status returns the state of a single task.
	Status(ctx context.Context, token, taskID string) (StatusResponse, error)

	// AllRecords lists every task visible to the token.
	AllRecords(ctx context.Context, token string) (RecordsResponse, error)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL       string
	submitPath    string
	statusPath    string
	statusAllPath string
	authScheme    AuthScheme
	successCheck  SuccessCheck
	httpClient    *http.Client
	maxRetries    int
	baseBackoff   time.Duration
	logger        *slog.Logger
	tracer        trace.Tracer
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL sets the scheme and host of the API.
func WithBaseURL(url string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithSubmitPath sets the submission endpoint path.
func WithSubmitPath(p string) ClientOption {
	return func(c *HTTPClient) {
		c.submitPath = p
	}
}

// WithStatusPath sets the single-task status path; the task ID is appended.
func WithStatusPath(p string) ClientOption {
	return func(c *HTTPClient) {
		c.statusPath = strings.TrimRight(p, "/")
	}
}

// WithStatusAllPath sets the list-all endpoint path.
func WithStatusAllPath(p string) ClientOption {
	return func(c *HTTPClient) {
		c.statusAllPath = p
	}
}

// WithAuthScheme sets how the token is sent.
func WithAuthScheme(s AuthScheme) ClientOption {
	return func(c *HTTPClient) {
		c.authScheme = s
	}
}

// WithSuccessCheck sets how submission success is judged.
func WithSuccessCheck(s SuccessCheck) ClientOption {
	return func(c *HTTPClient) {
		c.successCheck = s
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets how many times status reads are retried on 429, 5xx
// and network errors. Submissions are never retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.baseBackoff = d
	}
}

// WithLogger sets the logger used for request dumps.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *HTTPClient) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient creates a new A2E HTTP client. Tokens are passed per call.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:       DefaultBaseURL,
		submitPath:    DefaultSubmitPath,
		statusPath:    DefaultStatusPath,
		statusAllPath: DefaultStatusAllPath,
		authScheme:    AuthBearer,
		successCheck:  SuccessHTTPAndCode,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseBackoff:   1 * time.Second,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	switch c.authScheme {
	case AuthBearer, AuthRaw:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAuthScheme, c.authScheme)
	}
	switch c.successCheck {
	case SuccessHTTP, SuccessCode, SuccessHTTPAndCode:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSuccessCheck, c.successCheck)
	}

	return c, nil
}

// Submit sends one generation request.
func (c *HTTPClient) Submit(ctx context.Context, token string, req SubmitRequest) (SubmitResponse, error) {
	if token == "" {
		return SubmitResponse{}, ErrTokenRequired
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("a2e: marshal request: %w", err)
	}

	resp, err := c.do(ctx, "a2e.submit", http.MethodPost, c.baseURL+c.submitPath, token, body)
	if err != nil {
		return SubmitResponse{}, err
	}
	if err := resp.verify(c.successCheck); err != nil {
		return SubmitResponse{}, err
	}

	var out SubmitResponse
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return SubmitResponse{}, malformed(resp, "unexpected submit response")
	}
	if isObject(resp.env.Data) {
		var rec Record
		if err := json.Unmarshal(resp.env.Data, &rec); err == nil {
			out.Record = &rec
		}
	}

	return out, nil
}

// Status returns the state of a single task.
func (c *HTTPClient) Status(ctx context.Context, token, taskID string) (StatusResponse, error) {
	if token == "" {
		return StatusResponse{}, ErrTokenRequired
	}
	if taskID == "" {
		return StatusResponse{}, ErrTaskIDRequired
	}

	url := fmt.Sprintf("%s%s/%s", c.baseURL, c.statusPath, taskID)

	resp, err := c.getWithRetry(ctx, "a2e.status", url, token)
	if err != nil {
		return StatusResponse{}, err
	}

	var out StatusResponse
	if err := json.Unmarshal(resp.body, &out); err != nil && len(resp.body) > 0 {
		return StatusResponse{}, malformed(resp, "unexpected status response")
	}
	if out.Generation == nil {
		if resp.env.Code != nil {
			if err := resp.verify(SuccessCode); err != nil {
				return StatusResponse{}, err
			}
		}
		return StatusResponse{}, malformed(resp, "status response has no generation")
	}

	return out, nil
}

// AllRecords lists every task visible to the token.
func (c *HTTPClient) AllRecords(ctx context.Context, token string) (RecordsResponse, error) {
	if token == "" {
		return RecordsResponse{}, ErrTokenRequired
	}

	resp, err := c.getWithRetry(ctx, "a2e.records", c.baseURL+c.statusAllPath, token)
	if err != nil {
		return RecordsResponse{}, err
	}
	if resp.env.Code != nil {
		if err := resp.verify(SuccessCode); err != nil {
			return RecordsResponse{}, err
		}
	}

	var out RecordsResponse
	if len(resp.env.Data) == 0 || string(resp.env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(resp.env.Data, &out.Records); err != nil {
		return RecordsResponse{}, malformed(resp, "unexpected records payload")
	}

	return out, nil
}

// getWithRetry performs a GET with exponential backoff retry.
func (c *HTTPClient) getWithRetry(ctx context.Context, op, url, token string) (*response, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("a2e: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		resp, err := c.do(ctx, op, http.MethodGet, url, token, nil)
		if err == nil {
			err = resp.verify(SuccessHTTP)
		}
		if err == nil {
			return resp, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
	}

	if c.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("a2e: max retries exceeded: %w", lastErr)
}

// response is a received reply whose body is either empty or valid JSON.
type response struct {
	status int
	body   []byte
	env    envelope
}

// do performs a single HTTP request. It fails for network errors and for
// bodies that are not JSON; HTTP status is judged by the caller.
func (c *HTTPClient) do(ctx context.Context, op, method, url, token string, body []byte) (*response, error) {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	))
	defer span.End()

	resp, err := c.send(ctx, method, url, token, body)
	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := resp.verify(SuccessHTTP); err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, nil
}

func (c *HTTPClient) send(ctx context.Context, method, url, token string, body []byte) (*response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("a2e: create request: %w", err)
	}

	req.Header.Set("Authorization", c.authorization(token))
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "a2e request",
		slog.String("method", method),
		slog.String("url", url),
		slog.String("authorization", c.authorization(redact(token))),
		slog.String("body", string(body)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: &APIError{
			Message: "Network error: " + err.Error(),
			err:     fmt.Errorf("%w: %w", ErrRequestFailed, err),
		}}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &APIError{
			StatusCode: resp.StatusCode,
			Message:    "Failed to read response: " + err.Error(),
			err:        fmt.Errorf("%w: %w", ErrRequestFailed, err),
		}}
	}

	c.logger.DebugContext(ctx, "a2e response",
		slog.Int("status", resp.StatusCode),
		slog.String("body", prefix(respBody)),
	)

	r := &response{status: resp.StatusCode, body: respBody}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return r, nil
	}
	if !json.Valid(respBody) {
		if r.ok() {
			return r, malformed(r, "Server returned non-JSON response: "+prefix(respBody))
		}
		return r, r.statusError(fmt.Sprintf("Request failed with status %d: %s", r.status, prefix(respBody)))
	}
	// Top-level arrays and scalars carry no envelope fields.
	_ = json.Unmarshal(respBody, &r.env)

	return r, nil
}

func (c *HTTPClient) authorization(token string) string {
	if c.authScheme == AuthRaw {
		return token
	}
	return "Bearer " + token
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// verify applies a success check to a decoded response.
func (r *response) verify(check SuccessCheck) error {
	codeOK := r.env.Code != nil && *r.env.Code == 0

	var success bool
	switch check {
	case SuccessCode:
		success = codeOK
	case SuccessHTTPAndCode:
		success = r.ok() && codeOK
	default:
		success = r.ok()
	}
	if success {
		return nil
	}

	msg := r.env.message()
	switch {
	case msg != "":
		return r.wrap(&APIError{StatusCode: r.status, Message: msg, Body: r.body, err: ErrServiceRejected})
	case r.ok():
		return &APIError{StatusCode: r.status, Message: "Unknown error", Body: r.body, err: ErrServiceRejected}
	default:
		return r.statusError(fmt.Sprintf("Request failed with status %d", r.status))
	}
}

func (r *response) statusError(msg string) error {
	return r.wrap(&APIError{StatusCode: r.status, Message: msg, Body: r.body, err: ErrRequestFailed})
}

// wrap marks 5xx and 429 failures as retryable.
func (r *response) wrap(e *APIError) error {
	switch {
	case r.status >= 500:
		e.err = fmt.Errorf("%w: %w", e.err, ErrServerError)
		return &retryableError{err: e}
	case r.status == http.StatusTooManyRequests:
		e.err = fmt.Errorf("%w: %w", e.err, ErrRateLimited)
		return &retryableError{err: e}
	default:
		return e
	}
}

func malformed(r *response, msg string) error {
	return &APIError{StatusCode: r.status, Message: msg, Body: r.body, err: ErrMalformedResponse}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// prefix returns at most bodyPrefixLen bytes of b, backing off to the start
// of a UTF-8 sequence.
func prefix(b []byte) string {
	if len(b) <= bodyPrefixLen {
		return string(b)
	}
	cut := bodyPrefixLen
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}

// redact keeps the first 20 characters of a token for debug output.
func redact(token string) string {
	if len(token) > 20 {
		token = token[:20]
	}
	return token + "..."
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
