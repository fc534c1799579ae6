// Package generation drives image-to-video generation requests from user
// intent to a terminal result.
//
// An Orchestrator owns one active attempt at a time. Submitting again or
// resetting abandons the previous attempt locally; nothing is cancelled on
// the remote side. Every asynchronous response is tagged with the epoch it
// was issued under and dropped if that epoch has been superseded.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maauso/i2v-orchestrator/internal/generation/id"
)

// Mode selects how a successful submission is followed up.
type Mode string

const (
	// ModePoll schedules status checks until the task is terminal.
	ModePoll Mode = "poll"
	// ModeSingle treats the submission response as the final answer.
	ModeSingle Mode = "single"
)

// Defaults for polling.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 360
	DefaultPollTimeout     = time.Hour
)

// Orchestrator runs the generation state machine:
//
//	idle → validating → submitting → (polling | awaiting_single_response) → completed | failed
type Orchestrator struct {
	backend  Backend
	creds    CredentialStore
	renderer Renderer
	archiver Archiver
	history  History
	logger   *slog.Logger
	now      func() time.Time

	mode            Mode
	pollInterval    time.Duration
	maxPollAttempts int
	pollTimeout     time.Duration

	mu         sync.Mutex
	credential string
	epoch      uint64
	state      State
	// timer is the pending scheduled check; scheduled tags it so a fired
	// timer that lost the race against CheckNow or Reset does nothing.
	timer       *time.Timer
	scheduled   uint64
	checking    bool
	pollCtx     context.Context
	pollStarted time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMode sets the submission follow-up mode.
func WithMode(m Mode) Option {
	return func(o *Orchestrator) {
		o.mode = m
	}
}

// WithPollInterval sets the fixed delay between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxPollAttempts caps the number of status checks per task. Zero disables the cap.
func WithMaxPollAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxPollAttempts = n
		}
	}
}

// WithPollTimeout caps the wall-clock time spent polling one task. Zero disables the cap.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.pollTimeout = d
		}
	}
}

// WithRenderer sets the receiver of state transitions.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithArchiver enables retrieval of completed results.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

// WithHistory sets where abandoned and finished attempts are recorded.
func WithHistory(h History) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.history = h
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an idle Orchestrator. The credential is not read
// until LoadCredential is called.
func NewOrchestrator(backend Backend, creds CredentialStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		backend:         backend,
		creds:           creds,
		renderer:        nopRenderer{},
		history:         NewMemoryHistory(),
		logger:          logger,
		now:             time.Now,
		mode:            ModePoll,
		pollInterval:    DefaultPollInterval,
		maxPollAttempts: DefaultMaxPollAttempts,
		pollTimeout:     DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = State{Phase: PhaseIdle, UpdatedAt: o.now()}
	return o
}

// History returns the attempt history.
func (o *Orchestrator) History() History {
	return o.history
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// LoadCredential reads the stored credential once. A missing credential is
// not an error.
func (o *Orchestrator) LoadCredential(ctx context.Context) error {
	v, err := o.creds.Get(ctx)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		return fmt.Errorf("load credential: %w", err)
	}

	o.mu.Lock()
	o.credential = strings.TrimSpace(v)
	o.mu.Unlock()
	return nil
}

// SetCredential updates the credential and writes it through to the store.
// An empty value clears it.
func (o *Orchestrator) SetCredential(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return o.ClearCredential(ctx)
	}
	if err := o.creds.Set(ctx, value); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	o.mu.Lock()
	o.credential = value
	o.mu.Unlock()
	return nil
}

// ClearCredential removes the credential from memory and from the store.
func (o *Orchestrator) ClearCredential(ctx context.Context) error {
	if err := o.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.credential = ""
	o.noticeLocked("API token cleared")
	return nil
}

// HasCredential reports whether a credential is loaded.
func (o *Orchestrator) HasCredential() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.credential != ""
}

// Submit starts a new generation attempt, abandoning any previous one.
// It returns once the submission has been answered: the state is then
// polling, or terminal in ModeSingle or on failure. The returned error is
// the *Error surfaced in the state, or ErrSuperseded if another Submit or
// Reset overtook this one.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (State, error) {
	o.mu.Lock()
	o.abandonLocked()
	o.epoch++
	epoch := o.epoch
	o.state = State{Epoch: epoch, AttemptID: id.Attempt()}
	o.transitionLocked(PhaseValidating, "Validating request...")

	credential := o.credential
	if credential == "" {
		err := o.failLocked(validationError("Please provide API token"))
		s := o.state.Clone()
		o.mu.Unlock()
		return s, err
	}

	req, err := BuildRequest(in, o.now())
	if err != nil {
		err := o.failLocked(asError(err))
		s := o.state.Clone()
		o.mu.Unlock()
		return s, err
	}
	o.state.Request = &req
	o.transitionLocked(PhaseSubmitting, "Sending request to generation service...")
	attemptID := o.state.AttemptID
	o.mu.Unlock()

	o.logger.Info("submitting generation",
		slog.String("attempt_id", attemptID),
		slog.String("name", req.Name),
		slog.String("variant", string(req.Variant)),
		slog.String("duration", req.Duration.String()),
		slog.Int("replicates", req.ReplicateCount),
	)

	res, submitErr := o.backend.Submit(ctx, credential, req)

	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		o.logger.Debug("discarding submit response for superseded attempt",
			slog.Uint64("epoch", epoch),
		)
		return o.state.Clone(), ErrSuperseded
	}

	if submitErr != nil {
		err := o.failLocked(asError(submitErr))
		return o.state.Clone(), err
	}

	task := Task{ID: res.TaskID, Name: req.Name, Status: TaskQueued, CreatedAt: o.now()}
	if res.Task != nil {
		if err := task.Advance(*res.Task); err != nil {
			o.logger.Warn("ignoring submit task state", slog.String("error", err.Error()))
		}
	}
	o.state.Task = &task

	if o.mode == ModeSingle {
		o.transitionLocked(PhaseAwaitingSingleResponse, "Waiting for service response...")
		o.finishSingleLocked(context.WithoutCancel(ctx), epoch)
		return o.state.Clone(), o.errLocked()
	}

	o.pollCtx = context.WithoutCancel(ctx)
	o.pollStarted = o.now()
	if task.Status.IsTerminal() {
		o.applyTaskLocked(o.pollCtx, epoch, task)
		return o.state.Clone(), o.errLocked()
	}

	o.transitionLocked(PhasePolling,
		fmt.Sprintf("Video generation started, checking status in %s...", o.pollInterval))
	o.scheduleLocked(epoch)
	return o.state.Clone(), nil
}

// CheckNow performs a status check immediately. Any pending scheduled check
// is cancelled; if a check is already in flight, the current state is
// returned without issuing another request.
func (o *Orchestrator) CheckNow(ctx context.Context) (State, error) {
	o.mu.Lock()
	if o.state.Phase != PhasePolling {
		s := o.state.Clone()
		o.mu.Unlock()
		return s, ErrNotPolling
	}
	o.stopTimerLocked()
	epoch, seq := o.epoch, o.scheduled
	o.mu.Unlock()

	return o.check(ctx, epoch, seq)
}

// Reset abandons the current attempt and returns to idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.abandonLocked()
	o.epoch++
	o.state = State{Epoch: o.epoch}
	o.transitionLocked(PhaseIdle, "")
}

// TestConnection lists all tasks visible to the credential and reports how
// many there are.
func (o *Orchestrator) TestConnection(ctx context.Context) (int, error) {
	o.mu.Lock()
	credential := o.credential
	o.mu.Unlock()

	if credential == "" {
		return 0, validationError("Please enter API token first")
	}

	tasks, err := o.backend.List(ctx, credential)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		ge := asError(err)
		o.noticeLocked("Connection test failed: " + ge.Message)
		return 0, ge
	}
	o.noticeLocked(fmt.Sprintf("API connection successful! Found %d existing videos.", len(tasks)))
	return len(tasks), nil
}

func (o *Orchestrator) scheduleLocked(epoch uint64) {
	o.stopTimerLocked()
	seq := o.scheduled
	o.timer = time.AfterFunc(o.pollInterval, func() {
		o.mu.Lock()
		stale := seq != o.scheduled || epoch != o.epoch
		if !stale {
			o.timer = nil
		}
		ctx := o.pollCtx
		o.mu.Unlock()
		if stale {
			return
		}
		if _, err := o.check(ctx, epoch, seq); err != nil && !errors.Is(err, ErrSuperseded) {
			o.logger.Debug("scheduled status check ended", slog.String("error", err.Error()))
		}
	})
}

func (o *Orchestrator) stopTimerLocked() {
	o.scheduled++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// check fetches the task status once and applies it. seq is the schedule
// generation the caller observed; a check started or stopped since then makes
// this one a no-op.
func (o *Orchestrator) check(ctx context.Context, epoch, seq uint64) (State, error) {
	o.mu.Lock()
	if epoch != o.epoch || seq != o.scheduled || o.state.Phase != PhasePolling || o.checking {
		s := o.state.Clone()
		o.mu.Unlock()
		return s, nil
	}

	if err := o.ceilingLocked(); err != nil {
		err := o.failLocked(err)
		s := o.state.Clone()
		o.mu.Unlock()
		return s, err
	}

	o.checking = true
	o.state.PollAttempts++
	taskID := o.state.Task.ID
	credential := o.credential
	attempt := o.state.PollAttempts
	o.mu.Unlock()

	o.logger.Debug("checking task status",
		slog.String("task_id", taskID),
		slog.Int("attempt", attempt),
	)

	obs, fetchErr := o.backend.Fetch(ctx, credential, taskID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		o.logger.Debug("discarding status response for superseded attempt",
			slog.String("task_id", taskID),
			slog.Uint64("epoch", epoch),
		)
		return o.state.Clone(), ErrSuperseded
	}
	o.checking = false

	if fetchErr != nil {
		err := o.failLocked(asError(fetchErr))
		return o.state.Clone(), err
	}

	o.applyTaskLocked(ctx, epoch, obs)
	return o.state.Clone(), o.errLocked()
}

func (o *Orchestrator) ceilingLocked() *Error {
	if o.maxPollAttempts > 0 && o.state.PollAttempts >= o.maxPollAttempts {
		return NewError(KindTimeout,
			fmt.Sprintf("Video generation did not finish after %d status checks", o.state.PollAttempts), nil)
	}
	if o.pollTimeout > 0 && o.now().Sub(o.pollStarted) >= o.pollTimeout {
		return NewError(KindTimeout,
			fmt.Sprintf("Video generation did not finish within %s", o.pollTimeout), nil)
	}
	return nil
}

// applyTaskLocked folds a status observation into the active task and moves
// the state machine accordingly.
func (o *Orchestrator) applyTaskLocked(ctx context.Context, epoch uint64, obs Task) {
	task := o.state.Task
	if err := task.Advance(obs); err != nil {
		o.logger.Warn("ignoring task status observation",
			slog.String("task_id", task.ID),
			slog.String("from", string(task.Status)),
			slog.String("to", string(obs.Status)),
		)
	}

	switch task.Status {
	case TaskCompleted:
		o.completeLocked(ctx, epoch, "Video generation completed!")
	case TaskFailed:
		reason := task.FailureReason
		if reason == "" {
			reason = "Video generation failed"
		}
		_ = o.failLocked(NewError(KindService, reason, nil))
	default:
		o.transitionLocked(PhasePolling,
			fmt.Sprintf("Status: %s, checking again in %s...", task.Status, o.pollInterval))
		o.scheduleLocked(epoch)
	}
}

func (o *Orchestrator) finishSingleLocked(ctx context.Context, epoch uint64) {
	task := o.state.Task
	switch {
	case task.Status == TaskFailed:
		reason := task.FailureReason
		if reason == "" {
			reason = "Video generation failed"
		}
		_ = o.failLocked(NewError(KindService, reason, nil))
	case task.ResultURL != "":
		o.completeLocked(ctx, epoch, "Video generation completed!")
	default:
		o.completeLocked(ctx, epoch, "Video generation started successfully!")
	}
}

func (o *Orchestrator) completeLocked(ctx context.Context, epoch uint64, line string) {
	o.state.ResultURL = o.state.Task.ResultURL
	o.transitionLocked(PhaseCompleted, line)
	o.saveHistoryLocked()

	if o.archiver != nil && o.state.ResultURL != "" {
		go o.archive(ctx, epoch, *o.state.Task)
	}

	o.logger.Info("generation completed",
		slog.String("attempt_id", o.state.AttemptID),
		slog.String("task_id", o.state.Task.ID),
		slog.String("result_url", o.state.ResultURL),
	)
}

// archive runs after the completed state has been rendered. The result is
// recorded only if the attempt is still current.
func (o *Orchestrator) archive(ctx context.Context, epoch uint64, task Task) {
	location, err := o.archiver.Archive(ctx, task)

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		return
	}
	if err != nil {
		o.logger.Error("failed to archive result",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		o.setStatusLocked("Video generation completed! (archiving the result failed)")
		return
	}
	o.state.ArchivedLocation = location
	o.setStatusLocked("Video generation completed! Saved to " + location)
	o.saveHistoryLocked()
}

func (o *Orchestrator) failLocked(err *Error) *Error {
	o.state.Error = err
	o.stopTimerLocked()
	o.checking = false
	o.transitionLocked(PhaseFailed, "Generation failed: "+err.Message)
	o.saveHistoryLocked()

	o.logger.Warn("generation failed",
		slog.String("attempt_id", o.state.AttemptID),
		slog.String("kind", string(err.Kind)),
		slog.String("message", err.Message),
	)
	return err
}

func (o *Orchestrator) errLocked() error {
	if o.state.Phase == PhaseFailed && o.state.Error != nil {
		return o.state.Error
	}
	return nil
}

// abandonLocked drops the current attempt without notifying the service.
func (o *Orchestrator) abandonLocked() {
	o.stopTimerLocked()
	o.checking = false
	if o.state.AttemptID != "" && !o.state.Phase.IsTerminal() {
		o.saveHistoryLocked()
	}
}

func (o *Orchestrator) saveHistoryLocked() {
	if o.state.AttemptID == "" {
		return
	}
	if err := o.history.Save(context.Background(), entryFrom(o.state)); err != nil {
		o.logger.Error("failed to record attempt",
			slog.String("attempt_id", o.state.AttemptID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) transitionLocked(p Phase, line string) {
	o.state.Phase = p
	o.state.StatusLine = line
	o.state.UpdatedAt = o.now()
	o.renderer.Render(o.state.Clone())
}

// noticeLocked reports the outcome of an operation outside the generation
// lifecycle. It replaces the status line only while idle so that an active
// or finished attempt keeps its progress message.
func (o *Orchestrator) noticeLocked(line string) {
	o.state.Notice = line
	if o.state.Phase == PhaseIdle || o.state.Phase == "" {
		o.state.StatusLine = line
	}
	o.state.UpdatedAt = o.now()
	o.renderer.Render(o.state.Clone())
}

func (o *Orchestrator) setStatusLocked(line string) {
	o.state.StatusLine = line
	o.state.UpdatedAt = o.now()
	o.renderer.Render(o.state.Clone())
}
