// Package archive downloads finished videos and persists them through a
// storage backend.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maauso/i2v-orchestrator/internal/generation"
	"github.com/maauso/i2v-orchestrator/internal/storage"
)

// Static errors for archiving.
var (
	// ErrNoResultURL is returned when the task carries no result URL.
	ErrNoResultURL = errors.New("archive: task has no result URL")
	// ErrDownloadFailed is returned when the result URL answers with a non-200 status.
	ErrDownloadFailed = errors.New("archive: download failed")
)

const defaultPrefix = "results"

// Archiver implements generation.Archiver on top of storage.Storage.
type Archiver struct {
	store      storage.Storage
	httpClient *http.Client
	prefix     string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithHTTPClient sets the client used to download results.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Archiver) {
		a.httpClient = c
	}
}

// WithPrefix sets the key prefix objects are stored under.
func WithPrefix(p string) Option {
	return func(a *Archiver) {
		a.prefix = strings.Trim(p, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider used for download spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Archiver) {
		a.tracer = tp.Tracer("github.com/maauso/i2v-orchestrator/internal/archive")
	}
}

// New creates an Archiver storing results in store.
func New(store storage.Storage, opts ...Option) *Archiver {
	a := &Archiver{
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		prefix:     defaultPrefix,
		logger:     slog.Default(),
		tracer:     otel.Tracer("github.com/maauso/i2v-orchestrator/internal/archive"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive downloads the task's result into a temp file and persists it
// under <prefix>/<task id><ext>. The temp file is always removed.
func (a *Archiver) Archive(ctx context.Context, task generation.Task) (string, error) {
	if task.ResultURL == "" {
		return "", ErrNoResultURL
	}

	ctx, span := a.tracer.Start(ctx, "archive.result",
		trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer span.End()

	location, err := a.archive(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("archive.location", location))
	return location, nil
}

func (a *Archiver) archive(ctx context.Context, task generation.Task) (string, error) {
	tmpPath, err := a.download(ctx, task)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := a.store.CleanupTemp(context.WithoutCancel(ctx), []string{tmpPath}); err != nil {
			a.logger.Warn("failed to clean up download", slog.String("path", tmpPath), slog.String("error", err.Error()))
		}
	}()

	f, err := a.store.LoadTemp(ctx, tmpPath)
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	location, err := a.store.Put(ctx, a.key(task), f)
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}

	a.logger.Info("result archived",
		slog.String("task_id", task.ID),
		slog.String("location", location),
	)
	return location, nil
}

func (a *Archiver) download(ctx context.Context, task generation.Task) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.ResultURL, nil)
	if err != nil {
		return "", fmt.Errorf("archive: create download request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	tmpPath, err := a.store.SaveTemp(ctx, "result", resp.Body)
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	return tmpPath, nil
}

// key builds the object key from the task ID, falling back to the task
// name, and the extension of the result URL path.
func (a *Archiver) key(task generation.Task) string {
	base := task.ID
	if base == "" {
		base = task.Name
	}
	if base == "" {
		base = "result"
	}
	base = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(base)

	ext := ".mp4"
	if u, err := url.Parse(task.ResultURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); isVideoExt(e) {
			ext = e
		}
	}

	if a.prefix == "" {
		return base + ext
	}
	return a.prefix + "/" + base + ext
}

func isVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".webm", ".mov":
		return true
	}
	return false
}

var _ generation.Archiver = (*Archiver)(nil)
