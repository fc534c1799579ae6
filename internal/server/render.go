package server

import (
	"context"
	"log/slog"

	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// LogRenderer returns a renderer that logs every state transition. The API
// serves state on request, so the log is the only push-style rendering.
func LogRenderer(logger *slog.Logger) generation.Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return generation.RendererFunc(func(s generation.State) {
		level := slog.LevelInfo
		attrs := []slog.Attr{
			slog.String("phase", string(s.Phase)),
			slog.Uint64("epoch", s.Epoch),
			slog.String("status", s.StatusLine),
		}
		if s.AttemptID != "" {
			attrs = append(attrs, slog.String("attempt_id", s.AttemptID))
		}
		if s.Task != nil && s.Task.ID != "" {
			attrs = append(attrs, slog.String("task_id", s.Task.ID))
		}
		if s.Notice != "" && s.Notice != s.StatusLine {
			attrs = append(attrs, slog.String("notice", s.Notice))
		}
		if s.ResultURL != "" {
			attrs = append(attrs, slog.String("result_url", s.ResultURL))
		}
		if s.Error != nil {
			level = slog.LevelWarn
			attrs = append(attrs,
				slog.String("error_kind", string(s.Error.Kind)),
				slog.String("error", s.Error.Message),
			)
		}
		logger.LogAttrs(context.Background(), level, "generation state", attrs...)
	})
}
