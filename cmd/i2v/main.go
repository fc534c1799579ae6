// Package main provides a command-line client that drives one generation
// to completion without running the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maauso/i2v-orchestrator/internal/bootstrap"
	"github.com/maauso/i2v-orchestrator/internal/config"
	"github.com/maauso/i2v-orchestrator/internal/generation"
	"github.com/maauso/i2v-orchestrator/internal/normalize"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage:")
	_, _ = fmt.Fprintln(w, "  i2v submit --image <url> [--prompt <text>] [--variant standard|general|first_last_frame] [flags]")
	_, _ = fmt.Fprintln(w, "  i2v test")
	_, _ = fmt.Fprintln(w, "  i2v token set <token> | i2v token clear")
	_, _ = fmt.Fprintln(w, "  i2v normalize <url>")
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "normalize":
		err = normalizeCmd(args[1:], stdout)
	case "submit":
		err = withApp(ctx, stdout, stderr, func(a *app) error { return a.submit(ctx, args[1:]) })
	case "test":
		err = withApp(ctx, stdout, stderr, func(a *app) error { return a.test(ctx) })
	case "token":
		err = withApp(ctx, stdout, stderr, func(a *app) error { return a.token(ctx, args[1:]) })
	default:
		usage(stderr)
		return 2
	}

	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		_, _ = fmt.Fprintln(stderr, ue.Error())
		usage(stderr)
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func normalizeCmd(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return usageError("normalize takes exactly one URL")
	}
	_, err := fmt.Fprintf(stdout, "%s\t%s\n", normalize.Classify(args[0]), normalize.URL(args[0]))
	return err
}

// app is the wired orchestrator plus the renderer printing its progress.
type app struct {
	cfg      *config.Config
	deps     *bootstrap.Dependencies
	renderer *lineRenderer
	stdout   io.Writer
}

func withApp(ctx context.Context, stdout, stderr io.Writer, fn func(*app) error) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Progress goes to stdout; logs go to stderr so they can be silenced.
	logger := cfg.NewLoggerTo(stderr)
	slog.SetDefault(logger)

	renderer := newLineRenderer(stdout)
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, generation.WithRenderer(renderer))
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Close(context.WithoutCancel(ctx)) }()

	return fn(&app{cfg: cfg, deps: deps, renderer: renderer, stdout: stdout})
}

func (a *app) submit(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("submit", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	var (
		in       generation.Input
		variant  string
		duration int
		token    string
	)
	fset.StringVar(&in.Name, "name", "", "video name (default Video_<unix millis>)")
	fset.StringVar(&in.SourceImageURL, "image", "", "source image URL")
	fset.StringVar(&in.EndImageURL, "end-image", "", "end image URL (first_last_frame)")
	fset.StringVar(&in.Prompt, "prompt", "", "prompt")
	fset.StringVar(&in.NegativePrompt, "negative-prompt", "", "negative prompt")
	fset.StringVar(&variant, "variant", string(generation.VariantStandard), "standard, general or first_last_frame")
	fset.IntVar(&duration, "duration", 0, "seconds (5, 10, 15) or frames for first_last_frame (81, 129)")
	fset.BoolVar(&in.ExtendPrompt, "extend-prompt", false, "let the service extend the prompt")
	fset.IntVar(&in.ReplicateCount, "replicates", 1, "number of videos, 1 to 5")
	fset.StringVar(&token, "token", "", "API token to store before submitting")
	if err := fset.Parse(args); err != nil {
		return usageError(err.Error())
	}

	in.Variant = generation.ModelVariant(variant)
	in.Duration = generation.Duration{Unit: generation.UnitFor(in.Variant), Value: duration}

	orch := a.deps.Orchestrator
	if token != "" {
		if err := orch.SetCredential(ctx, token); err != nil {
			return err
		}
	}

	state, err := orch.Submit(ctx, in)
	if err != nil {
		return err
	}
	archiving := a.cfg.ArchiveResults && state.Phase == generation.PhaseCompleted && state.ResultURL != ""
	if state.Phase == generation.PhasePolling || archiving {
		state, err = a.wait(ctx)
		if err != nil {
			return err
		}
	}

	return a.report(state)
}

// wait blocks until the attempt is terminal and, when archiving is enabled,
// until the archive outcome has been rendered.
func (a *app) wait(ctx context.Context) (generation.State, error) {
	awaitArchive := a.cfg.ArchiveResults
	for {
		select {
		case <-ctx.Done():
			a.deps.Orchestrator.Reset()
			return generation.State{}, fmt.Errorf("interrupted: %w", ctx.Err())
		case s := <-a.renderer.terminal:
			if s.Phase == generation.PhaseFailed {
				return s, s.Error
			}
			if !awaitArchive || s.ResultURL == "" {
				return s, nil
			}
			// The archive outcome is the next render of the completed attempt.
			awaitArchive = false
		}
	}
}

func (a *app) report(s generation.State) error {
	if s.Error != nil {
		return s.Error
	}
	if s.ResultURL != "" {
		_, _ = fmt.Fprintf(a.stdout, "Result: %s\n", s.ResultURL)
	}
	if s.ArchivedLocation != "" {
		_, _ = fmt.Fprintf(a.stdout, "Archived: %s\n", s.ArchivedLocation)
	}
	return nil
}

func (a *app) test(ctx context.Context) error {
	_, err := a.deps.Orchestrator.TestConnection(ctx)
	return err
}

func (a *app) token(ctx context.Context, args []string) error {
	switch {
	case len(args) == 2 && args[0] == "set":
		if err := a.deps.Orchestrator.SetCredential(ctx, args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout, "API token saved")
		return nil
	case len(args) == 1 && args[0] == "clear":
		return a.deps.Orchestrator.ClearCredential(ctx)
	default:
		return usageError("token expects: set <token> | clear")
	}
}

// lineRenderer prints each new status line and forwards terminal states.
// Render runs under the orchestrator lock, which serializes access to last.
type lineRenderer struct {
	w        io.Writer
	last     string
	terminal chan generation.State
}

func newLineRenderer(w io.Writer) *lineRenderer {
	return &lineRenderer{w: w, terminal: make(chan generation.State, 8)}
}

func (r *lineRenderer) Render(s generation.State) {
	if s.StatusLine != "" && s.StatusLine != r.last {
		_, _ = fmt.Fprintln(r.w, s.StatusLine)
		r.last = s.StatusLine
	}
	if s.Phase.IsTerminal() {
		select {
		case r.terminal <- s:
		default:
		}
	}
}
