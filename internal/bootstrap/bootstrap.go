// Package bootstrap provides dependency initialization for the orchestrator.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/i2v-orchestrator/internal/a2e"
	"github.com/maauso/i2v-orchestrator/internal/archive"
	"github.com/maauso/i2v-orchestrator/internal/config"
	"github.com/maauso/i2v-orchestrator/internal/credential"
	"github.com/maauso/i2v-orchestrator/internal/generation"
	"github.com/maauso/i2v-orchestrator/internal/generator"
	"github.com/maauso/i2v-orchestrator/internal/storage"
	"github.com/maauso/i2v-orchestrator/internal/telemetry"
)

// Version is reported as the service version in traces.
var Version = "dev"

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Orchestrator *generation.Orchestrator
	// Credentials is the store backing the orchestrator's credential.
	Credentials generation.CredentialStore

	closers []func(context.Context) error
}

// Close releases connections and flushes traces.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the application.
// Extra orchestrator options, such as a renderer, are applied last.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...generation.Option) (*Dependencies, error) {
	deps := &Dependencies{}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	deps.closers = append(deps.closers, shutdown)
	if cfg.OTLPEndpoint != "" {
		logger.Info("tracing enabled", slog.String("endpoint", cfg.OTLPEndpoint))
	}

	client, err := a2e.NewClient(
		a2e.WithBaseURL(cfg.A2EBaseURL),
		a2e.WithSubmitPath(cfg.SubmitPath),
		a2e.WithStatusPath(cfg.StatusPath),
		a2e.WithStatusAllPath(cfg.StatusAllPath),
		a2e.WithAuthScheme(a2e.AuthScheme(cfg.AuthScheme)),
		a2e.WithSuccessCheck(a2e.SuccessCheck(cfg.SuccessCheck)),
		a2e.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		a2e.WithMaxRetries(cfg.StatusMaxRetries),
		a2e.WithLogger(logger),
	)
	if err != nil {
		return nil, deps.fail(ctx, fmt.Errorf("create A2E client: %w", err))
	}

	shape := generator.Shape(cfg.StatusShape)
	backend, err := generator.New(shape, client)
	if err != nil {
		return nil, deps.fail(ctx, err)
	}

	store, err := deps.initCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, deps.fail(ctx, err)
	}
	deps.Credentials = store

	interval := cfg.PollInterval()
	if interval == 0 {
		interval = generator.PollInterval(shape)
	}
	orchOpts := []generation.Option{
		generation.WithMode(generation.Mode(cfg.SubmitMode)),
		generation.WithPollInterval(interval),
		generation.WithMaxPollAttempts(cfg.PollMaxAttempts),
		generation.WithPollTimeout(cfg.PollTimeout()),
	}

	if cfg.ArchiveResults {
		archiver, err := initArchiver(ctx, cfg, logger)
		if err != nil {
			return nil, deps.fail(ctx, err)
		}
		orchOpts = append(orchOpts, generation.WithArchiver(archiver))
	}

	deps.Orchestrator = generation.NewOrchestrator(backend, store, logger, append(orchOpts, opts...)...)
	if err := deps.Orchestrator.LoadCredential(ctx); err != nil {
		return nil, deps.fail(ctx, fmt.Errorf("load credential: %w", err))
	}

	logger.Info("orchestrator configured",
		slog.String("submit_mode", cfg.SubmitMode),
		slog.String("status_shape", cfg.StatusShape),
		slog.Duration("poll_interval", interval),
		slog.Bool("has_credential", deps.Orchestrator.HasCredential()),
	)
	return deps, nil
}

func (d *Dependencies) fail(ctx context.Context, err error) error {
	if cerr := d.Close(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// initCredentials selects Redis when configured, otherwise a JSON file.
// A2E_API_TOKEN seeds the store when it holds no token yet.
func (d *Dependencies) initCredentials(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.CredentialStore, error) {
	var store generation.CredentialStore
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.closers = append(d.closers, func(context.Context) error { return rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = credential.NewRedisStore(rdb, "i2v")
		logger.Info("credential store configured", slog.String("backend", "redis"), slog.String("addr", cfg.RedisAddr))
	} else {
		fs := credential.NewFileStore(cfg.CredentialPath())
		store = fs
		logger.Info("credential store configured", slog.String("backend", "file"), slog.String("path", fs.Path()))
	}

	if cfg.A2EAPIToken == "" {
		return store, nil
	}
	_, err := store.Get(ctx)
	switch {
	case errors.Is(err, generation.ErrNoCredential):
		if err := store.Set(ctx, cfg.A2EAPIToken); err != nil {
			return nil, fmt.Errorf("seed credential: %w", err)
		}
		logger.Info("credential seeded from environment")
	case err != nil:
		return nil, fmt.Errorf("read credential: %w", err)
	}
	return store, nil
}

// initArchiver creates the archive target based on configuration.
func initArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*archive.Archiver, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.ArchiveDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 archive configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return archive.New(s3Store, archive.WithLogger(logger)), nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local archive configured",
		slog.String("dir", localStore.Root()),
	)
	return archive.New(localStore, archive.WithLogger(logger)), nil
}
