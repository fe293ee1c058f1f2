// Package app builds the long-lived collaborators of a save run from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/api"
	"github.com/JakeFAU/notesaver/internal/clock/system"
	"github.com/JakeFAU/notesaver/internal/config"
	collyfetcher "github.com/JakeFAU/notesaver/internal/fetcher/colly"
	"github.com/JakeFAU/notesaver/internal/id/uuid"
	"github.com/JakeFAU/notesaver/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/notesaver/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/notesaver/internal/publisher/pubsub"
	"github.com/JakeFAU/notesaver/internal/saver"
	gcsstorage "github.com/JakeFAU/notesaver/internal/storage/gcs"
	localstorage "github.com/JakeFAU/notesaver/internal/storage/local"
	memorystorage "github.com/JakeFAU/notesaver/internal/storage/memory"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	fetcher  *collyfetcher.Fetcher
	store    saver.Store
	pub      saver.Publisher
	progress *api.Progress

	metricsServer   *http.Server
	metricsListener net.Listener

	pubsubClient  *pubsub.Client
	pubsubTopic   *pubsub.Topic
	storageClient *storage.Client
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	transport http.RoundTripper
}

// WithTransport replaces the HTTP transport used for page and media fetches.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *buildOptions) {
		o.transport = rt
	}
}

// Build creates the application's dependencies. The caller owns the logger.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	app := &App{
		cfg:      cfg,
		logger:   logger,
		progress: api.NewProgress(),
	}
	app.logger.Info("building application dependencies")

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.RateLimitRPS,
		Burst: cfg.HTTP.RateLimitBurst,
	})
	app.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
		Transport:   bo.transport,
	}, limiter, logger.Named("fetcher"))

	var err error
	if app.store, err = setupStorage(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if app.pub, err = setupPublisher(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func setupStorage(ctx context.Context, app *App) (saver.Store, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storageClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.GCSBucket,
			Prefix: app.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS storage backend", zap.String("bucket", app.cfg.Storage.GCSBucket))
		return store, nil
	case config.BackendMemory:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("using local storage backend")
		return localstorage.New(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (saver.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubTopic, map[string]string{"event": "batch.completed"}), nil
}

// Store returns the configured artifact store.
func (a *App) Store() saver.Store {
	return a.store
}

// Progress returns the tracker fed by the orchestrator callbacks.
func (a *App) Progress() *api.Progress {
	return a.progress
}

// Orchestrator builds an orchestrator wired to the app's collaborators.
// onProgress and onDone are optional; the progress tracker is fed separately.
func (a *App) Orchestrator(
	opts saver.Options,
	onProgress func(success, total int),
	onDone func(success, fail, total int),
) (*saver.Orchestrator, error) {
	orch, err := saver.New(opts, saver.Dependencies{
		Fetcher:   a.fetcher,
		Store:     a.store,
		Publisher: a.pub,
		IDs:       uuid.New(),
		Clock:     system.New(),
		Logger:    a.logger.Named("saver"),
		OnProgress: onProgress,
		OnCounts:   a.progress.Update,
		OnDone: func(success, fail, total int) {
			a.progress.Finish(success, fail, total)
			if onDone != nil {
				onDone(success, fail, total)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}
	return orch, nil
}

// StartMetrics serves /healthz, /metrics and /v1/progress when
// metrics.addr is configured. It returns the bound address, or "" when
// disabled.
func (a *App) StartMetrics() (string, error) {
	if a.cfg.Metrics.Addr == "" {
		return "", nil
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", a.cfg.Metrics.Addr, err)
	}
	a.metricsListener = ln
	a.metricsServer = &http.Server{
		Handler:           api.NewServer(a.progress, a.logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return ln.Addr().String(), nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure() {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}
