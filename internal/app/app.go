// Package app initializes and holds long-lived client services, acting as a
// dependency injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/archive"
	"github.com/JakeFAU/siteclone/internal/background"
	"github.com/JakeFAU/siteclone/internal/clock"
	"github.com/JakeFAU/siteclone/internal/clock/system"
	"github.com/JakeFAU/siteclone/internal/config"
	"github.com/JakeFAU/siteclone/internal/id/token"
	"github.com/JakeFAU/siteclone/internal/id/uuid"
	"github.com/JakeFAU/siteclone/internal/observer"
	"github.com/JakeFAU/siteclone/internal/policy/ratelimit"
	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/progress/sinks"
	"github.com/JakeFAU/siteclone/internal/render"
	"github.com/JakeFAU/siteclone/internal/status"
	"github.com/JakeFAU/siteclone/internal/storage/memory"
	"github.com/JakeFAU/siteclone/internal/transport/socketio"
)

// App holds the shared services of one CLI invocation. It is built once in
// the root command's pre-run hook and closed after the command finishes.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	clock      clock.Clock
	bar        *status.Bar
	sessions   *memory.SessionStore
	hub        *progress.Hub
	limiter    *ratelimit.Limiter
	tokens     *token.Source
	classifier *progress.Classifier
	downloader *archive.Downloader
}

// Option customizes New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	clock      clock.Clock
	progress   io.Writer
}

// WithRegisterer registers progress collectors on reg instead of the default
// Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDownloadProgress renders archive download progress to w.
func WithDownloadProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// New builds the services described by cfg. It fails fast when the archive
// directory is unusable or collectors cannot be registered.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}
	scope, err := token.ParseScope(cfg.Session.TokenScope)
	if err != nil {
		return nil, fmt.Errorf("token scope: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		clock:      o.clock,
		bar:        status.NewBar(),
		sessions:   memory.NewSessionStore(cfg.Session.LogCapacity, cfg.Store.MaxSessions),
		limiter:    ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute, Burst: cfg.RateLimit.Burst}),
		tokens:     token.NewSource(scope, cfg.Session.TokenLength),
		classifier: progress.NewClassifier(cfg.Markers),
	}

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:  cfg.Hub.BufferSize,
		MaxBatch:    cfg.Hub.MaxBatch,
		MaxWait:     cfg.Hub.MaxWait,
		SinkTimeout: cfg.Hub.SinkTimeout,
		Logger:      logger,
	},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(a.sessions, logger),
	)

	if cfg.Download.Enabled {
		store, err := archive.NewLocalStore(cfg.Download.Dir)
		if err != nil {
			_ = a.hub.Close(context.Background())
			return nil, fmt.Errorf("init archive store: %w", err)
		}
		dlOpts := []archive.DownloaderOption{
			archive.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
			archive.WithRetryPolicy(cfg.RetryPolicy()),
			archive.WithLogger(logger),
		}
		if cfg.Download.Progress && o.progress != nil {
			dlOpts = append(dlOpts, archive.WithProgress(o.progress))
		}
		a.downloader = archive.NewDownloader(store, dlOpts...)
		logger.Debug("archive downloads enabled", zap.String("dir", store.Dir()))
	}

	logger.Debug("application services initialized",
		zap.String("server", cfg.Server.URL),
		zap.String("token_scope", string(scope)),
	)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Bar returns the status bar fed by the background tasks.
func (a *App) Bar() *status.Bar { return a.bar }

// Sessions returns the in-memory session snapshot store.
func (a *App) Sessions() *memory.SessionStore { return a.sessions }

// Hub returns the observation hub.
func (a *App) Hub() *progress.Hub { return a.hub }

// Tokens returns the session token source.
func (a *App) Tokens() *token.Source { return a.tokens }

// Downloader returns nil when downloads are disabled.
func (a *App) Downloader() *archive.Downloader { return a.downloader }

// DialConfig describes the event channel connection.
func (a *App) DialConfig() socketio.Config {
	return socketio.Config{
		URL:              a.cfg.Server.URL,
		Path:             a.cfg.Server.SocketPath,
		HandshakeTimeout: a.cfg.Server.HandshakeTimeout,
		Retry:            a.cfg.RetryPolicy(),
		Logger:           a.logger,
	}
}

// NewRenderer returns the configured renderer writing to w.
func (a *App) NewRenderer(w io.Writer) render.Renderer {
	// Validate already rejected unknown formats.
	format, _ := render.ParseFormat(a.cfg.Output.Format)
	if format == render.FormatJSON {
		return render.NewJSON(w, a.bar)
	}
	return render.NewText(w, a.bar)
}

// ObserverConfig wires an observer to the shared services.
func (a *App) ObserverConfig(r render.Renderer) observer.Config {
	return observer.Config{
		Tokens:      a.tokens,
		IDs:         uuid.New(),
		Limiter:     a.limiter,
		Classifier:  a.classifier,
		Renderer:    r,
		Emitter:     a.hub,
		Clock:       a.clock,
		Logger:      a.logger,
		LogCapacity: a.cfg.Session.LogCapacity,
		WaitTimeout: a.cfg.Session.WaitTimeout,
	}
}

// BackgroundTasks returns the status bar tasks enabled by the configuration.
func (a *App) BackgroundTasks() []background.Task {
	tasks := []background.Task{
		&background.ClockTask{Clock: a.clock, Interval: a.cfg.Status.ClockInterval, Bar: a.bar},
	}
	if a.cfg.Status.IPLookup {
		tasks = append(tasks, &background.IPLookupTask{
			URL:    a.cfg.Status.IPLookupURL,
			Client: &http.Client{Timeout: a.cfg.HTTPTimeout()},
			Bar:    a.bar,
			Logger: a.logger,
		})
	}
	return tasks
}

// Close flushes the hub and the logger. Every step runs; failures are
// aggregated.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := a.hub.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close hub: %w", err))
	}
	if err := a.logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		result = multierror.Append(result, fmt.Errorf("sync logger: %w", err))
	}
	return result.ErrorOrNil()
}

// isIgnorableSyncError reports errors zap returns when stderr is a terminal.
func isIgnorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
