package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wehubfusion/Heartcore/internal/tracing"
	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	"github.com/wehubfusion/Heartcore/pkg/config"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	"github.com/wehubfusion/Heartcore/pkg/editor"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/linkedsource"
	"github.com/wehubfusion/Heartcore/pkg/location"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "heartcore"

// version is set at build time.
var version = "dev"

// app carries everything a command needs once the configuration is loaded.
type app struct {
	configPath  string
	metricsFile string

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	store    location.Store

	sentry          bool
	closeStore      func() error
	shutdownTracing func(context.Context) error
	undoMaxprocs    func()

	// openStore is replaced in tests.
	openStore func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (location.Store, func() error, error)
}

func newApp() *app {
	return &app{openStore: openStore}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger
	a.undoMaxprocs = concurrency.InitializeForKubernetes(logger)

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			Release:          serviceName + "@" + version,
			AttachStacktrace: true,
		}); err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
		} else {
			a.sentry = true
		}
	}

	tc := tracing.DefaultConfig(serviceName)
	tc.Enabled = cfg.Tracing.Enabled
	tc.ServiceVersion = version
	tc.Environment = cfg.Tracing.Environment
	tc.OTLPEndpoint = cfg.Tracing.Endpoint
	tc.SampleRatio = cfg.Tracing.SampleRatio
	shutdown, err := tracing.Setup(ctx, tc, logger)
	if err != nil {
		return apperrors.NewConfigurationError("failed to set up tracing", err)
	}
	a.shutdownTracing = shutdown

	a.registry = prometheus.NewRegistry()
	m, err := metrics.New(a.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.metrics = m

	store, closeStore, err := a.openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	a.store = store
	a.closeStore = closeStore

	logger.Debug("Configuration loaded",
		zap.String("store", cfg.Store.Backend),
		zap.Int("throttle_limit", cfg.Throttle.Limit),
		zap.Duration("throttle_interval", cfg.Throttle.Interval),
		zap.Int("max_concurrent", cfg.Throttle.MaxConcurrent))
	return nil
}

func (a *app) teardown() {
	if a.metricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			a.logger.Warn("Failed to write metrics", zap.String("file", a.metricsFile), zap.Error(err))
		}
	}
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			a.logger.Warn("Failed to close location store", zap.Error(err))
		}
	}
	if a.shutdownTracing != nil {
		_ = tracing.Shutdown(a.shutdownTracing, a.logger)
	}
	if a.sentry {
		sentry.Flush(2 * time.Second)
	}
	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// report sends failures that need attention to Sentry. Missing content is
// expected and never reported.
func (a *app) report(err error) {
	if err == nil || !a.sentry || apperrors.IsNotFound(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", apperrors.Categorize(err))
		scope.SetTag("error_type", string(apperrors.TypeOf(err)))
		sentry.CaptureException(err)
	})
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (a *app) clientOptions() []contentclient.Option {
	h := a.cfg.Heartcore
	opts := []contentclient.Option{
		contentclient.WithLogger(a.logger),
		contentclient.WithMetrics(a.metrics),
		contentclient.WithHTTPClient(&http.Client{Timeout: h.Timeout}),
		contentclient.WithEndpoints(h.ManagementURL, h.DeliveryURL, h.GraphQLURL),
	}
	if h.UseDelivery {
		opts = append(opts, contentclient.WithDeliveryAPI())
	}
	return opts
}

func (a *app) newClient(creds content.ProjectCredentials) (contentclient.ContentClient, error) {
	client, err := contentclient.NewHeartcoreClient(creds, a.clientOptions()...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// linkedSources returns the linked sources from the store. When none are stored
// the configured credentials stand in as the default source.
func (a *app) linkedSources(ctx context.Context) (*linkedsource.Registry, error) {
	reg, err := editor.LoadRegistry(ctx, a.store)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 && a.cfg.Heartcore.Credentials().Complete() {
		reg = linkedsource.New([]linkedsource.LinkedSource{
			{ID: linkedsource.DefaultSourceID, Project: a.cfg.Heartcore.Credentials()},
		})
	}
	return reg, nil
}

// credentials picks the project for sourceID, preferring the linked sources
// and falling back to the configured credentials.
func (a *app) credentials(ctx context.Context, sourceID string) (content.ProjectCredentials, error) {
	reg, err := a.linkedSources(ctx)
	if err != nil {
		return content.ProjectCredentials{}, err
	}
	if src, ok := reg.ResolveOrDefault(sourceID); ok && src.Project.Complete() {
		return src.Project, nil
	}
	return content.ProjectCredentials{}, apperrors.NewConfigurationError(editor.NotConfiguredMessage, apperrors.ErrMissingCredentials)
}

func (a *app) newThrottle() *concurrency.Throttle {
	return concurrency.NewThrottle(a.cfg.Throttle.Policy(),
		concurrency.WithThrottleLogger(a.logger),
		concurrency.WithThrottleMetrics(a.metrics))
}
