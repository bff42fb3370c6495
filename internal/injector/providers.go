package injector

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/wire"
	"github.com/zeusync/camdist/internal/config"
	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/observability/log"
	"github.com/zeusync/camdist/internal/core/scene"
)

const sentryFlushTimeout = 2 * time.Second

var SceneSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideReporter,
	scene.New,
)

func ProvideLogger(cfg *config.Config) (*log.Logger, func(), error) {
	logger, err := log.NewFromConfig(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideReporter always logs failures. With a Sentry DSN configured they are
// also sent to Sentry. Repeats are throttled per cfg.Reporting.Window.
func ProvideReporter(cfg *config.Config, logger log.Log) (measure.FailureReporter, func(), error) {
	reporters := measure.MultiReporter{measure.NewLogReporter(logger)}
	cleanup := func() {}

	if cfg.Reporting.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Reporting.SentryDSN,
			Environment: cfg.Reporting.Env,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init sentry: %w", err)
		}
		sr := measure.NewSentryReporter(sentry.CurrentHub())
		reporters = append(reporters, sr)
		cleanup = func() {
			if !sr.Flush(sentryFlushTimeout) {
				logger.Warn("Sentry flush timed out", log.Duration("timeout", sentryFlushTimeout))
			}
		}
	}

	var reporter measure.FailureReporter = reporters
	if cfg.Reporting.Window > 0 {
		reporter = measure.NewThrottledReporter(reporters, cfg.Reporting.Window)
	}
	return reporter, cleanup, nil
}
