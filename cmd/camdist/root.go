package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/camdist/internal/config"
	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/observability/log"
	"github.com/zeusync/camdist/internal/injector"
)

const statsInterval = 10 * time.Second

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:          "camdist",
		Short:        "Run a scene that broadcasts camera distances to its measurers",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
				if err = cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a .yaml or .json scene config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func run(ctx context.Context, cfg *config.Config) error {
	s, cleanup, err := injector.InitializeScene(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := log.Provide().Named("camdist")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		reportStats(gctx, logger, s.Broadcaster)
		return nil
	})
	return g.Wait()
}

func reportStats(ctx context.Context, logger log.Log, b *measure.Broadcaster) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := b.Metrics()
			logger.Info("Broadcast stats",
				log.Uint64("passes", m.Passes),
				log.Uint64("notifications", m.Notifications),
				log.Uint64("failures", m.Failures),
				log.Int("last_pass_size", m.LastPassSize),
				log.Duration("last_pass_duration", m.LastPassDuration),
			)
		}
	}
}
