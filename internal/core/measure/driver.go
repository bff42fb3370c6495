package measure

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zeusync/camdist/internal/core/observability/log"
)

const (
	DefaultTickInterval = time.Second / 60
	DefaultPruneEvery   = 600
)

// Driver stands in for the host frame loop: it asks the camera source for the
// reference point and runs one broadcast pass per tick.
type Driver struct {
	broadcaster *Broadcaster
	source      CameraSource
	interval    time.Duration
	pruneEvery  uint64
	logger      log.Log

	ticks   atomic.Uint64
	skipped atomic.Uint64
}

type DriverOption func(*Driver)

// WithPruneEvery drops collected weak measurers every n ticks. Zero disables it.
func WithPruneEvery(n uint64) DriverOption {
	return func(d *Driver) { d.pruneEvery = n }
}

func WithDriverLogger(logger log.Log) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDriver(b *Broadcaster, source CameraSource, interval time.Duration, opts ...DriverOption) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	d := &Driver{
		broadcaster: b,
		source:      source,
		interval:    interval,
		pruneEvery:  DefaultPruneEvery,
		logger:      log.Provide(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tick runs a single pass. It returns false when no camera was active.
func (d *Driver) Tick() bool {
	tick := d.ticks.Add(1)
	if d.pruneEvery > 0 && tick%d.pruneEvery == 0 {
		if n := d.broadcaster.Registry().Prune(); n > 0 {
			d.logger.Debug("Pruned collected measurers", log.Int("count", n), log.Uint64("tick", tick))
		}
	}

	position, camera, ok := d.source.Camera()
	if !ok {
		d.skipped.Add(1)
		return false
	}
	d.broadcaster.Broadcast(position, camera)
	return true
}

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Distance driver started", log.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Distance driver stopped",
				log.Uint64("ticks", d.ticks.Load()),
				log.Uint64("skipped", d.skipped.Load()),
			)
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

func (d *Driver) Ticks() uint64   { return d.ticks.Load() }
func (d *Driver) Skipped() uint64 { return d.skipped.Load() }
