package measure

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/camdist/internal/core/observability/log"
	"github.com/zeusync/camdist/internal/core/spatial"
)

// Metrics is a snapshot of broadcaster counters.
type Metrics struct {
	Passes           uint64
	Notifications    uint64
	Failures         uint64
	LastPassSize     int
	LastPassDuration time.Duration
}

// Broadcaster fans the camera distance out to every registered measurer.
type Broadcaster struct {
	registry *Registry
	reporter FailureReporter
	logger   log.Log

	obsMu     sync.RWMutex
	observers map[BroadcastObserver]struct{}

	passes        atomic.Uint64
	notifications atomic.Uint64
	failures      atomic.Uint64
	lastSize      atomic.Int64
	lastDuration  atomic.Int64
}

type Option func(*Broadcaster)

// WithReporter replaces the default log reporter.
func WithReporter(reporter FailureReporter) Option {
	return func(b *Broadcaster) {
		if reporter != nil {
			b.reporter = reporter
		}
	}
}

func WithLogger(logger log.Log) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithObserver(obs BroadcastObserver) Option {
	return func(b *Broadcaster) {
		if obs != nil {
			b.observers[obs] = struct{}{}
		}
	}
}

func NewBroadcaster(registry *Registry, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry:  registry,
		logger:    log.Provide(),
		observers: make(map[BroadcastObserver]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.reporter == nil {
		b.reporter = NewLogReporter(b.logger)
	}
	return b
}

func (b *Broadcaster) Registry() *Registry { return b.registry }

// Broadcast notifies every registered measurer of its squared distance to
// referencePoint. Failing measurers are reported and skipped; Broadcast
// itself never fails.
func (b *Broadcaster) Broadcast(referencePoint spatial.Vector3, referenceObject CameraHandle) {
	start := time.Now()
	pass := b.passes.Add(1)

	notified, failed := 0, 0
	for h, m := range b.registry.All() {
		notified++
		if failure := b.notify(h, m, referencePoint, referenceObject); failure != nil {
			failed++
			b.report(failure)
		}
	}

	dur := time.Since(start)
	b.notifications.Add(uint64(notified))
	b.failures.Add(uint64(failed))
	b.lastSize.Store(int64(notified))
	b.lastDuration.Store(int64(dur))

	b.obsMu.RLock()
	defer b.obsMu.RUnlock()
	if len(b.observers) == 0 {
		return
	}
	stats := PassStats{
		Pass:     pass,
		Camera:   referenceObject,
		Notified: notified,
		Failed:   failed,
		Duration: dur,
	}
	for obs := range b.observers {
		obs.OnPass(stats)
	}
}

func (b *Broadcaster) notify(h Handle, m Measurer, referencePoint spatial.Vector3, camera CameraHandle) (failure *MeasurerCallbackFailure) {
	sqrDistance := 0.0
	defer func() {
		if r := recover(); r != nil {
			failure = &MeasurerCallbackFailure{
				Handle:      h,
				Measurer:    m,
				Camera:      camera,
				SqrDistance: sqrDistance,
				Err:         panicFailure(r),
				Recovered:   r,
			}
		}
	}()

	sqrDistance = spatial.SqrDistance(referencePoint, m.Position())
	if err := m.OnDistanceComputed(camera, sqrDistance); err != nil {
		return &MeasurerCallbackFailure{
			Handle:      h,
			Measurer:    m,
			Camera:      camera,
			SqrDistance: sqrDistance,
			Err:         err,
		}
	}
	return nil
}

// report hands f to the reporter. A panicking reporter is logged and the
// pass goes on.
func (b *Broadcaster) report(f *MeasurerCallbackFailure) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Failure reporter panicked",
				log.Stringer("handle", f.Handle),
				log.Any("panic", r),
				log.Error(f),
			)
		}
	}()
	b.reporter.Report(f)
}

func (b *Broadcaster) AddObserver(obs BroadcastObserver) {
	b.obsMu.Lock()
	b.observers[obs] = struct{}{}
	b.obsMu.Unlock()
}

func (b *Broadcaster) RemoveObserver(obs BroadcastObserver) {
	b.obsMu.Lock()
	delete(b.observers, obs)
	b.obsMu.Unlock()
}

func (b *Broadcaster) Metrics() Metrics {
	return Metrics{
		Passes:           b.passes.Load(),
		Notifications:    b.notifications.Load(),
		Failures:         b.failures.Load(),
		LastPassSize:     int(b.lastSize.Load()),
		LastPassDuration: time.Duration(b.lastDuration.Load()),
	}
}
