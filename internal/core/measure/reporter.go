package measure

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/getsentry/sentry-go"
	"github.com/zeusync/camdist/internal/core/observability/log"
)

var (
	_ FailureReporter = (*LogReporter)(nil)
	_ FailureReporter = (*SentryReporter)(nil)
	_ FailureReporter = (*ThrottledReporter)(nil)
	_ FailureReporter = MultiReporter(nil)
)

// LogReporter writes every failure to the logger at warn level.
type LogReporter struct {
	logger log.Log
}

func NewLogReporter(logger log.Log) *LogReporter {
	if logger == nil {
		logger = log.Provide()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(f *MeasurerCallbackFailure) {
	r.logger.Warn("Measurer callback failed",
		log.Stringer("handle", f.Handle),
		log.String("measurer", fmt.Sprintf("%T", f.Measurer)),
		log.Stringer("camera", f.Camera),
		log.Float64("sqr_distance", f.SqrDistance),
		log.Bool("panic", f.Panicked()),
		log.Error(f.Err),
	)
}

// SentryReporter forwards failures to Sentry. Each report uses a cloned hub
// so scope tags never leak between measurers.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through hub, or through the current hub when nil.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Report(f *MeasurerCallbackFailure) {
	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("measurer", fmt.Sprintf("%T", f.Measurer))
		scope.SetTag("camera", f.Camera.Name)
		scope.SetTag("camera_id", f.Camera.ID.String())
		scope.SetTag("handle", f.Handle.String())
		scope.SetContext("measurement", sentry.Context{
			"sqr_distance": f.SqrDistance,
			"panic":        f.Panicked(),
		})
	})
	if f.Panicked() {
		hub.Recover(f.Recovered)
		return
	}
	hub.CaptureException(f)
}

// Flush waits for queued events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// MultiReporter hands each failure to every reporter in order.
type MultiReporter []FailureReporter

func (m MultiReporter) Report(f *MeasurerCallbackFailure) {
	for _, r := range m {
		if r != nil {
			r.Report(f)
		}
	}
}

const throttleMaxKeys = 4096

// ThrottledReporter forwards at most one failure per fingerprint per window.
// The fingerprint covers the measurer type and the error text.
type ThrottledReporter struct {
	next   FailureReporter
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[uint64]time.Time

	suppressed atomic.Uint64
}

func NewThrottledReporter(next FailureReporter, window time.Duration) *ThrottledReporter {
	return &ThrottledReporter{
		next:   next,
		window: window,
		now:    time.Now,
		last:   make(map[uint64]time.Time),
	}
}

func (r *ThrottledReporter) Report(f *MeasurerCallbackFailure) {
	if r.window <= 0 {
		r.next.Report(f)
		return
	}
	key := Fingerprint(f)
	now := r.now()

	r.mu.Lock()
	if at, ok := r.last[key]; ok && now.Sub(at) < r.window {
		r.mu.Unlock()
		r.suppressed.Add(1)
		return
	}
	if len(r.last) >= throttleMaxKeys {
		r.evictLocked(now)
	}
	r.last[key] = now
	r.mu.Unlock()

	r.next.Report(f)
}

// Suppressed returns how many failures were dropped so far.
func (r *ThrottledReporter) Suppressed() uint64 { return r.suppressed.Load() }

func (r *ThrottledReporter) evictLocked(now time.Time) {
	for k, at := range r.last {
		if now.Sub(at) >= r.window {
			delete(r.last, k)
		}
	}
	if len(r.last) >= throttleMaxKeys {
		clear(r.last)
	}
}

// Fingerprint hashes the measurer type and error text of f.
func Fingerprint(f *MeasurerCallbackFailure) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(fmt.Sprintf("%T", f.Measurer))
	_, _ = d.WriteString("\x00")
	if f.Err != nil {
		_, _ = d.WriteString(f.Err.Error())
	}
	return d.Sum64()
}
