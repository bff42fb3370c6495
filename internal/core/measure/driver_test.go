package measure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/camdist/internal/core/observability/log"
	"github.com/zeusync/camdist/internal/core/spatial"
)

func TestDriverTick(t *testing.T) {
	r := NewRegistry()
	b, _ := newTestBroadcaster(r)
	m := newProbe("m", 0, 0, 10)
	r.Add(m)

	camera := NewStaticCamera(NewCamera("main"), spatial.Vec3(0, 0, 0))
	d := NewDriver(b, camera, time.Millisecond, WithDriverLogger(log.NewNop()))

	require.True(t, d.Tick())
	camera.MoveTo(spatial.Vec3(0, 0, 7))
	require.True(t, d.Tick())

	require.Equal(t, 2, m.count())
	assert.InDelta(t, 100.0, m.calls[0].sqrDistance, 1e-9)
	assert.InDelta(t, 9.0, m.calls[1].sqrDistance, 1e-9)
}

func TestDriverSkipsWithoutCamera(t *testing.T) {
	r := NewRegistry()
	b, _ := newTestBroadcaster(r)
	m := newProbe("m", 0, 0, 0)
	r.Add(m)

	camera := NewStaticCamera(NewCamera("main"), spatial.Vec3(0, 0, 0))
	camera.SetActive(false)
	d := NewDriver(b, camera, time.Millisecond, WithDriverLogger(log.NewNop()))

	assert.False(t, d.Tick())
	assert.Equal(t, 0, m.count())
	assert.Equal(t, uint64(1), d.Skipped())
	assert.Equal(t, uint64(1), d.Ticks())
}

func TestDriverPrunesCollectedMeasurers(t *testing.T) {
	r := NewRegistry()
	b, _ := newTestBroadcaster(r)
	addTransientWeak(r)

	camera := NewStaticCamera(NewCamera("main"), spatial.Vec3(0, 0, 0))
	camera.SetActive(false)
	d := NewDriver(b, camera, time.Millisecond, WithPruneEvery(2), WithDriverLogger(log.NewNop()))

	forceGC()
	d.Tick()
	assert.Equal(t, 1, r.Len())
	d.Tick()
	assert.Equal(t, 0, r.Len())
}

func TestDriverRunStopsOnCancel(t *testing.T) {
	r := NewRegistry()
	b, _ := newTestBroadcaster(r)
	m := newProbe("m", 1, 0, 0)
	r.Add(m)

	camera := NewStaticCamera(NewCamera("main"), spatial.Vec3(0, 0, 0))
	d := NewDriver(b, camera, time.Millisecond, WithDriverLogger(log.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return m.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestNewDriverDefaults(t *testing.T) {
	d := NewDriver(NewBroadcaster(NewRegistry()), NewStaticCamera(NewCamera("c"), spatial.Vec3(0, 0, 0)), 0)
	assert.Equal(t, DefaultTickInterval, d.interval)
	assert.Equal(t, uint64(DefaultPruneEvery), d.pruneEvery)
}
