package measure

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/camdist/internal/core/spatial"
)

type probeCall struct {
	camera      CameraHandle
	sqrDistance float64
}

// probe records every callback it receives.
type probe struct {
	name   string
	pos    spatial.Vector3
	onCall func(p *probe) error

	mu    sync.Mutex
	calls []probeCall
}

func newProbe(name string, x, y, z float64) *probe {
	return &probe{name: name, pos: spatial.Vec3(x, y, z)}
}

func (p *probe) Position() spatial.Vector3 { return p.pos }

func (p *probe) OnDistanceComputed(camera CameraHandle, sqrDistance float64) error {
	p.mu.Lock()
	p.calls = append(p.calls, probeCall{camera: camera, sqrDistance: sqrDistance})
	p.mu.Unlock()
	if p.onCall != nil {
		return p.onCall(p)
	}
	return nil
}

func (p *probe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func members(r *Registry) map[Measurer]bool {
	out := make(map[Measurer]bool)
	for _, m := range r.All() {
		out[m] = true
	}
	return out
}

func TestRegistryMembership(t *testing.T) {
	a, b, c := newProbe("a", 0, 0, 0), newProbe("b", 0, 0, 0), newProbe("c", 0, 0, 0)

	type op struct {
		add bool
		m   *probe
	}
	tests := []struct {
		name string
		ops  []op
		want []*probe
	}{
		{"empty", nil, nil},
		{"single add", []op{{true, a}}, []*probe{a}},
		{"duplicates collapse", []op{{true, a}, {true, a}, {true, b}}, []*probe{a, b}},
		{"remove absent", []op{{false, c}, {true, a}}, []*probe{a}},
		{"add remove add", []op{{true, a}, {false, a}, {true, a}}, []*probe{a}},
		{"remove twice", []op{{true, a}, {true, b}, {false, a}, {false, a}}, []*probe{b}},
		{"all gone", []op{{true, a}, {true, b}, {true, c}, {false, b}, {false, a}, {false, c}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, o := range tt.ops {
				if o.add {
					r.Add(o.m)
				} else {
					r.Remove(o.m)
				}
			}
			got := members(r)
			assert.Len(t, got, len(tt.want))
			assert.Equal(t, len(tt.want), r.Len())
			for _, m := range tt.want {
				assert.True(t, got[m], m.name)
				assert.True(t, r.Contains(m), m.name)
			}
		})
	}
}

func TestAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	m := newProbe("m", 1, 2, 3)

	h1 := r.Add(m)
	h2 := r.Add(m)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup(m)
	require.True(t, ok)
	assert.Equal(t, h1, got)
}

func TestAddNilIsIgnored(t *testing.T) {
	r := NewRegistry()
	h := r.Add(nil)
	assert.False(t, h.Valid())
	assert.Equal(t, 0, r.Len())
	r.Remove(nil)
	assert.False(t, r.Contains(nil))
}

func TestRemoveHandle(t *testing.T) {
	r := NewRegistry()
	a, b := newProbe("a", 0, 0, 0), newProbe("b", 0, 0, 0)

	ha := r.Add(a)
	require.True(t, r.RemoveHandle(ha))
	assert.False(t, r.RemoveHandle(ha), "second removal must be a no-op")

	// b reuses a's slot; the stale handle must not touch it
	hb := r.Add(b)
	assert.Equal(t, ha.index, hb.index)
	assert.NotEqual(t, ha.gen, hb.gen)
	assert.False(t, r.RemoveHandle(ha))
	assert.True(t, r.Contains(b))

	assert.False(t, r.RemoveHandle(Handle{}))
	assert.False(t, r.RemoveHandle(Handle{index: 99, gen: 1}))
}

func TestAllStopsEarly(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Add(newProbe("p", 0, 0, 0))
	}
	seen := 0
	for range r.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// the pass was closed, so freed slots are recycled again
	for _, m := range r.All() {
		r.Remove(m)
	}
	assert.Len(t, r.free, 5)
	assert.Empty(t, r.pending)
}

func TestSlotsFreedDuringPassAreNotReused(t *testing.T) {
	r := NewRegistry()
	a, b := newProbe("a", 0, 0, 0), newProbe("b", 0, 0, 0)
	r.Add(a)
	r.Add(b)

	visits := map[Measurer]int{}
	for _, m := range r.All() {
		visits[m]++
		if m == Measurer(a) {
			r.Remove(a)
			r.Remove(b)
			r.Add(b)
		}
	}
	assert.LessOrEqual(t, visits[b], 1)
	assert.True(t, r.Contains(b))
	assert.Equal(t, 1, r.Len())
}

func TestAddWeak(t *testing.T) {
	r := NewRegistry()
	p := newProbe("weak", 3, 4, 0)

	h := AddWeak(r, p)
	require.True(t, h.Valid())
	assert.Equal(t, h, AddWeak(r, p))
	assert.Equal(t, 1, r.Len())

	runtime.GC()
	assert.Equal(t, 0, r.Prune())

	b := NewBroadcaster(r)
	b.Broadcast(spatial.Vec3(0, 0, 0), NewCamera("main"))
	assert.Equal(t, 1, p.count())

	RemoveWeak(r, p)
	assert.Equal(t, 0, r.Len())
	runtime.KeepAlive(p)
}

func TestAddWeakAfterStrongReturnsExisting(t *testing.T) {
	r := NewRegistry()
	p := newProbe("p", 0, 0, 0)
	h := r.Add(p)
	assert.Equal(t, h, AddWeak(r, p))
	assert.Equal(t, 1, r.Len())
}

func TestRemoveFindsWeakMembers(t *testing.T) {
	r := NewRegistry()
	b, _ := newTestBroadcaster(r)
	p := newProbe("weak", 0, 0, 0)

	h := AddWeak(r, p)
	assert.True(t, r.Contains(p))
	got, ok := r.Lookup(p)
	require.True(t, ok)
	assert.Equal(t, h, got)
	assert.Equal(t, h, r.Add(p), "strong add must not duplicate a weak member")
	assert.Equal(t, 1, r.Len())

	r.Remove(p)
	assert.False(t, r.Contains(p))
	assert.Equal(t, 0, r.Len())

	b.Broadcast(spatial.Vec3(0, 0, 0), NewCamera("main"))
	assert.Equal(t, 0, p.count())
	runtime.KeepAlive(p)
}

func forceGC() {
	runtime.GC()
	runtime.GC()
}

func addTransientWeak(r *Registry) {
	p := newProbe("transient", 1, 1, 1)
	AddWeak(r, p)
}

func TestAddWeakDoesNotKeepMeasurerAlive(t *testing.T) {
	r := NewRegistry()
	addTransientWeak(r)
	require.Equal(t, 1, r.Len())

	forceGC()

	assert.Equal(t, 1, r.Prune())
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, members(r))
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, WithReporter(ReporterFunc(func(*MeasurerCallbackFailure) {})))
	camera := NewCamera("main")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p := newProbe("c", float64(i), 0, 0)
				r.Add(p)
				if i%2 == 0 {
					r.Remove(p)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.Broadcast(spatial.Vec3(0, 0, 0), camera)
		}
	}()
	wg.Wait()

	assert.Equal(t, 400, r.Len())
	assert.Len(t, members(r), 400)
}
