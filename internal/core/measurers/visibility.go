package measurers

import (
	"sync"
	"sync/atomic"

	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/spatial"
)

var (
	_ measure.Measurer = (*Culler)(nil)
	_ measure.Measurer = (*Billboard)(nil)
)

// Culler hides its object beyond MaxDistance.
type Culler struct {
	Anchor
	sqrMax  float64
	visible atomic.Bool
}

func NewCuller(pos spatial.Vector3, maxDistance float64) *Culler {
	c := &Culler{sqrMax: spatial.Sqr(maxDistance)}
	c.pos = pos
	c.visible.Store(true)
	return c
}

func (c *Culler) OnDistanceComputed(_ measure.CameraHandle, sqrDistance float64) error {
	c.visible.Store(sqrDistance <= c.sqrMax)
	return nil
}

func (c *Culler) Visible() bool { return c.visible.Load() }

// Billboard turns towards the camera only while it is within range, and
// remembers which camera it last faced.
type Billboard struct {
	Anchor
	sqrRange float64

	mu     sync.Mutex
	facing bool
	camera measure.CameraHandle
}

func NewBillboard(pos spatial.Vector3, faceRange float64) *Billboard {
	b := &Billboard{sqrRange: spatial.Sqr(faceRange)}
	b.pos = pos
	return b
}

func (b *Billboard) OnDistanceComputed(camera measure.CameraHandle, sqrDistance float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facing = sqrDistance <= b.sqrRange
	if b.facing {
		b.camera = camera
	}
	return nil
}

// Facing reports whether the billboard faces a camera and which one.
func (b *Billboard) Facing() (measure.CameraHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.camera, b.facing
}
