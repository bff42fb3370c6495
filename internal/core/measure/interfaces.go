package measure

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/camdist/internal/core/spatial"
)

// Measurer is an object interested in its distance to the active camera.
//
// Implementations are usually pointers: the registry identifies members by
// interface equality, so the dynamic type must be comparable.
type Measurer interface {
	// Position is read once per broadcast pass, right before the callback.
	spatial.Positioned
	// OnDistanceComputed receives the squared distance to camera. A returned
	// error is reported by the broadcaster and never aborts the pass.
	OnDistanceComputed(camera CameraHandle, sqrDistance float64) error
}

// CameraHandle identifies the camera a broadcast was measured from.
type CameraHandle struct {
	ID   uuid.UUID
	Name string
}

// NewCamera returns a handle with a fresh random identity.
func NewCamera(name string) CameraHandle {
	return CameraHandle{ID: uuid.New(), Name: name}
}

func (c CameraHandle) IsZero() bool { return c.ID == uuid.Nil }

func (c CameraHandle) String() string {
	if c.Name == "" {
		return c.ID.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, c.ID)
}

// CameraSource supplies the reference point for each tick. ok is false when
// no camera is active and the tick should be skipped.
type CameraSource interface {
	Camera() (position spatial.Vector3, camera CameraHandle, ok bool)
}

// StaticCamera is a CameraSource the host moves explicitly.
type StaticCamera struct {
	mu       sync.RWMutex
	handle   CameraHandle
	position spatial.Vector3
	active   bool
}

func NewStaticCamera(handle CameraHandle, position spatial.Vector3) *StaticCamera {
	return &StaticCamera{handle: handle, position: position, active: true}
}

func (c *StaticCamera) Camera() (spatial.Vector3, CameraHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position, c.handle, c.active
}

func (c *StaticCamera) MoveTo(position spatial.Vector3) {
	c.mu.Lock()
	c.position = position
	c.mu.Unlock()
}

func (c *StaticCamera) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// PassStats summarises one broadcast pass.
type PassStats struct {
	Pass     uint64
	Camera   CameraHandle
	Notified int
	Failed   int
	Duration time.Duration
}

// BroadcastObserver is notified after every pass. Observers should return quickly.
type BroadcastObserver interface {
	OnPass(stats PassStats)
}

// FailureReporter receives callback failures caught by the broadcaster.
type FailureReporter interface {
	Report(failure *MeasurerCallbackFailure)
}

// ReporterFunc adapts a function to FailureReporter.
type ReporterFunc func(failure *MeasurerCallbackFailure)

func (f ReporterFunc) Report(failure *MeasurerCallbackFailure) { f(failure) }
