package measure

import (
	"errors"
	"fmt"
)

// ErrMeasurerPanic marks failures recovered from a panicking measurer.
var ErrMeasurerPanic = errors.New("measurer callback panicked")

// MeasurerCallbackFailure is raised when a registered measurer fails during a
// broadcast pass. It is reported, never returned to the Broadcast caller.
type MeasurerCallbackFailure struct {
	Handle      Handle
	Measurer    Measurer
	Camera      CameraHandle
	SqrDistance float64
	Err         error
	// Recovered holds the panic value, nil when the callback returned an error.
	Recovered any
}

func (f *MeasurerCallbackFailure) Error() string {
	return fmt.Sprintf("measurer %s (%T) failed for camera %s: %v", f.Handle, f.Measurer, f.Camera, f.Err)
}

func (f *MeasurerCallbackFailure) Unwrap() error { return f.Err }

// Panicked reports whether the failure came from a recovered panic.
func (f *MeasurerCallbackFailure) Panicked() bool { return f.Recovered != nil }

func panicFailure(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w: %w", ErrMeasurerPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrMeasurerPanic, recovered)
}
