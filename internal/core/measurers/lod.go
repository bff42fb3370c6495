package measurers

import (
	"sync"

	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/spatial"
)

var _ measure.Measurer = (*LODSelector)(nil)

// LODSelector picks a detail level from the camera distance. Level 0 is the
// most detailed; level len(thresholds) is used beyond the last threshold.
type LODSelector struct {
	Anchor
	sqrThresholds []float64

	mu       sync.Mutex
	level    int
	onChange func(from, to int)
}

// NewLODSelector takes linear distance thresholds in increasing order.
func NewLODSelector(pos spatial.Vector3, thresholds ...float64) (*LODSelector, error) {
	if len(thresholds) == 0 {
		return nil, ErrNoThresholds
	}
	sqr := make([]float64, len(thresholds))
	prev := 0.0
	for i, d := range thresholds {
		if d <= prev {
			return nil, ErrUnsortedThresholds
		}
		sqr[i] = spatial.Sqr(d)
		prev = d
	}
	l := &LODSelector{sqrThresholds: sqr}
	l.pos = pos
	return l, nil
}

// OnChange registers fn to run whenever the level changes.
func (l *LODSelector) OnChange(fn func(from, to int)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *LODSelector) OnDistanceComputed(_ measure.CameraHandle, sqrDistance float64) error {
	level := len(l.sqrThresholds)
	for i, t := range l.sqrThresholds {
		if sqrDistance < t {
			level = i
			break
		}
	}

	l.mu.Lock()
	from := l.level
	l.level = level
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil && from != level {
		fn(from, level)
	}
	return nil
}

func (l *LODSelector) Level() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}
