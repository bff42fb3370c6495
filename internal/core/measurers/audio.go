package measurers

import (
	"math"
	"sync/atomic"

	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/spatial"
)

var _ measure.Measurer = (*AudioAttenuator)(nil)

// AudioAttenuator computes an inverse-distance gain for a positional sound.
// Gain is 1 inside MinDistance and 0 at or beyond MaxDistance.
type AudioAttenuator struct {
	Anchor
	minDistance float64
	maxDistance float64
	sqrMax      float64

	gain atomic.Uint64
}

func NewAudioAttenuator(pos spatial.Vector3, minDistance, maxDistance float64) (*AudioAttenuator, error) {
	if minDistance <= 0 || maxDistance <= minDistance {
		return nil, ErrInvalidRange
	}
	a := &AudioAttenuator{
		minDistance: minDistance,
		maxDistance: maxDistance,
		sqrMax:      spatial.Sqr(maxDistance),
	}
	a.pos = pos
	a.gain.Store(math.Float64bits(1))
	return a, nil
}

func (a *AudioAttenuator) OnDistanceComputed(_ measure.CameraHandle, sqrDistance float64) error {
	var gain float64
	switch {
	case sqrDistance >= a.sqrMax:
		gain = 0
	case sqrDistance <= spatial.Sqr(a.minDistance):
		gain = 1
	default:
		// only the rolloff band needs the linear distance
		gain = a.minDistance / math.Sqrt(sqrDistance)
	}
	a.gain.Store(math.Float64bits(gain))
	return nil
}

// Gain returns the last computed gain in [0, 1].
func (a *AudioAttenuator) Gain() float64 {
	return math.Float64frombits(a.gain.Load())
}
