// Package measurers holds the stock distance consumers: LOD switching, audio
// rolloff, culling and billboards.
package measurers

import (
	"errors"
	"sync"

	"github.com/zeusync/camdist/internal/core/spatial"
)

var (
	ErrNoThresholds       = errors.New("at least one LOD threshold is required")
	ErrUnsortedThresholds = errors.New("LOD thresholds must be positive and strictly increasing")
	ErrInvalidRange       = errors.New("range must satisfy 0 < min < max")
)

// Anchor is a movable world position shared by all stock measurers.
type Anchor struct {
	mu  sync.RWMutex
	pos spatial.Vector3
}

func (a *Anchor) Position() spatial.Vector3 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

func (a *Anchor) MoveTo(pos spatial.Vector3) {
	a.mu.Lock()
	a.pos = pos
	a.mu.Unlock()
}
