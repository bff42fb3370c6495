package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 is a world-space position.
type Vector3 = mgl64.Vec3

// Vec3 builds a Vector3 from its components.
func Vec3(x, y, z float64) Vector3 { return Vector3{x, y, z} }

// SqrDistance returns the squared Euclidean distance between a and b.
func SqrDistance(a, b Vector3) float64 {
	return b.Sub(a).LenSqr()
}

// Distance returns the Euclidean distance between a and b.
// Prefer SqrDistance when only comparing against a threshold.
func Distance(a, b Vector3) float64 {
	return math.Sqrt(SqrDistance(a, b))
}

// Sqr squares a linear distance so it can be compared with SqrDistance results.
func Sqr(d float64) float64 { return d * d }

// Positioned is anything with a world-space position.
type Positioned interface {
	Position() Vector3
}
