// Package geom provides the small 2D vector type the client uses for
// render interpolation. Adapted from the engine's original
// Vector2/Vector3 math package down to exactly what a 2D lockstep
// platformer needs.
package geom

import "math"

// Vector2 represents a 2D vector (position, velocity, or render offset).
type Vector2 struct {
	X, Y float32
}

// Add adds two vectors.
func (v Vector2) Add(other Vector2) Vector2 {
	return Vector2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub subtracts two vectors.
func (v Vector2) Sub(other Vector2) Vector2 {
	return Vector2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul multiplies vector by scalar.
func (v Vector2) Mul(scalar float32) Vector2 {
	return Vector2{X: v.X * scalar, Y: v.Y * scalar}
}

// Dot computes the dot product.
func (v Vector2) Dot(other Vector2) float32 {
	return v.X*other.X + v.Y*other.Y
}

// Magnitude returns the true Euclidean magnitude.
func (v Vector2) Magnitude() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize normalizes the vector, returning the zero vector for a zero input.
func (v Vector2) Normalize() Vector2 {
	mag := v.Magnitude()
	if mag == 0 {
		return Vector2{}
	}
	return v.Mul(1.0 / mag)
}

// Lerp linearly interpolates from v to other by t, used for render-frame
// interpolation between two simulated ticks.
func (v Vector2) Lerp(other Vector2, t float32) Vector2 {
	return v.Add(other.Sub(v).Mul(t))
}
