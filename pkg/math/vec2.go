// Package math provides float32 math types for mesh and texture processing.
package math

import "github.com/chewxy/math32"

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// MulComp returns the component-wise product.
func (v Vec2) MulComp(other Vec2) Vec2 {
	return Vec2{v.X * other.X, v.Y * other.Y}
}

// Dot returns the dot product.
func (v Vec2) Dot(other Vec2) float32 {
	return v.X*other.X + v.Y*other.Y
}

// Length returns the magnitude.
func (v Vec2) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Fract returns the tiling-safe fractional part of each component.
// Exact non-zero integer coordinates map to 1 rather than 0, so a
// vertex on the far edge of a tiled UV range stays on the far edge
// after wrapping.
func (v Vec2) Fract() Vec2 {
	return Vec2{fract(v.X), fract(v.Y)}
}

func fract(x float32) float32 {
	f := x - math32.Floor(x)
	if f == 0 && x != 0 {
		return 1
	}
	return f
}
