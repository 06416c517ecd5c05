// Package math provides the small vector helpers used when packing mesh data.
package math

import "math"

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec3At reads the i-th vector out of a flat xyz array.
func Vec3At(flat []float32, i int) Vec3 {
	return Vec3{flat[3*i], flat[3*i+1], flat[3*i+2]}
}

// Put writes v as the i-th vector of a flat xyz array.
func (v Vec3) Put(flat []float32, i int) {
	flat[3*i] = v.X
	flat[3*i+1] = v.Y
	flat[3*i+2] = v.Z
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Scale returns v * scalar.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Min returns the component-wise minimum.
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{min(v.X, other.X), min(v.Y, other.Y), min(v.Z, other.Z)}
}

// Max returns the component-wise maximum.
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{max(v.X, other.X), max(v.Y, other.Y), max(v.Z, other.Z)}
}

// Length returns the magnitude.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Displace returns to - from for every vector of two equally sized flat arrays.
func Displace(to, from []float32) []float32 {
	out := make([]float32, len(to))
	for i := 0; i < len(to)/3; i++ {
		Vec3At(to, i).Sub(Vec3At(from, i)).Put(out, i)
	}
	return out
}

// Negate returns -v for every vector of a flat array.
func Negate(flat []float32) []float32 {
	out := make([]float32, len(flat))
	for i := 0; i < len(flat)/3; i++ {
		Vec3At(flat, i).Neg().Put(out, i)
	}
	return out
}
