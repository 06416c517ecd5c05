package math

import "math"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max Vec3
	empty    bool
}

// EmptyBounds returns a box that any point extends.
func EmptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min:   Vec3{inf, inf, inf},
		Max:   Vec3{-inf, -inf, -inf},
		empty: true,
	}
}

// Extend grows the box to contain p.
func (b *Bounds) Extend(p Vec3) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
	b.empty = false
}

// IsEmpty reports whether no point was added.
func (b Bounds) IsEmpty() bool {
	return b.empty
}

// BoundsOf computes the box of a flat xyz array.
func BoundsOf(flat []float32) Bounds {
	b := EmptyBounds()
	for i := 0; i < len(flat)/3; i++ {
		b.Extend(Vec3At(flat, i))
	}
	return b
}

// MinSlice returns Min as a slice, the shape glTF accessors use.
func (b Bounds) MinSlice() []float32 {
	return []float32{b.Min.X, b.Min.Y, b.Min.Z}
}

// MaxSlice returns Max as a slice.
func (b Bounds) MaxSlice() []float32 {
	return []float32{b.Max.X, b.Max.Y, b.Max.Z}
}
