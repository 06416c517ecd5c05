// Package gltfbuild packs animated mesh sequences into a glTF 2.0 document
// and serializes it as .glb or .gltf.
package gltfbuild

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"
)

// Alignment of every buffer view in the shared buffer.
const viewAlign = 4

// Arena is the single growing binary buffer accessors point into.
// Bytes are only ever appended; an offset handed out stays valid.
type Arena struct {
	data []byte
}

// Len returns the number of bytes written so far.
func (a *Arena) Len() int {
	return len(a.data)
}

// Bytes returns the buffer contents.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Append pads the buffer to align and appends p, returning p's offset.
func (a *Arena) Append(p []byte, align int) uint32 {
	if pad := len(a.data) % align; pad != 0 {
		a.data = append(a.data, make([]byte, align-pad)...)
	}
	off := uint32(len(a.data))
	a.data = append(a.data, p...)
	return off
}

// scalar is any component type glTF stores.
type scalar interface {
	constraints.Integer | constraints.Float
}

// appendLE appends vals in little-endian byte order.
func appendLE[T scalar](dst []byte, vals []T) []byte {
	for _, v := range vals {
		switch x := any(v).(type) {
		case float32:
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
		case uint32:
			dst = binary.LittleEndian.AppendUint32(dst, x)
		case int32:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(x))
		case uint16:
			dst = binary.LittleEndian.AppendUint16(dst, x)
		case int16:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(x))
		case uint8:
			dst = append(dst, x)
		case int8:
			dst = append(dst, byte(x))
		}
	}
	return dst
}

// narrow converts values to a smaller integer type, rounding and clamping
// to [lo, hi].
func narrow[T constraints.Integer](vals []float32, lo, hi float64) []T {
	out := make([]T, len(vals))
	for i, v := range vals {
		f := math.Round(float64(v))
		switch {
		case math.IsNaN(f):
			f = 0
		case f < lo:
			f = lo
		case f > hi:
			f = hi
		}
		out[i] = T(f)
	}
	return out
}

// stride pads every elem-byte element of data to step bytes.
func stride(data []byte, elem, step int) []byte {
	if elem == step {
		return data
	}
	n := len(data) / elem
	out := make([]byte, n*step)
	for i := 0; i < n; i++ {
		copy(out[i*step:], data[i*elem:(i+1)*elem])
	}
	return out
}

func align4(n int) int {
	return (n + 3) &^ 3
}
