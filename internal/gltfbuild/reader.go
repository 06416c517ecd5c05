package gltfbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Reader errors.
var (
	ErrInvalidDocument = errors.New("invalid glTF document")
	ErrMissingBuffer   = errors.New("buffer data unavailable")
	ErrAccessorRange   = errors.New("accessor reads past its buffer view")
	ErrUnsupportedType = errors.New("unsupported accessor component type")
)

// ReadDocument decodes a .glb or .gltf document and loads its buffers.
// Relative buffer URIs are read from fsys, which may be nil when none are
// expected.
func ReadDocument(data []byte, fsys fs.FS) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrMissingBuffer, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for i, b := range doc.Buffers {
		if len(b.Data) < int(b.ByteLength) {
			return nil, fmt.Errorf("%w: buffer %d has %d of %d bytes", ErrMissingBuffer, i, len(b.Data), b.ByteLength)
		}
	}
	return doc, nil
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 1
}

func readComponent(b []byte, ct gltf.ComponentType) (float64, error) {
	switch ct {
	case gltf.ComponentFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case gltf.ComponentUint:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case gltf.ComponentUshort:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case gltf.ComponentShort:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case gltf.ComponentUbyte:
		return float64(b[0]), nil
	case gltf.ComponentByte:
		return float64(int8(b[0])), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedType, ct)
}

// readView decodes count elements of n components from a buffer view.
func readView(doc *gltf.Document, view, offset uint32, ct gltf.ComponentType, count, n int) ([]float64, error) {
	if int(view) >= len(doc.BufferViews) {
		return nil, fmt.Errorf("%w: view %d", ErrAccessorRange, view)
	}
	bv := doc.BufferViews[view]
	buf, err := modeler.ReadBufferView(doc, bv)
	if err != nil {
		return nil, fmt.Errorf("%w: view %d: %v", ErrMissingBuffer, view, err)
	}
	size := componentSize(ct)
	elem := size * n
	step := int(bv.ByteStride)
	if step == 0 {
		step = elem
	}
	start := int(offset)
	if count > 0 && start+(count-1)*step+elem > len(buf) {
		return nil, fmt.Errorf("%w: view %d", ErrAccessorRange, view)
	}
	out := make([]float64, 0, count*n)
	for e := 0; e < count; e++ {
		base := start + e*step
		for c := 0; c < n; c++ {
			v, err := readComponent(buf[base+c*size:], ct)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// ReadAccessor decodes accessor i, applying sparse substitution over its
// buffer view or over zeros. modeler.ReadAccessor looks up the sparse value
// stride by byte offset and returns nil for zero accessors, so sparse
// targets are read here.
func ReadAccessor(doc *gltf.Document, i uint32) ([]float64, error) {
	if int(i) >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d", ErrAccessorRange, i)
	}
	a := doc.Accessors[i]
	n := componentCount(a.Type)
	count := int(a.Count)

	var (
		out []float64
		err error
	)
	if a.BufferView != nil {
		if out, err = readView(doc, *a.BufferView, a.ByteOffset, a.ComponentType, count, n); err != nil {
			return nil, err
		}
	} else {
		out = make([]float64, count*n)
	}

	if s := a.Sparse; s != nil {
		idx, err := readView(doc, s.Indices.BufferView, s.Indices.ByteOffset, s.Indices.ComponentType, int(s.Count), 1)
		if err != nil {
			return nil, err
		}
		vals, err := readView(doc, s.Values.BufferView, s.Values.ByteOffset, a.ComponentType, int(s.Count), n)
		if err != nil {
			return nil, err
		}
		for k, e := range idx {
			if int(e) >= count {
				return nil, fmt.Errorf("%w: sparse index %d of %d", ErrAccessorRange, int(e), count)
			}
			copy(out[int(e)*n:int(e+1)*n], vals[k*n:(k+1)*n])
		}
	}
	return out, nil
}

// ReadFloats decodes accessor i as float32 values.
func ReadFloats(doc *gltf.Document, i uint32) ([]float32, error) {
	vals, err := ReadAccessor(doc, i)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(vals))
	for k, v := range vals {
		out[k] = float32(v)
	}
	return out, nil
}

// ReadUints decodes accessor i as uint32 values.
func ReadUints(doc *gltf.Document, i uint32) ([]uint32, error) {
	vals, err := ReadAccessor(doc, i)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(vals))
	for k, v := range vals {
		out[k] = uint32(v)
	}
	return out, nil
}
