package gltfbuild

import (
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/meshseq/internal/schema"
)

// Reference selects what sparse morph targets are diffed against.
type Reference uint8

// Sparse references.
const (
	// ReferencePrevious diffs against the last densely stored target of
	// the same attribute.
	ReferencePrevious Reference = iota
	// ReferenceBase diffs against zero displacement.
	ReferenceBase
)

// String returns the reference name.
func (r Reference) String() string {
	if r == ReferenceBase {
		return "base"
	}
	return "previous"
}

// ParseReference parses "previous" or "base".
func ParseReference(s string) (Reference, error) {
	switch s {
	case "", "previous":
		return ReferencePrevious, nil
	case "base":
		return ReferenceBase, nil
	}
	return 0, fmt.Errorf("unknown sparse reference %q", s)
}

// SparseOptions control the dense versus sparse decision for morph targets.
type SparseOptions struct {
	// Threshold is the changed-element fraction below which a target is
	// stored sparse. Zero stores every target dense.
	Threshold float64
	Reference Reference
}

// Stats counts accessors by encoding.
type Stats struct {
	Dense  int
	Sparse int
	Zero   int
}

// Packer writes accessors into a document and its shared arena.
type Packer struct {
	doc    *gltf.Document
	arena  Arena
	sparse SparseOptions
	Stats  Stats
}

// NewPacker returns a packer writing into doc.
func NewPacker(doc *gltf.Document, opts SparseOptions) *Packer {
	return &Packer{doc: doc, sparse: opts}
}

// Arena returns the packer's buffer.
func (p *Packer) Arena() *Arena {
	return &p.arena
}

func (p *Packer) view(data []byte, byteStride uint32, target gltf.Target) uint32 {
	off := p.arena.Append(data, viewAlign)
	p.doc.BufferViews = append(p.doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: off,
		ByteLength: uint32(len(data)),
		ByteStride: byteStride,
		Target:     target,
	})
	return uint32(len(p.doc.BufferViews) - 1)
}

func (p *Packer) accessor(a *gltf.Accessor) uint32 {
	p.doc.Accessors = append(p.doc.Accessors, a)
	return uint32(len(p.doc.Accessors) - 1)
}

// accessorType maps an element width to a glTF accessor type.
func accessorType(shape int) gltf.AccessorType {
	switch shape {
	case 2:
		return gltf.AccessorVec2
	case 3:
		return gltf.AccessorVec3
	case 4:
		return gltf.AccessorVec4
	}
	return gltf.AccessorScalar
}

// bounds returns the component-wise min and max of vals.
func bounds(vals []float32, shape int) (lo, hi []float32) {
	lo = make([]float32, shape)
	hi = make([]float32, shape)
	for c := 0; c < shape; c++ {
		lo[c] = float32(math.Inf(1))
		hi[c] = float32(math.Inf(-1))
	}
	if len(vals) < shape {
		clear(lo)
		clear(hi)
		return lo, hi
	}
	for i, v := range vals {
		c := i % shape
		lo[c] = min(lo[c], v)
		hi[c] = max(hi[c], v)
	}
	return lo, hi
}

// Floats stores vals densely as float32 elements of the given shape.
// withBounds adds min/max, required for positions and sampler inputs.
func (p *Packer) Floats(vals []float32, shape int, target gltf.Target, withBounds bool) uint32 {
	bv := p.view(appendLE(nil, vals), 0, target)
	a := &gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: gltf.ComponentFloat,
		Count:         uint32(len(vals) / shape),
		Type:          accessorType(shape),
	}
	if withBounds {
		a.Min, a.Max = bounds(vals, shape)
	}
	p.Stats.Dense++
	return p.accessor(a)
}

// Zero adds an accessor of count zero elements with no buffer view.
func (p *Packer) Zero(count, shape int, withBounds bool) uint32 {
	a := &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Count:         uint32(count),
		Type:          accessorType(shape),
	}
	if withBounds {
		a.Min = make([]float32, shape)
		a.Max = make([]float32, shape)
	}
	p.Stats.Zero++
	return p.accessor(a)
}

// indexComponent returns the narrowest component type able to hold values
// up to maxValue. Index buffers must avoid the type's maximum, which is
// reserved for primitive restart.
func indexComponent(maxValue uint32, restart bool) gltf.ComponentType {
	limit := func(m uint32) bool {
		if restart {
			return maxValue < m
		}
		return maxValue <= m
	}
	switch {
	case limit(math.MaxUint8):
		return gltf.ComponentUbyte
	case limit(math.MaxUint16):
		return gltf.ComponentUshort
	}
	return gltf.ComponentUint
}

func encodeIndices(idx []uint32, ct gltf.ComponentType) []byte {
	switch ct {
	case gltf.ComponentUbyte:
		out := make([]uint8, len(idx))
		for i, v := range idx {
			out[i] = uint8(v)
		}
		return appendLE(nil, out)
	case gltf.ComponentUshort:
		out := make([]uint16, len(idx))
		for i, v := range idx {
			out[i] = uint16(v)
		}
		return appendLE(nil, out)
	}
	return appendLE(nil, idx)
}

// Indices stores triangle indices with the smallest component type that
// fits vertexCount.
func (p *Packer) Indices(idx []uint32, vertexCount int) uint32 {
	maxIndex := uint32(0)
	if vertexCount > 0 {
		maxIndex = uint32(vertexCount - 1)
	}
	ct := indexComponent(maxIndex, true)
	bv := p.view(encodeIndices(idx, ct), 0, gltf.TargetElementArrayBuffer)
	p.Stats.Dense++
	return p.accessor(&gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: ct,
		Count:         uint32(len(idx)),
		Type:          gltf.AccessorScalar,
	})
}

// Custom stores an application-specific vertex attribute with its declared
// storage. Elements are padded to 4-byte strides.
func (p *Packer) Custom(vals []float32, ct schema.CustomType) uint32 {
	var (
		data []byte
		comp gltf.ComponentType
	)
	switch ct.Storage {
	case schema.StorageU16:
		data, comp = appendLE(nil, narrow[uint16](vals, 0, math.MaxUint16)), gltf.ComponentUshort
	case schema.StorageU8:
		data, comp = appendLE(nil, narrow[uint8](vals, 0, math.MaxUint8)), gltf.ComponentUbyte
	case schema.StorageI16:
		data, comp = appendLE(nil, narrow[int16](vals, math.MinInt16, math.MaxInt16)), gltf.ComponentShort
	case schema.StorageI8:
		data, comp = appendLE(nil, narrow[int8](vals, math.MinInt8, math.MaxInt8)), gltf.ComponentByte
	case schema.StorageU32:
		data, comp = appendLE(nil, narrow[uint32](vals, 0, math.MaxUint32)), gltf.ComponentUint
	default:
		data, comp = appendLE(nil, vals), gltf.ComponentFloat
	}
	elem := ct.Shape * ct.Storage.Size()
	step := align4(elem)
	var byteStride uint32
	if step != elem {
		data = stride(data, elem, step)
		byteStride = uint32(step)
	}
	bv := p.view(data, byteStride, gltf.TargetArrayBuffer)
	p.Stats.Dense++
	return p.accessor(&gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: comp,
		Count:         uint32(len(vals) / ct.Shape),
		Type:          accessorType(ct.Shape),
	})
}

// sparseBlock writes the index and value views of a sparse accessor.
func (p *Packer) sparseBlock(indices []uint32, values []float32, count int) *gltf.Sparse {
	ct := indexComponent(uint32(max(count-1, 0)), false)
	iv := p.view(encodeIndices(indices, ct), 0, gltf.TargetNone)
	vv := p.view(appendLE(nil, values), 0, gltf.TargetNone)
	return &gltf.Sparse{
		Count:   uint32(len(indices)),
		Indices: gltf.SparseIndices{BufferView: iv, ComponentType: ct},
		Values:  gltf.SparseValues{BufferView: vv},
	}
}

// TargetTrack packs the successive morph targets of one attribute of one
// primitive, tracking the reference sparse targets diff against.
type TargetTrack struct {
	p         *Packer
	shape     int
	bounds    bool
	refValues []float32 // nil means zero
	refView   *uint32
}

// Track starts a morph target track. withBounds is set for POSITION.
func (p *Packer) Track(shape int, withBounds bool) *TargetTrack {
	return &TargetTrack{p: p, shape: shape, bounds: withBounds}
}

// changed returns the element indices where vals differs bit-wise from ref.
func changed(vals, ref []float32, shape int) []uint32 {
	var out []uint32
	for e := 0; e*shape < len(vals); e++ {
		for c := 0; c < shape; c++ {
			i := e*shape + c
			var r float32
			if ref != nil {
				r = ref[i]
			}
			if math.Float32bits(vals[i]) != math.Float32bits(r) {
				out = append(out, uint32(e))
				break
			}
		}
	}
	return out
}

// Add packs one target. A nil vals is an all-zero target.
func (t *TargetTrack) Add(vals []float32, count int) uint32 {
	p := t.p
	if vals == nil {
		return p.Zero(count, t.shape, t.bounds)
	}
	if p.sparse.Threshold > 0 {
		ref, view := t.refValues, t.refView
		if p.sparse.Reference == ReferenceBase {
			ref, view = nil, nil
		}
		diff := changed(vals, ref, t.shape)
		if float64(len(diff)) < p.sparse.Threshold*float64(count) {
			return t.addSparse(vals, diff, count, view)
		}
	}
	idx := p.Floats(vals, t.shape, gltf.TargetArrayBuffer, t.bounds)
	t.refValues = vals
	t.refView = p.doc.Accessors[idx].BufferView
	return idx
}

func (t *TargetTrack) addSparse(vals []float32, diff []uint32, count int, view *uint32) uint32 {
	p := t.p
	a := &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Count:         uint32(count),
		Type:          accessorType(t.shape),
	}
	if view != nil {
		a.BufferView = gltf.Index(*view)
	}
	if len(diff) > 0 {
		values := make([]float32, 0, len(diff)*t.shape)
		for _, e := range diff {
			values = append(values, vals[int(e)*t.shape:int(e+1)*t.shape]...)
		}
		a.Sparse = p.sparseBlock(diff, values, count)
	}
	if t.bounds {
		a.Min, a.Max = bounds(vals, t.shape)
	}
	p.Stats.Sparse++
	return p.accessor(a)
}

// SparseWeights stores a weights sampler output as a sparse accessor over
// an implicit zero base. Only nonzero weights are written.
func (p *Packer) SparseWeights(weights []float32) uint32 {
	var (
		indices []uint32
		values  []float32
	)
	for i, w := range weights {
		if w != 0 {
			indices = append(indices, uint32(i))
			values = append(values, w)
		}
	}
	a := &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Count:         uint32(len(weights)),
		Type:          gltf.AccessorScalar,
	}
	if len(indices) > 0 {
		a.Sparse = p.sparseBlock(indices, values, len(weights))
	}
	p.Stats.Sparse++
	return p.accessor(a)
}
