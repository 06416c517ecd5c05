// Package mesh defines the in-memory mesh every input format is parsed into.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// PositionName is the attribute name vertex positions are stored under.
const PositionName = "position"

// Mesh errors.
var (
	ErrNoPositions    = errors.New("mesh has no positions")
	ErrIndexRange     = errors.New("face index out of range")
	ErrLengthMismatch = errors.New("attribute length mismatch")
	ErrDuplicateName  = errors.New("duplicate attribute name")
	ErrDegenerateFace = errors.New("face has fewer than three vertices")
)

// Mesh is an ordered list of polygonal faces plus an attribute table.
// Tetrahedra are stored as their four triangle faces.
type Mesh struct {
	Faces      [][]uint32
	Attributes []*Attribute
}

// New creates a mesh from flat xyz positions and faces.
func New(positions []float32, faces [][]uint32) *Mesh {
	return &Mesh{
		Faces:      faces,
		Attributes: []*Attribute{NewFloat(PositionName, KindPosition, 3, PerVertex, positions)},
	}
}

// Positions returns the flat xyz vertex positions.
func (m *Mesh) Positions() []float32 {
	if a := m.Attr(PositionName); a != nil {
		return a.F32
	}
	return nil
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions()) / 3
}

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Attr returns the attribute with the given name, or nil.
func (m *Mesh) Attr(name string) *Attribute {
	for _, a := range m.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// ByKind returns the first attribute of the given kind, or nil.
func (m *Mesh) ByKind(k Kind) *Attribute {
	for _, a := range m.Attributes {
		if a.Kind == k {
			return a
		}
	}
	return nil
}

// AddAttribute appends an attribute after checking its length against its binding.
func (m *Mesh) AddAttribute(a *Attribute) error {
	if m.Attr(a.Name) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateName, a.Name)
	}
	if err := m.checkLen(a); err != nil {
		return err
	}
	m.Attributes = append(m.Attributes, a)
	return nil
}

// SetAttribute replaces the attribute of the same name, or appends it.
func (m *Mesh) SetAttribute(a *Attribute) {
	for i, old := range m.Attributes {
		if old.Name == a.Name {
			m.Attributes[i] = a
			return
		}
	}
	m.Attributes = append(m.Attributes, a)
}

// RemoveAttribute drops the named attribute if present.
func (m *Mesh) RemoveAttribute(name string) {
	m.Attributes = slices.DeleteFunc(m.Attributes, func(a *Attribute) bool {
		return a.Name == name
	})
}

func (m *Mesh) checkLen(a *Attribute) error {
	want := m.VertexCount()
	if a.Binding == PerFace {
		want = m.FaceCount()
	}
	if a.Type.Shape < 1 || a.Type.Shape > 4 || a.rawLen()%a.Type.Shape != 0 || a.Len() != want {
		return fmt.Errorf("%w: %q has %d %s values, want %d",
			ErrLengthMismatch, a.Name, a.Len(), a.Binding, want)
	}
	return nil
}

// Validate checks face indices and attribute lengths.
func (m *Mesh) Validate() error {
	if m.Attr(PositionName) == nil {
		return ErrNoPositions
	}
	n := uint32(m.VertexCount())
	for fi, f := range m.Faces {
		if len(f) < 3 {
			return fmt.Errorf("%w: face %d", ErrDegenerateFace, fi)
		}
		for _, v := range f {
			if v >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrIndexRange, fi, v, n)
			}
		}
	}
	for _, a := range m.Attributes {
		if err := m.checkLen(a); err != nil {
			return err
		}
	}
	return nil
}

// Reverse flips the winding of every face.
func (m *Mesh) Reverse() {
	for _, f := range m.Faces {
		ReverseFace(f)
	}
}

// ReverseFace flips a face's winding in place, keeping its first vertex.
func ReverseFace(f []uint32) {
	if len(f) > 1 {
		slices.Reverse(f[1:])
	}
}

// Triangles fan-triangulates the faces with the given indices.
func (m *Mesh) Triangles(faces []int) []uint32 {
	var out []uint32
	for _, fi := range faces {
		f := m.Faces[fi]
		for i := 1; i+1 < len(f); i++ {
			out = append(out, f[0], f[i], f[i+1])
		}
	}
	return out
}

// TetFaces returns the four outward triangles of tetrahedron (a, b, c, d).
func TetFaces(a, b, c, d uint32, invert bool) [][]uint32 {
	faces := [][]uint32{
		{b, c, d},
		{a, d, c},
		{a, b, d},
		{a, c, b},
	}
	if invert {
		for _, f := range faces {
			ReverseFace(f)
		}
	}
	return faces
}

// Fingerprint identifies a mesh topology. Frames whose fingerprints
// differ cannot share one glTF mesh.
type Fingerprint struct {
	Vertices     int
	Faces        int
	Sizes        []int
	Materials    []uint32
	Connectivity uint64 // xxhash of the face index lists
}

// Fingerprint returns the mesh's topology fingerprint. The per-face
// material assignment is included when a material-id attribute exists.
func (m *Mesh) Fingerprint() Fingerprint {
	fp := Fingerprint{
		Vertices: m.VertexCount(),
		Faces:    m.FaceCount(),
		Sizes:    make([]int, len(m.Faces)),
	}
	h := xxhash.New()
	var buf [4]byte
	for i, f := range m.Faces {
		fp.Sizes[i] = len(f)
		for _, v := range f {
			binary.LittleEndian.PutUint32(buf[:], v)
			_, _ = h.Write(buf[:])
		}
	}
	fp.Connectivity = h.Sum64()
	if a := m.ByKind(KindMaterialID); a != nil && a.Binding == PerFace {
		fp.Materials = a.Uints()
	}
	return fp
}

// Equal reports whether two fingerprints describe the same topology.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Vertices == o.Vertices &&
		f.Faces == o.Faces &&
		f.Connectivity == o.Connectivity &&
		slices.Equal(f.Sizes, o.Sizes) &&
		slices.Equal(f.Materials, o.Materials)
}
