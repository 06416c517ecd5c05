package mesh

import (
	"errors"
	"fmt"
)

// ErrPieceMismatch is returned when mesh pieces disagree on their attributes.
var ErrPieceMismatch = errors.New("mesh pieces have different attributes")

// Concat joins mesh pieces into one mesh. Vertex indices of later pieces
// are shifted past the vertices of earlier ones. Every piece must carry
// the same attribute names with the same types and bindings.
func Concat(pieces ...*Mesh) (*Mesh, error) {
	if len(pieces) == 0 {
		return nil, ErrNoPositions
	}
	if len(pieces) == 1 {
		return pieces[0], nil
	}

	first := pieces[0]
	out := &Mesh{}
	for _, a := range first.Attributes {
		out.Attributes = append(out.Attributes, a.Zero(0))
	}

	var base uint32
	for pi, p := range pieces {
		if len(p.Attributes) != len(first.Attributes) {
			return nil, fmt.Errorf("%w: piece %d has %d attributes, piece 0 has %d",
				ErrPieceMismatch, pi, len(p.Attributes), len(first.Attributes))
		}
		for _, f := range p.Faces {
			shifted := make([]uint32, len(f))
			for i, v := range f {
				shifted[i] = v + base
			}
			out.Faces = append(out.Faces, shifted)
		}
		for _, dst := range out.Attributes {
			src := p.Attr(dst.Name)
			if src == nil || src.Type != dst.Type || src.Binding != dst.Binding {
				return nil, fmt.Errorf("%w: piece %d attribute %q", ErrPieceMismatch, pi, dst.Name)
			}
			dst.F32 = append(dst.F32, src.F32...)
			dst.U32 = append(dst.U32, src.U32...)
			dst.I32 = append(dst.I32, src.I32...)
		}
		base += uint32(p.VertexCount())
	}
	return out, nil
}
