package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshseq/pkg/mesh"
)

// Cell errors shared by the VTK readers.
var (
	ErrUnsupportedCell = errors.New("unsupported cell type")
	ErrCellSize        = errors.New("cell has wrong number of points")
)

// VTKCellType is a VTK cell type id.
type VTKCellType uint8

// VTK cell types.
const (
	CellVertex        VTKCellType = 1
	CellPolyVertex    VTKCellType = 2
	CellLine          VTKCellType = 3
	CellPolyLine      VTKCellType = 4
	CellTriangle      VTKCellType = 5
	CellTriangleStrip VTKCellType = 6
	CellPolygon       VTKCellType = 7
	CellPixel         VTKCellType = 8
	CellQuad          VTKCellType = 9
	CellTetra         VTKCellType = 10
	CellVoxel         VTKCellType = 11
	CellHexahedron    VTKCellType = 12
)

// String returns the VTK name of the cell type.
func (c VTKCellType) String() string {
	switch c {
	case CellVertex:
		return "VTK_VERTEX"
	case CellPolyVertex:
		return "VTK_POLY_VERTEX"
	case CellLine:
		return "VTK_LINE"
	case CellPolyLine:
		return "VTK_POLY_LINE"
	case CellTriangle:
		return "VTK_TRIANGLE"
	case CellTriangleStrip:
		return "VTK_TRIANGLE_STRIP"
	case CellPolygon:
		return "VTK_POLYGON"
	case CellPixel:
		return "VTK_PIXEL"
	case CellQuad:
		return "VTK_QUAD"
	case CellTetra:
		return "VTK_TETRA"
	case CellVoxel:
		return "VTK_VOXEL"
	case CellHexahedron:
		return "VTK_HEXAHEDRON"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// cellBuilder turns VTK cells into mesh faces and remembers how many
// faces each cell produced, so cell data can be spread over them.
type cellBuilder struct {
	opts    Options
	faces   [][]uint32
	perCell []int
}

func (b *cellBuilder) add(typ VTKCellType, pts []uint32) error {
	before := len(b.faces)
	switch typ {
	case CellVertex, CellPolyVertex:
		// Points carry no faces; the vertices still reach the output.
	case CellTriangle:
		if len(pts) != 3 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		b.faces = append(b.faces, pts)
	case CellQuad:
		if len(pts) != 4 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		b.faces = append(b.faces, pts)
	case CellPixel:
		if len(pts) != 4 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		b.faces = append(b.faces, []uint32{pts[0], pts[1], pts[3], pts[2]})
	case CellPolygon:
		if len(pts) < 3 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		b.faces = append(b.faces, pts)
	case CellTriangleStrip:
		if len(pts) < 3 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		for i := 0; i+2 < len(pts); i++ {
			if i%2 == 0 {
				b.faces = append(b.faces, []uint32{pts[i], pts[i+1], pts[i+2]})
			} else {
				b.faces = append(b.faces, []uint32{pts[i+1], pts[i], pts[i+2]})
			}
		}
	case CellTetra:
		if len(pts) != 4 {
			return fmt.Errorf("%w: %s with %d points", ErrCellSize, typ, len(pts))
		}
		b.faces = append(b.faces, mesh.TetFaces(pts[0], pts[1], pts[2], pts[3], b.opts.InvertTets)...)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCell, typ)
	}
	b.perCell = append(b.perCell, len(b.faces)-before)
	return nil
}

// spread repeats per-cell values onto the faces each cell produced.
func (b *cellBuilder) spread(a *mesh.Attribute) (*mesh.Attribute, error) {
	if a.Len() != len(b.perCell) {
		return nil, fmt.Errorf("%w: cell array %q has %d tuples for %d cells",
			mesh.ErrLengthMismatch, a.Name, a.Len(), len(b.perCell))
	}
	idx := make([]uint32, 0, len(b.faces))
	for cell, n := range b.perCell {
		for j := 0; j < n; j++ {
			idx = append(idx, uint32(cell))
		}
	}
	out := a.Subset(idx)
	out.Binding = mesh.PerFace
	return out, nil
}

// addConnectivity feeds cells described by offsets/connectivity arrays,
// with all cells of one type when types is nil.
func (b *cellBuilder) addConnectivity(conn []uint32, offsets []int, types []VTKCellType, typ VTKCellType) error {
	start := 0
	for i, end := range offsets {
		if end < start || end > len(conn) {
			return fmt.Errorf("%w: cell %d offset %d", mesh.ErrIndexRange, i, end)
		}
		t := typ
		if types != nil {
			t = types[i]
		}
		if err := b.add(t, append([]uint32(nil), conn[start:end]...)); err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		start = end
	}
	return nil
}
