package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/Faultbox/meshseq/pkg/mesh"
)

const asciiTetGrid = `# vtk DataFile Version 3.0
tet and triangle
ASCII
DATASET UNSTRUCTURED_GRID
POINTS 5 float
0 0 0
1 0 0
0 1 0
0 0 1
1 1 1
CELLS 2 9
4 0 1 2 3
3 1 2 4
CELL_TYPES 2
10
5
CELL_DATA 2
SCALARS mtl_id int 1
LOOKUP_TABLE default
1
2
POINT_DATA 5
NORMALS N float
0 0 1
0 0 1
0 0 1
0 0 1
0 0 1
SCALARS pressure double
LOOKUP_TABLE default
0.5 1.5 2.5 3.5 4.5
`

func TestParseVTK_ASCIIUnstructured(t *testing.T) {
	m, err := ParseVTK([]byte(asciiTetGrid), Options{})
	if err != nil {
		t.Fatalf("ParseVTK failed: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if m.VertexCount() != 5 {
		t.Errorf("expected 5 vertices, got %d", m.VertexCount())
	}
	// The tetrahedron contributes four triangles, the triangle one.
	if m.FaceCount() != 5 {
		t.Errorf("expected 5 faces, got %d", m.FaceCount())
	}

	mtl := m.Attr("mtl_id")
	if mtl == nil {
		t.Fatal("mtl_id attribute missing")
	}
	if mtl.Kind != mesh.KindMaterialID || mtl.Binding != mesh.PerFace {
		t.Errorf("mtl_id kind=%v binding=%v", mtl.Kind, mtl.Binding)
	}
	want := []uint32{1, 1, 1, 1, 2}
	got := mtl.Uints()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mtl_id[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if n := m.Attr("N"); n == nil || n.Kind != mesh.KindNormal || n.Type != mesh.Vec3F32 {
		t.Errorf("normal attribute = %+v", n)
	}
	p := m.Attr("pressure")
	if p == nil || p.Kind != mesh.KindCustom || p.F32[4] != 4.5 {
		t.Errorf("pressure attribute = %+v", p)
	}
}

func TestParseVTK_InvertTets(t *testing.T) {
	plain, err := ParseVTK([]byte(asciiTetGrid), Options{})
	if err != nil {
		t.Fatal(err)
	}
	inverted, err := ParseVTK([]byte(asciiTetGrid), Options{InvertTets: true})
	if err != nil {
		t.Fatal(err)
	}
	a, b := plain.Faces[0], inverted.Faces[0]
	if a[1] != b[2] || a[2] != b[1] {
		t.Errorf("tet face not inverted: %v vs %v", a, b)
	}
	// The triangle cell is not a tetrahedron face.
	if plain.Faces[4][1] != inverted.Faces[4][1] {
		t.Errorf("triangle cell changed: %v vs %v", plain.Faces[4], inverted.Faces[4])
	}
}

func TestParseVTK_Version5Offsets(t *testing.T) {
	data := `# vtk DataFile Version 5.1
offsets
ASCII
DATASET UNSTRUCTURED_GRID
POINTS 4 double
0 0 0 1 0 0 1 1 0 0 1 0
CELLS 3 7
OFFSETS vtktypeint64
0 3 7
CONNECTIVITY vtktypeint64
0 1 2 0 1 2 3
CELL_TYPES 2
5
9
`
	m, err := ParseVTK([]byte(data), Options{})
	if err != nil {
		t.Fatalf("ParseVTK failed: %v", err)
	}
	if m.FaceCount() != 2 {
		t.Fatalf("expected 2 faces, got %d", m.FaceCount())
	}
	if len(m.Faces[0]) != 3 || len(m.Faces[1]) != 4 {
		t.Errorf("face sizes = %d, %d", len(m.Faces[0]), len(m.Faces[1]))
	}
}

func TestParseVTK_PolyData(t *testing.T) {
	data := `# vtk DataFile Version 3.0
quad
ASCII
DATASET POLYDATA
POINTS 4 float
0 0 0 1 0 0 1 1 0 0 1 0
POLYGONS 1 5
4 0 1 2 3
POINT_DATA 4
TEXTURE_COORDINATES TC0 2 float
0 0 1 0 1 1 0 1
`
	m, err := ParseVTK([]byte(data), Options{})
	if err != nil {
		t.Fatalf("ParseVTK failed: %v", err)
	}
	if m.FaceCount() != 1 || len(m.Faces[0]) != 4 {
		t.Errorf("faces = %v", m.Faces)
	}
	tc := m.Attr("TC0")
	if tc == nil || tc.Kind != mesh.KindTexcoord || tc.Type != mesh.Vec2F32 {
		t.Errorf("texcoord attribute = %+v", tc)
	}
}

// makeBinaryVTK builds a BINARY legacy file holding one triangle.
func makeBinaryVTK() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("# vtk DataFile Version 3.0\nbinary\nBINARY\nDATASET UNSTRUCTURED_GRID\n")

	buf.WriteString("POINTS 3 float\n")
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.Write(buf, binary.BigEndian, v)
	}
	buf.WriteString("\nCELLS 1 4\n")
	for _, v := range []int32{3, 0, 1, 2} {
		binary.Write(buf, binary.BigEndian, v)
	}
	buf.WriteString("\nCELL_TYPES 1\n")
	binary.Write(buf, binary.BigEndian, int32(CellTriangle))

	buf.WriteString("\nPOINT_DATA 3\nSCALARS temperature float 1\nLOOKUP_TABLE default\n")
	for _, v := range []float32{10, 20, 30} {
		binary.Write(buf, binary.BigEndian, v)
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func TestParseVTK_Binary(t *testing.T) {
	m, err := ParseVTK(makeBinaryVTK(), Options{})
	if err != nil {
		t.Fatalf("ParseVTK failed: %v", err)
	}
	if m.VertexCount() != 3 || m.FaceCount() != 1 {
		t.Fatalf("got %d vertices, %d faces", m.VertexCount(), m.FaceCount())
	}
	pos := m.Positions()
	if pos[3] != 1 || pos[7] != 1 {
		t.Errorf("positions = %v", pos)
	}
	temp := m.Attr("temperature")
	if temp == nil || temp.F32[2] != 30 {
		t.Errorf("temperature = %+v", temp)
	}
}

func TestParseVTK_Errors(t *testing.T) {
	header := "# vtk DataFile Version 3.0\nt\nASCII\n"
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"bad header", "hello\n", ErrInvalidVTKHeader},
		{"bad format", "# vtk DataFile Version 3.0\nt\nXML\nDATASET POLYDATA\n", ErrUnsupportedVTKFormat},
		{"future version", "# vtk DataFile Version 9.0\nt\nASCII\nDATASET POLYDATA\n", ErrUnsupportedVTKVersion},
		{"structured points", header + "DATASET STRUCTURED_POINTS\n", ErrUnsupportedDataset},
		{"hexahedron", header + "DATASET UNSTRUCTURED_GRID\nPOINTS 8 float\n" +
			"0 0 0 1 0 0 1 1 0 0 1 0 0 0 1 1 0 1 1 1 1 0 1 1\nCELLS 1 9\n8 0 1 2 3 4 5 6 7\nCELL_TYPES 1\n12\n", ErrUnsupportedCell},
		{"truncated points", header + "DATASET POLYDATA\nPOINTS 3 float\n0 0 0 1\n", ErrTruncatedVTKData},
		{"no points", header + "DATASET POLYDATA\n", ErrMissingPoints},
		{"unknown section", header + "DATASET POLYDATA\nPOINTS 1 float\n0 0 0\nBOGUS 1\n", ErrUnknownVTKSection},
		{"bad data type", header + "DATASET POLYDATA\nPOINTS 1 quad\n0 0 0\n", ErrUnsupportedDataType},
		{"cell data length", header + "DATASET POLYDATA\nPOINTS 3 float\n0 0 0 1 0 0 0 1 0\nPOLYGONS 1 4\n3 0 1 2\n" +
			"CELL_DATA 2\nSCALARS m int\nLOOKUP_TABLE default\n1 2\n", mesh.ErrLengthMismatch},
		{"huge point count", header + "DATASET POLYDATA\nPOINTS 100000000000000 float\n0 0 0\n", ErrTruncatedVTKData},
		{"overflowing point count", header + "DATASET POLYDATA\nPOINTS 4611686018427387904 float\n0 0 0\n", ErrTruncatedVTKData},
		{"huge binary point count", "# vtk DataFile Version 3.0\nt\nBINARY\nDATASET POLYDATA\nPOINTS 4611686018427387904 float\n" +
			string(make([]byte, 12)) + "\n", ErrTruncatedVTKData},
		{"huge lookup table", header + "DATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOINT_DATA 1\nLOOKUP_TABLE t 3000000000000000000\n0\n", ErrTruncatedVTKData},
		{"huge cell count", header + "DATASET POLYDATA\nPOINTS 3 float\n0 0 0 1 0 0 0 1 0\nPOLYGONS 1000000000000000 4\n3 0 1 2\n", ErrTruncatedVTKData},
		{"huge tuple count", header + "DATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOINT_DATA 2305843009213693952\nTENSORS t float\n0\n", ErrTruncatedVTKData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVTK([]byte(tt.data), Options{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseVTK() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVTKCellType_String(t *testing.T) {
	tests := []struct {
		typ  VTKCellType
		want string
	}{
		{CellTriangle, "VTK_TRIANGLE"},
		{CellTetra, "VTK_TETRA"},
		{VTKCellType(42), "Unknown(42)"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(uint8(tt.typ)), func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
