package formats

import (
	"errors"
	"testing"

	"github.com/Faultbox/meshseq/pkg/mesh"
)

const quadOBJ = `# two triangles sharing an edge
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl skin
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`

func TestParseOBJ_SharedCorners(t *testing.T) {
	m, err := ParseOBJ([]byte(quadOBJ))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected 4 unified vertices, got %d", m.VertexCount())
	}
	if m.FaceCount() != 2 {
		t.Errorf("expected 2 faces, got %d", m.FaceCount())
	}
	uv := m.Attr(OBJTexcoordName)
	if uv == nil || uv.Kind != mesh.KindTexcoord || uv.Len() != 4 {
		t.Fatalf("texcoord attribute = %+v", uv)
	}
	n := m.Attr(OBJNormalName)
	if n == nil || n.Kind != mesh.KindNormal || n.F32[2] != 1 {
		t.Errorf("normal attribute = %+v", n)
	}
}

func TestParseOBJ_SplitCorners(t *testing.T) {
	// The same position with two texture coordinates yields two vertices.
	data := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 1
f 1/1 2/1 3/1
f 1/2 3/1 2/1
`
	m, err := ParseOBJ([]byte(data))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected 4 vertices, got %d", m.VertexCount())
	}
	if m.Attr(OBJNormalName) != nil {
		t.Error("unexpected normal attribute")
	}
}

func TestParseOBJ_PolygonsAndNegativeIndices(t *testing.T) {
	data := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f -4 -3 -2 -1
`
	m, err := ParseOBJ([]byte(data))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if m.FaceCount() != 1 || len(m.Faces[0]) != 4 {
		t.Fatalf("faces = %v", m.Faces)
	}
	if m.Faces[0][0] != 0 || m.Faces[0][3] != 3 {
		t.Errorf("face = %v", m.Faces[0])
	}
}

func TestParseOBJ_PointCloud(t *testing.T) {
	m, err := ParseOBJ([]byte("v 0 0 0\nv 1 2 3\n"))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if m.VertexCount() != 2 || m.FaceCount() != 0 {
		t.Errorf("got %d vertices, %d faces", m.VertexCount(), m.FaceCount())
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrInvalidOBJIndex},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrInvalidOBJIndex},
		{"garbage index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf a b c\n", ErrInvalidOBJIndex},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrShortOBJFace},
		{"bad number", "v 0 zero 0\n", ErrInvalidOBJNumber},
		{"missing component", "v 0 0\n", ErrInvalidOBJNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseOBJ() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
