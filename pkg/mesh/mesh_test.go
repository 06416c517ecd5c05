package mesh

import (
	"errors"
	"testing"
)

func quad() *Mesh {
	return New(
		[]float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		[][]uint32{{0, 1, 2, 3}},
	)
}

func TestAddAttributeLength(t *testing.T) {
	tests := []struct {
		name    string
		attr    *Attribute
		wantErr error
	}{
		{"vertex ok", NewFloat("N", KindNormal, 3, PerVertex, make([]float32, 12)), nil},
		{"face ok", NewUint("mtl_id", KindMaterialID, 1, PerFace, []uint32{1}), nil},
		{"vertex short", NewFloat("uv", KindTexcoord, 2, PerVertex, make([]float32, 6)), ErrLengthMismatch},
		{"ragged", NewFloat("uv", KindTexcoord, 2, PerVertex, make([]float32, 7)), ErrLengthMismatch},
		{"duplicate", NewFloat(PositionName, KindPosition, 3, PerVertex, make([]float32, 12)), ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := quad().AddAttribute(tt.attr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddAttribute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	m := quad()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	m.Faces = append(m.Faces, []uint32{0, 1, 9})
	if err := m.Validate(); !errors.Is(err, ErrIndexRange) {
		t.Errorf("Validate() error = %v, want %v", err, ErrIndexRange)
	}

	m.Faces = [][]uint32{{0, 1}}
	if err := m.Validate(); !errors.Is(err, ErrDegenerateFace) {
		t.Errorf("Validate() error = %v, want %v", err, ErrDegenerateFace)
	}
}

func TestTriangles(t *testing.T) {
	m := quad()
	got := m.Triangles([]int{0})
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Triangles() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Triangles()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReverse(t *testing.T) {
	m := quad()
	m.Reverse()
	want := []uint32{0, 3, 2, 1}
	for i, v := range m.Faces[0] {
		if v != want[i] {
			t.Fatalf("Reverse() face = %v, want %v", m.Faces[0], want)
		}
	}
}

func TestTetFaces(t *testing.T) {
	faces := TetFaces(0, 1, 2, 3, false)
	if len(faces) != 4 {
		t.Fatalf("TetFaces() len = %d, want 4", len(faces))
	}
	// Every vertex appears in exactly three faces.
	counts := map[uint32]int{}
	for _, f := range faces {
		for _, v := range f {
			counts[v]++
		}
	}
	for v := uint32(0); v < 4; v++ {
		if counts[v] != 3 {
			t.Errorf("vertex %d in %d faces, want 3", v, counts[v])
		}
	}

	inv := TetFaces(0, 1, 2, 3, true)
	if inv[0][1] != faces[0][2] || inv[0][2] != faces[0][1] {
		t.Errorf("inverted face = %v, want reversed %v", inv[0], faces[0])
	}
}

func TestFingerprint(t *testing.T) {
	a := quad()
	b := quad()
	if !a.Fingerprint().Equal(b.Fingerprint()) {
		t.Fatal("identical meshes have different fingerprints")
	}

	b.Faces = [][]uint32{{0, 1, 2}, {0, 2, 3}}
	if a.Fingerprint().Equal(b.Fingerprint()) {
		t.Error("triangulated quad has the same fingerprint")
	}

	e := quad()
	e.Faces = [][]uint32{{1, 2, 3, 0}}
	if a.Fingerprint().Equal(e.Fingerprint()) {
		t.Error("rotated face indices have the same fingerprint")
	}

	c := quad()
	d := quad()
	c.AddAttribute(NewUint("mtl_id", KindMaterialID, 1, PerFace, []uint32{0}))
	d.AddAttribute(NewUint("mtl_id", KindMaterialID, 1, PerFace, []uint32{1}))
	if c.Fingerprint().Equal(d.Fingerprint()) {
		t.Error("material change not reflected in fingerprint")
	}
}

func TestAttributeConversions(t *testing.T) {
	a := NewInt("temp", KindCustom, 1, PerVertex, []int32{-2, 0, 5})
	f := a.Floats()
	if f[0] != -2 || f[2] != 5 {
		t.Errorf("Floats() = %v", f)
	}
	u := a.Uints()
	if u[0] != 0 || u[2] != 5 {
		t.Errorf("Uints() = %v", u)
	}

	s := NewFloat("uv", KindTexcoord, 2, PerVertex, []float32{0, 1, 2, 3, 4, 5}).Subset([]uint32{2, 0})
	want := []float32{4, 5, 0, 1}
	for i := range want {
		if s.F32[i] != want[i] {
			t.Fatalf("Subset() = %v, want %v", s.F32, want)
		}
	}
}

func TestKindForName(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"N", KindNormal},
		{"normals", KindNormal},
		{"T", KindTangent},
		{"TC0", KindTexcoord},
		{"uv", KindTexcoord},
		{"material", KindMaterialID},
		{"mtl_id", KindMaterialID},
		{"Cd", KindColor},
		{"pressure", KindCustom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindForName(tt.name); got != tt.want {
				t.Errorf("KindForName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConcat(t *testing.T) {
	a := New([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, [][]uint32{{0, 1, 2}})
	b := New([]float32{5, 0, 0, 6, 0, 0, 5, 1, 0}, [][]uint32{{0, 1, 2}})
	m, err := Concat(a, b)
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	if m.VertexCount() != 6 || m.FaceCount() != 2 {
		t.Fatalf("Concat() = %d vertices, %d faces", m.VertexCount(), m.FaceCount())
	}
	if m.Faces[1][0] != 3 {
		t.Errorf("second piece face = %v, want indices shifted by 3", m.Faces[1])
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	b.AddAttribute(NewFloat("N", KindNormal, 3, PerVertex, make([]float32, 9)))
	if _, err := Concat(a, b); !errors.Is(err, ErrPieceMismatch) {
		t.Errorf("Concat() error = %v, want %v", err, ErrPieceMismatch)
	}
}
