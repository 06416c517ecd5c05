package animation

import (
	"errors"
	"math"
	"testing"

	"github.com/Faultbox/meshseq/internal/schema"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// tri returns a triangle shifted by dz.
func tri(dz float32) *mesh.Mesh {
	return mesh.New([]float32{1, 0, dz, 0, 1, dz, 0, 0, 1 + dz}, [][]uint32{{0, 1, 2}})
}

// quadPair returns two triangles sharing an edge.
func quadPair(dz float32) *mesh.Mesh {
	return mesh.New(
		[]float32{1, 0, dz, 1, 1, dz, 0, 1, dz, 0, 0, dz},
		[][]uint32{{0, 1, 2}, {0, 2, 3}},
	)
}

func positionSchema() *schema.Schema {
	return &schema.Schema{Fields: []schema.Field{{
		Name: mesh.PositionName, Kind: mesh.KindPosition, Type: mesh.Vec3F32, Semantic: "POSITION",
	}}}
}

func framesAt(fps float64, meshes ...*mesh.Mesh) []Frame {
	out := make([]Frame, len(meshes))
	for i, m := range meshes {
		n := i + 1
		out[i] = Frame{Number: n, Time: float64(n-1) / fps, Mesh: m}
	}
	return out
}

func TestBuild_SingleTopology(t *testing.T) {
	frames := framesAt(24, tri(0), tri(0.1), tri(0.2), tri(0.3), tri(0.4))
	q, err := Build("anim", positionSchema(), frames, Options{Normals: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(q.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(q.Segments))
	}
	seg := q.Segments[0]
	if seg.Vanish {
		t.Error("single segment must not vanish")
	}
	if seg.TargetCount() != 4 {
		t.Errorf("targets = %d, want 4", seg.TargetCount())
	}
	times := seg.Times()
	for i, want := range []float64{0, 1.0 / 24, 2.0 / 24, 3.0 / 24, 4.0 / 24} {
		if times[i] != float32(want) {
			t.Errorf("key %d at %v, want %v", i, times[i], want)
		}
	}
	// No normals in the schema: position is the only channel.
	if len(q.Channels) != 1 || q.Channels[0].Kind != mesh.KindPosition {
		t.Errorf("channels = %+v", q.Channels)
	}
	if v := q.Channels[0].Vanishing(); len(v) != 0 {
		t.Errorf("unexpected vanishing keys %+v", v)
	}

	w := seg.Weights()
	if len(w) != 5*4 {
		t.Fatalf("weights has %d values, want 20", len(w))
	}
	// Row 0 is the base, row i selects target i-1.
	for r := 0; r < 5; r++ {
		for c := 0; c < 4; c++ {
			want := float32(0)
			if r > 0 && c == r-1 {
				want = 1
			}
			if w[r*4+c] != want {
				t.Errorf("weight[%d][%d] = %v, want %v", r, c, w[r*4+c], want)
			}
		}
	}

	got := seg.Evaluate(seg.Keys[3])
	want := frames[3].Mesh.Positions()
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("Evaluate(key 3) = %v, want %v", got, want)
		}
	}
}

func TestBuild_TopologyChangeVanishes(t *testing.T) {
	frames := framesAt(24, tri(0), tri(0.1), quadPair(0.2), quadPair(0.3))
	q, err := Build("switch", positionSchema(), frames, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(q.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(q.Segments))
	}
	a, b := q.Segments[0], q.Segments[1]
	if a.Fingerprint.Equal(b.Fingerprint) {
		t.Error("segment fingerprints should differ")
	}

	vanish := q.Channels[0].Vanishing()
	if len(vanish) != 2 {
		t.Fatalf("vanishing keys = %d, want 2", len(vanish))
	}
	t2, t3 := frames[1].Time, frames[2].Time
	for _, k := range vanish {
		if k.Time <= t2 || k.Time >= t3 {
			t.Errorf("vanish key at %v outside (%v, %v)", k.Time, t2, t3)
		}
	}
	if vanish[0].Segment != 0 || vanish[1].Segment != 1 || vanish[0].Time >= vanish[1].Time {
		t.Errorf("vanish keys out of order: %+v", vanish)
	}

	for _, seg := range q.Segments {
		if !seg.Vanish {
			t.Fatalf("segment %d has no vanish target", seg.Index)
		}
		for _, k := range seg.Keys {
			if !k.Vanish {
				continue
			}
			for i, v := range seg.Evaluate(k) {
				if v != 0 {
					t.Fatalf("segment %d vanish position[%d] = %v, want 0", seg.Index, i, v)
				}
			}
		}
	}

	// The outgoing segment ends on its vanish key, the incoming one starts there.
	if !a.Keys[len(a.Keys)-1].Vanish || !b.Keys[0].Vanish {
		t.Errorf("keys a=%+v b=%+v", a.Keys, b.Keys)
	}
	if a.InitialWeights()[a.TargetCount()-1] != 0 {
		t.Error("first segment should start visible")
	}
	if b.InitialWeights()[b.TargetCount()-1] != 1 {
		t.Error("later segment should start vanished")
	}
}

func TestBuild_Normals(t *testing.T) {
	s := positionSchema()
	s.Fields = append(s.Fields, schema.Field{Name: "N", Kind: mesh.KindNormal, Type: mesh.Vec3F32, Semantic: "NORMAL"})
	frames := framesAt(10, tri(0), tri(1))
	for _, f := range frames {
		f.Mesh.SetAttribute(mesh.NewFloat("N", mesh.KindNormal, 3, mesh.PerVertex, make([]float32, 9)))
	}

	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"enabled", Options{Normals: true}, 2},
		{"disabled", Options{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Build("", s, frames, tt.opts)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(q.Channels) != tt.want {
				t.Errorf("channels = %d, want %d", len(q.Channels), tt.want)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		frames []Frame
		want   error
	}{
		{"empty", nil, ErrNoFrames},
		{"same time", []Frame{{Number: 1, Mesh: tri(0)}, {Number: 2, Mesh: tri(0)}}, ErrTimeOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("x", positionSchema(), tt.frames, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDisplacements_VanishTarget(t *testing.T) {
	frames := framesAt(24, tri(0), quadPair(0))
	q, err := Build("", positionSchema(), frames, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seg := q.Segments[0]
	d := seg.Displacements(mesh.PositionName)
	if len(d) != 1 {
		t.Fatalf("targets = %d, want the vanish target only", len(d))
	}
	base := seg.Base().Positions()
	for i := range base {
		if d[0][i] != -base[i] {
			t.Fatalf("vanish displacement = %v, want negated %v", d[0], base)
		}
	}
	if seg.Displacements("missing") != nil {
		t.Error("unknown attribute should have no displacements")
	}
}
