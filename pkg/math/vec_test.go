package math

import (
	"testing"
)

func TestVec3Sub(t *testing.T) {
	a := Vec3{4, 6, 8}
	b := Vec3{1, 2, 3}
	got := a.Sub(b)
	want := Vec3{3, 4, 5}
	if got != want {
		t.Errorf("Vec3.Sub() = %v, want %v", got, want)
	}
}

func TestVec3Length(t *testing.T) {
	v := Vec3{2, 3, 6}
	if got := v.Length(); got != 7 {
		t.Errorf("Vec3.Length() = %v, want 7", got)
	}
}

func TestDisplace(t *testing.T) {
	from := []float32{0, 0, 0, 1, 1, 1}
	to := []float32{1, 2, 3, 1, 1, 1}
	got := Displace(to, from)
	want := []float32{1, 2, 3, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Displace()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNegate(t *testing.T) {
	got := Negate([]float32{1, -2, 3})
	if got[0] != -1 || got[1] != 2 || got[2] != -3 {
		t.Errorf("Negate() = %v", got)
	}
}

func TestBoundsOf(t *testing.T) {
	tests := []struct {
		name    string
		flat    []float32
		wantMin Vec3
		wantMax Vec3
		empty   bool
	}{
		{"single", []float32{1, 2, 3}, Vec3{1, 2, 3}, Vec3{1, 2, 3}, false},
		{"two", []float32{-1, 5, 0, 2, -3, 4}, Vec3{-1, -3, 0}, Vec3{2, 5, 4}, false},
		{"none", nil, Vec3{}, Vec3{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BoundsOf(tt.flat)
			if b.IsEmpty() != tt.empty {
				t.Fatalf("IsEmpty() = %v, want %v", b.IsEmpty(), tt.empty)
			}
			if tt.empty {
				return
			}
			if b.Min != tt.wantMin || b.Max != tt.wantMax {
				t.Errorf("bounds = %v..%v, want %v..%v", b.Min, b.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}
