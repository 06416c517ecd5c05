package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// value returns the metric value for name whose labels include label, or -1.
func value(t *testing.T, r *Recorder, name, label string) float64 {
	t.Helper()
	families, err := r.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && !hasLabel(m, label) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return -1
}

func hasLabel(m *dto.Metric, v string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetValue() == v {
			return true
		}
	}
	return false
}

func TestRecorder(t *testing.T) {
	r := New()
	r.RecordParse("vtk", 10*time.Millisecond, nil)
	r.RecordParse("vtk", 20*time.Millisecond, nil)
	r.RecordParse("obj", 0, errors.New("bad face"))
	r.RecordAccessors(2, 5, 1)
	r.RecordSegments("wave", 3)
	r.RecordOutput(1024, time.Second)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"parsed vtk", value(t, r, "meshseq_frames_parsed_total", "vtk"), 2},
		{"failed obj", value(t, r, "meshseq_frames_failed_total", "obj"), 1},
		{"sparse accessors", value(t, r, "meshseq_accessors_total", "sparse"), 5},
		{"segments", value(t, r, "meshseq_segments_total", "wave"), 3},
		{"output bytes", value(t, r, "meshseq_output_bytes", ""), 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %g, want %g", tt.got, tt.want)
			}
		})
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.RecordParse("vtk", time.Second, nil)
	r.RecordAccessors(1, 1, 1)
	r.RecordSegments("s", 1)
	r.RecordOutput(1, time.Second)
	if err := r.WriteFile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("nil recorder WriteFile: %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	r := New()
	r.RecordParse("vtu", time.Millisecond, nil)
	path := filepath.Join(t.TempDir(), "meshseq.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `meshseq_frames_parsed_total{format="vtu"} 1`) {
		t.Errorf("textfile missing parsed counter:\n%s", data)
	}
}
