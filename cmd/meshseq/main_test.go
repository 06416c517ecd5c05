package main

import (
	"flag"
	"testing"

	"github.com/Faultbox/meshseq/internal/config"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantPos    []string
		wantOutput string
	}{
		{"flags after pattern", []string{"f_#.obj", "-o", "a.glb"}, []string{"f_#.obj"}, "a.glb"},
		{"flags before pattern", []string{"--output", "b.gltf", "f_#.obj"}, []string{"f_#.obj"}, "b.gltf"},
		{"no pattern", []string{"-o", "c.glb"}, nil, "c.glb"},
		{"two positionals", []string{"x.glb", "--step", "2", "y.glb"}, []string{"x.glb", "y.glb"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f := config.RegisterFlags(fs)
			pos, err := parseArgs(fs, tt.args)
			if err != nil {
				t.Fatalf("parseArgs: %v", err)
			}
			if len(pos) != len(tt.wantPos) {
				t.Fatalf("positional = %v, want %v", pos, tt.wantPos)
			}
			for i := range pos {
				if pos[i] != tt.wantPos[i] {
					t.Errorf("positional = %v, want %v", pos, tt.wantPos)
				}
			}
			cfg, err := config.Load(f)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.wantOutput != "" && cfg.Output.Path != tt.wantOutput {
				t.Errorf("output = %q, want %q", cfg.Output.Path, tt.wantOutput)
			}
		})
	}
}
