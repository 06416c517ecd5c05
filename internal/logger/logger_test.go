package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// install swaps the global logger for the duration of a test.
func install(t *testing.T, opts Options) {
	t.Helper()
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prev := Log
	Set(l)
	t.Cleanup(func() { Set(prev) })
}

func TestLogRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "build.log")

	install(t, Options{
		Level: "debug",
		File: FileConfig{
			Path:       logFile,
			MaxSizeMB:  1, // smallest size lumberjack allows
			MaxBackups: 2,
			MaxAgeDays: 1,
		},
	})

	// ~300 bytes per entry, enough to pass 1MB more than once
	path := strings.Repeat("x", 200)
	for i := 0; i < 8000; i++ {
		Debug("parsed frame", Frame("wave", i, path)...)
	}
	Sync()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Fatal("main log file does not exist")
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read log dir: %v", err)
	}
	rotated := 0
	for _, f := range files {
		if f.Name() == "build.log" {
			continue
		}
		// lumberjack names backups build-<timestamp>.log
		if strings.HasPrefix(f.Name(), "build-20") && strings.HasSuffix(f.Name(), ".log") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Errorf("no rotated files among %d entries", len(files))
	}
	if rotated > 2 {
		t.Errorf("expected at most 2 backups, got %d", rotated)
	}
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"error", []string{"error"}, []string{"warn", "info", "debug"}},
		{"warn", []string{"error", "warn"}, []string{"info", "debug"}},
		{"info", []string{"error", "warn", "info"}, []string{"debug"}},
		{"debug", []string{"error", "warn", "info", "debug"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(dir, tt.level+".log")
			install(t, Options{Level: tt.level, File: FileConfig{Path: logFile, MaxSizeMB: 10}})

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("failed to read log file: %v", err)
			}
			logContent := string(content)

			for _, exp := range tt.expected {
				if !strings.Contains(logContent, `"level":"`+exp+`"`) {
					t.Errorf("expected %s in log output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(logContent, `"level":"`+exc+`"`) {
					t.Errorf("unexpected %s in log output for level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "run.log")
	install(t, Options{Level: "info", Console: &console, File: DefaultFileConfig(logFile)})

	Warn("dropping per-face attribute", append(Frame("cube", 3, "cube_3.vtk"), zap.String("attribute", "pressure"))...)
	Sync()

	if out := console.String(); !strings.Contains(out, "dropping per-face attribute") || !strings.Contains(out, `"attribute": "pressure"`) {
		t.Errorf("console output = %q", out)
	}
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"sequence":"cube"`, `"frame":3`, `"path":"cube_3.vtk"`, `"caller":"logger/logger_test.go`} {
		if !strings.Contains(string(content), want) {
			t.Errorf("file log missing %s: %s", want, content)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		if _, err := ParseLevel(lvl); err != nil {
			t.Errorf("ParseLevel(%q): %v", lvl, err)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Options{Level: "verbose"}); err == nil {
		t.Error("New should reject unknown levels")
	}
}

func TestNopWithoutOutputs(t *testing.T) {
	l, err := New(Options{Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Error("logger without outputs should discard everything")
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/meshseq.log")

	if cfg.Path != "/tmp/meshseq.log" {
		t.Errorf("expected path /tmp/meshseq.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.MaxAgeDays != 28 {
		t.Errorf("unexpected rotation settings %+v", cfg)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}

func TestFrameFields(t *testing.T) {
	fields := Frame("cube", 7, "out/cube_7.vtk")
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Key != "sequence" || fields[0].String != "cube" {
		t.Errorf("unexpected sequence field: %+v", fields[0])
	}
	if fields[1].Key != "frame" || fields[1].Integer != 7 {
		t.Errorf("unexpected frame field: %+v", fields[1])
	}
}
