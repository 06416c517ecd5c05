// Package metrics records Prometheus metrics for a build run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a registry with the build metrics. A nil *Recorder records
// nothing.
type Recorder struct {
	Registry *prometheus.Registry

	FramesParsed  *prometheus.CounterVec
	FramesFailed  *prometheus.CounterVec
	ParseDuration *prometheus.HistogramVec
	Accessors     *prometheus.CounterVec
	Segments      *prometheus.CounterVec
	OutputBytes   prometheus.Gauge
	BuildDuration prometheus.Gauge
}

// New creates a Recorder on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		Registry: reg,
		FramesParsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshseq_frames_parsed_total",
				Help: "Total number of frame files parsed",
			},
			[]string{"format"},
		),
		FramesFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshseq_frames_failed_total",
				Help: "Total number of frame files that failed to parse",
			},
			[]string{"format"},
		),
		ParseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meshseq_frame_parse_duration_seconds",
				Help:    "Time taken to parse one frame file",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"format"},
		),
		Accessors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshseq_accessors_total",
				Help: "Morph target accessors written, by encoding",
			},
			[]string{"encoding"},
		),
		Segments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshseq_segments_total",
				Help: "Topology segments per sequence",
			},
			[]string{"sequence"},
		),
		OutputBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "meshseq_output_bytes",
			Help: "Size of the written output files",
		}),
		BuildDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "meshseq_build_duration_seconds",
			Help: "Wall time of the last build",
		}),
	}
}

// RecordParse records one frame parse.
func (r *Recorder) RecordParse(format string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.FramesFailed.WithLabelValues(format).Inc()
		return
	}
	r.FramesParsed.WithLabelValues(format).Inc()
	r.ParseDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordSegments records the segment count of a sequence.
func (r *Recorder) RecordSegments(sequence string, n int) {
	if r == nil {
		return
	}
	r.Segments.WithLabelValues(sequence).Add(float64(n))
}

// RecordAccessors records morph target accessor encodings.
func (r *Recorder) RecordAccessors(dense, sparse, zero int) {
	if r == nil {
		return
	}
	r.Accessors.WithLabelValues("dense").Add(float64(dense))
	r.Accessors.WithLabelValues("sparse").Add(float64(sparse))
	r.Accessors.WithLabelValues("zero").Add(float64(zero))
}

// RecordOutput records the written size and total build time.
func (r *Recorder) RecordOutput(bytes int, duration time.Duration) {
	if r == nil {
		return
	}
	r.OutputBytes.Set(float64(bytes))
	r.BuildDuration.Set(duration.Seconds())
}

// WriteFile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.Registry)
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
