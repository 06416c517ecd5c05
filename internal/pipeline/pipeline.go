// Package pipeline runs a build: frame discovery, parallel parsing, then
// single-threaded harmonization, animation and document assembly.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshseq/internal/animation"
	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/gltfbuild"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/internal/metrics"
	"github.com/Faultbox/meshseq/internal/output"
	"github.com/Faultbox/meshseq/internal/schema"
	"github.com/Faultbox/meshseq/pkg/formats"
	"github.com/Faultbox/meshseq/pkg/frames"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// ParseFunc reads one frame file.
type ParseFunc func(path string, opts formats.Options) (*mesh.Mesh, error)

// ProgressFunc receives the number of parsed frames out of the total.
// Calls are serialized and done never decreases.
type ProgressFunc func(done, total int)

// Options configure a build.
type Options struct {
	Pattern   string
	Frames    frames.Options
	Parse     formats.Options
	Reverse   bool
	Workers   int
	Rules     schema.Rules
	Animation animation.Options
	Assembly  gltfbuild.Options
	Buffer    gltfbuild.BufferMode

	Progress ProgressFunc
	Metrics  *metrics.Recorder
	Parser   ParseFunc // formats.Parse when nil
}

// Report summarizes a finished build.
type Report struct {
	Frames    int
	Sequences int
	Segments  int
	Accessors gltfbuild.Stats
	Files     []string
	Bytes     int
}

// Compile discovers, parses and assembles every sequence into one document.
func Compile(ctx context.Context, opts Options) (*gltf.Document, *Report, error) {
	found, err := frames.Discover(opts.Pattern, opts.Frames)
	if err != nil {
		return nil, nil, err
	}
	groups := frames.Sequences(found)
	logger.Info("discovered frames",
		zap.String("pattern", opts.Pattern),
		zap.Int("frames", len(found)),
		zap.Int("sequences", len(groups)))

	meshes, err := parseAll(ctx, found, opts)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Frames: len(found), Sequences: len(groups)}
	asm := gltfbuild.NewAssembler(opts.Assembly)
	pos := 0
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		q, err := sequence(group, meshes[pos:pos+len(group)], opts)
		if err != nil {
			return nil, nil, err
		}
		pos += len(group)

		if err := asm.Add(q); err != nil {
			return nil, nil, err
		}
		report.Segments += len(q.Segments)
		opts.Metrics.RecordSegments(gltfbuild.NodeName(q.Name), len(q.Segments))
		logger.Debug("assembled sequence",
			zap.String("sequence", q.Name),
			zap.Int("frames", len(q.Frames)),
			zap.Int("segments", len(q.Segments)))
	}

	doc, err := asm.Document()
	if err != nil {
		return nil, nil, err
	}
	report.Accessors = asm.Stats()
	opts.Metrics.RecordAccessors(report.Accessors.Dense, report.Accessors.Sparse, report.Accessors.Zero)
	return doc, report, nil
}

// Run compiles the document and writes it to sink. Nothing is written
// unless every stage succeeds.
func Run(ctx context.Context, opts Options, sink output.Sink) (*Report, error) {
	timer := metrics.NewTimer()
	doc, report, err := Compile(ctx, opts)
	if err != nil {
		return nil, err
	}
	files, err := gltfbuild.Encode(doc, sink.Name(), opts.Buffer)
	if err != nil {
		return nil, &errs.IOError{Op: "encode", Path: sink.Name(), Err: err}
	}
	if err := sink.Write(ctx, files); err != nil {
		return nil, err
	}
	for _, f := range files {
		report.Files = append(report.Files, f.Name)
		report.Bytes += len(f.Data)
	}
	opts.Metrics.RecordOutput(report.Bytes, timer.Duration())
	return report, nil
}

// parseAll parses every frame on a bounded pool. Results are stored by
// position in the sorted frame list, so the merge order does not depend
// on scheduling.
func parseAll(ctx context.Context, found []frames.Frame, opts Options) ([]*mesh.Mesh, error) {
	parse := opts.Parser
	if parse == nil {
		parse = formats.Parse
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	meshes := make([]*mesh.Mesh, len(found))
	var (
		mu   sync.Mutex
		done int
	)
	for i, f := range found {
		if gctx.Err() != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			format := formats.FormatOf(f.Path).String()
			timer := metrics.NewTimer()
			m, err := parse(f.Path, opts.Parse)
			opts.Metrics.RecordParse(format, timer.Duration(), err)
			if err != nil {
				logger.Error("failed to parse frame", append(logger.Frame(f.Name, f.Frame, f.Path), zap.Error(err))...)
				return err
			}
			if opts.Reverse {
				m.Reverse()
			}
			meshes[i] = m
			logger.Debug("parsed frame", append(logger.Frame(f.Name, f.Frame, f.Path),
				zap.Int("vertices", m.VertexCount()), zap.Int("faces", m.FaceCount()))...)

			mu.Lock()
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(found))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Tasks skipped after cancellation leave holes.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// sequence harmonizes one sequence's frames and builds its animation.
func sequence(group []frames.Frame, meshes []*mesh.Mesh, opts Options) (*animation.Sequence, error) {
	name := group[0].Name
	sf := make([]schema.Frame, len(group))
	af := make([]animation.Frame, len(group))
	for i, f := range group {
		sf[i] = schema.Frame{Number: f.Frame, Path: f.Path, Mesh: meshes[i]}
		af[i] = animation.Frame{Number: f.Frame, Time: f.Time, Path: f.Path, Mesh: meshes[i]}
	}
	s, err := schema.Harmonize(name, sf, opts.Rules)
	if err != nil {
		return nil, err
	}
	return animation.Build(name, s, af, opts.Animation)
}
