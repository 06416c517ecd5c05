// Package frames discovers the numbered mesh files that make up each
// animated sequence and assigns them keyframe times.
package frames

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/Faultbox/meshseq/internal/errs"
)

// ErrNoFrames is returned when a pattern matches no file.
var ErrNoFrames = errors.New("no files match pattern")

// Key identifies one input file.
type Key struct {
	Name  string // sequence name
	Frame int
	Path  string
}

// Compare orders keys by sequence name, then numerically by frame.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Name, o.Name); c != 0 {
		return c
	}
	return cmp.Compare(k.Frame, o.Frame)
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Name, k.Frame)
}

// Frame is a discovered file with its keyframe time in seconds.
type Frame struct {
	Key
	Time float64
}

// Options controls discovery.
type Options struct {
	Root     string  // directory relative patterns are resolved against
	Static   bool    // accept a pattern without #
	Step     int     // keep every Step-th frame counted from the lowest
	FPS      float64 // frames per second; wins over TimeStep
	TimeStep float64 // seconds per frame
}

// FrameDuration returns the seconds per frame number implied by opts.
func (o Options) FrameDuration() float64 {
	if o.FPS > 0 {
		return 1 / o.FPS
	}
	if o.TimeStep > 0 {
		return o.TimeStep
	}
	return 1.0 / 24
}

// TimeOf returns the keyframe time of a frame number.
func (o Options) TimeOf(frame int) float64 {
	if o.FPS > 0 {
		return float64(frame) / o.FPS
	}
	return float64(frame) * o.FrameDuration()
}

// Discover walks the file system for files matching glob and returns
// them sorted by sequence name, then frame number.
func Discover(glob string, opts Options) ([]Frame, error) {
	p, err := Compile(filepath.ToSlash(glob), opts.Static)
	if err != nil {
		return nil, err
	}
	root := opts.Root
	if root == "" {
		root = "."
	}

	var keys []Key
	walkRoot := filepath.Join(root, filepath.FromSlash(p.base))
	if path.IsAbs(p.raw) {
		walkRoot = filepath.FromSlash(p.base)
	}
	err = filepath.WalkDir(walkRoot, func(file string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			return nil
		}
		rel := file
		if !path.IsAbs(p.raw) {
			if rel, werr = filepath.Rel(root, file); werr != nil {
				return werr
			}
		}
		name, frame, ok, merr := p.Match(filepath.ToSlash(rel))
		if merr != nil {
			return merr
		}
		if ok {
			keys = append(keys, Key{Name: name, Frame: frame, Path: file})
		}
		return nil
	})
	if err != nil {
		var pe *errs.PatternError
		if errors.As(err, &pe) {
			return nil, err
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, &errs.PatternError{Pattern: glob, Reason: ErrNoFrames.Error()}
		}
		return nil, &errs.IOError{Op: "walk", Path: walkRoot, Err: err}
	}
	if len(keys) == 0 {
		return nil, &errs.PatternError{Pattern: glob, Reason: ErrNoFrames.Error()}
	}

	return Index(glob, keys, opts)
}

// Index orders keys, rejects duplicates, applies the step stride and
// assigns times. It is the file-system independent half of Discover.
func Index(glob string, keys []Key, opts Options) ([]Frame, error) {
	keys = slices.Clone(keys)
	slices.SortFunc(keys, Key.Compare)

	for i := 1; i < len(keys); i++ {
		if keys[i].Name == keys[i-1].Name && keys[i].Frame == keys[i-1].Frame {
			return nil, &errs.PatternError{
				Pattern: glob,
				Path:    keys[i].Path,
				Reason:  fmt.Sprintf("frame %d of sequence %q also matched by %s", keys[i].Frame, keys[i].Name, keys[i-1].Path),
			}
		}
	}

	// Unnumbered matches only come from static patterns, where every
	// frame is 0 and the stride keeps them all.
	if opts.Step > 1 && len(keys) > 0 {
		lowest := keys[0].Frame
		for _, k := range keys {
			lowest = min(lowest, k.Frame)
		}
		keys = slices.DeleteFunc(keys, func(k Key) bool {
			return (k.Frame-lowest)%opts.Step != 0
		})
	}

	out := make([]Frame, len(keys))
	for i, k := range keys {
		out[i] = Frame{Key: k, Time: opts.TimeOf(k.Frame)}
	}
	return out, nil
}

// Sequences groups sorted frames by sequence name, keeping order.
func Sequences(frames []Frame) [][]Frame {
	var out [][]Frame
	for i, f := range frames {
		if i == 0 || f.Name != frames[i-1].Name {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], f)
	}
	return out
}
