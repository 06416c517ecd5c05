// Package animation turns a harmonized frame sequence into morph-target
// segments and keyframe channels, including the vanishing keys that hide
// topology changes.
package animation

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/internal/schema"
	vmath "github.com/Faultbox/meshseq/pkg/math"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// Animation errors.
var (
	ErrNoFrames      = errors.New("sequence has no frames")
	ErrTimeOrder     = errors.New("frame times do not strictly increase")
	ErrMissingSchema = errors.New("sequence has no schema")
)

// VanishFraction is the vanishing-key offset as a fraction of the
// sequence's smallest frame interval.
const VanishFraction = 0.01

// Frame is one real keyframe of a sequence.
type Frame struct {
	Number int
	Time   float64
	Path   string
	Mesh   *mesh.Mesh
}

// Options selects which attributes besides position are animated.
type Options struct {
	Normals  bool
	Tangents bool
}

// Key is one keyframe of a segment node's weights track.
type Key struct {
	Time   float64
	Frame  int  // index into Segment.Frames, -1 for vanish keys
	Vanish bool // all vertices collapsed to the origin
}

// Segment is a run of consecutive frames sharing one topology.
// Frames[0] is the base mesh; every later frame is a morph target.
type Segment struct {
	Index       int
	Frames      []Frame
	Fingerprint mesh.Fingerprint
	Keys        []Key
	Vanish      bool // carries a trailing vanish target
}

// Base returns the segment's base mesh.
func (s *Segment) Base() *mesh.Mesh {
	return s.Frames[0].Mesh
}

// TargetCount returns the number of morph targets on the segment mesh.
func (s *Segment) TargetCount() int {
	n := len(s.Frames) - 1
	if s.Vanish {
		n++
	}
	return n
}

// Animated reports whether the segment node needs a weights track.
func (s *Segment) Animated() bool {
	return s.TargetCount() > 0 && len(s.Keys) > 1
}

// Row returns the morph weights of key k.
func (s *Segment) Row(k Key) []float32 {
	row := make([]float32, s.TargetCount())
	switch {
	case k.Vanish:
		row[len(row)-1] = 1
	case k.Frame > 0:
		row[k.Frame-1] = 1
	}
	return row
}

// InitialWeights returns the weights the node shows before playback.
func (s *Segment) InitialWeights() []float32 {
	if len(s.Keys) == 0 || s.TargetCount() == 0 {
		return nil
	}
	return s.Row(s.Keys[0])
}

// Times returns the key times as float32 for a sampler input.
func (s *Segment) Times() []float32 {
	out := make([]float32, len(s.Keys))
	for i, k := range s.Keys {
		out[i] = float32(k.Time)
	}
	return out
}

// Weights returns the flattened weight rows of every key.
func (s *Segment) Weights() []float32 {
	out := make([]float32, 0, len(s.Keys)*s.TargetCount())
	for _, k := range s.Keys {
		out = append(out, s.Row(k)...)
	}
	return out
}

// Displacements returns one displacement array per morph target for the
// named vec3 attribute. The vanish target holds the negated base position
// and zero displacement for every other attribute.
func (s *Segment) Displacements(name string) [][]float32 {
	base := s.Base().Attr(name)
	if base == nil {
		return nil
	}
	out := make([][]float32, 0, s.TargetCount())
	for _, f := range s.Frames[1:] {
		a := f.Mesh.Attr(name)
		if a == nil {
			out = append(out, make([]float32, len(base.F32)))
			continue
		}
		out = append(out, vmath.Displace(a.F32, base.F32))
	}
	if s.Vanish {
		if name == mesh.PositionName {
			out = append(out, vmath.Negate(base.F32))
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Evaluate returns the positions a viewer shows at key k.
func (s *Segment) Evaluate(k Key) []float32 {
	pos := slices.Clone(s.Base().Positions())
	row := s.Row(k)
	for t, d := range s.Displacements(mesh.PositionName) {
		if row[t] == 0 || d == nil {
			continue
		}
		for i := range pos {
			pos[i] += row[t] * d[i]
		}
	}
	return pos
}

// ChannelKey is one sample of an attribute channel.
type ChannelKey struct {
	Time    float64
	Segment int
	Frame   int // frame number, -1 for synthetic vanish samples
	Vanish  bool
}

// Channel samples one attribute kind over the whole sequence.
type Channel struct {
	Kind      mesh.Kind
	Attribute string
	Keys      []ChannelKey
}

// Sequence is the animation model of one named frame sequence.
type Sequence struct {
	Name     string
	Schema   *schema.Schema
	Frames   []Frame
	Segments []*Segment
	Channels []Channel
}

// Animated returns the attribute names driven by morph targets.
func (q *Sequence) Animated() []string {
	out := make([]string, 0, len(q.Channels))
	for _, c := range q.Channels {
		out = append(out, c.Attribute)
	}
	return out
}

// Build splits frames into topology segments and lays out the keys.
// Frames must be in increasing time order.
func Build(name string, s *schema.Schema, frames []Frame, opts Options) (*Sequence, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoFrames, name)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingSchema, name)
	}
	minInterval := 0.0
	for i := 1; i < len(frames); i++ {
		d := frames[i].Time - frames[i-1].Time
		if d <= 0 {
			return nil, fmt.Errorf("%w: %q frame %d at %g after frame %d at %g",
				ErrTimeOrder, name, frames[i].Number, frames[i].Time, frames[i-1].Number, frames[i-1].Time)
		}
		if minInterval == 0 || d < minInterval {
			minInterval = d
		}
	}

	q := &Sequence{Name: name, Schema: s, Frames: frames}
	q.Segments = split(frames)
	multi := len(q.Segments) > 1
	eps := VanishFraction * minInterval

	for i, seg := range q.Segments {
		seg.Vanish = multi
		if i > 0 {
			prev := q.Segments[i-1]
			mid := midpoint(prev.Frames[len(prev.Frames)-1].Time, seg.Frames[0].Time)
			seg.Keys = append(seg.Keys, Key{Time: mid + eps, Frame: -1, Vanish: true})
		}
		for j, f := range seg.Frames {
			seg.Keys = append(seg.Keys, Key{Time: f.Time, Frame: j})
		}
		if i+1 < len(q.Segments) {
			next := q.Segments[i+1]
			mid := midpoint(seg.Frames[len(seg.Frames)-1].Time, next.Frames[0].Time)
			seg.Keys = append(seg.Keys, Key{Time: mid - eps, Frame: -1, Vanish: true})
		}
	}
	if multi {
		logger.Debug("sequence splits on topology changes",
			zap.String("sequence", name), zap.Int("segments", len(q.Segments)))
	}

	q.Channels = append(q.Channels, q.channel(mesh.KindPosition, mesh.PositionName))
	if opts.Normals {
		if f := semantic(s, "NORMAL"); f != nil {
			q.Channels = append(q.Channels, q.channel(mesh.KindNormal, f.Name))
		}
	}
	if opts.Tangents {
		if f := semantic(s, "TANGENT"); f != nil {
			q.Channels = append(q.Channels, q.channel(mesh.KindTangent, f.Name))
		}
	}
	return q, nil
}

func semantic(s *schema.Schema, name string) *schema.Field {
	for i := range s.Fields {
		if s.Fields[i].Semantic == name {
			return &s.Fields[i]
		}
	}
	return nil
}

func midpoint(a, b float64) float64 {
	return a + (b-a)/2
}

// split cuts frames wherever the topology fingerprint changes.
func split(frames []Frame) []*Segment {
	var segs []*Segment
	var cur *Segment
	for _, f := range frames {
		fp := f.Mesh.Fingerprint()
		if cur == nil || !cur.Fingerprint.Equal(fp) {
			cur = &Segment{Index: len(segs), Fingerprint: fp}
			segs = append(segs, cur)
		}
		cur.Frames = append(cur.Frames, f)
	}
	return segs
}

// channel merges every segment's keys into one time-ordered track.
func (q *Sequence) channel(kind mesh.Kind, attr string) Channel {
	c := Channel{Kind: kind, Attribute: attr}
	for _, seg := range q.Segments {
		for _, k := range seg.Keys {
			ck := ChannelKey{Time: k.Time, Segment: seg.Index, Frame: -1, Vanish: k.Vanish}
			if !k.Vanish {
				ck.Frame = seg.Frames[k.Frame].Number
			}
			c.Keys = append(c.Keys, ck)
		}
	}
	slices.SortStableFunc(c.Keys, func(a, b ChannelKey) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return c
}

// Vanishing returns the synthetic keys of a channel.
func (c Channel) Vanishing() []ChannelKey {
	var out []ChannelKey
	for _, k := range c.Keys {
		if k.Vanish {
			out = append(out, k)
		}
	}
	return out
}
