package gltfbuild

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/animation"
	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/internal/schema"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// Generator is written to asset.generator.
const Generator = "meshseq"

// Options configure document assembly.
type Options struct {
	Sparse      SparseOptions
	Materials   []MaterialSpec
	Images      []ImageSpec
	TextureRoot string
	TextureMode TextureMode
	// URIBase is the directory referenced texture URIs are relative to,
	// normally the output file's directory.
	URIBase string
}

// Assembler builds one document from any number of sequences.
type Assembler struct {
	doc    *gltf.Document
	packer *Packer
	binder *Binder
	anim   *gltf.Animation
}

// NewAssembler returns an assembler with an empty document.
func NewAssembler(opts Options) *Assembler {
	doc := &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0", Generator: Generator},
		Scene:  gltf.Index(0),
		Scenes: []*gltf.Scene{{Name: "Scene"}},
	}
	p := NewPacker(doc, opts.Sparse)
	pool := NewTexturePool(doc, p, opts.Images, opts.TextureRoot, opts.TextureMode, opts.URIBase)
	return &Assembler{
		doc:    doc,
		packer: p,
		binder: NewBinder(doc, opts.Materials, pool),
		anim:   &gltf.Animation{Name: "animation"},
	}
}

// Stats returns accessor counts by encoding.
func (a *Assembler) Stats() Stats {
	return a.packer.Stats
}

// NodeName returns the scene node name of a sequence.
func NodeName(sequence string) string {
	if sequence == "" {
		return "mesh"
	}
	return sequence
}

// Add appends a sequence: one parent node with a child node per segment.
func (a *Assembler) Add(q *animation.Sequence) error {
	parent := &gltf.Node{Name: NodeName(q.Name)}
	a.doc.Nodes = append(a.doc.Nodes, parent)
	parentIdx := uint32(len(a.doc.Nodes) - 1)
	a.doc.Scenes[0].Nodes = append(a.doc.Scenes[0].Nodes, parentIdx)

	for _, seg := range q.Segments {
		meshIdx, err := a.segmentMesh(q, seg)
		if err != nil {
			return err
		}
		node := &gltf.Node{
			Name:    fmt.Sprintf("%s.%d", NodeName(q.Name), seg.Index),
			Mesh:    gltf.Index(meshIdx),
			Weights: seg.InitialWeights(),
		}
		a.doc.Nodes = append(a.doc.Nodes, node)
		nodeIdx := uint32(len(a.doc.Nodes) - 1)
		parent.Children = append(parent.Children, nodeIdx)

		if seg.Animated() {
			a.weightsTrack(seg, nodeIdx)
		}
	}
	logger.Debug("sequence assembled",
		zap.String("sequence", q.Name),
		zap.Int("frames", len(q.Frames)),
		zap.Int("segments", len(q.Segments)))
	return nil
}

func (a *Assembler) weightsTrack(seg *animation.Segment, node uint32) {
	input := a.packer.Floats(seg.Times(), 1, gltf.TargetNone, true)
	output := a.packer.SparseWeights(seg.Weights())
	a.anim.Samplers = append(a.anim.Samplers, &gltf.AnimationSampler{
		Input:         input,
		Interpolation: gltf.InterpolationLinear,
		Output:        output,
	})
	a.anim.Channels = append(a.anim.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(a.anim.Samplers) - 1)),
		Target:  gltf.ChannelTarget{Node: gltf.Index(node), Path: gltf.TRSWeights},
	})
}

// segmentMesh packs the base geometry and morph targets of a segment.
func (a *Assembler) segmentMesh(q *animation.Sequence, seg *animation.Segment) (uint32, error) {
	base := seg.Frames[0]
	groups, err := a.binder.Groups(q.Name, base.Number, base.Mesh)
	if err != nil {
		return 0, err
	}

	// Displacements are shared by every primitive of the segment.
	targets := make(map[string][][]float32, len(q.Channels))
	for _, c := range q.Channels {
		targets[c.Attribute] = seg.Displacements(c.Attribute)
	}

	gm := &gltf.Mesh{Name: fmt.Sprintf("%s.%d", NodeName(q.Name), seg.Index)}
	if seg.TargetCount() > 0 {
		gm.Weights = make([]float32, seg.TargetCount())
	}
	for _, g := range groups {
		prim, err := a.primitive(q, seg, g, len(groups) == 1, targets)
		if err != nil {
			return 0, err
		}
		gm.Primitives = append(gm.Primitives, prim)
	}
	a.doc.Meshes = append(a.doc.Meshes, gm)
	return uint32(len(a.doc.Meshes) - 1), nil
}

func (a *Assembler) primitive(q *animation.Sequence, seg *animation.Segment, g Group, whole bool, targets map[string][][]float32) (*gltf.Primitive, error) {
	m := seg.Base()
	sub := SubsetOf(m, g, whole)
	prim := &gltf.Primitive{Attributes: make(gltf.Attribute)}

	for _, f := range q.Schema.Fields {
		if f.Semantic == "" || f.Kind == mesh.KindMaterialID {
			continue
		}
		attr := m.Attr(f.Name)
		if attr == nil {
			return nil, &errs.AssemblyError{What: "attribute " + f.Name, Index: seg.Index, Len: len(q.Segments)}
		}
		prim.Attributes[f.Semantic] = a.packAttribute(f, attr, sub)
	}

	if len(m.Faces) == 0 {
		prim.Mode = gltf.PrimitivePoints
	} else {
		prim.Indices = gltf.Index(a.packer.Indices(sub.Indices, sub.Count))
	}

	if g.Material >= 0 {
		mat, err := a.binder.Material(g.Material)
		if err != nil {
			return nil, err
		}
		prim.Material = gltf.Index(mat)
	}

	if seg.TargetCount() == 0 {
		return prim, nil
	}
	prim.Targets = make([]gltf.Attribute, seg.TargetCount())
	for i := range prim.Targets {
		prim.Targets[i] = make(gltf.Attribute)
	}
	for _, c := range q.Channels {
		f := q.Schema.Field(c.Attribute)
		if f == nil {
			return nil, &errs.AssemblyError{What: "channel " + c.Attribute, Index: seg.Index, Len: len(q.Segments)}
		}
		disp := targets[c.Attribute]
		if len(disp) != seg.TargetCount() {
			return nil, &errs.AssemblyError{What: "morph targets of " + c.Attribute, Index: len(disp), Len: seg.TargetCount()}
		}
		track := a.packer.Track(f.Type.Shape, f.Kind == mesh.KindPosition)
		for i, d := range disp {
			prim.Targets[i][f.Semantic] = track.Add(sub.Remap(d, f.Type.Shape), sub.Count)
		}
	}
	return prim, nil
}

func (a *Assembler) packAttribute(f schema.Field, attr *mesh.Attribute, sub Subset) uint32 {
	vals := sub.Remap(attr.Floats(), f.Type.Shape)
	if f.Custom != nil {
		return a.packer.Custom(vals, *f.Custom)
	}
	return a.packer.Floats(vals, f.Type.Shape, gltf.TargetArrayBuffer, f.Kind == mesh.KindPosition)
}

// Document finishes the document and checks every cross reference.
func (a *Assembler) Document() (*gltf.Document, error) {
	if len(a.anim.Channels) > 0 && len(a.doc.Animations) == 0 {
		a.doc.Animations = append(a.doc.Animations, a.anim)
	}
	if n := a.packer.arena.Len(); n > 0 {
		a.doc.Buffers = []*gltf.Buffer{{ByteLength: uint32(n), Data: a.packer.arena.Bytes()}}
	}
	if err := Check(a.doc); err != nil {
		return nil, err
	}
	return a.doc, nil
}
