package gltfbuild

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// TextureRef points a material slot at an entry of the image table.
type TextureRef struct {
	Image    int
	Texcoord int
}

// MaterialSpec is one entry of the configured material table.
type MaterialSpec struct {
	ID        *uint32 // explicit material id; the table position otherwise
	Name      string
	BaseColor [4]float32
	Metallic  float32
	Roughness float32
	Emissive  [3]float32

	BaseTexture              *TextureRef
	MetallicRoughnessTexture *TextureRef
	EmissiveTexture          *TextureRef
}

// DefaultMaterial returns the factors used for unspecified material fields.
func DefaultMaterial() MaterialSpec {
	return MaterialSpec{
		Name:      "Default",
		BaseColor: [4]float32{0.5, 0.5, 0.5, 1},
		Metallic:  0,
		Roughness: 0.5,
	}
}

// Group is a set of faces drawn with one material.
type Group struct {
	Material int // index into the material table, -1 for none
	Faces    []int
}

// Binder resolves material ids to glTF materials and textures.
type Binder struct {
	doc       *gltf.Document
	table     []MaterialSpec
	textures  *TexturePool
	materials map[int]uint32
	warned    map[string]bool
}

// NewBinder returns a binder over the material table.
func NewBinder(doc *gltf.Document, table []MaterialSpec, textures *TexturePool) *Binder {
	return &Binder{
		doc:       doc,
		table:     table,
		textures:  textures,
		materials: make(map[int]uint32),
		warned:    make(map[string]bool),
	}
}

// lookup returns the table position of material id.
func (b *Binder) lookup(id uint32) (int, bool) {
	for i, spec := range b.table {
		sid := uint32(i)
		if spec.ID != nil {
			sid = *spec.ID
		}
		if sid == id {
			return i, true
		}
	}
	return 0, false
}

// Groups partitions the faces of m by material. Faces keep their order
// within a group and groups are ordered by table position.
func (b *Binder) Groups(sequence string, frame int, m *mesh.Mesh) ([]Group, error) {
	all := make([]int, len(m.Faces))
	for i := range all {
		all[i] = i
	}
	ids := m.ByKind(mesh.KindMaterialID)

	switch {
	case len(b.table) == 0:
		if ids != nil && !b.warned[sequence] {
			b.warned[sequence] = true
			logger.Warn("material ids present but no materials configured, ignoring",
				zap.String("sequence", sequence), zap.Int("frame", frame), zap.String("attribute", ids.Name))
		}
		return []Group{{Material: -1, Faces: all}}, nil
	case ids == nil || len(m.Faces) == 0:
		return []Group{{Material: 0, Faces: all}}, nil
	}

	byMaterial := make(map[int][]int)
	for fi, id := range ids.Uints() {
		mi, ok := b.lookup(id)
		if !ok {
			return nil, &errs.MaterialError{Sequence: sequence, Frame: frame, ID: id}
		}
		byMaterial[mi] = append(byMaterial[mi], fi)
	}
	groups := make([]Group, 0, len(byMaterial))
	for mi, faces := range byMaterial {
		groups = append(groups, Group{Material: mi, Faces: faces})
	}
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Material, b.Material) })
	return groups, nil
}

// Material returns the document index of table entry i, creating the
// material and its textures on first use.
func (b *Binder) Material(i int) (uint32, error) {
	if idx, ok := b.materials[i]; ok {
		return idx, nil
	}
	if i < 0 || i >= len(b.table) {
		return 0, &errs.AssemblyError{What: "material table", Index: i, Len: len(b.table)}
	}
	spec := b.table[i]
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("material_%d", i)
	}
	mat := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &spec.BaseColor,
			MetallicFactor:  gltf.Float(spec.Metallic),
			RoughnessFactor: gltf.Float(spec.Roughness),
		},
		EmissiveFactor: spec.Emissive,
		AlphaMode:      gltf.AlphaOpaque,
	}
	if spec.BaseColor[3] < 1 {
		mat.AlphaMode = gltf.AlphaBlend
	}

	var err error
	if mat.PBRMetallicRoughness.BaseColorTexture, err = b.textureInfo(spec.BaseTexture); err != nil {
		return 0, err
	}
	if mat.PBRMetallicRoughness.MetallicRoughnessTexture, err = b.textureInfo(spec.MetallicRoughnessTexture); err != nil {
		return 0, err
	}
	if mat.EmissiveTexture, err = b.textureInfo(spec.EmissiveTexture); err != nil {
		return 0, err
	}

	b.doc.Materials = append(b.doc.Materials, mat)
	idx := uint32(len(b.doc.Materials) - 1)
	b.materials[i] = idx
	return idx, nil
}

func (b *Binder) textureInfo(ref *TextureRef) (*gltf.TextureInfo, error) {
	if ref == nil {
		return nil, nil
	}
	tex, err := b.textures.Texture(ref.Image)
	if err != nil {
		return nil, err
	}
	return &gltf.TextureInfo{Index: tex, TexCoord: uint32(ref.Texcoord)}, nil
}

// Subset is the re-indexed vertex subset of one group.
type Subset struct {
	Vertices []uint32 // source vertex of each subset vertex; nil means all
	Indices  []uint32 // triangle list in subset numbering
	Count    int
}

// Remap extracts flat values of the given shape for the subset vertices.
func (s Subset) Remap(vals []float32, shape int) []float32 {
	if s.Vertices == nil || vals == nil {
		return vals
	}
	out := make([]float32, 0, len(s.Vertices)*shape)
	for _, v := range s.Vertices {
		out = append(out, vals[int(v)*shape:int(v+1)*shape]...)
	}
	return out
}

// SubsetOf returns the vertices used by a group with indices renumbered
// densely. When the group is the whole mesh the numbering is unchanged.
func SubsetOf(m *mesh.Mesh, g Group, whole bool) Subset {
	tris := m.Triangles(g.Faces)
	if whole {
		return Subset{Indices: tris, Count: m.VertexCount()}
	}
	remap := make(map[uint32]uint32)
	var s Subset
	for _, fi := range g.Faces {
		for _, v := range m.Faces[fi] {
			if _, ok := remap[v]; !ok {
				remap[v] = uint32(len(s.Vertices))
				s.Vertices = append(s.Vertices, v)
			}
		}
	}
	s.Indices = make([]uint32, len(tris))
	for i, v := range tris {
		s.Indices[i] = remap[v]
	}
	s.Count = len(s.Vertices)
	return s
}
