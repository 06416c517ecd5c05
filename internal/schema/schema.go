// Package schema reconciles the attribute tables of all frames of a sequence
// into one canonical schema.
package schema

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// Rules decide which attributes are exported and in what role.
type Rules struct {
	// MaterialAttribute names the per-face material id attribute.
	MaterialAttribute string
	// Texcoords and Colors list names in TEXCOORD_n and COLOR_n order.
	Texcoords []string
	Colors    []string
	// Custom lists the application-specific attributes to keep.
	Custom []Custom
}

func (r Rules) custom(name string) (Custom, bool) {
	for _, c := range r.Custom {
		if c.Name == name {
			return c, true
		}
	}
	return Custom{}, false
}

// classify returns the role an attribute plays under these rules.
func (r Rules) classify(a *mesh.Attribute) mesh.Kind {
	switch {
	case a.Name == mesh.PositionName:
		return mesh.KindPosition
	case a.Name == r.MaterialAttribute:
		return mesh.KindMaterialID
	case slices.Contains(r.Texcoords, a.Name):
		return mesh.KindTexcoord
	case slices.Contains(r.Colors, a.Name):
		return mesh.KindColor
	}
	if _, ok := r.custom(a.Name); ok {
		return mesh.KindCustom
	}
	return mesh.KindForName(a.Name)
}

// Frame is one parsed frame of a sequence.
type Frame struct {
	Number int
	Path   string
	Mesh   *mesh.Mesh
}

// Field is one attribute of the canonical schema.
type Field struct {
	Name     string
	Kind     mesh.Kind
	Type     mesh.ElementType
	Binding  mesh.Binding
	Slot     int         // TEXCOORD_n / COLOR_n index
	Semantic string      // glTF attribute semantic
	Custom   *CustomType // declared storage of custom attributes
}

// Schema is the attribute layout shared by every frame of a sequence.
type Schema struct {
	Sequence string
	Fields   []Field
}

// Field returns the named field, or nil.
func (s *Schema) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// ByKind returns the fields of a kind in schema order.
func (s *Schema) ByKind(k mesh.Kind) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether any field has the kind.
func (s *Schema) Has(k mesh.Kind) bool {
	return len(s.ByKind(k)) > 0
}

// MaterialField returns the material id field, or nil.
func (s *Schema) MaterialField() *Field {
	for i := range s.Fields {
		if s.Fields[i].Kind == mesh.KindMaterialID {
			return &s.Fields[i]
		}
	}
	return nil
}

// Harmonize normalizes the attributes of every frame in place and returns the
// union schema. Attributes are ordered by first appearance. A frame lacking an
// attribute that other frames define receives a zero-filled one; material ids
// are left absent instead. Conflicting element types fail with *errs.SchemaError.
func Harmonize(sequence string, frames []Frame, rules Rules) (*Schema, error) {
	h := &harmonizer{
		sequence: sequence,
		rules:    rules,
		warned:   make(map[string]bool),
		raw:      make(map[string]mesh.ElementType),
	}
	for _, f := range frames {
		if err := h.normalize(f); err != nil {
			return nil, err
		}
	}
	h.assignSlots()

	for _, f := range frames {
		n := f.Mesh.VertexCount()
		for _, field := range h.fields {
			if field.Kind == mesh.KindMaterialID || f.Mesh.Attr(field.Name) != nil {
				continue
			}
			logger.Debug("zero-filling missing attribute",
				append(logger.Frame(sequence, f.Number, f.Path), zap.String("attribute", field.Name))...)
			z := &mesh.Attribute{Name: field.Name, Kind: field.Kind, Type: field.Type, Binding: field.Binding}
			f.Mesh.Attributes = append(f.Mesh.Attributes, z.Zero(n))
		}
		sortLike(f.Mesh, h.fields)
	}
	return &Schema{Sequence: sequence, Fields: h.fields}, nil
}

type harmonizer struct {
	sequence string
	rules    Rules
	fields   []Field
	raw      map[string]mesh.ElementType // type as first seen, before normalization
	warned   map[string]bool
	material string
}

func (h *harmonizer) warnOnce(msg, name string, f Frame) {
	if h.warned[name] {
		return
	}
	h.warned[name] = true
	logger.Warn(msg, append(logger.Frame(h.sequence, f.Number, f.Path), zap.String("attribute", name))...)
}

func (h *harmonizer) normalize(f Frame) error {
	m := f.Mesh
	kept := m.Attributes[:0:0]
	for _, a := range m.Attributes {
		kind := h.rules.classify(a)
		if kind == mesh.KindMaterialID && h.material != "" && a.Name != h.material {
			h.warnOnce("ignoring extra material attribute", a.Name, f)
			continue
		}
		if a.Binding == mesh.PerFace && kind != mesh.KindMaterialID {
			h.warnOnce("dropping per-face attribute", a.Name, f)
			continue
		}
		if kind == mesh.KindCustom {
			if _, ok := h.rules.custom(a.Name); !ok {
				if !h.warned[a.Name] {
					h.warned[a.Name] = true
					logger.Debug("skipping unlisted attribute",
						append(logger.Frame(h.sequence, f.Number, f.Path), zap.String("attribute", a.Name))...)
				}
				continue
			}
		}
		if kind == mesh.KindMaterialID && len(m.Faces) == 0 {
			continue
		}

		if first, seen := h.raw[a.Name]; seen && first != a.Type {
			return &errs.SchemaError{
				Sequence:  h.sequence,
				Attribute: a.Name,
				Frame:     f.Number,
				Want:      first.String(),
				Got:       a.Type.String(),
			}
		}
		norm, err := h.convert(a, kind, m, f)
		if err != nil {
			return err
		}
		if _, seen := h.raw[a.Name]; !seen {
			h.raw[a.Name] = a.Type
			field := Field{Name: norm.Name, Kind: norm.Kind, Type: norm.Type, Binding: norm.Binding}
			if c, ok := h.rules.custom(a.Name); ok && kind == mesh.KindCustom {
				ct := c.Type
				field.Custom = &ct
			}
			if kind == mesh.KindMaterialID {
				h.material = a.Name
			}
			h.fields = append(h.fields, field)
		}
		kept = append(kept, norm)
	}
	m.Attributes = kept
	return nil
}

// convert brings an attribute into the representation its kind is packed with.
func (h *harmonizer) convert(a *mesh.Attribute, kind mesh.Kind, m *mesh.Mesh, f Frame) (*mesh.Attribute, error) {
	bad := func(want string) error {
		return &errs.SchemaError{Sequence: h.sequence, Attribute: a.Name, Frame: f.Number, Want: want, Got: a.Type.String()}
	}
	switch kind {
	case mesh.KindPosition:
		if a.Type != mesh.Vec3F32 {
			return nil, bad(mesh.Vec3F32.String())
		}
		return a, nil

	case mesh.KindNormal:
		if a.Type.Shape != 3 {
			return nil, bad(mesh.Vec3F32.String())
		}
		return mesh.NewFloat(a.Name, kind, 3, mesh.PerVertex, a.Floats()), nil

	case mesh.KindTangent:
		switch a.Type.Shape {
		case 4:
			return mesh.NewFloat(a.Name, kind, 4, mesh.PerVertex, a.Floats()), nil
		case 3:
			src := a.Floats()
			out := make([]float32, 0, len(src)/3*4)
			for i := 0; i+2 < len(src); i += 3 {
				out = append(out, src[i], src[i+1], src[i+2], 1)
			}
			return mesh.NewFloat(a.Name, kind, 4, mesh.PerVertex, out), nil
		}
		return nil, bad(mesh.Vec4F32.String())

	case mesh.KindTexcoord:
		switch a.Type.Shape {
		case 2:
			return mesh.NewFloat(a.Name, kind, 2, mesh.PerVertex, a.Floats()), nil
		case 3:
			src := a.Floats()
			out := make([]float32, 0, len(src)/3*2)
			for i := 0; i+2 < len(src); i += 3 {
				out = append(out, src[i], src[i+1])
			}
			return mesh.NewFloat(a.Name, kind, 2, mesh.PerVertex, out), nil
		}
		return nil, bad(mesh.Vec2F32.String())

	case mesh.KindColor:
		if a.Type.Shape != 3 && a.Type.Shape != 4 {
			return nil, bad(mesh.Vec4F32.String())
		}
		return mesh.NewFloat(a.Name, kind, a.Type.Shape, mesh.PerVertex, a.Floats()), nil

	case mesh.KindMaterialID:
		if a.Type.Shape != 1 {
			return nil, bad(mesh.ScalarU32.String())
		}
		ids := a.Uints()
		if a.Binding == mesh.PerVertex {
			perFace := make([]uint32, len(m.Faces))
			for i, face := range m.Faces {
				perFace[i] = ids[face[0]]
			}
			ids = perFace
		}
		return mesh.NewUint(a.Name, kind, 1, mesh.PerFace, ids), nil
	}

	c, _ := h.rules.custom(a.Name)
	if c.Type.Shape != a.Type.Shape {
		return nil, bad(c.Type.String())
	}
	out := *a
	out.Kind = mesh.KindCustom
	return &out, nil
}

// assignSlots numbers texcoords and colors: configured names first in list
// order, then names recognized by convention in order of appearance.
func (h *harmonizer) assignSlots() {
	number := func(kind mesh.Kind, listed []string, prefix string) {
		slot := 0
		for _, name := range listed {
			for i := range h.fields {
				if h.fields[i].Name == name && h.fields[i].Kind == kind {
					h.fields[i].Slot = slot
					h.fields[i].Semantic = fmt.Sprintf("%s_%d", prefix, slot)
					slot++
				}
			}
		}
		for i := range h.fields {
			if h.fields[i].Kind == kind && h.fields[i].Semantic == "" {
				h.fields[i].Slot = slot
				h.fields[i].Semantic = fmt.Sprintf("%s_%d", prefix, slot)
				slot++
			}
		}
	}
	number(mesh.KindTexcoord, h.rules.Texcoords, "TEXCOORD")
	number(mesh.KindColor, h.rules.Colors, "COLOR")

	seen := map[mesh.Kind]bool{}
	for i := range h.fields {
		f := &h.fields[i]
		switch f.Kind {
		case mesh.KindPosition:
			f.Semantic = "POSITION"
		case mesh.KindNormal, mesh.KindTangent:
			// glTF carries a single normal and tangent set.
			if !seen[f.Kind] {
				seen[f.Kind] = true
				f.Semantic = map[mesh.Kind]string{mesh.KindNormal: "NORMAL", mesh.KindTangent: "TANGENT"}[f.Kind]
			}
		case mesh.KindCustom:
			f.Semantic = ShoutySnake(f.Name)
		}
	}
}

// sortLike orders a mesh's attributes the way the schema lists them.
func sortLike(m *mesh.Mesh, fields []Field) {
	pos := make(map[string]int, len(fields))
	for i, f := range fields {
		pos[f.Name] = i
	}
	slices.SortStableFunc(m.Attributes, func(a, b *mesh.Attribute) int {
		return pos[a.Name] - pos[b.Name]
	})
}
