package mesh

import (
	"fmt"
	"strings"
)

// Kind is the semantic role of an attribute.
type Kind uint8

// Attribute kinds.
const (
	KindCustom Kind = iota
	KindPosition
	KindNormal
	KindTangent
	KindTexcoord
	KindColor
	KindMaterialID
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPosition:
		return "position"
	case KindNormal:
		return "normal"
	case KindTangent:
		return "tangent"
	case KindTexcoord:
		return "texcoord"
	case KindColor:
		return "color"
	case KindMaterialID:
		return "material-id"
	default:
		return "custom"
	}
}

// Component is the scalar type of attribute values.
type Component uint8

// Component types.
const (
	F32 Component = iota
	U32
	I32
)

// String returns the component name.
func (c Component) String() string {
	switch c {
	case U32:
		return "u32"
	case I32:
		return "i32"
	default:
		return "f32"
	}
}

// ElementType is the shape and component of one attribute element.
type ElementType struct {
	Shape     int // 1 (scalar) to 4
	Component Component
}

// Common element types.
var (
	ScalarF32 = ElementType{1, F32}
	Vec2F32   = ElementType{2, F32}
	Vec3F32   = ElementType{3, F32}
	Vec4F32   = ElementType{4, F32}
	ScalarU32 = ElementType{1, U32}
)

// String returns the element type as scalar(f32), vec3(f32) and so on.
func (t ElementType) String() string {
	if t.Shape == 1 {
		return "scalar(" + t.Component.String() + ")"
	}
	return fmt.Sprintf("vec%d(%s)", t.Shape, t.Component)
}

// Binding tells whether values belong to vertices or faces.
type Binding uint8

// Bindings.
const (
	PerVertex Binding = iota
	PerFace
)

// String returns the binding name.
func (b Binding) String() string {
	if b == PerFace {
		return "face"
	}
	return "vertex"
}

// Attribute is a named array of per-vertex or per-face values.
// Exactly one of F32, U32, I32 is populated, matching Type.Component.
type Attribute struct {
	Name    string
	Kind    Kind
	Type    ElementType
	Binding Binding

	F32 []float32
	U32 []uint32
	I32 []int32
}

// NewFloat creates a float attribute.
func NewFloat(name string, kind Kind, shape int, binding Binding, values []float32) *Attribute {
	return &Attribute{Name: name, Kind: kind, Type: ElementType{shape, F32}, Binding: binding, F32: values}
}

// NewUint creates an unsigned integer attribute.
func NewUint(name string, kind Kind, shape int, binding Binding, values []uint32) *Attribute {
	return &Attribute{Name: name, Kind: kind, Type: ElementType{shape, U32}, Binding: binding, U32: values}
}

// NewInt creates a signed integer attribute.
func NewInt(name string, kind Kind, shape int, binding Binding, values []int32) *Attribute {
	return &Attribute{Name: name, Kind: kind, Type: ElementType{shape, I32}, Binding: binding, I32: values}
}

func (a *Attribute) rawLen() int {
	switch a.Type.Component {
	case U32:
		return len(a.U32)
	case I32:
		return len(a.I32)
	default:
		return len(a.F32)
	}
}

// Len returns the number of elements.
func (a *Attribute) Len() int {
	if a.Type.Shape == 0 {
		return 0
	}
	return a.rawLen() / a.Type.Shape
}

// Floats returns the values as float32, converting integer components.
func (a *Attribute) Floats() []float32 {
	switch a.Type.Component {
	case U32:
		out := make([]float32, len(a.U32))
		for i, v := range a.U32 {
			out[i] = float32(v)
		}
		return out
	case I32:
		out := make([]float32, len(a.I32))
		for i, v := range a.I32 {
			out[i] = float32(v)
		}
		return out
	default:
		return a.F32
	}
}

// Uints returns the values as uint32. Negative integers and floats clamp at zero.
func (a *Attribute) Uints() []uint32 {
	switch a.Type.Component {
	case F32:
		out := make([]uint32, len(a.F32))
		for i, v := range a.F32 {
			if v > 0 {
				out[i] = uint32(v)
			}
		}
		return out
	case I32:
		out := make([]uint32, len(a.I32))
		for i, v := range a.I32 {
			if v > 0 {
				out[i] = uint32(v)
			}
		}
		return out
	default:
		return a.U32
	}
}

// Zero returns an attribute of the same name, kind and type holding n zero elements.
func (a *Attribute) Zero(n int) *Attribute {
	z := &Attribute{Name: a.Name, Kind: a.Kind, Type: a.Type, Binding: a.Binding}
	size := n * a.Type.Shape
	switch a.Type.Component {
	case U32:
		z.U32 = make([]uint32, size)
	case I32:
		z.I32 = make([]int32, size)
	default:
		z.F32 = make([]float32, size)
	}
	return z
}

// Subset returns the elements at the given indices, in order.
func (a *Attribute) Subset(indices []uint32) *Attribute {
	s := a.Zero(len(indices))
	n := a.Type.Shape
	for dst, src := range indices {
		switch a.Type.Component {
		case U32:
			copy(s.U32[dst*n:dst*n+n], a.U32[int(src)*n:int(src)*n+n])
		case I32:
			copy(s.I32[dst*n:dst*n+n], a.I32[int(src)*n:int(src)*n+n])
		default:
			copy(s.F32[dst*n:dst*n+n], a.F32[int(src)*n:int(src)*n+n])
		}
	}
	return s
}

// KindForName maps well-known attribute names to a kind.
// Unknown names are custom.
func KindForName(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case name == "N" || lower == "normal" || lower == "normals":
		return KindNormal
	case name == "T" || lower == "tangent" || lower == "tangents":
		return KindTangent
	case strings.HasPrefix(name, "TC") || lower == "uv" || lower == "texcoord" || lower == "texcoords":
		return KindTexcoord
	case lower == "material" || lower == "mtl_id":
		return KindMaterialID
	case name == "Cd" || lower == "color" || lower == "colors":
		return KindColor
	}
	return KindCustom
}
