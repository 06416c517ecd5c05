package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// VTK legacy format errors.
var (
	ErrInvalidVTKHeader      = errors.New("invalid VTK header: expected '# vtk DataFile Version'")
	ErrUnsupportedVTKFormat  = errors.New("unsupported VTK file type: expected ASCII or BINARY")
	ErrUnsupportedVTKVersion = errors.New("unsupported VTK file version")
	ErrUnsupportedDataset    = errors.New("unsupported VTK dataset")
	ErrUnsupportedDataType   = errors.New("unsupported VTK data type")
	ErrUnknownVTKSection     = errors.New("unknown VTK section")
	ErrTruncatedVTKData      = errors.New("truncated VTK data")
	ErrMissingPoints         = errors.New("VTK file has no POINTS section")
)

// VTKVersion is the "DataFile Version" of a legacy file.
type VTKVersion struct {
	Major int
	Minor int
}

// String returns the version as "Major.Minor".
func (v VTKVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func parseVTKVersion(header string) VTKVersion {
	var v VTKVersion
	fields := strings.Fields(header)
	if len(fields) > 0 {
		fmt.Sscanf(fields[len(fields)-1], "%d.%d", &v.Major, &v.Minor)
	}
	return v
}

// vtkScanner reads the mixed text/binary layout of legacy VTK files.
// Text is whitespace separated; binary blocks start right after the
// newline that ends their keyword line and are big-endian.
type vtkScanner struct {
	data   []byte
	pos    int
	binary bool
}

func (s *vtkScanner) eof() bool {
	s.skipSpace()
	return s.pos >= len(s.data)
}

func (s *vtkScanner) skipSpace() {
	for s.pos < len(s.data) && isSpace(s.data[s.pos]) {
		s.pos++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// rawLine returns the rest of the current line without skipping blanks.
func (s *vtkScanner) rawLine() (string, bool) {
	if s.pos >= len(s.data) {
		return "", false
	}
	end := bytes.IndexByte(s.data[s.pos:], '\n')
	var line []byte
	if end < 0 {
		line = s.data[s.pos:]
		s.pos = len(s.data)
	} else {
		line = s.data[s.pos : s.pos+end]
		s.pos += end + 1
	}
	return strings.TrimRight(string(line), "\r"), true
}

// line returns the next non-blank line split into fields.
func (s *vtkScanner) line() ([]string, error) {
	for {
		l, ok := s.rawLine()
		if !ok {
			return nil, ErrTruncatedVTKData
		}
		if f := strings.Fields(l); len(f) > 0 {
			return f, nil
		}
	}
}

// peekWord returns the next token without consuming it.
func (s *vtkScanner) peekWord() string {
	save := s.pos
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) {
		s.pos++
	}
	w := string(s.data[start:s.pos])
	s.pos = save
	return w
}

func (s *vtkScanner) token() (string, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return "", ErrTruncatedVTKData
	}
	return string(s.data[start:s.pos]), nil
}

// vtkTypeSize returns the binary size of a legacy data type name.
func vtkTypeSize(dtype string) (int, error) {
	switch strings.ToLower(dtype) {
	case "unsigned_char", "char":
		return 1, nil
	case "unsigned_short", "short":
		return 2, nil
	case "unsigned_int", "int", "float":
		return 4, nil
	case "unsigned_long", "long", "double", "vtktypeint64", "vtktypeuint64", "vtkidtype":
		return 8, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDataType, dtype)
}

// componentOf maps a legacy data type to the mesh component it is stored as.
func componentOf(dtype string) mesh.Component {
	switch d := strings.ToLower(dtype); {
	case d == "float" || d == "double":
		return mesh.F32
	case strings.HasPrefix(d, "unsigned") || d == "vtktypeuint64":
		return mesh.U32
	default:
		return mesh.I32
	}
}

// values reads n numbers of the given type.
// values reads n tuples of width components. Counts come from the file, so
// they are checked against the remaining bytes before anything is allocated:
// a binary value takes size bytes and a text value at least one.
func (s *vtkScanner) values(n, width int, dtype string) ([]float64, error) {
	size, err := vtkTypeSize(dtype)
	if err != nil {
		return nil, err
	}
	per := 1
	if s.binary {
		per = size
	}
	avail := (len(s.data) - s.pos) / per
	if n < 0 || width < 0 || (width > 0 && n > avail/width) {
		return nil, fmt.Errorf("%w: %d x %d values of %s exceed the remaining %d bytes",
			ErrTruncatedVTKData, n, width, dtype, len(s.data)-s.pos)
	}
	n *= width
	out := make([]float64, n)
	if !s.binary {
		for i := range out {
			tok, err := s.token()
			if err != nil {
				return nil, fmt.Errorf("%w: value %d of %d", err, i, n)
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q: %w", tok, err)
			}
			out[i] = v
		}
		return out, nil
	}

	be := binary.BigEndian
	for i := range out {
		b := s.data[s.pos+i*size:]
		switch d := strings.ToLower(dtype); d {
		case "unsigned_char":
			out[i] = float64(b[0])
		case "char":
			out[i] = float64(int8(b[0]))
		case "unsigned_short":
			out[i] = float64(be.Uint16(b))
		case "short":
			out[i] = float64(int16(be.Uint16(b)))
		case "unsigned_int":
			out[i] = float64(be.Uint32(b))
		case "int":
			out[i] = float64(int32(be.Uint32(b)))
		case "float":
			out[i] = float64(math.Float32frombits(be.Uint32(b)))
		case "double":
			out[i] = math.Float64frombits(be.Uint64(b))
		case "unsigned_long", "vtktypeuint64":
			out[i] = float64(be.Uint64(b))
		default:
			out[i] = float64(int64(be.Uint64(b)))
		}
	}
	s.pos += n * size
	return out, nil
}

// vtkArray is a parsed data array before it becomes a mesh attribute.
type vtkArray struct {
	name    string
	kind    mesh.Kind
	shape   int
	comp    mesh.Component
	binding mesh.Binding
	values  []float64
}

func (a *vtkArray) attribute() *mesh.Attribute {
	switch a.comp {
	case mesh.U32:
		v := make([]uint32, len(a.values))
		for i, x := range a.values {
			v[i] = uint32(x)
		}
		return mesh.NewUint(a.name, a.kind, a.shape, a.binding, v)
	case mesh.I32:
		v := make([]int32, len(a.values))
		for i, x := range a.values {
			v[i] = int32(x)
		}
		return mesh.NewInt(a.name, a.kind, a.shape, a.binding, v)
	default:
		return mesh.NewFloat(a.name, a.kind, a.shape, a.binding, toFloat32(a.values))
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toIndices(v []float64) ([]uint32, error) {
	out := make([]uint32, len(v))
	for i, x := range v {
		if x < 0 || x > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %v", mesh.ErrIndexRange, x)
		}
		out[i] = uint32(x)
	}
	return out, nil
}

// ParseVTK parses a legacy VTK file (ASCII or BINARY) holding an
// UNSTRUCTURED_GRID or POLYDATA dataset.
func ParseVTK(data []byte, opts Options) (*mesh.Mesh, error) {
	s := &vtkScanner{data: data}

	header, ok := s.rawLine()
	if !ok || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(header)), "# vtk datafile version") {
		return nil, ErrInvalidVTKHeader
	}
	version := parseVTKVersion(header)
	if version.Major > 5 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVTKVersion, version)
	}

	if _, ok := s.rawLine(); !ok { // title
		return nil, ErrTruncatedVTKData
	}
	f, err := s.line()
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(f[0]) {
	case "ASCII":
	case "BINARY":
		s.binary = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVTKFormat, f[0])
	}

	f, err = s.line()
	if err != nil {
		return nil, err
	}
	if len(f) < 2 || strings.ToUpper(f[0]) != "DATASET" {
		return nil, fmt.Errorf("%w: expected DATASET, got %q", ErrUnknownVTKSection, f[0])
	}
	dataset := strings.ToUpper(f[1])
	if dataset != "UNSTRUCTURED_GRID" && dataset != "POLYDATA" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataset, dataset)
	}

	p := &vtkLegacy{s: s, cells: cellBuilder{opts: opts}}
	if err := p.sections(); err != nil {
		return nil, err
	}
	return p.mesh()
}

// vtkLegacy accumulates the sections of a legacy file.
type vtkLegacy struct {
	s         *vtkScanner
	points    []float64
	cells     cellBuilder
	cellConn  []uint32
	cellOffs  []int
	cellTypes []VTKCellType
	arrays    []*vtkArray
	binding   mesh.Binding
	count     int // tuples in the current POINT_DATA/CELL_DATA block
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}

func need(f []string, n int) error {
	if len(f) < n {
		return fmt.Errorf("%w: %q needs %d fields", ErrTruncatedVTKData, strings.Join(f, " "), n)
	}
	return nil
}

func (p *vtkLegacy) sections() error {
	s := p.s
	for !s.eof() {
		f, err := s.line()
		if err != nil {
			return err
		}
		switch key := strings.ToUpper(f[0]); key {
		case "POINTS":
			if err := need(f, 3); err != nil {
				return err
			}
			n, err := atoi(f[1])
			if err != nil {
				return err
			}
			if p.points, err = s.values(n, 3, f[2]); err != nil {
				return fmt.Errorf("POINTS: %w", err)
			}
		case "CELLS":
			if err := need(f, 3); err != nil {
				return err
			}
			if p.cellConn, p.cellOffs, err = p.connectivity(f); err != nil {
				return fmt.Errorf("CELLS: %w", err)
			}
		case "CELL_TYPES":
			if err := need(f, 2); err != nil {
				return err
			}
			n, err := atoi(f[1])
			if err != nil {
				return err
			}
			v, err := s.values(n, 1, "int")
			if err != nil {
				return fmt.Errorf("CELL_TYPES: %w", err)
			}
			p.cellTypes = make([]VTKCellType, n)
			for i, t := range v {
				p.cellTypes[i] = VTKCellType(t)
			}
		case "POLYGONS", "TRIANGLE_STRIPS", "VERTICES", "LINES":
			if err := need(f, 3); err != nil {
				return err
			}
			conn, offs, err := p.connectivity(f)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			typ := map[string]VTKCellType{
				"POLYGONS":        CellPolygon,
				"TRIANGLE_STRIPS": CellTriangleStrip,
				"VERTICES":        CellPolyVertex,
				"LINES":           CellPolyLine,
			}[key]
			if err := p.cells.addConnectivity(conn, offs, nil, typ); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case "POINT_DATA", "CELL_DATA":
			if err := need(f, 2); err != nil {
				return err
			}
			if p.count, err = atoi(f[1]); err != nil {
				return err
			}
			p.binding = mesh.PerVertex
			if key == "CELL_DATA" {
				p.binding = mesh.PerFace
			}
		case "SCALARS":
			if err := need(f, 3); err != nil {
				return err
			}
			shape := 1
			if len(f) > 3 {
				if shape, err = atoi(f[3]); err != nil {
					return err
				}
			}
			if strings.ToUpper(s.peekWord()) == "LOOKUP_TABLE" {
				if _, err := s.line(); err != nil {
					return err
				}
			}
			if err := p.array(f[1], mesh.KindForName(f[1]), shape, f[2]); err != nil {
				return err
			}
		case "VECTORS", "NORMALS":
			if err := need(f, 3); err != nil {
				return err
			}
			kind := mesh.KindForName(f[1])
			if key == "NORMALS" {
				kind = mesh.KindNormal
			}
			if err := p.array(f[1], kind, 3, f[2]); err != nil {
				return err
			}
		case "TEXTURE_COORDINATES":
			if err := need(f, 4); err != nil {
				return err
			}
			dim, err := atoi(f[2])
			if err != nil {
				return err
			}
			if err := p.array(f[1], mesh.KindTexcoord, dim, f[3]); err != nil {
				return err
			}
		case "COLOR_SCALARS":
			if err := need(f, 3); err != nil {
				return err
			}
			shape, err := atoi(f[2])
			if err != nil {
				return err
			}
			dtype := "float"
			if s.binary {
				dtype = "unsigned_char"
			}
			if err := p.array(f[1], mesh.KindColor, shape, dtype); err != nil {
				return err
			}
			a := p.arrays[len(p.arrays)-1]
			a.comp = mesh.F32
			if s.binary {
				for i := range a.values {
					a.values[i] /= 255
				}
			}
		case "TENSORS":
			if err := need(f, 3); err != nil {
				return err
			}
			if _, err := s.values(p.count, 9, f[2]); err != nil {
				return fmt.Errorf("TENSORS: %w", err)
			}
		case "LOOKUP_TABLE":
			if err := need(f, 3); err != nil {
				return err
			}
			n, err := atoi(f[2])
			if err != nil {
				return err
			}
			dtype := "float"
			if s.binary {
				dtype = "unsigned_char"
			}
			if _, err := s.values(n, 4, dtype); err != nil {
				return fmt.Errorf("LOOKUP_TABLE: %w", err)
			}
		case "FIELD":
			if err := need(f, 3); err != nil {
				return err
			}
			if err := p.field(f); err != nil {
				return err
			}
		case "METADATA":
			for {
				l, ok := s.rawLine()
				if !ok || strings.TrimSpace(l) == "" {
					break
				}
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownVTKSection, f[0])
		}
	}
	return nil
}

// connectivity reads a CELLS-like section in either the classic
// count-prefixed layout or the OFFSETS/CONNECTIVITY layout of 5.x files.
func (p *vtkLegacy) connectivity(f []string) ([]uint32, []int, error) {
	s := p.s
	n, err := atoi(f[1])
	if err != nil {
		return nil, nil, err
	}
	size, err := atoi(f[2])
	if err != nil {
		return nil, nil, err
	}

	if strings.ToUpper(s.peekWord()) == "OFFSETS" {
		of, err := s.line()
		if err != nil || len(of) < 2 {
			return nil, nil, ErrTruncatedVTKData
		}
		offsets, err := s.values(n, 1, of[1])
		if err != nil {
			return nil, nil, err
		}
		cf, err := s.line()
		if err != nil || len(cf) < 2 || strings.ToUpper(cf[0]) != "CONNECTIVITY" {
			return nil, nil, fmt.Errorf("%w: expected CONNECTIVITY", ErrTruncatedVTKData)
		}
		raw, err := s.values(size, 1, cf[1])
		if err != nil {
			return nil, nil, err
		}
		conn, err := toIndices(raw)
		if err != nil {
			return nil, nil, err
		}
		var offs []int
		for i := 1; i < len(offsets); i++ {
			offs = append(offs, int(offsets[i]))
		}
		return conn, offs, nil
	}

	raw, err := s.values(size, 1, "int")
	if err != nil {
		return nil, nil, err
	}
	all, err := toIndices(raw)
	if err != nil {
		return nil, nil, err
	}
	conn := make([]uint32, 0, max(size-n, 0))
	offs := make([]int, 0, min(n, len(all)))
	for i, c := 0, 0; c < n; c++ {
		if i >= len(all) {
			return nil, nil, fmt.Errorf("%w: cell %d", ErrTruncatedVTKData, c)
		}
		k := int(all[i])
		if i+1+k > len(all) {
			return nil, nil, fmt.Errorf("%w: cell %d", ErrTruncatedVTKData, c)
		}
		conn = append(conn, all[i+1:i+1+k]...)
		offs = append(offs, len(conn))
		i += 1 + k
	}
	return conn, offs, nil
}

func (p *vtkLegacy) array(name string, kind mesh.Kind, shape int, dtype string) error {
	if shape < 1 || shape > 4 {
		// Wider tuples have no glTF counterpart; read and drop them.
		_, err := p.s.values(p.count, shape, dtype)
		return err
	}
	v, err := p.s.values(p.count, shape, dtype)
	if err != nil {
		return fmt.Errorf("array %q: %w", name, err)
	}
	p.arrays = append(p.arrays, &vtkArray{
		name:    name,
		kind:    kind,
		shape:   shape,
		comp:    componentOf(dtype),
		binding: p.binding,
		values:  v,
	})
	return nil
}

func (p *vtkLegacy) field(f []string) error {
	n, err := atoi(f[2])
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		af, err := p.s.line()
		if err != nil {
			return err
		}
		if len(af) < 4 {
			return fmt.Errorf("%w: field array header %q", ErrTruncatedVTKData, strings.Join(af, " "))
		}
		comps, err := atoi(af[1])
		if err != nil {
			return err
		}
		tuples, err := atoi(af[2])
		if err != nil {
			return err
		}
		save := p.count
		p.count = tuples
		err = p.array(af[0], mesh.KindForName(af[0]), comps, af[3])
		p.count = save
		if err != nil {
			return err
		}
		if comps >= 1 && comps <= 4 && tuples != p.count {
			// Field data that is neither point nor cell data.
			p.arrays = p.arrays[:len(p.arrays)-1]
		}
	}
	return nil
}

func (p *vtkLegacy) mesh() (*mesh.Mesh, error) {
	if p.points == nil {
		return nil, ErrMissingPoints
	}
	if p.cellOffs != nil {
		if len(p.cellTypes) != len(p.cellOffs) {
			return nil, fmt.Errorf("%w: %d cells but %d cell types",
				mesh.ErrLengthMismatch, len(p.cellOffs), len(p.cellTypes))
		}
		if err := p.cells.addConnectivity(p.cellConn, p.cellOffs, p.cellTypes, 0); err != nil {
			return nil, err
		}
	}

	m := mesh.New(toFloat32(p.points), p.cells.faces)
	for _, a := range p.arrays {
		attr := a.attribute()
		if a.binding == mesh.PerFace {
			var err error
			if attr, err = p.cells.spread(attr); err != nil {
				return nil, err
			}
		}
		if err := m.AddAttribute(attr); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ParseVTKFile parses a legacy VTK file from disk.
func ParseVTKFile(path string, opts Options) (*mesh.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IOError{Op: "read", Path: path, Err: err}
	}
	return ParseVTK(data, opts)
}
