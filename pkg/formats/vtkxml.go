package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// VTK XML format errors.
var (
	ErrInvalidVTKXML       = errors.New("invalid VTK XML file")
	ErrUnsupportedXMLType  = errors.New("unsupported VTK XML dataset type")
	ErrUnsupportedEncoding = errors.New("unsupported VTK XML data encoding")
	ErrUnsupportedCompress = errors.New("unsupported VTK XML compressor")
	ErrTruncatedXMLData    = errors.New("truncated VTK XML data array")
	ErrMissingArray        = errors.New("missing VTK XML data array")
	errSkipArray           = errors.New("array type not representable")
)

type xmlFile struct {
	XMLName      xml.Name     `xml:"VTKFile"`
	Type         string       `xml:"type,attr"`
	ByteOrder    string       `xml:"byte_order,attr"`
	HeaderType   string       `xml:"header_type,attr"`
	Compressor   string       `xml:"compressor,attr"`
	Unstructured *xmlDataset  `xml:"UnstructuredGrid"`
	Poly         *xmlDataset  `xml:"PolyData"`
	PUnstruct    *xmlPDataset `xml:"PUnstructuredGrid"`
	PPoly        *xmlPDataset `xml:"PPolyData"`
	Appended     *xmlAppended `xml:"AppendedData"`
}

type xmlDataset struct {
	Pieces []xmlPiece `xml:"Piece"`
}

type xmlPDataset struct {
	Pieces []struct {
		Source string `xml:"Source,attr"`
	} `xml:"Piece"`
}

type xmlAppended struct {
	Encoding string `xml:"encoding,attr"`
}

type xmlPiece struct {
	NumberOfPoints int       `xml:"NumberOfPoints,attr"`
	NumberOfCells  int       `xml:"NumberOfCells,attr"`
	PointData      xmlData   `xml:"PointData"`
	CellData       xmlData   `xml:"CellData"`
	Points         xmlArrays `xml:"Points"`
	Cells          xmlArrays `xml:"Cells"`
	Verts          xmlArrays `xml:"Verts"`
	Lines          xmlArrays `xml:"Lines"`
	Polys          xmlArrays `xml:"Polys"`
	Strips         xmlArrays `xml:"Strips"`
}

type xmlData struct {
	Normals string         `xml:"Normals,attr"`
	TCoords string         `xml:"TCoords,attr"`
	Arrays  []xmlDataArray `xml:"DataArray"`
}

type xmlArrays struct {
	Arrays []xmlDataArray `xml:"DataArray"`
}

func (a xmlArrays) named(name string) *xmlDataArray {
	for i := range a.Arrays {
		if a.Arrays[i].Name == name {
			return &a.Arrays[i]
		}
	}
	return nil
}

type xmlDataArray struct {
	Type       string `xml:"type,attr"`
	Name       string `xml:"Name,attr"`
	Components int    `xml:"NumberOfComponents,attr"`
	Format     string `xml:"format,attr"`
	Offset     int    `xml:"offset,attr"`
	Text       string `xml:",chardata"`
}

// xmlTypeSize returns the byte size and mesh component of an XML array type.
func xmlTypeSize(t string) (int, mesh.Component, error) {
	switch t {
	case "Int8":
		return 1, mesh.I32, nil
	case "UInt8":
		return 1, mesh.U32, nil
	case "Int16":
		return 2, mesh.I32, nil
	case "UInt16":
		return 2, mesh.U32, nil
	case "Int32":
		return 4, mesh.I32, nil
	case "UInt32":
		return 4, mesh.U32, nil
	case "Int64":
		return 8, mesh.I32, nil
	case "UInt64":
		return 8, mesh.U32, nil
	case "Float32":
		return 4, mesh.F32, nil
	case "Float64":
		return 8, mesh.F32, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", errSkipArray, t)
}

// xmlReader decodes the data arrays of one VTK XML file.
type xmlReader struct {
	order       binary.ByteOrder
	headerSize  int
	compressor  string
	appended    []byte
	appendedB64 bool
}

// splitAppended cuts raw appended data out of the document, since it is
// not valid XML, and returns the remaining document and the data.
func splitAppended(data []byte) (doc, appended []byte) {
	start := bytes.Index(data, []byte("<AppendedData"))
	if start < 0 {
		return data, nil
	}
	gt := bytes.IndexByte(data[start:], '>')
	end := bytes.LastIndex(data, []byte("</AppendedData>"))
	if gt < 0 || end < start+gt {
		return data, nil
	}
	gt += start
	body := data[gt+1 : end]
	if us := bytes.IndexByte(body, '_'); us >= 0 {
		appended = body[us+1:]
	}
	doc = make([]byte, 0, len(data)-len(body))
	doc = append(doc, data[:gt+1]...)
	doc = append(doc, data[end:]...)
	return doc, appended
}

func (r *xmlReader) header(b []byte) uint64 {
	if r.headerSize == 8 {
		return r.order.Uint64(b)
	}
	return uint64(r.order.Uint32(b))
}

// length reads a header value and rejects it when it exceeds limit, which
// callers derive from the bytes actually present.
func (r *xmlReader) length(b []byte, limit int) (int, error) {
	v := r.header(b)
	if v > uint64(limit) {
		return 0, fmt.Errorf("%w: header value %d exceeds %d", ErrTruncatedXMLData, v, limit)
	}
	return int(v), nil
}

func b64Chars(n int) int {
	return (n + 2) / 3 * 4
}

func decodeB64(src []byte, chars int) ([]byte, error) {
	if chars > len(src) {
		return nil, ErrTruncatedXMLData
	}
	return base64.StdEncoding.DecodeString(string(src[:chars]))
}

// payload returns the decoded bytes of a binary or appended array.
func (r *xmlReader) payload(src []byte, b64 bool) ([]byte, error) {
	hs := r.headerSize
	if r.compressor == "" {
		if !b64 {
			if len(src) < hs {
				return nil, ErrTruncatedXMLData
			}
			n, err := r.length(src, len(src)-hs)
			if err != nil {
				return nil, err
			}
			return src[hs : hs+n], nil
		}
		head, err := decodeB64(src, b64Chars(hs))
		if err != nil {
			return nil, err
		}
		n, err := r.length(head, len(src))
		if err != nil {
			return nil, err
		}
		all, err := decodeB64(src, b64Chars(hs+n))
		if err != nil {
			return nil, err
		}
		if len(all) < hs+n {
			return nil, ErrTruncatedXMLData
		}
		return all[hs : hs+n], nil
	}

	// Compressed: [blocks, blockSize, lastBlockSize, compressedSize...] then blocks.
	var head []byte
	rest := src
	if b64 {
		first, err := decodeB64(src, b64Chars(hs))
		if err != nil {
			return nil, err
		}
		nb, err := r.length(first, len(src)/hs)
		if err != nil {
			return nil, err
		}
		chars := b64Chars(hs * (3 + nb))
		if head, err = decodeB64(src, chars); err != nil {
			return nil, err
		}
		rest = src[chars:]
	} else {
		if len(src) < hs {
			return nil, ErrTruncatedXMLData
		}
		nb, err := r.length(src, len(src)/hs)
		if err != nil {
			return nil, err
		}
		if len(src) < hs*(3+nb) {
			return nil, ErrTruncatedXMLData
		}
		head = src[:hs*(3+nb)]
		rest = src[hs*(3+nb):]
	}
	nb, err := r.length(head, len(head)/hs)
	if err != nil {
		return nil, err
	}
	if len(head) < hs*(3+nb) {
		return nil, ErrTruncatedXMLData
	}
	blockSize := r.header(head[hs:])
	lastSize := r.header(head[2*hs:])
	sizes := make([]int, nb)
	total := 0
	for i := range sizes {
		if sizes[i], err = r.length(head[(3+i)*hs:], len(rest)-total); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		total += sizes[i]
	}
	if b64 {
		if rest, err = decodeB64(rest, b64Chars(total)); err != nil {
			return nil, err
		}
	}
	if len(rest) < total {
		return nil, ErrTruncatedXMLData
	}

	var out []byte
	off := 0
	for i, size := range sizes {
		want := blockSize
		if i == nb-1 && lastSize != 0 {
			want = lastSize
		}
		block, err := r.inflate(rest[off:off+size], want)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, block...)
		off += size
	}
	return out, nil
}

// lz4MaxRatio bounds how far an LZ4 block can expand.
const lz4MaxRatio = 255

func (r *xmlReader) inflate(block []byte, size uint64) ([]byte, error) {
	switch r.compressor {
	case "vtkZLibDataCompressor":
		zr, err := zlib.NewReader(bytes.NewReader(block))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case "vtkLZ4DataCompressor":
		if size > uint64(len(block))*lz4MaxRatio+16 {
			return nil, fmt.Errorf("%w: block of %d bytes cannot expand to %d", ErrTruncatedXMLData, len(block), size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(block, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompress, r.compressor)
}

// values decodes an array into float64 values.
func (r *xmlReader) values(a *xmlDataArray) ([]float64, mesh.Component, error) {
	size, comp, err := xmlTypeSize(a.Type)
	if err != nil {
		return nil, 0, err
	}

	var raw []byte
	switch strings.ToLower(a.Format) {
	case "ascii", "":
		fields := strings.Fields(a.Text)
		out := make([]float64, len(fields))
		for i, f := range fields {
			if out[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, 0, fmt.Errorf("array %q: invalid number %q", a.Name, f)
			}
		}
		return out, comp, nil
	case "binary":
		text := []byte(strings.Join(strings.Fields(a.Text), ""))
		raw, err = r.payload(text, true)
	case "appended":
		if a.Offset < 0 || a.Offset > len(r.appended) {
			return nil, 0, fmt.Errorf("%w: offset %d", ErrTruncatedXMLData, a.Offset)
		}
		raw, err = r.payload(r.appended[a.Offset:], r.appendedB64)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, a.Format)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("array %q: %w", a.Name, err)
	}

	n := len(raw) / size
	out := make([]float64, n)
	for i := range out {
		b := raw[i*size:]
		switch a.Type {
		case "Int8":
			out[i] = float64(int8(b[0]))
		case "UInt8":
			out[i] = float64(b[0])
		case "Int16":
			out[i] = float64(int16(r.order.Uint16(b)))
		case "UInt16":
			out[i] = float64(r.order.Uint16(b))
		case "Int32":
			out[i] = float64(int32(r.order.Uint32(b)))
		case "UInt32":
			out[i] = float64(r.order.Uint32(b))
		case "Int64":
			out[i] = float64(int64(r.order.Uint64(b)))
		case "UInt64":
			out[i] = float64(r.order.Uint64(b))
		case "Float32":
			out[i] = float64(math.Float32frombits(r.order.Uint32(b)))
		case "Float64":
			out[i] = math.Float64frombits(r.order.Uint64(b))
		}
	}
	return out, comp, nil
}

func (r *xmlReader) indices(a *xmlDataArray) ([]uint32, error) {
	v, _, err := r.values(a)
	if err != nil {
		return nil, err
	}
	return toIndices(v)
}

func (r *xmlReader) offsets(a *xmlDataArray) ([]int, error) {
	v, _, err := r.values(a)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out, nil
}

// ParseVTKXML parses a serial VTK XML file (.vtu or .vtp). dir resolves
// the piece files of parallel manifests (.pvtu, .pvtp).
func ParseVTKXML(data []byte, dir string, opts Options) (*mesh.Mesh, error) {
	doc, appended := splitAppended(data)
	var f xmlFile
	if err := xml.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVTKXML, err)
	}

	switch {
	case f.PUnstruct != nil || f.PPoly != nil:
		ds := f.PUnstruct
		if ds == nil {
			ds = f.PPoly
		}
		var parts []*mesh.Mesh
		for _, p := range ds.Pieces {
			m, err := ParseVTKXMLFile(filepath.Join(dir, filepath.FromSlash(p.Source)), opts)
			if err != nil {
				return nil, fmt.Errorf("piece %s: %w", p.Source, err)
			}
			parts = append(parts, m)
		}
		return mesh.Concat(parts...)
	case f.Unstructured == nil && f.Poly == nil:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedXMLType, f.Type)
	}

	r := &xmlReader{
		order:      binary.LittleEndian,
		headerSize: 4,
		compressor: f.Compressor,
		appended:   appended,
	}
	if f.ByteOrder == "BigEndian" {
		r.order = binary.BigEndian
	}
	if f.HeaderType == "UInt64" {
		r.headerSize = 8
	}
	if f.Appended != nil {
		switch f.Appended.Encoding {
		case "base64":
			r.appendedB64 = true
		case "raw", "":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, f.Appended.Encoding)
		}
	}

	ds, poly := f.Unstructured, false
	if ds == nil {
		ds, poly = f.Poly, true
	}
	var parts []*mesh.Mesh
	for i := range ds.Pieces {
		m, err := r.piece(&ds.Pieces[i], poly, opts)
		if err != nil {
			return nil, fmt.Errorf("piece %d: %w", i, err)
		}
		parts = append(parts, m)
	}
	return mesh.Concat(parts...)
}

func (r *xmlReader) piece(p *xmlPiece, poly bool, opts Options) (*mesh.Mesh, error) {
	if len(p.Points.Arrays) == 0 {
		return nil, fmt.Errorf("%w: Points", ErrMissingArray)
	}
	pts, _, err := r.values(&p.Points.Arrays[0])
	if err != nil {
		return nil, err
	}
	if len(pts) != 3*p.NumberOfPoints {
		return nil, fmt.Errorf("%w: %d point values for %d points", mesh.ErrLengthMismatch, len(pts), p.NumberOfPoints)
	}

	cells := cellBuilder{opts: opts}
	if poly {
		sections := []struct {
			arrays xmlArrays
			typ    VTKCellType
		}{
			{p.Verts, CellPolyVertex},
			{p.Lines, CellPolyLine},
			{p.Polys, CellPolygon},
			{p.Strips, CellTriangleStrip},
		}
		for _, sec := range sections {
			if len(sec.arrays.Arrays) == 0 {
				continue
			}
			conn, offs, err := r.connectivity(sec.arrays)
			if err != nil {
				return nil, err
			}
			if err := cells.addConnectivity(conn, offs, nil, sec.typ); err != nil {
				return nil, err
			}
		}
	} else if len(p.Cells.Arrays) > 0 {
		conn, offs, err := r.connectivity(p.Cells)
		if err != nil {
			return nil, err
		}
		ta := p.Cells.named("types")
		if ta == nil {
			return nil, fmt.Errorf("%w: types", ErrMissingArray)
		}
		tv, _, err := r.values(ta)
		if err != nil {
			return nil, err
		}
		if len(tv) != len(offs) {
			return nil, fmt.Errorf("%w: %d cells but %d types", mesh.ErrLengthMismatch, len(offs), len(tv))
		}
		types := make([]VTKCellType, len(tv))
		for i, t := range tv {
			types[i] = VTKCellType(t)
		}
		if err := cells.addConnectivity(conn, offs, types, 0); err != nil {
			return nil, err
		}
	}

	m := mesh.New(toFloat32(pts), cells.faces)
	for _, sec := range []struct {
		data    xmlData
		binding mesh.Binding
	}{
		{p.PointData, mesh.PerVertex},
		{p.CellData, mesh.PerFace},
	} {
		for i := range sec.data.Arrays {
			a := &sec.data.Arrays[i]
			v, comp, err := r.values(a)
			if errors.Is(err, errSkipArray) {
				continue
			}
			if err != nil {
				return nil, err
			}
			shape := max(a.Components, 1)
			if shape > 4 {
				continue
			}
			kind := mesh.KindForName(a.Name)
			switch a.Name {
			case sec.data.Normals:
				kind = mesh.KindNormal
			case sec.data.TCoords:
				kind = mesh.KindTexcoord
			}
			arr := &vtkArray{name: a.Name, kind: kind, shape: shape, comp: comp, binding: sec.binding, values: v}
			attr := arr.attribute()
			if sec.binding == mesh.PerFace {
				if attr, err = cells.spread(attr); err != nil {
					return nil, err
				}
			}
			if err := m.AddAttribute(attr); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (r *xmlReader) connectivity(arrays xmlArrays) ([]uint32, []int, error) {
	ca := arrays.named("connectivity")
	oa := arrays.named("offsets")
	if ca == nil || oa == nil {
		return nil, nil, fmt.Errorf("%w: connectivity/offsets", ErrMissingArray)
	}
	conn, err := r.indices(ca)
	if err != nil {
		return nil, nil, err
	}
	offs, err := r.offsets(oa)
	if err != nil {
		return nil, nil, err
	}
	return conn, offs, nil
}

// ParseVTKXMLFile parses a .vtu, .vtp, .pvtu or .pvtp file from disk.
func ParseVTKXMLFile(path string, opts Options) (*mesh.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IOError{Op: "read", Path: path, Err: err}
	}
	return ParseVTKXML(data, filepath.Dir(path), opts)
}
