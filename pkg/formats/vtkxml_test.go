package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/Faultbox/meshseq/pkg/mesh"
)

const asciiVTU = `<?xml version="1.0"?>
<VTKFile type="UnstructuredGrid" version="1.0" byte_order="LittleEndian">
  <UnstructuredGrid>
    <Piece NumberOfPoints="4" NumberOfCells="1">
      <PointData Normals="nrm">
        <DataArray type="Float32" Name="nrm" NumberOfComponents="3" format="ascii">
          0 0 1 0 0 1 0 0 1 0 0 1
        </DataArray>
      </PointData>
      <CellData>
        <DataArray type="Int32" Name="material" format="ascii">3</DataArray>
        <DataArray type="String" Name="label" format="ascii">65 0</DataArray>
      </CellData>
      <Points>
        <DataArray type="Float64" NumberOfComponents="3" format="ascii">
          0 0 0 1 0 0 0 1 0 0 0 1
        </DataArray>
      </Points>
      <Cells>
        <DataArray type="Int64" Name="connectivity" format="ascii">0 1 2 3</DataArray>
        <DataArray type="Int64" Name="offsets" format="ascii">4</DataArray>
        <DataArray type="UInt8" Name="types" format="ascii">10</DataArray>
      </Cells>
    </Piece>
  </UnstructuredGrid>
</VTKFile>
`

func TestParseVTKXML_ASCII(t *testing.T) {
	m, err := ParseVTKXML([]byte(asciiVTU), "", Options{})
	if err != nil {
		t.Fatalf("ParseVTKXML failed: %v", err)
	}
	if m.VertexCount() != 4 || m.FaceCount() != 4 {
		t.Fatalf("got %d vertices, %d faces", m.VertexCount(), m.FaceCount())
	}
	n := m.Attr("nrm")
	if n == nil || n.Kind != mesh.KindNormal {
		t.Errorf("normal attribute = %+v", n)
	}
	mat := m.Attr("material")
	if mat == nil || mat.Kind != mesh.KindMaterialID || mat.Len() != 4 {
		t.Fatalf("material attribute = %+v", mat)
	}
	if mat.Uints()[3] != 3 {
		t.Errorf("material values = %v", mat.Uints())
	}
	if m.Attr("label") != nil {
		t.Error("string array should be skipped")
	}
}

// le encodes values little-endian.
func le(values ...any) []byte {
	buf := new(bytes.Buffer)
	for _, v := range values {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// inlineBinary encodes data the way VTK writes uncompressed binary arrays.
func inlineBinary(data []byte) string {
	return base64.StdEncoding.EncodeToString(append(le(uint32(len(data))), data...))
}

// inlineZlib encodes data as a single zlib block with a separately encoded header.
func inlineZlib(t *testing.T, data []byte) string {
	t.Helper()
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	header := le(uint32(1), uint32(len(data)), uint32(len(data)), uint32(z.Len()))
	return base64.StdEncoding.EncodeToString(header) + base64.StdEncoding.EncodeToString(z.Bytes())
}

func triangleVTP(encode func([]byte) string, compressor string) string {
	points := le([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	conn := le([]int32{0, 1, 2})
	offs := le([]int32{3})
	attr := ""
	if compressor != "" {
		attr = ` compressor="` + compressor + `"`
	}
	return `<VTKFile type="PolyData" version="1.0" byte_order="LittleEndian" header_type="UInt32"` + attr + `>
<PolyData><Piece NumberOfPoints="3" NumberOfPolys="1">
<Points><DataArray type="Float32" NumberOfComponents="3" format="binary">` + encode(points) + `</DataArray></Points>
<Polys>
<DataArray type="Int32" Name="connectivity" format="binary">` + encode(conn) + `</DataArray>
<DataArray type="Int32" Name="offsets" format="binary">` + encode(offs) + `</DataArray>
</Polys>
</Piece></PolyData></VTKFile>`
}

func TestParseVTKXML_Binary(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"uncompressed", triangleVTP(inlineBinary, "")},
		{"zlib", triangleVTP(func(b []byte) string { return inlineZlib(t, b) }, "vtkZLibDataCompressor")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseVTKXML([]byte(tt.doc), "", Options{})
			if err != nil {
				t.Fatalf("ParseVTKXML failed: %v", err)
			}
			if m.VertexCount() != 3 || m.FaceCount() != 1 {
				t.Fatalf("got %d vertices, %d faces", m.VertexCount(), m.FaceCount())
			}
			if p := m.Positions(); p[3] != 1 || p[7] != 1 {
				t.Errorf("positions = %v", p)
			}
		})
	}
}

func TestParseVTKXML_AppendedRaw(t *testing.T) {
	var appended bytes.Buffer
	block := func(data []byte) int {
		off := appended.Len()
		appended.Write(le(uint32(len(data))))
		appended.Write(data)
		return off
	}
	pOff := block(le([]float64{0, 0, 0, 2, 0, 0, 0, 2, 0}))
	cOff := block(le([]int64{0, 1, 2}))
	oOff := block(le([]int64{3}))
	tOff := block([]byte{byte(CellTriangle)})

	doc := `<VTKFile type="UnstructuredGrid" version="1.0" byte_order="LittleEndian">
<UnstructuredGrid><Piece NumberOfPoints="3" NumberOfCells="1">
<Points><DataArray type="Float64" NumberOfComponents="3" format="appended" offset="` + strconv.Itoa(pOff) + `"/></Points>
<Cells>
<DataArray type="Int64" Name="connectivity" format="appended" offset="` + strconv.Itoa(cOff) + `"/>
<DataArray type="Int64" Name="offsets" format="appended" offset="` + strconv.Itoa(oOff) + `"/>
<DataArray type="UInt8" Name="types" format="appended" offset="` + strconv.Itoa(tOff) + `"/>
</Cells>
</Piece></UnstructuredGrid>
<AppendedData encoding="raw">
_` + appended.String() + `
</AppendedData>
</VTKFile>`

	m, err := ParseVTKXML([]byte(doc), "", Options{})
	if err != nil {
		t.Fatalf("ParseVTKXML failed: %v", err)
	}
	if m.FaceCount() != 1 || m.Positions()[3] != 2 {
		t.Errorf("faces=%d positions=%v", m.FaceCount(), m.Positions())
	}
}

func TestXMLReader_LZ4Payload(t *testing.T) {
	data := bytes.Repeat(le(float32(1.5)), 256)
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil || n == 0 {
		t.Fatalf("CompressBlock: n=%d err=%v", n, err)
	}
	raw := append(le(uint32(1), uint32(len(data)), uint32(len(data)), uint32(n)), dst[:n]...)

	r := &xmlReader{order: binary.LittleEndian, headerSize: 4, compressor: "vtkLZ4DataCompressor"}
	got, err := r.payload(raw, false)
	if err != nil {
		t.Fatalf("payload failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("payload returned %d bytes, want %d identical bytes", len(got), len(data))
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(got)); v != 1.5 {
		t.Errorf("first value = %v, want 1.5", v)
	}
}

func TestParseVTKXML_Parallel(t *testing.T) {
	dir := t.TempDir()
	piece := triangleVTP(inlineBinary, "")
	for _, name := range []string{"p0.vtp", "p1.vtp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(piece), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	manifest := `<VTKFile type="PPolyData" version="1.0">
<PPolyData GhostLevel="0">
<PPoints><PDataArray type="Float32" NumberOfComponents="3"/></PPoints>
<Piece Source="p0.vtp"/>
<Piece Source="p1.vtp"/>
</PPolyData>
</VTKFile>`
	path := filepath.Join(dir, "frame_1.pvtp")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ParseVTKXMLFile(path, Options{})
	if err != nil {
		t.Fatalf("ParseVTKXMLFile failed: %v", err)
	}
	if m.VertexCount() != 6 || m.FaceCount() != 2 {
		t.Fatalf("got %d vertices, %d faces", m.VertexCount(), m.FaceCount())
	}
	if m.Faces[1][0] != 3 {
		t.Errorf("second piece not offset: %v", m.Faces[1])
	}
}

func TestParseVTKXML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"not xml", "<<<", ErrInvalidVTKXML},
		{"image data", `<VTKFile type="ImageData"><ImageData/></VTKFile>`, ErrUnsupportedXMLType},
		{"no points", `<VTKFile type="PolyData"><PolyData><Piece NumberOfPoints="0"/></PolyData></VTKFile>`, ErrMissingArray},
		{"lzma", triangleVTP(func(b []byte) string { return inlineZlib(t, b) }, "vtkLZMADataCompressor"), ErrUnsupportedCompress},
		{"bad format", `<VTKFile type="PolyData"><PolyData><Piece NumberOfPoints="1"><Points>` +
			`<DataArray type="Float32" NumberOfComponents="3" format="hex">00</DataArray></Points></Piece></PolyData></VTKFile>`,
			ErrUnsupportedEncoding},
		{"forged uint64 header", `<VTKFile type="PolyData" version="1.0" byte_order="LittleEndian" header_type="UInt64">
<PolyData><Piece NumberOfPoints="1" NumberOfPolys="0">
<Points><DataArray type="Float32" NumberOfComponents="3" format="appended" offset="0"/></Points>
</Piece></PolyData>
<AppendedData encoding="raw">
_` + string(le(uint64(1)<<63)) + string(make([]byte, 12)) + `
</AppendedData>
</VTKFile>`, ErrTruncatedXMLData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVTKXML([]byte(tt.doc), "", Options{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseVTKXML() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestXMLReader_ForgedHeaders(t *testing.T) {
	block := []byte{1, 2, 3, 4}
	tests := []struct {
		name       string
		compressor string
		raw        []byte
	}{
		{"raw length", "", le(uint64(1)<<63, uint64(0))},
		{"block count", "vtkZLibDataCompressor", le(uint64(1)<<62, uint64(4), uint64(4), uint64(4))},
		{"block size", "vtkZLibDataCompressor", append(le(uint64(1), uint64(4), uint64(4), uint64(1)<<63), block...)},
		{"lz4 expansion", "vtkLZ4DataCompressor", append(le(uint64(1), uint64(1)<<40, uint64(1)<<40, uint64(4)), block...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &xmlReader{order: binary.LittleEndian, headerSize: 8, compressor: tt.compressor}
			if _, err := r.payload(tt.raw, false); !errors.Is(err, ErrTruncatedXMLData) {
				t.Errorf("payload() error = %v, want %v", err, ErrTruncatedXMLData)
			}
		})
	}
}
