// Package formats provides parsers for the mesh file formats accepted as
// animation frames: VTK legacy, VTK XML (serial and parallel) and OBJ.
package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// Dispatch errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported mesh format")
)

// Options tunes how cells are turned into faces.
type Options struct {
	InvertTets bool // flip the winding of faces produced from tetrahedra
}

// Format identifies a mesh file format.
type Format uint8

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatVTK
	FormatVTU
	FormatVTP
	FormatPVTU
	FormatPVTP
	FormatOBJ
)

// String returns the conventional file extension of the format.
func (f Format) String() string {
	switch f {
	case FormatVTK:
		return "vtk"
	case FormatVTU:
		return "vtu"
	case FormatVTP:
		return "vtp"
	case FormatPVTU:
		return "pvtu"
	case FormatPVTP:
		return "pvtp"
	case FormatOBJ:
		return "obj"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtk":
		return FormatVTK
	case ".vtu":
		return FormatVTU
	case ".vtp":
		return FormatVTP
	case ".pvtu":
		return FormatPVTU
	case ".pvtp":
		return FormatPVTP
	case ".obj":
		return FormatOBJ
	default:
		return FormatUnknown
	}
}

// Adapter parses one file into a mesh.
type Adapter interface {
	Parse(path string) (*mesh.Mesh, error)
}

// AdapterFunc lets an ordinary function act as an Adapter.
type AdapterFunc func(path string) (*mesh.Mesh, error)

// Parse calls f(path).
func (f AdapterFunc) Parse(path string) (*mesh.Mesh, error) { return f(path) }

// ForPath returns the adapter for the file's format.
func ForPath(path string, opts Options) (Adapter, error) {
	switch FormatOf(path) {
	case FormatVTK:
		return AdapterFunc(func(p string) (*mesh.Mesh, error) { return ParseVTKFile(p, opts) }), nil
	case FormatVTU, FormatVTP, FormatPVTU, FormatPVTP:
		return AdapterFunc(func(p string) (*mesh.Mesh, error) { return ParseVTKXMLFile(p, opts) }), nil
	case FormatOBJ:
		return AdapterFunc(ParseOBJFile), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Parse reads a mesh file of any supported format and validates it.
// Every failure is returned as *errs.ParseError carrying the path.
func Parse(path string, opts Options) (*mesh.Mesh, error) {
	a, err := ForPath(path, opts)
	if err != nil {
		return nil, &errs.ParseError{Path: path, Err: err}
	}
	m, err := a.Parse(path)
	if err != nil {
		var ioErr *errs.IOError
		if errors.As(err, &ioErr) {
			return nil, err
		}
		return nil, &errs.ParseError{Path: path, Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &errs.ParseError{Path: path, Err: err}
	}
	return m, nil
}
