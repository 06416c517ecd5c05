package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/pkg/mesh"
)

// OBJ format errors.
var (
	ErrInvalidOBJIndex  = errors.New("invalid OBJ face index")
	ErrInvalidOBJNumber = errors.New("invalid OBJ number")
	ErrShortOBJFace     = errors.New("OBJ face has fewer than three vertices")
)

// OBJ attribute names. They follow the VTK naming convention so the
// same material and kind rules apply to both formats.
const (
	OBJTexcoordName = "uv"
	OBJNormalName   = "N"
)

// objCorner is one v/vt/vn reference; -1 marks an absent component.
type objCorner struct {
	v, vt, vn int
}

// ParseOBJ parses a Wavefront OBJ file. Each distinct v/vt/vn triple
// becomes one mesh vertex. Material libraries are not read.
func ParseOBJ(data []byte) (*mesh.Mesh, error) {
	var (
		positions []float32
		texcoords []float32
		normals   []float32
		faces     [][]objCorner
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			v, err := objFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			positions = append(positions, v...)
		case "vt":
			v, err := objFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			texcoords = append(texcoords, v...)
		case "vn":
			v, err := objFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			normals = append(normals, v...)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w", lineNo, ErrShortOBJFace)
			}
			face := make([]objCorner, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				c, err := parseOBJCorner(ref, len(positions)/3, len(texcoords)/2, len(normals)/3)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				face = append(face, c)
			}
			faces = append(faces, face)
		default:
			// o, g, s, usemtl, mtllib, l, p: no counterpart in the mesh model.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(faces) == 0 {
		m := mesh.New(positions, nil)
		if len(normals) == len(positions) && len(normals) > 0 {
			if err := m.AddAttribute(mesh.NewFloat(OBJNormalName, mesh.KindNormal, 3, mesh.PerVertex, normals)); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	hasVT, hasVN := false, false
	for _, f := range faces {
		for _, c := range f {
			hasVT = hasVT || c.vt >= 0
			hasVN = hasVN || c.vn >= 0
		}
	}

	index := make(map[objCorner]uint32)
	var outPos, outUV, outN []float32
	outFaces := make([][]uint32, len(faces))
	for fi, f := range faces {
		idx := make([]uint32, len(f))
		for i, c := range f {
			id, ok := index[c]
			if !ok {
				id = uint32(len(outPos) / 3)
				index[c] = id
				outPos = append(outPos, positions[3*c.v:3*c.v+3]...)
				if hasVT {
					if c.vt >= 0 {
						outUV = append(outUV, texcoords[2*c.vt:2*c.vt+2]...)
					} else {
						outUV = append(outUV, 0, 0)
					}
				}
				if hasVN {
					if c.vn >= 0 {
						outN = append(outN, normals[3*c.vn:3*c.vn+3]...)
					} else {
						outN = append(outN, 0, 0, 0)
					}
				}
			}
			idx[i] = id
		}
		outFaces[fi] = idx
	}

	m := mesh.New(outPos, outFaces)
	if hasVT {
		if err := m.AddAttribute(mesh.NewFloat(OBJTexcoordName, mesh.KindTexcoord, 2, mesh.PerVertex, outUV)); err != nil {
			return nil, err
		}
	}
	if hasVN {
		if err := m.AddAttribute(mesh.NewFloat(OBJNormalName, mesh.KindNormal, 3, mesh.PerVertex, outN)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// objFloats parses at least n numbers; extra components (w, vertex colors) are dropped.
func objFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		if n == 2 && len(fields) == 1 {
			fields = append(fields, "0")
		} else {
			return nil, fmt.Errorf("%w: want %d values, got %d", ErrInvalidOBJNumber, n, len(fields))
		}
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOBJNumber, fields[i])
		}
		out[i] = float32(v)
	}
	return out, nil
}

func parseOBJCorner(ref string, nv, nvt, nvn int) (objCorner, error) {
	c := objCorner{v: -1, vt: -1, vn: -1}
	parts := strings.Split(ref, "/")
	if len(parts) > 3 || parts[0] == "" {
		return c, fmt.Errorf("%w: %q", ErrInvalidOBJIndex, ref)
	}
	counts := [3]int{nv, nvt, nvn}
	out := [3]*int{&c.v, &c.vt, &c.vn}
	for i, p := range parts {
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n == 0 {
			return c, fmt.Errorf("%w: %q", ErrInvalidOBJIndex, ref)
		}
		if n < 0 {
			n = counts[i] + n
		} else {
			n--
		}
		if n < 0 || n >= counts[i] {
			return c, fmt.Errorf("%w: %q out of range", ErrInvalidOBJIndex, ref)
		}
		*out[i] = n
	}
	return c, nil
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*mesh.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IOError{Op: "read", Path: path, Err: err}
	}
	return ParseOBJ(data)
}
