package gltfbuild

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/qmuntal/gltf"
)

// ErrUnknownOutput is returned for an output name that is neither .glb nor .gltf.
var ErrUnknownOutput = errors.New("output must end in .glb or .gltf")

// BufferMode selects where a .gltf document keeps its binary buffer.
type BufferMode uint8

// Buffer modes.
const (
	BufferExternal BufferMode = iota // sibling .bin file
	BufferEmbedded                   // base64 data URI
)

// File is one output artifact.
type File struct {
	Name string
	Data []byte
}

// withBufferURI returns a shallow copy of doc whose buffer has the given URI.
func withBufferURI(doc *gltf.Document, uri string) *gltf.Document {
	d := *doc
	if len(doc.Buffers) > 0 {
		b := *doc.Buffers[0]
		b.URI = uri
		d.Buffers = append([]*gltf.Buffer{&b}, doc.Buffers[1:]...)
	}
	return &d
}

// encode runs the library encoder into memory. Without a file system the
// encoder never writes external buffers itself.
func encode(doc *gltf.Document, asBinary bool) ([]byte, error) {
	var buf bytes.Buffer
	e := gltf.NewEncoder(&buf)
	e.AsBinary = asBinary
	if !asBinary {
		e.SetJSONIndent("", "  ")
	}
	if err := e.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeGLB serializes doc as a binary glTF container.
func EncodeGLB(doc *gltf.Document) ([]byte, error) {
	data, err := encode(withBufferURI(doc, ""), true)
	if err != nil {
		return nil, fmt.Errorf("encode glb: %w", err)
	}
	return data, nil
}

// EncodeGLTF serializes doc as JSON. In external mode the buffer is
// returned separately to be written as binName. In embedded mode the
// encoder turns the URI-less buffer into a data URI.
func EncodeGLTF(doc *gltf.Document, mode BufferMode, binName string) (js, bin []byte, err error) {
	uri := ""
	if len(doc.Buffers) > 0 && mode == BufferExternal {
		uri = binName
		bin = doc.Buffers[0].Data
	}
	js, err = encode(withBufferURI(doc, uri), false)
	if err != nil {
		return nil, nil, fmt.Errorf("encode gltf: %w", err)
	}
	return js, bin, nil
}

// Encode serializes doc for the output name, whose extension picks the
// container. The first file is the document itself.
func Encode(doc *gltf.Document, name string, mode BufferMode) ([]File, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".glb":
		data, err := EncodeGLB(doc)
		if err != nil {
			return nil, err
		}
		return []File{{Name: name, Data: data}}, nil
	case ".gltf":
		binName := strings.TrimSuffix(path.Base(name), path.Ext(name)) + ".bin"
		js, bin, err := EncodeGLTF(doc, mode, binName)
		if err != nil {
			return nil, err
		}
		files := []File{{Name: name, Data: js}}
		if bin != nil {
			files = append(files, File{Name: path.Join(path.Dir(name), binName), Data: bin})
		}
		return files, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
}
