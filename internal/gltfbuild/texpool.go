package gltfbuild

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/pkg/texture"
)

// TextureMode selects how images reach the document.
type TextureMode uint8

// Texture modes.
const (
	TextureEmbed     TextureMode = iota // image bytes in the binary buffer
	TextureReference                    // relative URI next to the output
)

// ImageSpec is one entry of the configured image table.
type ImageSpec struct {
	Path      string
	WrapS     string
	WrapT     string
	MagFilter string
	MinFilter string
}

// ParseWrap maps a wrap mode name to its glTF value.
func ParseWrap(s string) (gltf.WrappingMode, error) {
	switch s {
	case "", "repeat":
		return gltf.WrapRepeat, nil
	case "clamp_to_edge":
		return gltf.WrapClampToEdge, nil
	case "mirrored_repeat":
		return gltf.WrapMirroredRepeat, nil
	}
	return 0, fmt.Errorf("unknown wrap mode %q", s)
}

// ParseMagFilter maps a magnification filter name to its glTF value.
func ParseMagFilter(s string) (gltf.MagFilter, error) {
	switch s {
	case "":
		return gltf.MagUndefined, nil
	case "nearest":
		return gltf.MagNearest, nil
	case "linear":
		return gltf.MagLinear, nil
	}
	return 0, fmt.Errorf("unknown mag filter %q", s)
}

// ParseMinFilter maps a minification filter name to its glTF value.
func ParseMinFilter(s string) (gltf.MinFilter, error) {
	switch s {
	case "":
		return gltf.MinUndefined, nil
	case "nearest":
		return gltf.MinNearest, nil
	case "linear":
		return gltf.MinLinear, nil
	case "nearest_mipmap_nearest":
		return gltf.MinNearestMipMapNearest, nil
	case "linear_mipmap_nearest":
		return gltf.MinLinearMipMapNearest, nil
	case "nearest_mipmap_linear":
		return gltf.MinNearestMipMapLinear, nil
	case "linear_mipmap_linear":
		return gltf.MinLinearMipMapLinear, nil
	}
	return 0, fmt.Errorf("unknown min filter %q", s)
}

// TexturePool creates glTF images, samplers and textures on demand and
// shares identical ones. Images are keyed by content hash.
type TexturePool struct {
	doc     *gltf.Document
	packer  *Packer
	specs   []ImageSpec
	root    string
	mode    TextureMode
	uriBase string

	textures map[int]uint32
	images   map[uint64]uint32
	samplers map[samplerKey]uint32
	pairs    map[[2]uint32]uint32
}

// NewTexturePool returns a pool resolving image paths against root.
// Referenced images get URIs relative to uriBase.
func NewTexturePool(doc *gltf.Document, packer *Packer, specs []ImageSpec, root string, mode TextureMode, uriBase string) *TexturePool {
	return &TexturePool{
		doc:      doc,
		packer:   packer,
		specs:    specs,
		root:     root,
		mode:     mode,
		uriBase:  uriBase,
		textures: make(map[int]uint32),
		images:   make(map[uint64]uint32),
		samplers: make(map[samplerKey]uint32),
		pairs:    make(map[[2]uint32]uint32),
	}
}

// Texture returns the document texture for image table entry i.
func (p *TexturePool) Texture(i int) (uint32, error) {
	if idx, ok := p.textures[i]; ok {
		return idx, nil
	}
	if i < 0 || i >= len(p.specs) {
		return 0, &errs.AssemblyError{What: "image table", Index: i, Len: len(p.specs)}
	}
	spec := p.specs[i]
	img, err := p.image(spec.Path)
	if err != nil {
		return 0, err
	}
	smp, err := p.sampler(spec)
	if err != nil {
		return 0, &errs.IOError{Op: "texture", Path: spec.Path, Err: err}
	}
	key := [2]uint32{img, smp}
	idx, ok := p.pairs[key]
	if !ok {
		p.doc.Textures = append(p.doc.Textures, &gltf.Texture{Source: gltf.Index(img), Sampler: gltf.Index(smp)})
		idx = uint32(len(p.doc.Textures) - 1)
		p.pairs[key] = idx
	}
	p.textures[i] = idx
	return idx, nil
}

func (p *TexturePool) resolve(path string) string {
	if filepath.IsAbs(path) || p.root == "" {
		return path
	}
	return filepath.Join(p.root, path)
}

func (p *TexturePool) image(path string) (uint32, error) {
	full := p.resolve(path)
	img, err := texture.Load(full)
	if err != nil {
		return 0, &errs.IOError{Op: "read texture", Path: full, Err: err}
	}
	if idx, ok := p.images[img.Hash]; ok {
		logger.Debug("reusing identical texture image", zap.String("path", full))
		return idx, nil
	}

	gi := &gltf.Image{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	switch p.mode {
	case TextureReference:
		if err := img.Referable(); err != nil {
			return 0, &errs.IOError{Op: "reference texture", Path: full, Err: err}
		}
		gi.URI = p.uri(full)
	default:
		data, mime, err := img.Embeddable()
		if err != nil {
			return 0, &errs.IOError{Op: "embed texture", Path: full, Err: err}
		}
		gi.MimeType = mime
		gi.BufferView = gltf.Index(p.packer.view(data, 0, gltf.TargetNone))
	}
	p.doc.Images = append(p.doc.Images, gi)
	idx := uint32(len(p.doc.Images) - 1)
	p.images[img.Hash] = idx
	return idx, nil
}

func (p *TexturePool) uri(full string) string {
	if p.uriBase != "" {
		abs, err1 := filepath.Abs(full)
		base, err2 := filepath.Abs(p.uriBase)
		if err1 == nil && err2 == nil {
			if rel, err := filepath.Rel(base, abs); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(full)
}

type samplerKey struct {
	wrapS, wrapT gltf.WrappingMode
	mag          gltf.MagFilter
	min          gltf.MinFilter
}

func (p *TexturePool) sampler(spec ImageSpec) (uint32, error) {
	var (
		s   gltf.Sampler
		err error
	)
	if s.WrapS, err = ParseWrap(spec.WrapS); err != nil {
		return 0, err
	}
	if s.WrapT, err = ParseWrap(spec.WrapT); err != nil {
		return 0, err
	}
	if s.MagFilter, err = ParseMagFilter(spec.MagFilter); err != nil {
		return 0, err
	}
	if s.MinFilter, err = ParseMinFilter(spec.MinFilter); err != nil {
		return 0, err
	}
	key := samplerKey{s.WrapS, s.WrapT, s.MagFilter, s.MinFilter}
	if idx, ok := p.samplers[key]; ok {
		return idx, nil
	}
	p.doc.Samplers = append(p.doc.Samplers, &s)
	idx := uint32(len(p.doc.Samplers) - 1)
	p.samplers[key] = idx
	return idx, nil
}
