package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshseq/internal/animation"
	"github.com/Faultbox/meshseq/internal/config"
	"github.com/Faultbox/meshseq/internal/gltfbuild"
	"github.com/Faultbox/meshseq/internal/schema"
	"github.com/Faultbox/meshseq/pkg/formats"
	"github.com/Faultbox/meshseq/pkg/frames"
)

// FromConfig translates a validated configuration into pipeline options.
func FromConfig(cfg *config.Config) (Options, error) {
	ref, err := gltfbuild.ParseReference(cfg.Sparse.Reference)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	rules, err := rulesFrom(cfg.Attributes)
	if err != nil {
		return Options{}, err
	}
	images, err := imagesFrom(cfg.Textures.Images)
	if err != nil {
		return Options{}, err
	}

	mode := gltfbuild.TextureEmbed
	if cfg.TextureMode() == "reference" {
		mode = gltfbuild.TextureReference
	}
	buffer := gltfbuild.BufferExternal
	if cfg.Output.Buffer == "embedded" {
		buffer = gltfbuild.BufferEmbedded
	}

	uriBase := ""
	if !strings.HasPrefix(cfg.Output.Path, "s3://") {
		uriBase = filepath.Dir(cfg.Output.Path)
	}

	return Options{
		Pattern: cfg.Input.Pattern,
		Frames: frames.Options{
			Root:     cfg.Input.Root,
			Static:   cfg.Input.Static,
			Step:     cfg.Input.Step,
			FPS:      cfg.FrameRate(),
			TimeStep: cfg.Time.TimeStep,
		},
		Parse:   formats.Options{InvertTets: cfg.Input.InvertTets},
		Reverse: cfg.Input.Reverse,
		Workers: cfg.Input.Workers,
		Rules:   rules,
		Animation: animation.Options{
			Normals:  cfg.Animation.Normals,
			Tangents: cfg.Animation.Tangents,
		},
		Assembly: gltfbuild.Options{
			Sparse:      gltfbuild.SparseOptions{Threshold: cfg.Sparse.Threshold, Reference: ref},
			Materials:   materialsFrom(cfg.Materials),
			Images:      images,
			TextureRoot: cfg.Textures.Root,
			TextureMode: mode,
			URIBase:     uriBase,
		},
		Buffer: buffer,
	}, nil
}

func rulesFrom(a config.AttributesConfig) (schema.Rules, error) {
	rules := schema.Rules{
		MaterialAttribute: a.MaterialAttribute,
		Texcoords:         a.Texcoords,
		Colors:            a.Colors,
	}
	for _, c := range a.Custom {
		t, err := schema.ParseCustomType(c.Type)
		if err != nil {
			return schema.Rules{}, fmt.Errorf("%w: attribute %q: %v", config.ErrInvalid, c.Name, err)
		}
		rules.Custom = append(rules.Custom, schema.Custom{Name: c.Name, Type: t})
	}
	return rules, nil
}

func imagesFrom(images []config.ImageConfig) ([]gltfbuild.ImageSpec, error) {
	out := make([]gltfbuild.ImageSpec, len(images))
	for i, img := range images {
		if _, err := gltfbuild.ParseWrap(img.WrapS); err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", config.ErrInvalid, i, err)
		}
		if _, err := gltfbuild.ParseWrap(img.WrapT); err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", config.ErrInvalid, i, err)
		}
		if _, err := gltfbuild.ParseMagFilter(img.MagFilter); err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", config.ErrInvalid, i, err)
		}
		if _, err := gltfbuild.ParseMinFilter(img.MinFilter); err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", config.ErrInvalid, i, err)
		}
		out[i] = gltfbuild.ImageSpec{
			Path:      img.Image,
			WrapS:     img.WrapS,
			WrapT:     img.WrapT,
			MagFilter: img.MagFilter,
			MinFilter: img.MinFilter,
		}
	}
	return out, nil
}

func textureRef(ref *config.TextureRefConfig) *gltfbuild.TextureRef {
	if ref == nil {
		return nil
	}
	return &gltfbuild.TextureRef{Image: ref.Index, Texcoord: ref.Texcoord}
}

func materialsFrom(materials []config.MaterialConfig) []gltfbuild.MaterialSpec {
	out := make([]gltfbuild.MaterialSpec, len(materials))
	for i, m := range materials {
		spec := gltfbuild.DefaultMaterial()
		spec.ID = m.ID
		if m.Name != "" {
			spec.Name = m.Name
		}
		if m.BaseColor != nil {
			spec.BaseColor = *m.BaseColor
		}
		if m.Metallic != nil {
			spec.Metallic = *m.Metallic
		}
		if m.Roughness != nil {
			spec.Roughness = *m.Roughness
		}
		if m.Emissive != nil {
			spec.Emissive = *m.Emissive
		}
		spec.BaseTexture = textureRef(m.BaseTexture)
		spec.MetallicRoughnessTexture = textureRef(m.MetallicRoughnessTexture)
		spec.EmissiveTexture = textureRef(m.EmissiveTexture)
		out[i] = spec
	}
	return out
}
