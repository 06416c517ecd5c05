package gltfbuild

import (
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/meshseq/internal/errs"
)

// checker walks a document and records the first dangling index.
type checker struct {
	err error
}

func (c *checker) idx(what string, i uint32, n int) {
	if c.err == nil && int(i) >= n {
		c.err = &errs.AssemblyError{What: what, Index: int(i), Len: n}
	}
}

func (c *checker) ptr(what string, i *uint32, n int) {
	if i != nil {
		c.idx(what, *i, n)
	}
}

func (c *checker) texture(info *gltf.TextureInfo, n int) {
	if info != nil {
		c.idx("texture", info.Index, n)
	}
}

// Check verifies that every index in doc points at an existing element and
// that buffer views lie inside their buffers.
func Check(doc *gltf.Document) error {
	var c checker
	nAcc, nView, nBuf := len(doc.Accessors), len(doc.BufferViews), len(doc.Buffers)

	for _, bv := range doc.BufferViews {
		c.idx("buffer", bv.Buffer, nBuf)
		if c.err == nil && int(bv.ByteOffset+bv.ByteLength) > int(doc.Buffers[bv.Buffer].ByteLength) {
			c.err = &errs.AssemblyError{What: "buffer byte range", Index: int(bv.ByteOffset + bv.ByteLength), Len: int(doc.Buffers[bv.Buffer].ByteLength)}
		}
	}
	for _, a := range doc.Accessors {
		c.ptr("buffer view", a.BufferView, nView)
		if a.Sparse != nil {
			c.idx("sparse index view", a.Sparse.Indices.BufferView, nView)
			c.idx("sparse value view", a.Sparse.Values.BufferView, nView)
		}
	}
	for _, img := range doc.Images {
		c.ptr("image buffer view", img.BufferView, nView)
	}
	for _, t := range doc.Textures {
		c.ptr("image", t.Source, len(doc.Images))
		c.ptr("sampler", t.Sampler, len(doc.Samplers))
	}
	for _, m := range doc.Materials {
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			c.texture(pbr.BaseColorTexture, len(doc.Textures))
			c.texture(pbr.MetallicRoughnessTexture, len(doc.Textures))
		}
		c.texture(m.EmissiveTexture, len(doc.Textures))
	}
	for _, m := range doc.Meshes {
		for _, p := range m.Primitives {
			for _, i := range p.Attributes {
				c.idx("attribute accessor", i, nAcc)
			}
			c.ptr("index accessor", p.Indices, nAcc)
			c.ptr("material", p.Material, len(doc.Materials))
			for _, t := range p.Targets {
				for _, i := range t {
					c.idx("target accessor", i, nAcc)
				}
			}
			if c.err == nil && len(p.Targets) != len(m.Weights) {
				c.err = &errs.AssemblyError{What: "mesh weights", Index: len(m.Weights), Len: len(p.Targets)}
			}
		}
	}
	for _, n := range doc.Nodes {
		c.ptr("mesh", n.Mesh, len(doc.Meshes))
		for _, ch := range n.Children {
			c.idx("child node", ch, len(doc.Nodes))
		}
	}
	for _, s := range doc.Scenes {
		for _, n := range s.Nodes {
			c.idx("scene node", n, len(doc.Nodes))
		}
	}
	c.ptr("scene", doc.Scene, len(doc.Scenes))
	for _, an := range doc.Animations {
		for _, s := range an.Samplers {
			c.idx("sampler input", s.Input, nAcc)
			c.idx("sampler output", s.Output, nAcc)
		}
		for _, ch := range an.Channels {
			c.ptr("animation sampler", ch.Sampler, len(an.Samplers))
			c.ptr("channel node", ch.Target.Node, len(doc.Nodes))
		}
	}
	return c.err
}
