// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"image"
	"sync/atomic"
)

// Vec2 is a 2D vector in UV space.
type Vec2 struct {
	X, Y float64
}

// UVTransform is the texture-space placement a material applies to its
// map. Rotation is in radians about Center.
type UVTransform struct {
	Offset   Vec2
	Repeat   Vec2
	Center   Vec2
	Rotation float64
}

// DefaultUV returns the identity transform.
func DefaultUV() UVTransform {
	return UVTransform{Repeat: Vec2{1, 1}}
}

// Texture is an uploaded image bound to one material. The fields are fixed
// once the texture is published; a swap publishes a new Texture.
type Texture struct {
	// Source names where the pixels came from. Markers may match on it.
	Source string
	UV     UVTransform
	// Desc is the intended texture and sampler state. Renderers whose
	// creator is not a DescriptorCreator must apply it at bind time.
	Desc Descriptor

	res *resource
}

// NewTexture returns a texture that is not backed by an upload, such as the
// placeholder a model ships with.
func NewTexture(source string, uv UVTransform) *Texture {
	return &Texture{Source: source, UV: uv}
}

// Handle returns the uploader's handle, or nil for placeholders.
func (t *Texture) Handle() any {
	if t.res == nil {
		return nil
	}
	return t.res.handle
}

// Pixels returns the CPU-side bitmap when the uploader keeps one, as
// MemoryUploader does.
func (t *Texture) Pixels() *image.RGBA {
	img, _ := t.Handle().(*image.RGBA)
	return img
}

// Released reports whether the backing upload has been released.
func (t *Texture) Released() bool {
	return t.res != nil && t.res.released.Load()
}

// resource is one upload shared by every texture swapped in by a single
// Apply. It is released when the last referencing texture is replaced.
type resource struct {
	handle   any
	refs     atomic.Int32
	released atomic.Bool
	free     func(handle any)
}

func (r *resource) retain() {
	r.refs.Add(1)
}

func (r *resource) release() {
	if r.refs.Add(-1) > 0 {
		return
	}
	if r.released.CompareAndSwap(false, true) && r.free != nil {
		r.free(r.handle)
	}
}

// Material is a named surface of a node.
type Material struct {
	Name string

	tex atomic.Pointer[Texture]
}

// NewMaterial returns a material showing tex. tex may be nil.
func NewMaterial(name string, tex *Texture) *Material {
	m := &Material{Name: name}
	if tex != nil {
		m.tex.Store(tex)
	}
	return m
}

// Texture returns the current texture. It is safe to call concurrently
// with Apply.
func (m *Material) Texture() *Texture {
	return m.tex.Load()
}

// swap publishes next and returns the texture it replaced.
func (m *Material) swap(next *Texture) *Texture {
	return m.tex.Swap(next)
}

// Node is an element of the scene tree.
type Node struct {
	Name      string
	Materials []*Material
	Children  []*Node
}

// Scene is the root of a model's node tree.
type Scene struct {
	Root *Node
}

// Walk calls fn for every node in depth-first order, parents first.
func (s *Scene) Walk(fn func(*Node)) {
	if s == nil || s.Root == nil {
		return
	}
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s.Root)
}
