// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
)

// Uploader moves a bitmap into renderer-owned texture memory.
//
// Upload returns only once the texture is fully decoded and usable, so the
// handle it returns can be shown immediately. Release frees a handle that
// no material references any more.
type Uploader interface {
	Upload(ctx context.Context, bmp *image.RGBA, desc Descriptor) (handle any, err error)
	Release(handle any)
}

// MemoryUploader keeps textures as CPU-side copies. It serves headless
// viewers and tests. MemoryUploader is safe for concurrent use.
type MemoryUploader struct {
	mu       sync.Mutex
	live     map[*image.RGBA]Descriptor
	uploads  int
	releases int
}

// NewMemoryUploader returns an empty MemoryUploader.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{live: make(map[*image.RGBA]Descriptor)}
}

// Upload implements Uploader. The handle is a private *image.RGBA copy.
func (u *MemoryUploader) Upload(ctx context.Context, bmp *image.RGBA, desc Descriptor) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := image.NewRGBA(image.Rect(0, 0, bmp.Rect.Dx(), bmp.Rect.Dy()))
	copy(cp.Pix, tightPix(bmp))
	u.mu.Lock()
	defer u.mu.Unlock()
	u.live[cp] = desc
	u.uploads++
	return cp, nil
}

// Release implements Uploader.
func (u *MemoryUploader) Release(handle any) {
	img, ok := handle.(*image.RGBA)
	if !ok {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.live[img]; ok {
		delete(u.live, img)
		u.releases++
	}
}

// Live returns the number of uploaded, unreleased textures.
func (u *MemoryUploader) Live() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.live)
}

// Stats returns the total upload and release counts.
func (u *MemoryUploader) Stats() (uploads, releases int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.uploads, u.releases
}

// ErrNoTextureCreator is returned when the draw context cannot create
// textures.
var ErrNoTextureCreator = errors.New("texture: draw context has no texture creator")

// textureDestroyer matches the Destroy method of GPU textures.
type textureDestroyer interface {
	Destroy()
}

// DescriptorCreator is implemented by texture creators that build a texture
// from a full Descriptor (format, mip chain, sampler state) rather than
// from size and pixels alone.
type DescriptorCreator interface {
	NewTextureFromDescriptor(desc Descriptor, data []byte) (gpucontext.Texture, error)
}

// GPUUploader creates real GPU textures through a gpucontext draw context.
//
// gpucontext.TextureCreator takes only a size and RGBA pixels, so when the
// creator does not also implement DescriptorCreator the sRGB format, mip
// chain and filters of the Descriptor are not applied at creation. The host
// renderer must then read them from Texture.Desc when it binds the texture.
//
// The pixels are premultiplied, and the texture is marked accordingly when
// it supports it. Destruction is deferred to Release, which the adapter
// calls only after the replacing texture is published.
type GPUUploader struct {
	Drawer gpucontext.TextureDrawer
}

// Upload implements Uploader.
func (u *GPUUploader) Upload(ctx context.Context, bmp *image.RGBA, desc Descriptor) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	creator := u.Drawer.TextureCreator()
	if creator == nil {
		return nil, ErrNoTextureCreator
	}
	var (
		tex gpucontext.Texture
		err error
	)
	if dc, ok := creator.(DescriptorCreator); ok {
		tex, err = dc.NewTextureFromDescriptor(desc, tightPix(bmp))
	} else {
		tex, err = creator.NewTextureFromRGBA(bmp.Rect.Dx(), bmp.Rect.Dy(), tightPix(bmp))
	}
	if err != nil {
		return nil, fmt.Errorf("texture: upload %s: %w", desc.Label, err)
	}
	if pt, ok := any(tex).(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	return tex, nil
}

// Release implements Uploader.
func (u *GPUUploader) Release(handle any) {
	if d, ok := handle.(textureDestroyer); ok {
		d.Destroy()
	}
}

// tightPix returns bmp's pixels without row padding or offset.
func tightPix(bmp *image.RGBA) []byte {
	w, h := bmp.Rect.Dx(), bmp.Rect.Dy()
	if bmp.Stride == 4*w && bmp.Rect.Min == (image.Point{}) {
		return bmp.Pix[:4*w*h]
	}
	out := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		off := bmp.PixOffset(bmp.Rect.Min.X, bmp.Rect.Min.Y+y)
		copy(out[y*4*w:], bmp.Pix[off:off+4*w])
	}
	return out
}
