// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"math/bits"

	"github.com/gogpu/gputypes"
)

// ColorSpace tags how texel values are to be interpreted.
type ColorSpace int

const (
	// ColorSpaceSRGB marks display-referred content. Composed designs are
	// always sRGB.
	ColorSpaceSRGB ColorSpace = iota
	// ColorSpaceLinear marks scene-referred content.
	ColorSpaceLinear
)

// String returns the colour space name.
func (c ColorSpace) String() string {
	if c == ColorSpaceLinear {
		return "linear"
	}
	return "srgb"
}

// Descriptor describes the GPU texture and sampler state for a design
// bitmap.
type Descriptor struct {
	Label         string
	Size          gputypes.Extent3D
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
	MipLevelCount uint32

	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode

	// FlipY is always false: the bitmap is top-down and so is the UV space of
	// the design surface.
	FlipY      bool
	ColorSpace ColorSpace
}

// DescriptorFor returns the descriptor used for a composed bitmap of the
// given size: sRGB RGBA8, full mip chain, linear filtering, clamped edges.
func DescriptorFor(label string, width, height int) Descriptor {
	return Descriptor{
		Label: label,
		Size: gputypes.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8UnormSrgb,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		MipLevelCount: MipLevels(width, height),
		MagFilter:     gputypes.FilterModeLinear,
		MinFilter:     gputypes.FilterModeLinear,
		MipmapFilter:  gputypes.FilterModeLinear,
		AddressModeU:  gputypes.AddressModeClampToEdge,
		AddressModeV:  gputypes.AddressModeClampToEdge,
		FlipY:         false,
		ColorSpace:    ColorSpaceSRGB,
	}
}

// MipLevels returns the length of a full mip chain for a width x height
// texture: floor(log2(max(width, height))) + 1. Non-positive sizes yield 1.
func MipLevels(width, height int) uint32 {
	m := max(width, height)
	if m <= 1 {
		return 1
	}
	return uint32(bits.Len(uint(m)))
}
