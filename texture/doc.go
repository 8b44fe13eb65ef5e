// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package texture substitutes a composed design bitmap into the material
// slots of a 3D scene that represent the design surface.
//
// Slots are located by a Marker, which matches either the material name or
// a substring of the current texture source. Apply uploads the bitmap once,
// then swaps it into every matching slot. Each swap keeps the slot's
// previous UV transform and source, so the design stays aligned on the
// model and the slot still matches the marker afterwards. Only pixel
// content changes.
//
// A Material publishes its texture through an atomic pointer: a renderer
// reading Material.Texture always sees either the previous or the new
// texture, never a partially prepared one. Previous textures are released
// once no slot references them.
//
// Example:
//
//	adapter := texture.NewAdapter(texture.Marker{Name: "DesignSurface"}, texture.NewMemoryUploader())
//	if err := adapter.Apply(ctx, bmp, scene); err != nil {
//	    // errors.Is(err, texture.ErrMaterialMarkerNotFound) is a binding bug
//	}
package texture
