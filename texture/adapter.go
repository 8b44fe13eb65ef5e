// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/compose"
)

// DefaultLabel is the descriptor label of design textures.
const DefaultLabel = "ggar_design_surface"

// Adapter swaps composed bitmaps into the design-surface slots of a scene.
// Apply calls are serialised; Adapter is safe for concurrent use.
type Adapter struct {
	marker   Marker
	uploader Uploader
	label    string
	tracer   trace.Tracer

	mu sync.Mutex
}

// NewAdapter returns an adapter for slots matching marker. A nil uploader
// means a new MemoryUploader.
func NewAdapter(marker Marker, uploader Uploader) *Adapter {
	if uploader == nil {
		uploader = NewMemoryUploader()
	}
	return &Adapter{
		marker:   marker,
		uploader: uploader,
		label:    DefaultLabel,
		tracer:   otel.Tracer("github.com/gogpu/ggar/texture"),
	}
}

// Marker returns the marker the adapter binds to.
func (a *Adapter) Marker() Marker {
	return a.marker
}

// Apply uploads bmp and publishes it in every slot of scene matching the
// adapter's marker.
//
// If no slot matches, Apply returns ErrMaterialMarkerNotFound before
// uploading anything and the scene is unchanged. If the upload fails the
// scene is unchanged as well.
func (a *Adapter) Apply(ctx context.Context, bmp *image.RGBA, scene *Scene) (err error) {
	if bmp == nil || bmp.Rect.Empty() {
		return errors.New("texture: empty bitmap")
	}
	ctx, span := a.tracer.Start(ctx, "texture.Apply", trace.WithAttributes(
		attribute.Int("texture.width", bmp.Rect.Dx()),
		attribute.Int("texture.height", bmp.Rect.Dy()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	slots, err := Find(scene, a.marker)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("texture.slots", len(slots)))

	desc := DescriptorFor(a.label, bmp.Rect.Dx(), bmp.Rect.Dy())
	handle, err := a.uploader.Upload(ctx, bmp, desc)
	if err != nil {
		return fmt.Errorf("texture: upload: %w", err)
	}
	res := &resource{handle: handle, free: a.uploader.Release}

	for _, slot := range slots {
		prev := slot.Material.Texture()
		next := &Texture{UV: DefaultUV(), Desc: desc, res: res}
		if prev != nil {
			next.Source = prev.Source
			next.UV = prev.UV
		}
		res.retain()
		if old := slot.Material.swap(next); old != nil && old.res != nil {
			old.res.release()
		}
	}

	ggar.Logger().Debug("texture: applied design texture",
		"slots", len(slots), "width", bmp.Rect.Dx(), "height", bmp.Rect.Dy(), "mips", desc.MipLevelCount)
	return nil
}

// Sink returns a compose.Sink that applies bitmaps to scene.
func (a *Adapter) Sink(scene *Scene) compose.Sink {
	return compose.SinkFunc(func(ctx context.Context, bmp *image.RGBA) error {
		return a.Apply(ctx, bmp, scene)
	})
}
