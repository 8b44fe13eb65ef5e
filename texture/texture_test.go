// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/design"
)

// testScene returns a model with a design surface, a glass material that
// must never change, and a label material found by source.
func testScene() (*Scene, *Material, *Material, *Material) {
	surface := NewMaterial("DesignSurface", NewTexture("placeholder.png", UVTransform{
		Offset:   Vec2{0.1, 0.2},
		Repeat:   Vec2{2, 1},
		Center:   Vec2{0.5, 0.5},
		Rotation: 0.25,
	}))
	glass := NewMaterial("Glass", NewTexture("glass_normal.png", DefaultUV()))
	label := NewMaterial("Label", NewTexture("models/cup/design_label.png", DefaultUV()))
	scene := &Scene{Root: &Node{
		Name: "root",
		Children: []*Node{
			{Name: "cup", Materials: []*Material{surface, glass}},
			{Name: "sleeve", Materials: []*Material{label}},
		},
	}}
	return scene, surface, glass, label
}

func bitmap(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func TestApplyPreservesUVTransform(t *testing.T) {
	scene, surface, _, _ := testScene()
	before := surface.Texture().UV

	a := NewAdapter(Marker{Name: "DesignSurface"}, nil)
	if err := a.Apply(context.Background(), bitmap(688, 280), scene); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := surface.Texture()
	if got.UV != before {
		t.Errorf("UV after Apply = %+v, want %+v", got.UV, before)
	}
	if got.Source != "placeholder.png" {
		t.Errorf("Source = %q, want the previous source", got.Source)
	}
	if got.Pixels() == nil || got.Pixels().Rect.Dx() != 688 {
		t.Errorf("Pixels() = %v, want the uploaded bitmap", got.Pixels())
	}
}

func TestApplyLeavesOtherMaterials(t *testing.T) {
	scene, _, glass, label := testScene()
	glassTex, labelTex := glass.Texture(), label.Texture()

	a := NewAdapter(Marker{Name: "DesignSurface"}, nil)
	if err := a.Apply(context.Background(), bitmap(4, 4), scene); err != nil {
		t.Fatal(err)
	}
	if glass.Texture() != glassTex {
		t.Error("unrelated Glass material changed")
	}
	if label.Texture() != labelTex {
		t.Error("Label material changed without matching the marker")
	}
}

func TestApplyBySourceMarker(t *testing.T) {
	scene, surface, _, label := testScene()
	surfaceTex := surface.Texture()
	a := NewAdapter(Marker{SourceContains: "design_label"}, nil)

	for i := 0; i < 2; i++ {
		if err := a.Apply(context.Background(), bitmap(4, 4), scene); err != nil {
			t.Fatalf("Apply() #%d error = %v", i, err)
		}
	}
	if label.Texture().Handle() == nil {
		t.Error("label slot was not swapped")
	}
	if surface.Texture() != surfaceTex {
		t.Error("surface changed under a source marker it does not match")
	}
}

func TestApplyMarkerNotFound(t *testing.T) {
	scene, surface, glass, label := testScene()
	before := []*Texture{surface.Texture(), glass.Texture(), label.Texture()}
	up := NewMemoryUploader()

	a := NewAdapter(Marker{Name: "Missing"}, up)
	err := a.Apply(context.Background(), bitmap(4, 4), scene)
	if !errors.Is(err, ErrMaterialMarkerNotFound) {
		t.Fatalf("Apply() error = %v, want ErrMaterialMarkerNotFound", err)
	}
	for i, m := range []*Material{surface, glass, label} {
		if m.Texture() != before[i] {
			t.Errorf("material %s changed", m.Name)
		}
	}
	if n, _ := up.Stats(); n != 0 {
		t.Errorf("uploads = %d, want none before the marker is found", n)
	}
}

func TestApplyEmptyMarker(t *testing.T) {
	scene, _, _, _ := testScene()
	err := NewAdapter(Marker{}, nil).Apply(context.Background(), bitmap(1, 1), scene)
	if !errors.Is(err, ErrMaterialMarkerNotFound) {
		t.Errorf("Apply() error = %v, want ErrMaterialMarkerNotFound", err)
	}
}

func TestApplyReleasesPrevious(t *testing.T) {
	scene, surface, _, _ := testScene()
	up := NewMemoryUploader()
	a := NewAdapter(Marker{Name: "DesignSurface"}, up)
	ctx := context.Background()

	if err := a.Apply(ctx, bitmap(4, 4), scene); err != nil {
		t.Fatal(err)
	}
	first := surface.Texture()
	if err := a.Apply(ctx, bitmap(8, 8), scene); err != nil {
		t.Fatal(err)
	}
	if !first.Released() {
		t.Error("previous texture not released after swap")
	}
	if surface.Texture().Released() {
		t.Error("current texture released")
	}
	if n := up.Live(); n != 1 {
		t.Errorf("live uploads = %d, want exactly one current texture", n)
	}
	if uploads, releases := up.Stats(); uploads != 2 || releases != 1 {
		t.Errorf("Stats() = %d uploads, %d releases, want 2, 1", uploads, releases)
	}
}

func TestApplySharedUploadReleasedOnce(t *testing.T) {
	// Two slots share a single upload; it is freed after both move on.
	a1 := NewMaterial("DesignSurface", nil)
	a2 := NewMaterial("DesignSurface", nil)
	scene := &Scene{Root: &Node{Materials: []*Material{a1, a2}}}
	up := NewMemoryUploader()
	a := NewAdapter(Marker{Name: "DesignSurface"}, up)
	ctx := context.Background()

	if err := a.Apply(ctx, bitmap(2, 2), scene); err != nil {
		t.Fatal(err)
	}
	if a1.Texture().Handle() != a2.Texture().Handle() {
		t.Fatal("slots do not share the upload")
	}
	if a1.Texture().UV != DefaultUV() {
		t.Errorf("UV for a slot without texture = %+v, want identity", a1.Texture().UV)
	}
	if err := a.Apply(ctx, bitmap(2, 2), scene); err != nil {
		t.Fatal(err)
	}
	if uploads, releases := up.Stats(); uploads != 2 || releases != 1 {
		t.Errorf("Stats() = %d uploads, %d releases, want 2, 1", uploads, releases)
	}
}

type failingUploader struct{ MemoryUploader }

func (f *failingUploader) Upload(context.Context, *image.RGBA, Descriptor) (any, error) {
	return nil, errors.New("device lost")
}

func TestApplyUploadFailureKeepsScene(t *testing.T) {
	scene, surface, _, _ := testScene()
	before := surface.Texture()
	err := NewAdapter(Marker{Name: "DesignSurface"}, &failingUploader{}).Apply(context.Background(), bitmap(2, 2), scene)
	if err == nil {
		t.Fatal("Apply() expected upload error")
	}
	if surface.Texture() != before {
		t.Error("surface changed after failed upload")
	}
}

func TestApplyEmptyBitmap(t *testing.T) {
	scene, _, _, _ := testScene()
	a := NewAdapter(Marker{Name: "DesignSurface"}, nil)
	if err := a.Apply(context.Background(), nil, scene); err == nil {
		t.Error("Apply(nil) expected error")
	}
	if err := a.Apply(context.Background(), image.NewRGBA(image.Rectangle{}), scene); err == nil {
		t.Error("Apply(empty) expected error")
	}
}

func TestDescriptorFor(t *testing.T) {
	d := DescriptorFor("x", 688, 280)
	if d.FlipY {
		t.Error("FlipY = true, want false")
	}
	if d.ColorSpace != ColorSpaceSRGB {
		t.Errorf("ColorSpace = %v, want srgb", d.ColorSpace)
	}
	if d.Format != gputypes.TextureFormatRGBA8UnormSrgb {
		t.Errorf("Format = %v, want RGBA8UnormSrgb", d.Format)
	}
	if d.MipLevelCount != 10 {
		t.Errorf("MipLevelCount = %d, want 10", d.MipLevelCount)
	}
	if d.MinFilter != gputypes.FilterModeLinear || d.MagFilter != gputypes.FilterModeLinear || d.MipmapFilter != gputypes.FilterModeLinear {
		t.Error("filters are not linear")
	}
	if d.Size.Width != 688 || d.Size.Height != 280 || d.Size.DepthOrArrayLayers != 1 {
		t.Errorf("Size = %+v", d.Size)
	}
}

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h int
		want uint32
	}{
		{0, 0, 1},
		{1, 1, 1},
		{2, 1, 2},
		{256, 256, 9},
		{257, 3, 9},
		{1024, 512, 11},
	}
	for _, tt := range tests {
		if got := MipLevels(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestFindDedupsSharedMaterial(t *testing.T) {
	m := NewMaterial("DesignSurface", nil)
	scene := &Scene{Root: &Node{Children: []*Node{
		{Materials: []*Material{m}},
		{Materials: []*Material{m}},
	}}}
	slots, err := Find(scene, Marker{Name: "DesignSurface"})
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Errorf("Find() = %d slots, want 1", len(slots))
	}
}

func TestConcurrentReadsSeeCompleteTexture(t *testing.T) {
	scene, surface, _, _ := testScene()
	a := NewAdapter(Marker{Name: "DesignSurface"}, nil)
	want := surface.Texture().UV

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if tex := surface.Texture(); tex == nil || tex.UV != want {
				t.Error("renderer observed an incomplete texture")
				return
			}
		}
	}()
	for i := 0; i < 50; i++ {
		if err := a.Apply(context.Background(), bitmap(4, 4), scene); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSinkWithCoalescer(t *testing.T) {
	scene, surface, _, _ := testScene()
	a := NewAdapter(Marker{Name: "DesignSurface"}, nil)
	c := compose.NewCoalescer(compose.New().Compose, a.Sink(scene))

	s := design.New("design_1", 0, design.DefaultCanvas())
	s.AddGraphic(design.Graphic{Frame: design.At(10, 10, 100, 50), Shape: design.ShapeRect, Fill: "#FF8800"})
	applied, err := c.Do(context.Background(), s)
	if err != nil || !applied {
		t.Fatalf("Do() = %v, %v", applied, err)
	}
	if px := surface.Texture().Pixels(); px == nil || px.Rect.Dx() != s.Canvas.Width {
		t.Errorf("surface pixels = %v, want the composed design", px)
	}
}

type mockGPUTexture struct {
	w, h          int
	premultiplied bool
	destroyed     bool
}

func (t *mockGPUTexture) Width() int              { return t.w }
func (t *mockGPUTexture) Height() int             { return t.h }
func (t *mockGPUTexture) SetPremultiplied(v bool) { t.premultiplied = v }
func (t *mockGPUTexture) Destroy()                { t.destroyed = true }

type mockCreator struct {
	calls int
}

func (c *mockCreator) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	c.calls++
	if len(data) != width*height*4 {
		return nil, errors.New("bad data size")
	}
	return &mockGPUTexture{w: width, h: height}, nil
}

type mockDescriptorCreator struct {
	mockCreator
	got Descriptor
}

func (c *mockDescriptorCreator) NewTextureFromDescriptor(desc Descriptor, data []byte) (gpucontext.Texture, error) {
	c.got = desc
	return &mockGPUTexture{w: int(desc.Size.Width), h: int(desc.Size.Height)}, nil
}

type mockDrawer struct {
	creator gpucontext.TextureCreator
}

func (d *mockDrawer) DrawTexture(gpucontext.Texture, float32, float32) error { return nil }
func (d *mockDrawer) TextureCreator() gpucontext.TextureCreator              { return d.creator }

func TestGPUUploaderRGBA(t *testing.T) {
	c := &mockCreator{}
	u := &GPUUploader{Drawer: &mockDrawer{creator: c}}
	bmp := image.NewRGBA(image.Rect(0, 0, 8, 4))
	h, err := u.Upload(context.Background(), bmp, DescriptorFor("t", 8, 4))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	tex := h.(*mockGPUTexture)
	if c.calls != 1 || tex.w != 8 || tex.h != 4 {
		t.Errorf("Upload() made %d calls for %dx%d, want 1 for 8x4", c.calls, tex.w, tex.h)
	}
	if !tex.premultiplied {
		t.Error("texture not marked premultiplied")
	}
	u.Release(h)
	if !tex.destroyed {
		t.Error("Release() did not destroy the texture")
	}
}

func TestGPUUploaderPrefersDescriptor(t *testing.T) {
	c := &mockDescriptorCreator{}
	u := &GPUUploader{Drawer: &mockDrawer{creator: c}}
	desc := DescriptorFor("surface", 16, 8)
	if _, err := u.Upload(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)), desc); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if c.calls != 0 {
		t.Errorf("NewTextureFromRGBA called %d times, want the descriptor path", c.calls)
	}
	if c.got != desc {
		t.Errorf("creator got %+v, want %+v", c.got, desc)
	}
	if c.got.Format != gputypes.TextureFormatRGBA8UnormSrgb {
		t.Errorf("format = %v, want sRGB", c.got.Format)
	}
}

func TestGPUUploaderNoCreator(t *testing.T) {
	u := &GPUUploader{Drawer: &mockDrawer{}}
	_, err := u.Upload(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)), DescriptorFor("t", 1, 1))
	if !errors.Is(err, ErrNoTextureCreator) {
		t.Errorf("Upload() error = %v, want ErrNoTextureCreator", err)
	}
}
