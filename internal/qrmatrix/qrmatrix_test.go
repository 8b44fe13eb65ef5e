// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package qrmatrix

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gogpu/ggar/design"
)

func TestEncodeLevels(t *testing.T) {
	for _, l := range []design.Level{"", design.LevelL, design.LevelM, design.LevelQ, design.LevelH} {
		m, err := Encode("https://x/ar-view?designId=design_123&t=456", l)
		if err != nil {
			t.Fatalf("Encode(level %q) error = %v", l, err)
		}
		// Version 1 is 21 modules; every version adds 4.
		if n := m.Modules(); n < 21 || (n-21)%4 != 0 {
			t.Errorf("Encode(level %q).Modules() = %d, not a QR size", l, n)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Encode("", design.LevelM); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Encode(\"\") error = %v, want ErrEmptyContent", err)
	}
	if _, err := Encode("x", "Z"); err == nil {
		t.Error("Encode with unknown level: expected error")
	}
}

func TestRenderQuietZoneAndFinder(t *testing.T) {
	m, err := Encode("hello", design.LevelM)
	if err != nil {
		t.Fatal(err)
	}
	const margin = 2
	total := m.Modules() + 2*margin
	size := total * 10 // exact 10px modules
	img := m.Render(size, margin, color.Black, color.White)

	if b := img.Bounds(); b.Dx() != size || b.Dy() != size {
		t.Fatalf("Render bounds = %v, want %dx%d", b, size, size)
	}
	// Quiet zone is light.
	if got := img.NRGBAAt(5, 5); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("quiet zone pixel = %v, want white", got)
	}
	// The top-left finder pattern starts with a dark module.
	px := margin*10 + 5
	if got := img.NRGBAAt(px, px); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("finder pixel = %v, want black", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	m, err := Encode("same input", design.LevelH)
	if err != nil {
		t.Fatal(err)
	}
	a := m.Render(300, 2, color.Black, color.White)
	b := m.Render(300, 2, color.Black, color.White)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("Render is not deterministic at byte %d", i)
		}
	}
}
