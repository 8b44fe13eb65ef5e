// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package qrmatrix builds QR module matrices and rasterises them with crisp
// module edges. It is shared by QR design elements and handoff codes.
package qrmatrix

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/gogpu/ggar/design"
)

// ErrEmptyContent is returned when encoding an empty string.
var ErrEmptyContent = errors.New("qrmatrix: empty content")

// Matrix is a square grid of QR modules without a quiet zone.
// true is a dark module.
type Matrix struct {
	modules [][]bool
}

// RecoveryLevel maps a design level to the encoder's level. The empty level
// maps to Medium.
func RecoveryLevel(l design.Level) (qrcode.RecoveryLevel, error) {
	switch l {
	case design.LevelL:
		return qrcode.Low, nil
	case "", design.LevelM:
		return qrcode.Medium, nil
	case design.LevelQ:
		return qrcode.High, nil
	case design.LevelH:
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("qrmatrix: unknown error-correction level %q", l)
	}
}

// Encode builds the module matrix for content.
func Encode(content string, level design.Level) (*Matrix, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	rl, err := RecoveryLevel(level)
	if err != nil {
		return nil, err
	}
	q, err := qrcode.New(content, rl)
	if err != nil {
		return nil, fmt.Errorf("qrmatrix: encode: %w", err)
	}
	q.DisableBorder = true
	return &Matrix{modules: q.Bitmap()}, nil
}

// Modules returns the number of modules per side.
func (m *Matrix) Modules() int {
	return len(m.modules)
}

// Dark reports whether the module at (col, row) is dark.
func (m *Matrix) Dark(col, row int) bool {
	if row < 0 || row >= len(m.modules) || col < 0 || col >= len(m.modules[row]) {
		return false
	}
	return m.modules[row][col]
}

// Render rasterises the matrix into a size×size image with margin light
// modules of quiet zone on every side. Each pixel takes the colour of the
// module it falls in, so module edges are never anti-aliased.
func (m *Matrix) Render(size, margin int, dark, light color.Color) *image.NRGBA {
	if size <= 0 {
		size = 1
	}
	if margin < 0 {
		margin = 0
	}
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	total := m.Modules() + 2*margin
	d := color.NRGBAModel.Convert(dark).(color.NRGBA)
	l := color.NRGBAModel.Convert(light).(color.NRGBA)

	// Per-axis pixel -> module lookup, shared by rows and columns.
	lut := make([]int, size)
	for p := range lut {
		lut[p] = p*total/size - margin
	}
	for y := 0; y < size; y++ {
		row := lut[y]
		for x := 0; x < size; x++ {
			c := l
			if m.Dark(lut[x], row) {
				c = d
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
