package design

import (
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDimension bounds canvas and frame edges in pixels.
const DefaultMaxDimension = 8192

// Limits bounds the raster sizes a snapshot may ask for. A zero field
// means the default.
type Limits struct {
	// MaxCanvas bounds canvas width and height.
	MaxCanvas int
	// MaxFrame bounds element frame width, height and font size.
	MaxFrame float64
}

// DefaultLimits returns the limits Validate applies.
func DefaultLimits() Limits {
	return Limits{MaxCanvas: DefaultMaxDimension, MaxFrame: DefaultMaxDimension}
}

func (l Limits) withDefaults() Limits {
	if l.MaxCanvas <= 0 {
		l.MaxCanvas = DefaultMaxDimension
	}
	if l.MaxFrame <= 0 {
		l.MaxFrame = DefaultMaxDimension
	}
	return l
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NormalizeText rewrites text content to Unicode NFC in place, so that
// canonically equivalent strings shape and compare alike.
func (s *Snapshot) NormalizeText() {
	for i := range s.Texts {
		s.Texts[i].Content = norm.NFC.String(s.Texts[i].Content)
	}
}

func checkMax(what string, v, max float64) error {
	if v > max {
		return fmt.Errorf("%s %g exceeds limit %g", what, v, max)
	}
	return nil
}
