package design

import (
	"errors"
	"fmt"
)

// FormatVersion is the payload format written by this module.
const FormatVersion = "1.0"

// Default product surface.
const (
	DefaultCanvasWidth      = 688
	DefaultCanvasHeight     = 280
	DefaultCanvasBackground = "#FFFFFF"
)

// ErrInvalidSnapshot is wrapped by every Validate failure.
var ErrInvalidSnapshot = errors.New("design: invalid snapshot")

// Canvas is the raster surface a design is composed on.
type Canvas struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

// DefaultCanvas returns the default product surface.
func DefaultCanvas() Canvas {
	return Canvas{
		Width:      DefaultCanvasWidth,
		Height:     DefaultCanvasHeight,
		Background: DefaultCanvasBackground,
	}
}

func (c Canvas) validate(l Limits) error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Width > l.MaxCanvas || c.Height > l.MaxCanvas {
		return fmt.Errorf("canvas size %dx%d exceeds limit %d", c.Width, c.Height, l.MaxCanvas)
	}
	return validColor(c.Background, false)
}

// Snapshot is an immutable record of a design at handoff time. Within each
// category slice, index order is paint order.
//
// Once stored, a Snapshot must not be mutated; edits produce a new Snapshot
// with a new ID.
type Snapshot struct {
	Version   string    `json:"version"`
	ID        string    `json:"designId"`
	CreatedAt int64     `json:"createdAt"`
	Canvas    Canvas    `json:"canvas"`
	Texts     []Text    `json:"texts,omitempty"`
	Images    []Image   `json:"images,omitempty"`
	Graphics  []Graphic `json:"graphics,omitempty"`
	QRCodes   []QRCode  `json:"qrcodes,omitempty"`
}

// New returns an empty snapshot for the given canvas.
func New(id string, createdAt int64, canvas Canvas) *Snapshot {
	return &Snapshot{
		Version:   FormatVersion,
		ID:        id,
		CreatedAt: createdAt,
		Canvas:    canvas,
	}
}

// AddText appends a text element and returns s for chaining.
func (s *Snapshot) AddText(t Text) *Snapshot {
	s.Texts = append(s.Texts, t)
	return s
}

// AddImage appends an image element.
func (s *Snapshot) AddImage(i Image) *Snapshot {
	s.Images = append(s.Images, i)
	return s
}

// AddGraphic appends a graphic element.
func (s *Snapshot) AddGraphic(g Graphic) *Snapshot {
	s.Graphics = append(s.Graphics, g)
	return s
}

// AddQRCode appends a QR code element.
func (s *Snapshot) AddQRCode(q QRCode) *Snapshot {
	s.QRCodes = append(s.QRCodes, q)
	return s
}

// Len returns the total number of elements.
func (s *Snapshot) Len() int {
	return len(s.Texts) + len(s.Images) + len(s.Graphics) + len(s.QRCodes)
}

// Layers returns every element in paint order: all texts, then images,
// then graphics, then QR codes, each category in insertion order.
// The returned elements point into s.
func (s *Snapshot) Layers() []Element {
	out := make([]Element, 0, s.Len())
	for i := range s.Texts {
		out = append(out, &s.Texts[i])
	}
	for i := range s.Images {
		out = append(out, &s.Images[i])
	}
	for i := range s.Graphics {
		out = append(out, &s.Graphics[i])
	}
	for i := range s.QRCodes {
		out = append(out, &s.QRCodes[i])
	}
	return out
}

// ImageSources returns the distinct image sources in paint order.
func (s *Snapshot) ImageSources() []string {
	seen := make(map[string]struct{}, len(s.Images))
	var out []string
	for _, img := range s.Images {
		if _, ok := seen[img.Source]; ok {
			continue
		}
		seen[img.Source] = struct{}{}
		out = append(out, img.Source)
	}
	return out
}

// Validate checks the snapshot for values the compositor cannot draw,
// using DefaultLimits.
func (s *Snapshot) Validate() error {
	return s.ValidateLimits(DefaultLimits())
}

// ValidateLimits is Validate with caller-chosen size limits.
func (s *Snapshot) ValidateLimits(l Limits) error {
	l = l.withDefaults()
	if s.ID == "" {
		return fmt.Errorf("%w: empty design id", ErrInvalidSnapshot)
	}
	if err := s.Canvas.validate(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	counts := [4]int{}
	for _, el := range s.Layers() {
		k := el.Kind()
		if err := el.validate(l); err != nil {
			return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidSnapshot, k, counts[k], err)
		}
		counts[k]++
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Texts = append([]Text(nil), s.Texts...)
	c.Images = append([]Image(nil), s.Images...)
	c.QRCodes = append([]QRCode(nil), s.QRCodes...)
	if s.Graphics != nil {
		c.Graphics = make([]Graphic, len(s.Graphics))
		for i, g := range s.Graphics {
			if g.ViewBox != nil {
				vb := *g.ViewBox
				g.ViewBox = &vb
			}
			c.Graphics[i] = g
		}
	}
	return &c
}
