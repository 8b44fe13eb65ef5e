// Package design defines the data model of a product design: the canvas,
// the four element categories and the immutable Snapshot handed between
// sessions.
package design

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the category of an element. The numeric order of the
// kinds is the paint order of the categories.
type Kind int

// Element categories in paint order.
const (
	KindText Kind = iota
	KindImage
	KindGraphic
	KindQRCode
)

// String returns the lowercase category name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindGraphic:
		return "graphic"
	case KindQRCode:
		return "qrcode"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is the placement shared by every element.
// Coordinates are canvas pixels with the origin at the top-left corner.
// Rotation is in degrees, clockwise, about the centre of the frame.
type Frame struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
	// Opacity in (0, 1]. Payloads that omit it decode to 1; a zero
	// Opacity is rejected by Validate so a bare Frame{} literal cannot
	// silently hide an element.
	Opacity float64 `json:"opacity"`
}

// At returns an opaque, unrotated frame.
func At(x, y, width, height float64) Frame {
	return Frame{X: x, Y: y, Width: width, Height: height, Opacity: 1}
}

// UnmarshalJSON decodes a frame, defaulting Opacity to 1 when absent.
func (f *Frame) UnmarshalJSON(b []byte) error {
	type plain Frame
	p := plain{Opacity: 1}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*f = Frame(p)
	return nil
}

// Rotated returns a copy of f rotated by deg degrees.
func (f Frame) Rotated(deg float64) Frame {
	f.Rotation = deg
	return f
}

// Center returns the centre of the frame in canvas coordinates.
func (f Frame) Center() (x, y float64) {
	return f.X + f.Width/2, f.Y + f.Height/2
}

func (f Frame) validate(l Limits) error {
	if !finite(f.X, f.Y, f.Width, f.Height, f.Rotation, f.Opacity) {
		return fmt.Errorf("frame has a non-finite value")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame size %gx%g must be positive", f.Width, f.Height)
	}
	if err := checkMax("frame width", f.Width, l.MaxFrame); err != nil {
		return err
	}
	if err := checkMax("frame height", f.Height, l.MaxFrame); err != nil {
		return err
	}
	if f.Opacity == 0 {
		return fmt.Errorf("opacity 0 hides the element; omit it for opaque")
	}
	if f.Opacity < 0 || f.Opacity > 1 {
		return fmt.Errorf("opacity %g out of range (0,1]", f.Opacity)
	}
	return nil
}

// Element is implemented by *Text, *Image, *Graphic and *QRCode.
type Element interface {
	Kind() Kind
	Placement() Frame
	validate(l Limits) error
}

// Align is the horizontal alignment of text inside its frame.
type Align string

// Text alignments.
const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Text is a block of text drawn with one font face.
type Text struct {
	Frame      Frame   `json:"frame"`
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize"`
	Color      string  `json:"color,omitempty"`
	Align      Align   `json:"align,omitempty"`
	// LineHeight is a multiplier of the font line height. Zero means 1.2.
	LineHeight float64 `json:"lineHeight,omitempty"`
}

func (t *Text) Kind() Kind       { return KindText }
func (t *Text) Placement() Frame { return t.Frame }

func (t *Text) validate(l Limits) error {
	if err := t.Frame.validate(l); err != nil {
		return err
	}
	if !finite(t.FontSize, t.LineHeight) || t.FontSize <= 0 {
		return fmt.Errorf("font size %g must be positive", t.FontSize)
	}
	if err := checkMax("font size", t.FontSize, l.MaxFrame); err != nil {
		return err
	}
	if t.LineHeight < 0 {
		return fmt.Errorf("line height %g is negative", t.LineHeight)
	}
	switch t.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("unknown alignment %q", t.Align)
	}
	return validColor(t.Color, true)
}

// Fit controls how an image is scaled into its frame.
type Fit string

// Image fits.
const (
	FitFill    Fit = "fill"
	FitContain Fit = "contain"
	FitCover   Fit = "cover"
)

// Image is a raster image referenced by source. Source is a data URI, a
// file path (optionally file://) or an http(s) URL; which of these a
// compositor loads is its loader's policy.
type Image struct {
	Frame  Frame  `json:"frame"`
	Source string `json:"source"`
	Fit    Fit    `json:"fit,omitempty"`
}

func (i *Image) Kind() Kind       { return KindImage }
func (i *Image) Placement() Frame { return i.Frame }

func (i *Image) validate(l Limits) error {
	if err := i.Frame.validate(l); err != nil {
		return err
	}
	if i.Source == "" {
		return fmt.Errorf("image source is empty")
	}
	switch i.Fit {
	case "", FitFill, FitContain, FitCover:
		return nil
	default:
		return fmt.Errorf("unknown fit %q", i.Fit)
	}
}

// Shape is the geometry of a Graphic.
type Shape string

// Graphic shapes.
const (
	ShapeRect        Shape = "rect"
	ShapeRoundedRect Shape = "rounded-rect"
	ShapeEllipse     Shape = "ellipse"
	ShapeLine        Shape = "line"
	ShapePath        Shape = "path"
)

// ViewBox is the coordinate space of path data. The box is scaled to the
// element frame. A zero ViewBox means path coordinates are frame pixels.
type ViewBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Graphic is a filled and/or stroked vector shape.
type Graphic struct {
	Frame        Frame    `json:"frame"`
	Shape        Shape    `json:"shape"`
	Path         string   `json:"path,omitempty"`
	ViewBox      *ViewBox `json:"viewBox,omitempty"`
	Fill         string   `json:"fill,omitempty"`
	Stroke       string   `json:"stroke,omitempty"`
	StrokeWidth  float64  `json:"strokeWidth,omitempty"`
	CornerRadius float64  `json:"cornerRadius,omitempty"`
}

func (g *Graphic) Kind() Kind       { return KindGraphic }
func (g *Graphic) Placement() Frame { return g.Frame }

func (g *Graphic) validate(l Limits) error {
	if err := g.Frame.validate(l); err != nil {
		return err
	}
	switch g.Shape {
	case ShapeRect, ShapeRoundedRect, ShapeEllipse, ShapeLine:
	case ShapePath:
		if g.Path == "" {
			return fmt.Errorf("path shape without path data")
		}
		if g.ViewBox != nil && !finite(g.ViewBox.X, g.ViewBox.Y, g.ViewBox.Width, g.ViewBox.Height) {
			return fmt.Errorf("viewBox has a non-finite value")
		}
		if g.ViewBox != nil && (g.ViewBox.Width <= 0 || g.ViewBox.Height <= 0) {
			return fmt.Errorf("viewBox %gx%g must be positive", g.ViewBox.Width, g.ViewBox.Height)
		}
	default:
		return fmt.Errorf("unknown shape %q", g.Shape)
	}
	if !finite(g.StrokeWidth, g.CornerRadius) {
		return fmt.Errorf("stroke or corner radius is non-finite")
	}
	if g.StrokeWidth < 0 {
		return fmt.Errorf("stroke width %g is negative", g.StrokeWidth)
	}
	if err := validColor(g.Fill, true); err != nil {
		return err
	}
	return validColor(g.Stroke, true)
}

// Level is a QR error-correction level.
type Level string

// QR error-correction levels, lowest capacity cost first.
const (
	LevelL Level = "L"
	LevelM Level = "M"
	LevelQ Level = "Q"
	LevelH Level = "H"
)

// Valid reports whether l names a known level. The empty level is valid
// and means LevelM.
func (l Level) Valid() bool {
	switch l {
	case "", LevelL, LevelM, LevelQ, LevelH:
		return true
	}
	return false
}

const maxQRMargin = 64

// QRCode is a QR symbol placed on the design.
type QRCode struct {
	Frame  Frame  `json:"frame"`
	Value  string `json:"value"`
	Level  Level  `json:"level,omitempty"`
	Dark   string `json:"dark,omitempty"`
	Light  string `json:"light,omitempty"`
	Margin int    `json:"margin,omitempty"`
}

func (q *QRCode) Kind() Kind       { return KindQRCode }
func (q *QRCode) Placement() Frame { return q.Frame }

func (q *QRCode) validate(l Limits) error {
	if err := q.Frame.validate(l); err != nil {
		return err
	}
	if q.Value == "" {
		return fmt.Errorf("qr value is empty")
	}
	if !q.Level.Valid() {
		return fmt.Errorf("unknown error-correction level %q", q.Level)
	}
	if q.Margin < 0 || q.Margin > maxQRMargin {
		return fmt.Errorf("margin %d out of range [0,%d]", q.Margin, maxQRMargin)
	}
	if err := validColor(q.Dark, true); err != nil {
		return err
	}
	return validColor(q.Light, true)
}
