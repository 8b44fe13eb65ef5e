package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/internal/qrmatrix"
)

var (
	black = color.NRGBA{A: 0xFF}
	white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// layerSize returns the pixel size of an element-local layer.
func layerSize(f design.Frame) (int, int) {
	return int(math.Ceil(f.Width)), int(math.Ceil(f.Height))
}

// drawText renders t into a layer the size of its frame.
func (c *Compositor) drawText(t *design.Text) (*image.RGBA, error) {
	w, h := layerSize(t.Frame)
	face, err := c.fonts.Face(t.FontFamily, t.FontSize)
	if err != nil {
		return nil, err
	}
	col, err := design.ColorOr(t.Color, black)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.SetFont(face)
	dc.SetColor(col)

	mult := t.LineHeight
	if mult <= 0 {
		mult = 1.2
	}
	step := t.FontSize * mult
	baseline := face.Metrics().Ascent
	for i, line := range strings.Split(t.Content, "\n") {
		lw, _ := dc.MeasureString(line)
		var x float64
		switch t.Align {
		case design.AlignCenter:
			x = (float64(w) - lw) / 2
		case design.AlignRight:
			x = float64(w) - lw
		}
		dc.DrawString(line, x, baseline+float64(i)*step)
	}
	return contextImage(dc), nil
}

// drawImage scales img into a layer according to the element fit.
func drawImage(el *design.Image, img image.Image) *image.RGBA {
	w, h := layerSize(el.Frame)
	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := img.Bounds()
	if sb.Empty() {
		return layer
	}
	dst := layer.Bounds()
	if el.Fit == design.FitContain || el.Fit == design.FitCover {
		sx := float64(w) / float64(sb.Dx())
		sy := float64(h) / float64(sb.Dy())
		s := math.Min(sx, sy)
		if el.Fit == design.FitCover {
			s = math.Max(sx, sy)
		}
		dw := int(math.Round(float64(sb.Dx()) * s))
		dh := int(math.Round(float64(sb.Dy()) * s))
		x0 := (w - dw) / 2
		y0 := (h - dh) / 2
		dst = image.Rect(x0, y0, x0+dw, y0+dh)
	}
	draw.BiLinear.Scale(layer, dst, img, sb, draw.Src, nil)
	return layer
}

// drawGraphic fills and strokes g with gg.
func drawGraphic(g *design.Graphic) (*image.RGBA, error) {
	w, h := layerSize(g.Frame)
	fill, err := design.ColorOr(g.Fill, color.NRGBA{})
	if err != nil {
		return nil, err
	}
	stroke, err := design.ColorOr(g.Stroke, color.NRGBA{})
	if err != nil {
		return nil, err
	}
	sw := g.StrokeWidth
	if g.Stroke != "" && sw == 0 {
		sw = 1
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()

	fw, fh := g.Frame.Width, g.Frame.Height
	// Closed shapes are inset by half the stroke so the stroke stays inside
	// the frame.
	in := 0.0
	if g.Stroke != "" {
		in = sw / 2
	}
	switch g.Shape {
	case design.ShapeRect:
		dc.DrawRectangle(in, in, fw-2*in, fh-2*in)
	case design.ShapeRoundedRect:
		r := math.Min(g.CornerRadius, math.Min(fw, fh)/2)
		dc.DrawRoundedRectangle(in, in, fw-2*in, fh-2*in, r)
	case design.ShapeEllipse:
		dc.DrawEllipse(fw/2, fh/2, fw/2-in, fh/2-in)
	case design.ShapeLine:
		// A line has no interior; it is stroked with the stroke colour, or
		// the fill colour when no stroke is set.
		if g.Stroke == "" {
			stroke = fill
			if sw == 0 {
				sw = math.Max(1, fh)
			}
		}
		dc.MoveTo(0, fh/2)
		dc.LineTo(fw, fh/2)
		dc.SetLineWidth(sw)
		dc.SetColor(stroke)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("compose: stroke line: %w", err)
		}
		return contextImage(dc), nil
	case design.ShapePath:
		segs, err := parsePath(g.Path)
		if err != nil {
			return nil, err
		}
		tracePath(dc, segs, pathTransform(g))
	}

	if g.Fill != "" {
		dc.SetColor(fill)
		if err := dc.FillPreserve(); err != nil {
			return nil, fmt.Errorf("compose: fill %s: %w", g.Shape, err)
		}
	}
	if g.Stroke != "" && sw > 0 {
		dc.SetLineWidth(sw)
		dc.SetColor(stroke)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("compose: stroke %s: %w", g.Shape, err)
		}
	}
	return contextImage(dc), nil
}

// pathTransform maps path coordinates into the layer: the view box, if
// any, is scaled to the frame.
func pathTransform(g *design.Graphic) func(x, y float64) (float64, float64) {
	if g.ViewBox == nil {
		return func(x, y float64) (float64, float64) { return x, y }
	}
	vb := *g.ViewBox
	sx := g.Frame.Width / vb.Width
	sy := g.Frame.Height / vb.Height
	return func(x, y float64) (float64, float64) {
		return (x - vb.X) * sx, (y - vb.Y) * sy
	}
}

func tracePath(dc *gg.Context, segs []segment, tf func(x, y float64) (float64, float64)) {
	for _, s := range segs {
		p := s.pts
		switch s.op {
		case opMove:
			x, y := tf(p[0], p[1])
			dc.MoveTo(x, y)
		case opLine:
			x, y := tf(p[0], p[1])
			dc.LineTo(x, y)
		case opQuad:
			x1, y1 := tf(p[0], p[1])
			x, y := tf(p[2], p[3])
			dc.QuadraticTo(x1, y1, x, y)
		case opCubic:
			x1, y1 := tf(p[0], p[1])
			x2, y2 := tf(p[2], p[3])
			x, y := tf(p[4], p[5])
			dc.CubicTo(x1, y1, x2, y2, x, y)
		case opClose:
			dc.ClosePath()
		}
	}
}

// drawQRCode renders the symbol so it fills the smaller frame side,
// centred, on the light colour.
func drawQRCode(q *design.QRCode) (*image.RGBA, error) {
	w, h := layerSize(q.Frame)
	dark, err := design.ColorOr(q.Dark, black)
	if err != nil {
		return nil, err
	}
	light, err := design.ColorOr(q.Light, white)
	if err != nil {
		return nil, err
	}
	m, err := qrmatrix.Encode(q.Value, q.Level)
	if err != nil {
		return nil, err
	}
	side := min(w, h)
	sym := m.Render(side, q.Margin, dark, light)

	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(layer, layer.Bounds(), image.NewUniform(light), image.Point{}, draw.Src)
	x0, y0 := (w-side)/2, (h-side)/2
	draw.Draw(layer, image.Rect(x0, y0, x0+side, y0+side), sym, image.Point{}, draw.Src)
	return layer, nil
}

// contextImage flushes dc and returns its pixels.
func contextImage(dc *gg.Context) *image.RGBA {
	_ = dc.FlushGPU()
	img, ok := dc.Image().(*image.RGBA)
	if ok {
		return img
	}
	b := dc.Image().Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, dc.Image(), b.Min, draw.Src)
	return out
}

// place composites layer onto dst at f, rotated about the frame centre and
// scaled by the frame opacity. Pixels outside dst are clipped.
func place(dst *image.RGBA, layer *image.RGBA, f design.Frame) {
	var mask image.Image
	if f.Opacity < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(f.Opacity * 255))})
	}

	// Integer, unrotated placement is a plain copy so QR modules and text
	// stay aligned to the pixel grid.
	if f.Rotation == 0 && f.X == math.Trunc(f.X) && f.Y == math.Trunc(f.Y) {
		lb := layer.Bounds()
		r := lb.Add(image.Pt(int(f.X), int(f.Y)))
		draw.DrawMask(dst, r, layer, lb.Min, mask, image.Point{}, draw.Over)
		return
	}

	lw, lh := float64(layer.Bounds().Dx()), float64(layer.Bounds().Dy())
	cx, cy := f.Center()
	rad := f.Rotation * math.Pi / 180
	sin, cos := math.Sincos(rad)
	// Layer centre goes to the frame centre. With y pointing down, a positive
	// angle turns clockwise on screen.
	s2d := f64.Aff3{
		cos, -sin, cx - cos*lw/2 + sin*lh/2,
		sin, cos, cy - sin*lw/2 - cos*lh/2,
	}
	var opts *draw.Options
	if mask != nil {
		opts = &draw.Options{SrcMask: mask}
	}
	draw.BiLinear.Transform(dst, s2d, layer, layer.Bounds(), draw.Over, opts)
}
