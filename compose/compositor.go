package compose

import (
	"context"
	"fmt"
	"image"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/design"
)

const tracerName = "github.com/gogpu/ggar/compose"

// Compositor rasterises snapshots. A Compositor is safe for concurrent use;
// each Compose call works on its own buffers.
type Compositor struct {
	opts     options
	resolver *Resolver
	fonts    *FontBook
	tracer   trace.Tracer
}

// New creates a Compositor.
func New(opts ...Option) *Compositor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Compositor{
		opts:     o,
		resolver: o.resolver,
		fonts:    o.fonts,
		tracer:   otel.Tracer(tracerName),
	}
	if c.resolver == nil {
		c.resolver = NewResolver(nil)
	}
	if c.fonts == nil {
		c.fonts = NewFontBook()
	}
	return c
}

// Resolver returns the compositor's image resolver.
func (c *Compositor) Resolver() *Resolver {
	return c.resolver
}

// Fonts returns the compositor's font book.
func (c *Compositor) Fonts() *FontBook {
	return c.fonts
}

// Admit reports whether s can be composed: it validates s against the
// compositor's limits and checks every image source against the resolver's
// source policy. Errors wrap design.ErrInvalidSnapshot or
// ErrSourceNotAllowed. Admit does not load anything.
func (c *Compositor) Admit(s *design.Snapshot) error {
	if err := s.ValidateLimits(c.opts.limits); err != nil {
		return err
	}
	for _, src := range s.ImageSources() {
		if err := c.resolver.Allowed(src); err != nil {
			return err
		}
	}
	return nil
}

// Compose rasterises s into a new bitmap of the canvas size.
//
// Image sources are resolved first, bounded by the resource timeout; if any
// is not ready the error wraps ErrResourceNotReady and no bitmap is
// produced. Invalid snapshots yield an error wrapping
// design.ErrInvalidSnapshot.
func (c *Compositor) Compose(ctx context.Context, s *design.Snapshot) (_ *image.RGBA, err error) {
	ctx, span := c.tracer.Start(ctx, "compose.Compose", trace.WithAttributes(
		attribute.String("design.id", s.ID),
		attribute.Int("design.elements", s.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.ValidateLimits(c.opts.limits); err != nil {
		return nil, err
	}

	images, err := c.resolve(ctx, s)
	if err != nil {
		return nil, err
	}

	bg, err := design.ParseColor(s.Canvas.Background)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.Canvas.Width, s.Canvas.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for i, el := range s.Layers() {
		layer, err := c.rasterize(el, images)
		if err != nil {
			return nil, fmt.Errorf("compose: layer %d (%s): %w", i, el.Kind(), err)
		}
		place(dst, layer, el.Placement())
	}

	ggar.Logger().Debug("compose: composed design",
		"design_id", s.ID, "width", s.Canvas.Width, "height", s.Canvas.Height, "elements", s.Len())
	return dst, nil
}

func (c *Compositor) resolve(ctx context.Context, s *design.Snapshot) (map[string]image.Image, error) {
	srcs := s.ImageSources()
	if len(srcs) == 0 {
		return nil, nil
	}
	rctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()
	return c.resolver.Resolve(rctx, srcs)
}

func (c *Compositor) rasterize(el design.Element, images map[string]image.Image) (*image.RGBA, error) {
	switch el := el.(type) {
	case *design.Text:
		return c.drawText(el)
	case *design.Image:
		img, ok := images[el.Source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotReady, shortSource(el.Source))
		}
		return drawImage(el, img), nil
	case *design.Graphic:
		return drawGraphic(el)
	case *design.QRCode:
		return drawQRCode(el)
	default:
		return nil, fmt.Errorf("compose: unsupported element %T", el)
	}
}
