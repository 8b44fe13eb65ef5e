package handoff

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/internal/qrmatrix"
)

// Default code rendering.
const (
	DefaultSize   = 300
	DefaultMargin = 2
	DefaultDark   = "#000000"
	DefaultLight  = "#FFFFFF"
	DefaultLevel  = design.LevelM
)

// ErrPayloadTooLarge is returned by EncodeSnapshot when the payload does
// not fit in a QR symbol at the configured level.
var ErrPayloadTooLarge = errors.New("handoff: payload too large for a QR code")

// Options controls how codes are rendered.
type Options struct {
	// Size is the width and height of the image in pixels.
	Size int `yaml:"size" env:"SIZE"`
	// Margin is the quiet zone in modules.
	Margin int `yaml:"margin" env:"MARGIN"`
	// Dark and Light are hex colours.
	Dark  string `yaml:"dark" env:"DARK"`
	Light string `yaml:"light" env:"LIGHT"`
	// Level is the error-correction level.
	Level design.Level `yaml:"level" env:"LEVEL"`
}

// DefaultOptions returns 300px black-on-white codes with a two module
// margin at level M.
func DefaultOptions() Options {
	return Options{
		Size:   DefaultSize,
		Margin: DefaultMargin,
		Dark:   DefaultDark,
		Light:  DefaultLight,
		Level:  DefaultLevel,
	}
}

// Validate reports invalid option values.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("handoff: size %d must be positive", o.Size)
	}
	if o.Margin < 0 {
		return fmt.Errorf("handoff: margin %d is negative", o.Margin)
	}
	if !o.Level.Valid() {
		return fmt.Errorf("handoff: unknown error-correction level %q", o.Level)
	}
	if _, err := design.ParseColor(o.Dark); err != nil {
		return fmt.Errorf("handoff: dark: %w", err)
	}
	if _, err := design.ParseColor(o.Light); err != nil {
		return fmt.Errorf("handoff: light: %w", err)
	}
	return nil
}

// Code is a rendered handoff code.
type Code struct {
	// Content is the encoded text: the handoff URL, or a payload for
	// self-contained codes.
	Content string
	// URL is the handoff URL. It is empty for self-contained codes.
	URL string
	// PNG is the encoded image.
	PNG []byte
}

// DataURI returns the image as a data:image/png;base64 URI.
func (c *Code) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)
}

// Encoder renders handoff codes.
type Encoder struct {
	opts Options
	now  func() time.Time
}

// NewEncoder returns an encoder using opts.
func NewEncoder(opts Options) (*Encoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{opts: opts, now: time.Now}, nil
}

// Options returns the encoder's options.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode builds the handoff URL for id under base and renders it.
func (e *Encoder) Encode(id, base string) (*Code, error) {
	u, err := BuildURL(base, id, Token(e.now()))
	if err != nil {
		return nil, err
	}
	img, err := e.Render(u)
	if err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	return &Code{Content: u, URL: u, PNG: data}, nil
}

// EncodeSnapshot renders a self-contained code holding the whole payload
// of s, for viewers that cannot reach a shared store. It fails with
// ErrPayloadTooLarge for designs that do not fit.
func (e *Encoder) EncodeSnapshot(s *design.Snapshot) (*Code, error) {
	payload, err := codec.Encode(s)
	if err != nil {
		return nil, err
	}
	img, err := e.Render(string(payload))
	if err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	return &Code{Content: string(payload), PNG: data}, nil
}

// Render draws content as a QR symbol of the configured size.
func (e *Encoder) Render(content string) (*image.NRGBA, error) {
	m, err := qrmatrix.Encode(content, e.opts.Level)
	if err != nil {
		if errors.Is(err, qrmatrix.ErrEmptyContent) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}
	dark, _ := design.ParseColor(e.opts.Dark)
	light, _ := design.ParseColor(e.opts.Light)
	return m.Render(e.opts.Size, e.opts.Margin, dark, light), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("handoff: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
