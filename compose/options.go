package compose

import (
	"time"

	"github.com/gogpu/ggar/design"
)

// DefaultResourceTimeout bounds the wait for image sources.
const DefaultResourceTimeout = 5 * time.Second

// Option configures a Compositor.
//
// Example:
//
//	c := compose.New(
//	    compose.WithResourceTimeout(2*time.Second),
//	    compose.WithFonts(book),
//	)
type Option func(*options)

type options struct {
	timeout  time.Duration
	resolver *Resolver
	fonts    *FontBook
	limits   design.Limits
}

func defaultOptions() options {
	return options{timeout: DefaultResourceTimeout, limits: design.DefaultLimits()}
}

// WithResourceTimeout bounds how long Compose waits for image sources.
// Non-positive values keep the default.
func WithResourceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithResolver sets the image resolver. The default resolver uses
// DefaultLoader.
func WithResolver(r *Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithFonts sets the font book used for text elements. The default book
// holds the embedded Go fonts.
func WithFonts(b *FontBook) Option {
	return func(o *options) {
		o.fonts = b
	}
}

// WithLimits bounds the canvas and frame sizes Compose accepts. Zero fields
// keep design.DefaultLimits.
func WithLimits(l design.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}
