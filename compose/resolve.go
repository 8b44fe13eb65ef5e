package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/ggar"
)

// ErrResourceNotReady is returned when an image source could not be resolved
// within the resource timeout, or could not be loaded at all.
var ErrResourceNotReady = errors.New("compose: resource not ready")

// ErrSourceNotAllowed is returned for image sources outside the loader's
// source policy.
var ErrSourceNotAllowed = errors.New("compose: image source not allowed")

// ErrImageTooLarge is returned for images over the byte or pixel budget.
var ErrImageTooLarge = errors.New("compose: image too large")

// Loader budgets.
const (
	DefaultMaxImageBytes  = 16 << 20
	DefaultMaxImagePixels = 8192 * 8192
)

// Loader fetches and decodes one image source.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// SourceChecker is implemented by loaders that restrict which sources they
// accept. Resolver.Allowed consults it without loading anything.
type SourceChecker interface {
	Allowed(src string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) {
	return f(ctx, src)
}

// DefaultLoader reads data URIs, and optionally local files and http(s)
// URLs. The zero value accepts data URIs only: files must live under one
// of FileRoots and URLs must name one of Hosts.
type DefaultLoader struct {
	// Client is used for http(s) sources. nil means http.DefaultClient.
	Client *http.Client
	// MaxBytes caps the encoded size. Zero means DefaultMaxImageBytes.
	MaxBytes int64
	// MaxPixels caps width*height as declared by the image header.
	// Zero means DefaultMaxImagePixels.
	MaxPixels int64
	// FileRoots lists the directories file sources may be read from.
	FileRoots []string
	// Hosts lists the hosts (host or host:port) http(s) sources may be
	// fetched from. "*" allows any host.
	Hosts []string
}

// Allowed implements SourceChecker.
func (l *DefaultLoader) Allowed(src string) error {
	switch {
	case strings.HasPrefix(src, "data:"):
		return nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		u, err := url.Parse(src)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSourceNotAllowed, err)
		}
		return l.allowHost(u)
	default:
		_, err := l.filePath(src)
		return err
	}
}

func (l *DefaultLoader) allowHost(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrSourceNotAllowed, u.Scheme)
	}
	for _, h := range l.Hosts {
		if h == "*" || strings.EqualFold(h, u.Host) || strings.EqualFold(h, u.Hostname()) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q", ErrSourceNotAllowed, u.Host)
}

// filePath resolves src to a file under one of FileRoots, following
// symlinks so a link cannot point outside its root.
func (l *DefaultLoader) filePath(src string) (string, error) {
	if len(l.FileRoots) == 0 {
		return "", fmt.Errorf("%w: file sources are disabled", ErrSourceNotAllowed)
	}
	path, err := filepath.Abs(strings.TrimPrefix(src, "file://"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceNotAllowed, err)
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	for _, root := range l.FileRoots {
		root, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s is outside the file roots", ErrSourceNotAllowed, src)
}

// Load implements Loader.
func (l *DefaultLoader) Load(ctx context.Context, src string) (image.Image, error) {
	if err := l.Allowed(src); err != nil {
		return nil, err
	}
	var r io.Reader
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURI(src)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		body, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		r = body
	default:
		path, err := l.filePath(src)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return l.decode(r)
}

// decode reads at most MaxBytes and checks the declared dimensions against
// MaxPixels before decoding any pixel data.
func (l *DefaultLoader) decode(r io.Reader) (image.Image, error) {
	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	maxPixels := l.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, limit)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func (l *DefaultLoader) fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	client := http.DefaultClient
	if l.Client != nil {
		client = l.Client
	}
	// Copy the client so each redirect target passes the host policy too.
	c := *client
	next := c.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := l.allowHost(req.URL); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: status %s", resp.Status)
	}
	return resp.Body, nil
}

// decodeDataURI returns the payload of data:[<mediatype>][;base64],<data>.
func decodeDataURI(src string) ([]byte, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("data URI: %w", err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("data URI: %w", err)
	}
	return []byte(s), nil
}

// Resolver turns image sources into decoded images. Decoded images are
// cached by source, so a source that resolved once is ready immediately for
// every later composition. Resolver is safe for concurrent use.
type Resolver struct {
	loader   Loader
	parallel int

	mu       sync.Mutex
	cache    map[string]image.Image
	order    []string // insertion order for eviction
	maxCache int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithParallelism sets how many sources load at once. Default 4.
func WithParallelism(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithCacheSize bounds the number of cached images. Default 64.
func WithCacheSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCache = n
		}
	}
}

// NewResolver returns a resolver backed by loader. A nil loader means
// &DefaultLoader{}.
func NewResolver(loader Loader, opts ...ResolverOption) *Resolver {
	if loader == nil {
		loader = &DefaultLoader{}
	}
	r := &Resolver{
		loader:   loader,
		parallel: 4,
		cache:    make(map[string]image.Image),
		maxCache: 64,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Put seeds the cache with an already decoded image.
func (r *Resolver) Put(src string, img image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(src, img)
}

// Allowed reports whether src may be resolved. Cached sources are always
// allowed; other sources are checked by the loader when it implements
// SourceChecker. Errors wrap ErrSourceNotAllowed.
func (r *Resolver) Allowed(src string) error {
	if _, ok := r.Cached(src); ok {
		return nil
	}
	if sc, ok := r.loader.(SourceChecker); ok {
		return sc.Allowed(src)
	}
	return nil
}

// Cached returns the cached image for src, if any.
func (r *Resolver) Cached(src string) (image.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.cache[src]
	return img, ok
}

func (r *Resolver) store(src string, img image.Image) {
	if _, ok := r.cache[src]; !ok {
		r.order = append(r.order, src)
	}
	r.cache[src] = img
	for len(r.order) > r.maxCache {
		delete(r.cache, r.order[0])
		r.order = r.order[1:]
	}
}

// Resolve loads every source, bounded by ctx. Either all sources resolve or
// the returned error wraps ErrResourceNotReady naming the first failing
// source.
func (r *Resolver) Resolve(ctx context.Context, srcs []string) (map[string]image.Image, error) {
	out := make(map[string]image.Image, len(srcs))
	var pending []string
	r.mu.Lock()
	for _, src := range srcs {
		if img, ok := r.cache[src]; ok {
			out[src] = img
		} else {
			pending = append(pending, src)
		}
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return out, nil
	}

	loaded := make([]image.Image, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, src := range pending {
		g.Go(func() error {
			img, err := r.load(gctx, src)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrResourceNotReady, shortSource(src), err)
			}
			loaded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	for i, src := range pending {
		r.store(src, loaded[i])
		out[src] = loaded[i]
	}
	r.mu.Unlock()
	ggar.Logger().Debug("compose: resolved image sources", "loaded", len(pending), "cached", len(srcs)-len(pending))
	return out, nil
}

// load runs the loader but returns as soon as ctx is done, so a loader that
// ignores its context cannot stall composition.
func (r *Resolver) load(ctx context.Context, src string) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := r.loader.Load(ctx, src)
		ch <- result{img, err}
	}()
	select {
	case res := <-ch:
		if res.err == nil && res.img == nil {
			return nil, errors.New("loader returned no image")
		}
		return res.img, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shortSource keeps data URIs out of error messages.
func shortSource(src string) string {
	if strings.HasPrefix(src, "data:") && len(src) > 32 {
		return src[:32] + "..."
	}
	return src
}
