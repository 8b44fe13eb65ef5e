package compose

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/design"
)

// ComposeFunc produces a bitmap for a snapshot. (*Compositor).Compose
// satisfies it.
type ComposeFunc func(ctx context.Context, s *design.Snapshot) (*image.RGBA, error)

// Sink consumes composed bitmaps, typically by swapping a texture.
type Sink interface {
	Apply(ctx context.Context, bmp *image.RGBA) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, bmp *image.RGBA) error

// Apply implements Sink.
func (f SinkFunc) Apply(ctx context.Context, bmp *image.RGBA) error {
	return f(ctx, bmp)
}

// Coalescer tags every request with a monotonically increasing sequence
// number and hands a result to the sink only if no newer request was issued
// in the meantime. Superseded results are dropped without being reported.
//
// Superseded requests are not cancelled; they run to completion and their
// results are ignored.
type Coalescer struct {
	compose ComposeFunc
	sink    Sink
	onError func(seq uint64, err error)

	issued  atomic.Uint64
	mu      sync.Mutex // serialises the check-and-apply step
	applied uint64
	wg      sync.WaitGroup
}

// CoalescerOption configures a Coalescer.
type CoalescerOption func(*Coalescer)

// OnError sets a hook called when the latest request fails to compose or
// apply. It runs with the apply lock held and must not call back into the
// Coalescer.
func OnError(fn func(seq uint64, err error)) CoalescerOption {
	return func(c *Coalescer) {
		c.onError = fn
	}
}

// NewCoalescer returns a Coalescer that composes with fn and applies to sink.
func NewCoalescer(fn ComposeFunc, sink Sink, opts ...CoalescerOption) *Coalescer {
	c := &Coalescer{compose: fn, sink: sink}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit issues a request and returns its sequence number immediately.
// The snapshot is copied, so the caller may keep editing its own value.
func (c *Coalescer) Submit(ctx context.Context, s *design.Snapshot) uint64 {
	seq := c.issued.Add(1)
	s = s.Clone()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.run(ctx, seq, s)
	}()
	return seq
}

// Do issues a request and waits for it. applied is false when the result
// was superseded by a newer request; in that case err is nil.
func (c *Coalescer) Do(ctx context.Context, s *design.Snapshot) (applied bool, err error) {
	seq := c.issued.Add(1)
	return c.run(ctx, seq, s.Clone())
}

func (c *Coalescer) run(ctx context.Context, seq uint64, s *design.Snapshot) (bool, error) {
	bmp, err := c.compose(ctx, s)

	c.mu.Lock()
	defer c.mu.Unlock()
	if latest := c.issued.Load(); seq != latest {
		ggar.Logger().Debug("compose: discarding superseded result", "seq", seq, "latest", latest)
		return false, nil
	}
	if err == nil {
		err = c.sink.Apply(ctx, bmp)
	}
	if err != nil {
		if c.onError != nil {
			c.onError(seq, err)
		}
		return false, err
	}
	c.applied = seq
	return true, nil
}

// Latest returns the sequence number of the most recently issued request.
func (c *Coalescer) Latest() uint64 {
	return c.issued.Load()
}

// Applied returns the sequence number of the last applied result, or zero.
func (c *Coalescer) Applied() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Wait blocks until every submitted request has finished.
func (c *Coalescer) Wait() {
	c.wg.Wait()
}
