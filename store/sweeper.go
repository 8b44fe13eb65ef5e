package store

import (
	"context"
	"time"

	"github.com/gogpu/ggar"
)

// DefaultSweepInterval is how often a Sweeper runs by default.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically removes expired entries from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
}

// NewSweeper returns a sweeper for s. A non-positive interval means
// DefaultSweepInterval; a non-positive maxAge means the store's own.
func NewSweeper(s Store, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: s, interval: interval, maxAge: maxAge}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It returns ctx.Err().
func (w *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.store.Sweep(ctx, w.maxAge)
	if err != nil {
		if ctx.Err() == nil {
			ggar.Logger().Warn("store: sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		ggar.Logger().Info("store: swept expired designs", "removed", n)
	}
}
