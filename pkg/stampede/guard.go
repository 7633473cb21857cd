// Package stampede collapses concurrent recomputations of the same key into
// a single in-flight call.
//
// Unlike x/sync/singleflight, a pending call has an age: once it is older
// than the configured maximum it is treated as abandoned, so a hung upstream
// cannot block every later reader of that key.
package stampede

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type call[T any] struct {
	done    chan struct{}
	val     T
	err     error
	started time.Time
	waiters atomic.Int64
}

// Stats are cumulative counters since the guard was created.
type Stats struct {
	Started uint64 // computations launched
	Joined  uint64 // callers that attached to an in-flight computation
	Reaped  uint64 // pending entries discarded as abandoned or detached
	Pending int
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Guard deduplicates computations by key. The zero value is not usable; use New.
type Guard[T any] struct {
	mu      sync.Mutex
	pending map[string]*call[T]
	maxAge  time.Duration
	now     func() time.Time

	started atomic.Uint64
	joined  atomic.Uint64
	reaped  atomic.Uint64
}

func New[T any](maxAge time.Duration, opts ...Option) *Guard[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Guard[T]{
		pending: make(map[string]*call[T]),
		maxAge:  maxAge,
		now:     o.now,
	}
}

// Execute returns the result of fn for key, sharing one invocation among
// concurrent callers. fn runs detached from the caller's cancellation: if
// ctx ends first the caller gets ctx.Err() and fn still runs to completion.
// A failed computation fails every caller that joined it.
func (g *Guard[T]) Execute(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	if c, ok := g.pending[key]; ok {
		if g.now().Sub(c.started) < g.maxAge {
			c.waiters.Add(1)
			g.joined.Add(1)
			g.mu.Unlock()
			return g.wait(ctx, c)
		}
		delete(g.pending, key)
		g.reaped.Add(1)
	}

	c := &call[T]{done: make(chan struct{}), started: g.now()}
	c.waiters.Store(1)
	g.pending[key] = c
	g.started.Add(1)
	g.mu.Unlock()

	go g.run(context.WithoutCancel(ctx), key, c, fn)
	return g.wait(ctx, c)
}

func (g *Guard[T]) run(ctx context.Context, key string, c *call[T], fn func(context.Context) (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("stampede: computation for %q panicked: %v", key, r)
		}
		g.mu.Lock()
		// only remove our own entry; a fresh call may have replaced it
		if g.pending[key] == c {
			delete(g.pending, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}

func (g *Guard[T]) wait(ctx context.Context, c *call[T]) (T, error) {
	defer c.waiters.Add(-1)

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Forget detaches every pending computation whose key matches. Callers
// already waiting still receive its result; later callers start fresh.
func (g *Guard[T]) Forget(match func(key string) bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for key := range g.pending {
		if match(key) {
			delete(g.pending, key)
			n++
		}
	}
	g.reaped.Add(uint64(n))
	return n
}

// Sweep discards pending computations older than the maximum age.
func (g *Guard[T]) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for key, c := range g.pending {
		if now.Sub(c.started) >= g.maxAge {
			delete(g.pending, key)
			n++
		}
	}
	g.reaped.Add(uint64(n))
	return n
}

// Run sweeps every interval until ctx is done. interval <= 0 uses maxAge.
func (g *Guard[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = g.maxAge
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Waiters reports how many callers are blocked on the pending computation for key.
func (g *Guard[T]) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.pending[key]; ok {
		return int(c.waiters.Load())
	}
	return 0
}

func (g *Guard[T]) Stats() Stats {
	g.mu.Lock()
	pending := len(g.pending)
	g.mu.Unlock()

	return Stats{
		Started: g.started.Load(),
		Joined:  g.joined.Load(),
		Reaped:  g.reaped.Load(),
		Pending: pending,
	}
}
