package resilience

import (
	"context"
	"fmt"
	"sync"
)

// SingleFlight runs at most one call per key at a time and hands its result
// to every caller that arrived while it ran.
type SingleFlight struct {
	mu    sync.Mutex
	calls map[string]*flight
}

type flight struct {
	done chan struct{}
	val  any
	err  error
}

// Do returns the result of fn for key and whether it was shared with an
// earlier caller. fn runs without the caller's cancellation so one caller
// leaving does not fail the rest; a caller whose ctx ends stops waiting and
// gets ctx.Err().
func (g *SingleFlight) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, bool, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flight)
	}
	f, shared := g.calls[key]
	if !shared {
		f = &flight{done: make(chan struct{})}
		g.calls[key] = f
		go g.run(context.WithoutCancel(ctx), key, f, fn)
	}
	g.mu.Unlock()

	select {
	case <-f.done:
		return f.val, shared, f.err
	case <-ctx.Done():
		return nil, shared, ctx.Err()
	}
}

func (g *SingleFlight) run(ctx context.Context, key string, f *flight, fn func(context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			f.val, f.err = nil, fmt.Errorf("singleflight %s: panic: %v", key, r)
		}
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(f.done)
	}()
	f.val, f.err = fn(ctx)
}

func (g *SingleFlight) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
