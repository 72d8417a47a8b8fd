package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, _, err := g.Do(context.Background(), "roster:C1", func(context.Context) (any, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "ok", nil
			})
			if err != nil || v != "ok" {
				t.Errorf("singleflight call = %v, %v", v, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
	if n := g.inFlight(); n != 0 {
		t.Fatalf("expected no calls in flight, got %d", n)
	}
}

func TestSingleFlight_CancelledWaiterLeavesCallRunning(t *testing.T) {
	var g SingleFlight
	release := make(chan struct{})
	started := make(chan struct{})

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return 1, ctx.Err()
		})
		leaderDone <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, shared, err := g.Do(ctx, "k", func(context.Context) (any, error) {
		t.Errorf("second caller must not start its own call")
		return nil, nil
	})
	if !shared || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected shared cancelled wait, shared=%v err=%v", shared, err)
	}

	close(release)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader must finish unaffected, got %v", err)
	}
}

func TestSingleFlight_PanicBecomesError(t *testing.T) {
	var g SingleFlight
	_, _, err := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	if n := g.inFlight(); n != 0 {
		t.Fatalf("expected key to be released, got %d in flight", n)
	}
}
