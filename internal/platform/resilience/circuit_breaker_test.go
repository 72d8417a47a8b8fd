package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	b := NewCircuitBreaker(2, 5*time.Second, 1)

	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open trial request to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open trial request, got %s", state)
	}
}

var errBackendDown = errors.New("backend down")
var errCallerMistake = errors.New("caller mistake")

func TestCircuitBreaker_DoIgnoresClassifiedErrors(t *testing.T) {
	b := NewCircuitBreakerFromConfig(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
		HalfOpenMaxReq:   1,
	}, func(err error) bool {
		return err != nil && !errors.Is(err, errCallerMistake)
	})

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errCallerMistake }); !errors.Is(err, errCallerMistake) {
			t.Fatalf("expected caller error passthrough, got %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("caller mistakes must not open the breaker, got %s", state)
	}

	if err := b.Do(func() error { return errBackendDown }); !errors.Is(err, errBackendDown) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open breaker to short-circuit, got %v", err)
	}
}

func TestCircuitBreaker_DisabledIsPassThrough(t *testing.T) {
	b := NewCircuitBreakerFromConfig(CircuitBreakerConfig{Enabled: false}, nil)
	if b != nil {
		t.Fatalf("expected nil breaker for disabled config")
	}

	calls := 0
	for i := 0; i < 10; i++ {
		_ = b.Do(func() error {
			calls++
			return errBackendDown
		})
	}
	if calls != 10 {
		t.Fatalf("expected every call to run, got %d", calls)
	}
}

func TestCircuitBreakerConfig_ZeroValuesTakeDefaults(t *testing.T) {
	got := CircuitBreakerConfig{Enabled: true, FailureThreshold: -1}.withDefaults()
	if got.FailureThreshold != defaultFailureThreshold || got.OpenTimeout != defaultOpenTimeout || got.HalfOpenMaxReq != defaultHalfOpenMaxReq {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	custom := CircuitBreakerConfig{Enabled: true, FailureThreshold: 3, OpenTimeout: time.Second, HalfOpenMaxReq: 4}.withDefaults()
	if custom.FailureThreshold != 3 || custom.OpenTimeout != time.Second || custom.HalfOpenMaxReq != 4 {
		t.Fatalf("explicit values must be kept: %+v", custom)
	}
}
