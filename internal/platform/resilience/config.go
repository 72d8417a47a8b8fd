package resilience

import "time"

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 10 * time.Second
	defaultHalfOpenMaxReq   = 2
)

// CircuitBreakerConfig mirrors the REDIS_CIRCUIT_* settings. Zero values take
// the defaults; Enabled=false turns the breaker into a pass-through.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaultOpenTimeout
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = defaultHalfOpenMaxReq
	}
	return c
}
