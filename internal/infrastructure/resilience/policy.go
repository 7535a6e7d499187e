package resilience

import "time"

// Policy bounds how hard an outbound call is retried and when its circuit
// opens.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Breaker        BreakerPolicy
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// DefaultPolicy suits event publishing and mail delivery: three quick
// attempts, and a breaker that opens when half of ten or more calls fail.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Breaker.MinRequests == 0 {
		p.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		p.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if p.Breaker.OpenTimeout <= 0 {
		p.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if p.Breaker.HalfOpenMaxCalls == 0 {
		p.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return p
}

// backoff returns the wait after the given failed attempt (1-based).
func (p Policy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= p.Multiplier
		if time.Duration(wait) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return time.Duration(wait)
}
