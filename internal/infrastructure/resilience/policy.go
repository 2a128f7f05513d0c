package resilience

import "time"

// Config tunes retries and the circuit breaker. Zero fields take defaults.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// Profile names the kind of dependency an executor protects.
type Profile string

const (
	// ProfileStore covers Qdrant search and NATS publish: short calls that
	// are cheap to repeat.
	ProfileStore Profile = "store"
	// ProfileEmbedding covers embedding calls, which hit provider rate limits
	// and recover within about a second.
	ProfileEmbedding Profile = "embedding"
	// ProfileGeneration covers answer generation. The safety retry controller
	// walks its own attempt matrix, so each call is made once.
	ProfileGeneration Profile = "generation"
	// ProfileAuxiliary covers critic, query rewrite and follow-up calls. They
	// run under short timeouts and fail open.
	ProfileAuxiliary Profile = "auxiliary"
)

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// ConfigFor returns the policy of p. Unknown profiles get DefaultConfig.
func ConfigFor(p Profile) Config {
	cfg := DefaultConfig()
	switch p {
	case ProfileEmbedding:
		cfg.RetryInitialBackoff = 250 * time.Millisecond
		cfg.RetryMaxBackoff = time.Second
	case ProfileGeneration:
		cfg = cfg.WithoutRetry()
		cfg.BreakerMinRequests = 6
		cfg.BreakerFailureRatio = 0.6
	case ProfileAuxiliary:
		cfg = cfg.WithoutRetry()
		cfg.BreakerMinRequests = 5
		cfg.BreakerOpenTimeout = time.Minute
	}
	return cfg
}

// WithoutRetry keeps the breaker but performs a single attempt.
func (c Config) WithoutRetry() Config {
	c.RetryMaxAttempts = 1
	return c
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	c.RetryMaxAttempts = positiveOr(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = positiveOr(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(positiveOr(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	c.BreakerMinRequests = positiveOr(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	c.BreakerOpenTimeout = positiveOr(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	c.BreakerHalfOpenMaxCalls = positiveOr(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}

func positiveOr[T int | uint32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
