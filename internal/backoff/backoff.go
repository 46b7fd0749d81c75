package backoff

import (
	"time"

	jbackoff "github.com/jpillora/backoff"
)

const (
	DefaultBaseDelay = time.Second
	DefaultFactor    = 2.0
	DefaultMaxDelay  = 60 * time.Second
)

// Config holds the delay curve parameters.
type Config struct {
	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration
}

// Controller computes retry delays as min(base * factor^retry, max).
// It holds no per-call state and is safe for concurrent use.
type Controller struct {
	curve jbackoff.Backoff
}

// New creates a Controller. Zero values fall back to 1s base, factor 2 and a 60s cap.
func New(cfg Config) *Controller {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Factor <= 0 {
		cfg.Factor = DefaultFactor
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &Controller{
		curve: jbackoff.Backoff{
			Min:    cfg.BaseDelay,
			Max:    cfg.MaxDelay,
			Factor: cfg.Factor,
			Jitter: false,
		},
	}
}

// Delay returns the wait before retry number retry (0-based).
func (c *Controller) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return c.curve.ForAttempt(float64(retry))
}

// Max returns the configured delay cap.
func (c *Controller) Max() time.Duration {
	return c.curve.Max
}
