package retry

import (
	"fmt"
	"time"

	"github.com/systemstart/ctrender/pkg/api"
)

// Policy holds backoff settings for repeated render attempts.
// It is immutable after construction.
type Policy struct {
	Mode       string        // api.BackoffFixed, api.BackoffLinear or api.BackoffExponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // retry attempts after the first failure
}

// DefaultPolicy returns the policy used when an entry does not opt into
// retries: a single attempt, fixed 2s delay if retries get enabled.
func DefaultPolicy() Policy {
	return Policy{Mode: api.BackoffFixed, Initial: 2 * time.Second, Max: 30 * time.Second, MaxRetries: 0}
}

// NewPolicy builds a policy from raw entry fields; zero or unknown values
// fall back to the defaults.
func NewPolicy(mode string, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case api.BackoffFixed, api.BackoffLinear, api.BackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay before the given retry (1-based: first
// retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case api.BackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	case api.BackoffLinear:
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	default:
		return p.Initial
	}
}

// Validate ensures the policy can be applied.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial delay must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max delay must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
