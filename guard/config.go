// Package guard supervises untrusted executions with two independent layers:
// source-injected loop and recursion counters raising catchable faults inside
// the guest, and an external watchdog that recovers the cases injection cannot
// reach. Configuration is validated eagerly so a bad limit fails at
// construction, never mid-execution.
package guard

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig tags every configuration range violation.
var ErrConfig = errors.New("invalid guard configuration")

// Published defaults. A zero Config normalizes to exactly these values.
const (
	DefaultMaxLoopIterations = 100_000
	DefaultMaxRecursionDepth = 1_000
	DefaultExternalTimeout   = 5 * time.Second
)

const (
	minLoopIterations = 1
	maxLoopIterations = 10_000_000
	minRecursionDepth = 1
	maxRecursionDepth = 10_000
	minTimeout        = 100 * time.Millisecond
	maxTimeout        = 60 * time.Second
)

// Config bounds both protection layers. Zero numeric fields mean "use the
// default". The disable flags follow the usual zero-value convention: an
// untouched Config runs with both injection layers on.
type Config struct {
	// MaxLoopIterations caps the total iterations the injected loop counter
	// allows before raising a loop fault. Valid range [1, 10000000].
	MaxLoopIterations int `json:"maxLoopIterations" mapstructure:"max_loop_iterations"`

	// MaxRecursionDepth caps tracked call depth before raising a recursion
	// fault. Valid range [1, 10000].
	MaxRecursionDepth int `json:"maxRecursionDepth" mapstructure:"max_recursion_depth"`

	// ExternalTimeout arms the watchdog that tears the sandbox down when the
	// injected layer never gets a chance to fire. Valid range [100ms, 60s].
	ExternalTimeout time.Duration `json:"externalTimeoutMs" mapstructure:"external_timeout"`

	DisableLoopInjection     bool `json:"disableLoopInjection,omitempty" mapstructure:"disable_loop_injection"`
	DisableRecursionTracking bool `json:"disableRecursionTracking,omitempty" mapstructure:"disable_recursion_tracking"`
}

// DefaultConfig returns the published default limits with both injection
// layers enabled.
func DefaultConfig() Config {
	return Config{
		MaxLoopIterations: DefaultMaxLoopIterations,
		MaxRecursionDepth: DefaultMaxRecursionDepth,
		ExternalTimeout:   DefaultExternalTimeout,
	}
}

// Normalized fills zero fields with their defaults without validating.
func (c Config) Normalized() Config {
	if c.MaxLoopIterations == 0 {
		c.MaxLoopIterations = DefaultMaxLoopIterations
	}
	if c.MaxRecursionDepth == 0 {
		c.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	if c.ExternalTimeout == 0 {
		c.ExternalTimeout = DefaultExternalTimeout
	}
	return c
}

// Validate normalizes c and range-checks every field. Each violation names
// the offending field, the rejected value, and the exact valid range, so a
// caller can fix the configuration without consulting anything else.
func Validate(c Config) (Config, error) {
	c = c.Normalized()

	if c.MaxLoopIterations < minLoopIterations || c.MaxLoopIterations > maxLoopIterations {
		return Config{}, fmt.Errorf("%w: maxLoopIterations %d outside [%d, %d]",
			ErrConfig, c.MaxLoopIterations, minLoopIterations, maxLoopIterations)
	}
	if c.MaxRecursionDepth < minRecursionDepth || c.MaxRecursionDepth > maxRecursionDepth {
		return Config{}, fmt.Errorf("%w: maxRecursionDepth %d outside [%d, %d]",
			ErrConfig, c.MaxRecursionDepth, minRecursionDepth, maxRecursionDepth)
	}
	if c.ExternalTimeout < minTimeout || c.ExternalTimeout > maxTimeout {
		return Config{}, fmt.Errorf("%w: externalTimeoutMs %d outside [%d, %d]",
			ErrConfig, c.ExternalTimeout.Milliseconds(),
			minTimeout.Milliseconds(), maxTimeout.Milliseconds())
	}
	return c, nil
}
