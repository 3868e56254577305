package retry

import (
	"math"
	"time"
)

// Config holds the tunables for backoff, gas bumping, and the dead-letter
// threshold.
type Config struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	BackoffMultiplier float64
	GasBumpPercent   float64 // e.g. 0.20 for 20%
	MaxGasMultiplier float64
}

// DefaultConfig returns the production defaults: five attempts on a
// 2s-doubling backoff capped at 60s, 20% gas bumps capped at 3x.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		GasBumpPercent:    0.20,
		MaxGasMultiplier:  3.0,
	}
}

// BackoffForAttempt returns min(initial * multiplier^attempt, max).
func (c Config) BackoffForAttempt(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt))
	max := float64(c.MaxBackoff)
	if backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

// GasPriceForAttempt applies the bump formula
// base * min(1 + bumpPct*attempt, maxMultiplier) to a base gas price.
func (c Config) GasPriceForAttempt(base int64, attempt int) int64 {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := 1.0 + c.GasBumpPercent*float64(attempt)
	if multiplier > c.MaxGasMultiplier {
		multiplier = c.MaxGasMultiplier
	}
	return int64(float64(base) * multiplier)
}

// ShouldRetry reports whether attempt has not yet exhausted MaxAttempts.
func (c Config) ShouldRetry(attempt int) bool {
	return attempt < c.MaxAttempts
}

// Action is what a writer or verifier should do after a failed attempt, as
// decided by Decide.
type Action int

const (
	// ActionRetryAfter means wait the given backoff, then resubmit
	// without a gas bump.
	ActionRetryAfter Action = iota
	// ActionRetryWithGas means wait the given (short) backoff, then
	// resubmit with a bumped gas price. The EVM writer rebuilds the
	// transaction at the signer's current pending nonce; the earlier
	// nonce is not pinned.
	ActionRetryWithGas
	// ActionSkip means treat the row as already handled (e.g. NonceTooLow
	// — something else already landed it).
	ActionSkip
	// ActionDeadLetter means stop retrying and mark the row dead.
	ActionDeadLetter
)

// Decision bundles the action with supporting data the caller needs to
// carry it out.
type Decision struct {
	Action  Action
	After   time.Duration
	GasBump bool
}

// Decide maps an error's class and the row's current attempt count to the
// action the writer must take next.
func Decide(cfg Config, class ErrorClass, attempt int) Decision {
	switch class {
	case Permanent:
		return Decision{Action: ActionDeadLetter}
	case NonceTooLow:
		return Decision{Action: ActionSkip}
	case NonceTooHigh:
		// Long backoff: wait for the signer's pending transactions to clear.
		return Decision{Action: ActionRetryAfter, After: cfg.MaxBackoff}
	case Underpriced:
		if !cfg.ShouldRetry(attempt) {
			return Decision{Action: ActionDeadLetter}
		}
		return Decision{Action: ActionRetryWithGas, After: cfg.InitialBackoff, GasBump: true}
	case Transient, Unknown:
		if !cfg.ShouldRetry(attempt) {
			return Decision{Action: ActionDeadLetter}
		}
		return Decision{Action: ActionRetryAfter, After: cfg.BackoffForAttempt(attempt)}
	default:
		return Decision{Action: ActionRetryAfter, After: cfg.BackoffForAttempt(attempt)}
	}
}
