package ratelimit

import (
	"time"
)

// startRateLimit is the minimum gap between manual processing restarts
const startRateLimit = 1 * time.Minute

// Config interface for rate limiting configuration
type Config interface {
	GetDisableRateLimit() bool
}

// Result contains the outcome of a rate limit check
type Result struct {
	ShouldBlock   bool
	RemainingTime time.Duration
	Reason        string
}

// CheckStartRateLimit checks whether a manual processing start should be
// blocked. Forced starts and the first start are never limited.
func CheckStartRateLimit(cfg Config, lastManualStart *time.Time, isForced bool) Result {
	if cfg.GetDisableRateLimit() {
		return Result{
			ShouldBlock: false,
			Reason:      "rate_limiting_disabled",
		}
	}

	if isForced {
		return Result{
			ShouldBlock: false,
			Reason:      "forced_start",
		}
	}

	if lastManualStart == nil {
		return Result{
			ShouldBlock: false,
			Reason:      "no_previous_start",
		}
	}

	timeSinceLastStart := time.Since(*lastManualStart)
	if timeSinceLastStart < startRateLimit {
		return Result{
			ShouldBlock:   true,
			RemainingTime: startRateLimit - timeSinceLastStart,
			Reason:        "rate_limit_active",
		}
	}

	return Result{
		ShouldBlock: false,
		Reason:      "rate_limit_passed",
	}
}

// GetRateLimitDuration returns the rate limit window for manual starts
func GetRateLimitDuration() time.Duration {
	return startRateLimit
}
